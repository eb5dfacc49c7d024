package participant

import (
	"backend-ridelink/internal/auth"
	"backend-ridelink/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the join/leave surface on the rides group. The roster
// read is public; mutations require an onboarded caller.
func RegisterRoutes(r fiber.Router, svc *Service, requireMember fiber.Handler) {
	r.Post("/:id/join", requireMember, func(c *fiber.Ctx) error {
		member, err := svc.Join(c.Context(), auth.UserID(c), c.Params("id"))
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(apperr.OK(member))
	})

	r.Post("/:id/leave", requireMember, func(c *fiber.Ctx) error {
		if err := svc.Leave(c.Context(), auth.UserID(c), c.Params("id")); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Get("/:id/participants", func(c *fiber.Ctx) error {
		members, err := svc.List(c.Context(), c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(apperr.OK(fiber.Map{
			"participants": members,
			"count":        len(members),
		}))
	})
}
