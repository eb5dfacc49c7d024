package profile

import (
	"backend-ridelink/internal/auth"
	"backend-ridelink/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/", func(c *fiber.Ctx) error {
		profiles, err := svc.List(c.Context())
		if err != nil {
			return err
		}
		return c.JSON(apperr.OK(profiles))
	})

	r.Get("/me", authMiddleware, func(c *fiber.Ctx) error {
		p, err := svc.Get(c.Context(), auth.UserID(c))
		if err != nil {
			return err
		}
		return c.JSON(apperr.OK(p))
	})

	r.Put("/me", authMiddleware, func(c *fiber.Ctx) error {
		var patch Profile
		if err := c.BodyParser(&patch); err != nil {
			return apperr.New(apperr.CodeValidation, "invalid payload")
		}
		p, err := svc.Update(c.Context(), auth.UserID(c), patch)
		if err != nil {
			return err
		}
		return c.JSON(apperr.OK(p))
	})

	r.Post("/me/onboarding", authMiddleware, func(c *fiber.Ctx) error {
		p, err := svc.CompleteOnboarding(c.Context(), auth.UserID(c))
		if err != nil {
			return err
		}
		return c.JSON(apperr.OK(p))
	})

	r.Get("/:userID", func(c *fiber.Ctx) error {
		p, err := svc.Get(c.Context(), c.Params("userID"))
		if err != nil {
			return err
		}
		return c.JSON(apperr.OK(p))
	})
}
