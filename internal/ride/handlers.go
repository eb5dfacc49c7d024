package ride

import (
	"strconv"

	"backend-ridelink/internal/auth"
	"backend-ridelink/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes wires the ride surface. Reads take the optional-auth
// middleware so annotations work for signed-in viewers; writes require an
// authenticated, onboarded caller.
func RegisterRoutes(r fiber.Router, svc *Service, optionalAuth, requireMember fiber.Handler) {
	r.Post("/", requireMember, func(c *fiber.Ctx) error {
		var input CreateInput
		if err := c.BodyParser(&input); err != nil {
			return apperr.New(apperr.CodeValidation, "invalid payload")
		}
		created, err := svc.Create(c.Context(), auth.UserID(c), input)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(apperr.OK(created))
	})

	r.Get("/", optionalAuth, func(c *fiber.Ctx) error {
		rides, err := svc.List(c.Context(), auth.UserID(c))
		if err != nil {
			return err
		}
		return c.JSON(apperr.OK(rides))
	})

	r.Get("/near", optionalAuth, func(c *fiber.Ctx) error {
		lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
		lng, lngErr := strconv.ParseFloat(c.Query("lng"), 64)
		if latErr != nil || lngErr != nil {
			return apperr.New(apperr.CodeValidation, "lat and lng required")
		}
		radiusKm, err := strconv.ParseFloat(c.Query("radius_km", "10"), 64)
		if err != nil || radiusKm <= 0 {
			return apperr.New(apperr.CodeValidation, "radius_km must be positive")
		}
		rides, err := svc.Near(c.Context(), auth.UserID(c), lat, lng, radiusKm)
		if err != nil {
			return err
		}
		return c.JSON(apperr.OK(rides))
	})

	r.Get("/mine", requireMember, func(c *fiber.Ctx) error {
		rides, err := svc.Mine(c.Context(), auth.UserID(c))
		if err != nil {
			return err
		}
		return c.JSON(apperr.OK(rides))
	})

	r.Get("/joined", requireMember, func(c *fiber.Ctx) error {
		rides, err := svc.Joined(c.Context(), auth.UserID(c))
		if err != nil {
			return err
		}
		return c.JSON(apperr.OK(rides))
	})

	r.Get("/defaults", requireMember, func(c *fiber.Ctx) error {
		defaults, err := svc.Defaults(c.Context(), auth.UserID(c))
		if err != nil {
			return err
		}
		return c.JSON(apperr.OK(defaults))
	})

	r.Get("/:id", optionalAuth, func(c *fiber.Ctx) error {
		ride, err := svc.Get(c.Context(), auth.UserID(c), c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(apperr.OK(ride))
	})

	r.Put("/:id", requireMember, func(c *fiber.Ctx) error {
		var patch Ride
		if err := c.BodyParser(&patch); err != nil {
			return apperr.New(apperr.CodeValidation, "invalid payload")
		}
		updated, err := svc.Update(c.Context(), auth.UserID(c), c.Params("id"), patch)
		if err != nil {
			return err
		}
		return c.JSON(apperr.OK(updated))
	})

	r.Delete("/:id", requireMember, func(c *fiber.Ctx) error {
		if err := svc.Delete(c.Context(), auth.UserID(c), c.Params("id")); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}
