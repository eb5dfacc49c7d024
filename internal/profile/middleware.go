package profile

import (
	"backend-ridelink/internal/auth"
	"backend-ridelink/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

// RequireOnboarded gates ride and participation routes: authenticated users
// who have not completed onboarding are turned away, mirroring the redirect
// the dashboard applies.
func RequireOnboarded(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := auth.UserID(c)
		if userID == "" {
			return apperr.New(apperr.CodeUnauthorized, "authentication required")
		}
		done, err := svc.Onboarded(c.Context(), userID)
		if err != nil {
			return err
		}
		if !done {
			return apperr.New(apperr.CodeUnauthorized, "onboarding not completed")
		}
		return c.Next()
	}
}
