package auth

import (
	"backend-ridelink/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Post("/register", func(c *fiber.Ctx) error {
		var req RegisterRequest
		if err := c.BodyParser(&req); err != nil {
			return apperr.New(apperr.CodeValidation, "invalid payload")
		}
		user, tokens, err := svc.Register(c.Context(), req)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(apperr.OK(fiber.Map{"user": user, "tokens": tokens}))
	})

	r.Post("/login", func(c *fiber.Ctx) error {
		var req LoginRequest
		if err := c.BodyParser(&req); err != nil || req.Email == "" || req.Password == "" {
			return apperr.New(apperr.CodeValidation, "email and password required")
		}
		_, resp, err := svc.Login(c.Context(), req)
		if err != nil {
			return err
		}
		return c.JSON(apperr.OK(resp))
	})

	r.Post("/refresh", func(c *fiber.Ctx) error {
		var req RefreshRequest
		if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
			return apperr.New(apperr.CodeValidation, "refresh_token required")
		}

		userID, err := svc.ValidateRefreshToken(c.Context(), req.RefreshToken)
		if err != nil {
			return err
		}

		resp, err := svc.GenerateTokens(c.Context(), userID)
		if err != nil {
			return err
		}
		return c.JSON(apperr.OK(resp))
	})

	r.Post("/logout", func(c *fiber.Ctx) error {
		var req LogoutRequest
		if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
			return apperr.New(apperr.CodeValidation, "refresh_token required")
		}
		if err := svc.Logout(c.Context(), req.RefreshToken); err != nil {
			return err
		}
		return c.JSON(apperr.OK(nil))
	})

	r.Post("/password/reset-request", func(c *fiber.Ctx) error {
		var req ResetRequest
		if err := c.BodyParser(&req); err != nil || req.Email == "" {
			return apperr.New(apperr.CodeValidation, "email required")
		}
		token, err := svc.RequestPasswordReset(c.Context(), req.Email)
		if err != nil {
			return err
		}
		return c.JSON(apperr.OK(fiber.Map{"reset_token": token}))
	})

	r.Post("/password/reset", func(c *fiber.Ctx) error {
		var req ResetConfirmRequest
		if err := c.BodyParser(&req); err != nil || req.Token == "" {
			return apperr.New(apperr.CodeValidation, "token and new_password required")
		}
		if err := svc.ResetPassword(c.Context(), req.Token, req.NewPassword); err != nil {
			return err
		}
		return c.JSON(apperr.OK(nil))
	})

	r.Get("/session", func(c *fiber.Ctx) error {
		token := bearerFromHeader(c.Get("Authorization"))
		if token == "" {
			return apperr.New(apperr.CodeUnauthorized, "missing bearer token")
		}

		userID, err := svc.ValidateAccessToken(token)
		if err != nil {
			return err
		}
		return c.JSON(apperr.OK(fiber.Map{"user_id": userID}))
	})
}
