package storage

import (
	"strings"

	"backend-ridelink/internal/auth"
	"backend-ridelink/internal/profile"
	"backend-ridelink/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the avatar upload. The object key is derived from the
// authenticated user, so a caller can only ever replace their own avatar.
func RegisterRoutes(r fiber.Router, up Uploader, profiles *profile.Service, requireAuth fiber.Handler) {
	r.Post("/avatar", requireAuth, func(c *fiber.Ctx) error {
		if up == nil {
			return apperr.New(apperr.CodeServer, "avatar storage is not configured")
		}

		header, err := c.FormFile("avatar")
		if err != nil {
			return apperr.New(apperr.CodeValidation, "avatar file required")
		}
		contentType := header.Header.Get("Content-Type")
		if !strings.HasPrefix(contentType, "image/") {
			return apperr.New(apperr.CodeValidation, "avatar must be an image")
		}

		file, err := header.Open()
		if err != nil {
			return apperr.New(apperr.CodeValidation, "unreadable avatar file")
		}
		defer file.Close()

		userID := auth.UserID(c)
		url, err := up.Upload(c.Context(), "avatars/"+userID, contentType, file)
		if err != nil {
			return err
		}

		updated, err := profiles.SetAvatarURL(c.Context(), userID, url)
		if err != nil {
			return err
		}
		return c.JSON(apperr.OK(updated))
	})
}
