package geocode

import (
	"strconv"

	"backend-ridelink/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the geocoding proxy. Both routes sit behind the
// per-IP rate limit.
func RegisterRoutes(r fiber.Router, client *Client, limit fiber.Handler) {
	r.Get("/search", limit, func(c *fiber.Ctx) error {
		places, err := client.Search(c.Context(), c.Query("q"))
		if err != nil {
			return err
		}
		return c.JSON(apperr.OK(places))
	})

	r.Get("/reverse", limit, func(c *fiber.Ctx) error {
		lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
		lng, lngErr := strconv.ParseFloat(c.Query("lng"), 64)
		if latErr != nil || lngErr != nil {
			return apperr.New(apperr.CodeValidation, "lat and lng required")
		}
		place, err := client.Reverse(c.Context(), lat, lng)
		if err != nil {
			return err
		}
		return c.JSON(apperr.OK(place))
	})
}
