package server

import (
	"time"

	"backend-ridelink/internal/auth"
	"backend-ridelink/internal/config"
	"backend-ridelink/internal/db"
	"backend-ridelink/internal/geocode"
	"backend-ridelink/internal/participant"
	"backend-ridelink/internal/profile"
	"backend-ridelink/internal/ride"
	"backend-ridelink/internal/shared/apperr"
	"backend-ridelink/internal/storage"
	"backend-ridelink/internal/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Stream *stream.Hub
}

func NewServer(cfg config.Config, pg *pgxpool.Pool, redisClient *redis.Client, avatars storage.Uploader) *Server {
	app := fiber.New(fiber.Config{ErrorHandler: apperr.ErrorHandler})
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     pg,
		Redis:  redisClient,
		Stream: stream.NewHub(redisClient),
	}

	registerRoutes(s, avatars)
	return s
}

func registerRoutes(s *Server, avatars storage.Uploader) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	kv := db.RedisKV{Client: s.Redis}
	requireAuth := auth.JWTMiddleware(s.Cfg.JWTSecret)
	optionalAuth := auth.OptionalJWTMiddleware(s.Cfg.JWTSecret)

	profiles := profile.NewService(s.DB, kv, s.Stream)
	onboarded := profile.RequireOnboarded(profiles)

	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, s.DB))
	profile.RegisterRoutes(s.App.Group("/profiles"), profiles, requireAuth)

	// optional auth at the group level so every ride route can annotate for a
	// signed-in viewer; the onboarding gate stacks on top for mutations
	rides := s.App.Group("/rides", optionalAuth)
	ride.RegisterRoutes(rides, ride.NewService(s.DB, kv, s.Stream), optionalAuth, onboarded)
	participant.RegisterRoutes(rides, participant.NewService(s.DB, s.Stream), onboarded)

	geocoder := geocode.NewClient(s.Cfg.GeocoderBaseURL, kv)
	geocode.RegisterRoutes(s.App.Group("/geocode"), geocoder, geocode.RateLimit(30, time.Minute, 10))

	storage.RegisterRoutes(s.App.Group("/storage"), avatars, profiles, requireAuth)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}
