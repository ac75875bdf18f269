package server

import (
	"backend-projectrun/internal/auth"
	"backend-projectrun/internal/challenge"
	"backend-projectrun/internal/coaching"
	"backend-projectrun/internal/config"
	"backend-projectrun/internal/db"
	"backend-projectrun/internal/logger"
	"backend-projectrun/internal/run"
	"backend-projectrun/internal/stream"
	"backend-projectrun/internal/tracking"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     db.TxQuerier
	Redis  *redis.Client
	Stream *stream.Hub
	Log    *logger.Logger
}

func NewServer(cfg config.Config, pg db.TxQuerier, redisClient *redis.Client, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	app := fiber.New()
	app.Use(recover.New())
	app.Use(fiberlogger.New())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     pg,
		Redis:  redisClient,
		Stream: stream.NewHub(redisClient, log),
		Log:    log,
	}

	registerRoutes(s)
	return s
}

// Close stops the stream hub's redis subscription.
func (s *Server) Close() {
	s.Stream.Close()
}

func (s *Server) locker() tracking.Locker {
	if s.Redis != nil {
		return tracking.NewRedisLocker(s.Redis, s.Cfg.RunLockTTL, s.Cfg.RunLockWait)
	}
	return tracking.NewLocalLocker(s.Cfg.RunLockWait)
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	users := auth.NewService(s.Cfg.JWTSecret, s.DB)
	positions := tracking.NewService(s.DB, s.Stream, s.locker(), tracking.Options{ValidateFixTime: s.Cfg.ValidatePositionTime})
	challenges := challenge.NewEngine(s.DB, s.Log.With("component", "challenge"))
	runs := run.NewService(s.DB, users, challenges, s.Stream, s.Log.With("component", "run"))
	coaches := coaching.NewService(s.DB, users)

	auth.RegisterRoutes(s.App.Group("/auth"), users)

	api := s.App.Group("/api")
	api.Get("/company_details", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"company_name": s.Cfg.ClubName,
			"slogan":       s.Cfg.ClubSlogan,
			"contacts":     s.Cfg.ClubContacts,
		})
	})
	run.RegisterRoutes(api.Group("/runs"), runs, jwtMiddleware)
	tracking.RegisterRoutes(api.Group("/positions"), positions, jwtMiddleware)
	auth.RegisterUserRoutes(api.Group("/users"), users)
	challenge.RegisterRoutes(api, challenges)
	coaching.RegisterRoutes(api, coaches, jwtMiddleware)

	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}
