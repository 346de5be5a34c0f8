package api

import (
	"context"
	"time"

	"kadan/internal/application"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const shutdownTimeout = 5 * time.Second

// Pinger is satisfied by *repository.Repository.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the read-only ops API: health checks and block/account lookups.
type Server struct {
	app    *fiber.App
	addr   string
	logger application.Logger

	health *HealthHandler
	lookup *LookupHandler
}

func NewServer(addr string, db Pinger, services *application.Service, logger application.Logger) *Server {
	return &Server{
		app: fiber.New(fiber.Config{
			AppName:               "kadan-ops",
			DisableStartupMessage: true,
			ReadTimeout:           10 * time.Second,
			WriteTimeout:          10 * time.Second,
		}),
		addr:   addr,
		logger: logger,
		health: NewHealthHandler(db),
		lookup: NewLookupHandler(services.Blocks, services.Accounts),
	}
}

func (s *Server) Init() error {
	s.app.Use(recover.New())

	s.app.Get("/health", s.health.Health)
	s.app.Get("/ready", s.health.Ready)

	v1 := s.app.Group("/api/v1")
	v1.Get("/guilds/:guild/blocks", s.lookup.Blocks)
	v1.Get("/guilds/:guild/users/:user", s.lookup.User)
	return nil
}

func (s *Server) Run(ctx context.Context) {
	s.logger.Info("ops api listening on %s", s.addr)
	if err := s.app.Listen(s.addr); err != nil {
		s.logger.Error("ops api stopped: %v", err)
	}
}

func (s *Server) Stop() {
	if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		s.logger.Warn("ops api shutdown: %v", err)
	}
}
