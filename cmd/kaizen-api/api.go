// Package main provides the Kaizen API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/kaizen-works/kaizen/pkg/eventbus"
	"github.com/kaizen-works/kaizen/pkg/improvement"
	"github.com/kaizen-works/kaizen/pkg/log"
	"github.com/kaizen-works/kaizen/pkg/persistence"
	"github.com/kaizen-works/kaizen/pkg/services"
	"github.com/kaizen-works/kaizen/pkg/web"
)

type API struct {
	logger   *slog.Logger
	sessions *services.Sessions
	validate *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	generator improvement.GenerativeTextService,
	roster improvement.ActorRosterProvider,
	publisher eventbus.EventPublisher,
) *API {
	orchestrator := improvement.NewOrchestrator(
		generator,
		roster,
		persistence,
		improvement.WithPublisher(publisher),
		improvement.WithLogger(log.WithModule("improvement")),
	)

	return &API{
		logger:   logger,
		sessions: services.NewSessions(orchestrator, persistence, log.WithModule("sessions")),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.sessions, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Kaizen API")
	})

	handlers.RegisterRoutes(app)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	a.logger.Info("Starting API server", "port", port)

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
