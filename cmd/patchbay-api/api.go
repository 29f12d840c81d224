// Package main provides the Patchbay API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"

	"github.com/patchbay-dev/patchbay/pkg/autosave"
	"github.com/patchbay-dev/patchbay/pkg/eventbus"
	"github.com/patchbay-dev/patchbay/pkg/graph"
	"github.com/patchbay-dev/patchbay/pkg/persistence"
	"github.com/patchbay-dev/patchbay/pkg/services"
	"github.com/patchbay-dev/patchbay/pkg/viewport"
	"github.com/patchbay-dev/patchbay/pkg/web"
)

type API struct {
	logger      *slog.Logger
	store       *graph.Store
	viewport    *viewport.Viewport
	engine      *autosave.Engine
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	validate    *validator.Validate
	tracer      trace.Tracer
}

func NewAPI(
	logger *slog.Logger,
	store *graph.Store,
	vp *viewport.Viewport,
	engine *autosave.Engine,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		logger:      logger,
		store:       store,
		viewport:    vp,
		engine:      engine,
		persistence: persistence,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// WithTracer enables span instrumentation on the draft service.
func (a *API) WithTracer(tracer trace.Tracer) *API {
	a.tracer = tracer

	return a
}

func (a *API) App() *fiber.App {
	draftService := services.NewDraft(a.store, a.engine, a.persistence, a.eventBus)
	if a.tracer != nil {
		draftService = draftService.WithTracer(a.tracer)
	}

	handlers := web.NewAPIHandlers(draftService, a.store, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Patchbay API")
	})

	d := app.Group("/drafts")
	d.Get("/", handlers.GetDrafts)
	d.Post("/", handlers.SaveDraft)
	d.Get("/:id", handlers.GetDraft)
	d.Post("/:id/load", handlers.LoadDraft)
	d.Delete("/:id", handlers.DeleteDraft)

	g := app.Group("/graph")
	g.Get("/", handlers.GetGraph)
	g.Post("/validate", handlers.ValidateGraph)
	g.Post("/nodes", handlers.AddNode)
	g.Patch("/nodes/:id", handlers.UpdateNode)
	g.Patch("/nodes/:id/position", handlers.MoveNode)
	g.Delete("/nodes/:id", handlers.DeleteNode)
	g.Post("/connections", handlers.Connect)
	g.Delete("/connections/:id", handlers.Disconnect)

	app.Get("/storage/stats", handlers.GetStorageStats)
	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
