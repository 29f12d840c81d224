package main

import (
	"context"
	"os"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/patchbay-dev/patchbay/pkg/autosave"
	"github.com/patchbay-dev/patchbay/pkg/cmd"
	"github.com/patchbay-dev/patchbay/pkg/graph"
	"github.com/patchbay-dev/patchbay/pkg/log"
	"github.com/patchbay-dev/patchbay/pkg/models"
	"github.com/patchbay-dev/patchbay/pkg/otelhelper"
	"github.com/patchbay-dev/patchbay/pkg/viewport"
)

const (
	defaultPort          = 9092
	defaultCanvasWidth   = 1920
	defaultCanvasHeight  = 1080
	defaultRetentionAge  = 24 * time.Hour
	defaultSweepSchedule = "@hourly"
)

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "patchbay-api",
		Usage:                 "Edit and persist node canvas drafts",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Storage URL for drafts (file://, postgres://, redis://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "designer-mode",
				Usage:   "Connection capacity mode (strict, relaxed)",
				Value:   "strict",
				Sources: cli.EnvVars("DESIGNER_MODE"),
			},
			&cli.DurationFlag{
				Name:    "autosave-retention",
				Usage:   "How long auto-save snapshots are kept",
				Value:   defaultRetentionAge,
				Sources: cli.EnvVars("AUTOSAVE_RETENTION"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export OTLP traces for save/load operations",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Patchbay API")

			persistence := cmd.MustNewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			mode := models.DesignerModeStrict
			if command.String("designer-mode") == string(models.DesignerModeRelaxed) {
				mode = models.DesignerModeRelaxed
			}

			store := graph.NewStore(mode, graph.DefaultCatalog(), logger)
			vp := viewport.New(defaultCanvasWidth, defaultCanvasHeight)

			engine := autosave.NewEngine(store, vp, persistence, eventBus, logger, autosave.Options{})
			engine.Start(ctx)

			defer engine.Close()

			// Pan and zoom are part of the persisted snapshot too.
			unsubscribe := vp.Subscribe(func(models.CanvasTransform) {
				engine.RequestAutoSave(ctx)
			})
			defer unsubscribe()

			sweeper := autosave.NewSweeper(persistence, logger, defaultSweepSchedule, command.Duration("autosave-retention"))
			if err := sweeper.Start(ctx); err != nil {
				logger.ErrorContext(ctx, "Failed to start retention sweeper", "error", err)
			}

			defer sweeper.Stop()

			api := NewAPI(logger, store, vp, engine, persistence, eventBus)

			if command.Bool("tracing") {
				tracer, err := otelhelper.NewTracer(ctx, "patchbay-api")
				if err != nil {
					logger.ErrorContext(ctx, "Failed to initialize tracer", "error", err)
				} else {
					api.WithTracer(tracer)
				}
			}

			err := api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
