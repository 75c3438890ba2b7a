package main

import (
	"context"
	"os"
	"time"

	"github.com/kaizen-works/kaizen/pkg/cmd"
	"github.com/kaizen-works/kaizen/pkg/generative"
	"github.com/kaizen-works/kaizen/pkg/log"
	"github.com/kaizen-works/kaizen/pkg/otelhelper"
	cli "github.com/urfave/cli/v3"
)

const (
	defaultPort       = 9091
	defaultSessionTTL = 2 * time.Hour
	defaultSweep      = "@every 5m"
)

func main() {
	cmd := &cli.Command{
		Name:                  "kaizen-api",
		Usage:                 "Edit workflows and request improvements",
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
				Usage:    "Version store URL (file://, postgres://, redis://)",
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
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers",
				Value:   "localhost:9092",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "llm-base-url",
				Usage:   "Base URL of an OpenAI-compatible API; empty echoes the current steps",
				Sources: cli.EnvVars("LLM_BASE_URL"),
			},
			&cli.StringFlag{
				Name:    "llm-api-key",
				Usage:   "API key for the language model",
				Sources: cli.EnvVars("LLM_API_KEY", "OPENAI_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "llm-model",
				Usage:   "Model name",
				Value:   generative.DefaultModel,
				Sources: cli.EnvVars("LLM_MODEL"),
			},
			&cli.DurationFlag{
				Name:    "llm-timeout",
				Usage:   "Timeout of one improvement request",
				Value:   generative.DefaultTimeout,
				Sources: cli.EnvVars("LLM_TIMEOUT"),
			},
			&cli.StringFlag{
				Name:    "roster-file",
				Usage:   "YAML or JSON file listing actors and hourly rates",
				Sources: cli.EnvVars("ROSTER_FILE"),
			},
			&cli.DurationFlag{
				Name:    "session-ttl",
				Usage:   "Idle time after which an unsaved session is discarded",
				Value:   defaultSessionTTL,
				Sources: cli.EnvVars("SESSION_TTL"),
			},
			&cli.StringFlag{
				Name:    "session-sweep",
				Usage:   "Cron spec of the idle session sweep",
				Value:   defaultSweep,
				Sources: cli.EnvVars("SESSION_SWEEP"),
			},
			&cli.BoolFlag{
				Name:    "otel-enabled",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.SetupWithFormat(command.String("log-level"), command.String("log-format"))

			logger := log.WithModule("api")

			logger.InfoContext(ctx, "Initializing Kaizen API")

			if command.Bool("otel-enabled") {
				tracerProvider, err := otelhelper.NewTracerProvider(ctx, "kaizen-api")
				if err != nil {
					return err
				}

				defer func() {
					err := tracerProvider.Shutdown(context.Background())
					if err != nil {
						logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
					}
				}()
			}

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			// Create event bus for improvement lifecycle events
			eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			err = subscribeLifecycleLog(ctx, eventBus, logger)
			if err != nil {
				return err
			}

			generator, err := cmd.NewGenerativeTextService(cmd.GenerativeConfig{
				BaseURL: command.String("llm-base-url"),
				APIKey:  command.String("llm-api-key"),
				Model:   command.String("llm-model"),
				Timeout: command.Duration("llm-timeout"),
			}, logger)
			if err != nil {
				return err
			}

			roster, err := cmd.NewRoster(command.String("roster-file"), logger)
			if err != nil {
				return err
			}

			api := NewAPI(
				logger,
				persistence,
				generator,
				roster,
				eventBus,
			)

			janitor := NewJanitor(api.sessions, command.Duration("session-ttl"), logger)

			err = janitor.Start(ctx, command.String("session-sweep"))
			if err != nil {
				return err
			}

			defer janitor.Stop()

			err = api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
