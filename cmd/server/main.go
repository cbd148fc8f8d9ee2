package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/mathewdenison/employees-timesheet-list/internal/config"
	"github.com/mathewdenison/employees-timesheet-list/internal/logger"
)

func main() {
	logLevelFlag := &cli.StringFlag{
		Name:    "log-level",
		Usage:   "Log level (debug, info, warn, error)",
		EnvVars: []string{"LOG_LEVEL"},
	}

	app := &cli.App{
		Name:  "employee-timelog-list",
		Usage: "Publish every employee timelog, grouped by employee, to the timesheet dashboard",
		Flags: []cli.Flag{logLevelFlag},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Consume lookup requests from RabbitMQ and serve the HTTP API",
				Action: serve,
			},
			{
				Name:  "poll-sqs",
				Usage: "Consume lookup requests from an AWS SQS queue",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "queue-url",
						Usage:   "AWS SQS queue URL",
						EnvVars: []string{"SQS_QUEUE_URL"},
					},
				},
				Action: pollSQS,
			},
			{
				Name:  "invoke",
				Usage: "Run a single lookup for one base64 encoded message",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "data",
						Usage: "Base64 encoded JSON message data",
						Value: "e30=",
					},
				},
				Action: invoke,
			},
			{
				Name:   "migrate",
				Usage:  "Apply database migrations",
				Action: migrate,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger. The --log-level flag
// overrides LOG_LEVEL from the environment or .env file.
func setup(c *cli.Context) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, log, nil
}
