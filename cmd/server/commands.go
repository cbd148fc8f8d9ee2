package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/mathewdenison/employees-timesheet-list/internal/database"
	"github.com/mathewdenison/employees-timesheet-list/internal/handlers"
	"github.com/mathewdenison/employees-timesheet-list/internal/logger"
	"github.com/mathewdenison/employees-timesheet-list/internal/models"
	"github.com/mathewdenison/employees-timesheet-list/internal/routes"
	"github.com/mathewdenison/employees-timesheet-list/internal/service"
	"github.com/mathewdenison/employees-timesheet-list/internal/sqspoller"
	"github.com/mathewdenison/employees-timesheet-list/internal/subscriber"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func serve(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	defer logger.Sync(log)

	ctx, stop := signalContext()
	defer stop()

	svc, err := service.Bootstrap(ctx, cfg, log, true)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Error("Error closing service", zap.Error(err))
		}
	}()

	sub := subscriber.New(&cfg.Subscriber, svc.RMQ, svc.Handler, log)
	if err := sub.Start(); err != nil {
		return fmt.Errorf("failed to start subscriber: %w", err)
	}
	defer sub.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "Employee Timelog List",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	routes.SetupRoutes(app,
		handlers.NewHealthHandler(svc.HealthChecks()),
		handlers.NewPubSubHandler(svc.Handler, log),
		handlers.NewTimelogsHandler(svc.Handler, log),
	)

	listenErr := make(chan error, 1)
	go func() {
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		log.Info("Server starting",
			zap.String("address", addr),
			zap.String("queue", cfg.Subscriber.Queue),
			zap.String("dashboard_topic", cfg.Dashboard.Topic),
		)
		listenErr <- app.Listen(addr)
	}()

	select {
	case <-ctx.Done():
	case err := <-listenErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	}

	log.Info("Shutting down server")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("Error during server shutdown", zap.Error(err))
	}
	log.Info("Server stopped")
	return nil
}

func pollSQS(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	defer logger.Sync(log)

	if c.IsSet("queue-url") {
		cfg.SQS.QueueURL = c.String("queue-url")
	}

	ctx, stop := signalContext()
	defer stop()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	svc, err := service.Bootstrap(ctx, cfg, log, false)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Error("Error closing service", zap.Error(err))
		}
	}()

	log.Info("Polling SQS for lookup requests",
		zap.String("queue_url", cfg.SQS.QueueURL),
		zap.String("dashboard_topic", cfg.Dashboard.Topic),
	)
	return sqspoller.New(&cfg.SQS, sqs.NewFromConfig(awsCfg), svc.Handler, log).Run(ctx)
}

func invoke(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	defer logger.Sync(log)

	ctx, stop := signalContext()
	defer stop()

	svc, err := service.Bootstrap(ctx, cfg, log, false)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Error("Error closing service", zap.Error(err))
		}
	}()

	dctx := models.DeliveryContext{
		EventID:         uuid.NewString(),
		Source:          "cli",
		Timestamp:       time.Now().UTC(),
		DeliveryAttempt: 1,
	}
	if err := svc.Handler.HandleMessage(ctx, models.Message{Data: c.String("data")}, dctx); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return nil
}

func migrate(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	defer logger.Sync(log)

	return database.RunMigrations(&cfg.Database, log)
}
