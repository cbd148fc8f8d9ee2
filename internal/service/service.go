package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mathewdenison/employees-timesheet-list/internal/config"
	"github.com/mathewdenison/employees-timesheet-list/internal/dashboard"
	"github.com/mathewdenison/employees-timesheet-list/internal/database"
	"github.com/mathewdenison/employees-timesheet-list/internal/handlers"
	"github.com/mathewdenison/employees-timesheet-list/internal/lookup"
	"github.com/mathewdenison/employees-timesheet-list/internal/rabbitmq"
	"github.com/mathewdenison/employees-timesheet-list/internal/serializer"
	"github.com/mathewdenison/employees-timesheet-list/internal/store"
)

const connectionName = "employee-timelog-list"

// Service holds all application dependencies
type Service struct {
	DB      *gorm.DB
	Logger  *zap.Logger
	RMQ     *rabbitmq.Connection
	Sender  dashboard.Sender
	Handler *lookup.Handler
}

// NewService wires the lookup handler from already opened dependencies.
// rmq may be nil when nothing consumes from or publishes to RabbitMQ.
func NewService(db *gorm.DB, logger *zap.Logger, rmq *rabbitmq.Connection, sender dashboard.Sender) *Service {
	return &Service{
		DB:      db,
		Logger:  logger,
		RMQ:     rmq,
		Sender:  sender,
		Handler: lookup.New(store.NewGormStore(db), serializer.NewTimeLogSerializer(), sender, logger),
	}
}

// Bootstrap opens the database, the broker connection when needed and the
// dashboard transport. withBroker forces a RabbitMQ connection even if the
// dashboard uses another transport.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *zap.Logger, withBroker bool) (*Service, error) {
	db, err := database.Connect(&cfg.Database, cfg.LogLevel, logger)
	if err != nil {
		return nil, err
	}

	var rmq *rabbitmq.Connection
	var pub dashboard.Publisher
	if withBroker || cfg.Dashboard.Transport == config.TransportRabbitMQ {
		rmq = rabbitmq.NewConnection(connectionName, &cfg.RabbitMQ, logger)
		if err := rmq.Connect(ctx); err != nil {
			_ = database.Close(db, logger)
			return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		pub = rmq
	}

	sender, err := dashboard.New(&cfg.Dashboard, pub, logger)
	if err != nil {
		if rmq != nil {
			rmq.Close()
		}
		_ = database.Close(db, logger)
		return nil, err
	}

	logger.Info("Dashboard transport ready",
		zap.String("transport", cfg.Dashboard.Transport),
		zap.String("dashboard_topic", cfg.Dashboard.Topic),
	)

	return NewService(db, logger, rmq, sender), nil
}

// HealthChecks returns the checks served on /health
func (s *Service) HealthChecks() map[string]handlers.HealthChecker {
	checks := map[string]handlers.HealthChecker{
		"database": handlers.CheckFunc(func(ctx context.Context) error {
			return database.HealthCheck(ctx, s.DB)
		}),
	}
	if s.RMQ != nil {
		checks["rabbitmq"] = handlers.CheckFunc(func(context.Context) error {
			if !s.RMQ.IsHealthy() {
				return errors.New("rabbitmq connection is down")
			}
			return nil
		})
	}
	return checks
}

// Close releases everything Bootstrap opened
func (s *Service) Close() error {
	var errs []error
	if c, ok := s.Sender.(dashboard.Closer); ok {
		errs = append(errs, c.Close())
	}
	if s.RMQ != nil {
		s.RMQ.Close()
	}
	errs = append(errs, database.Close(s.DB, s.Logger))
	return errors.Join(errs...)
}
