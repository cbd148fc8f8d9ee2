// Package subscriber consumes lookup requests from a RabbitMQ queue.
package subscriber

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/mathewdenison/employees-timesheet-list/internal/config"
	"github.com/mathewdenison/employees-timesheet-list/internal/consumer"
)

const defaultRestartDelay = 2 * time.Second

// Broker is the part of rabbitmq.Connection the subscriber uses
type Broker interface {
	SetQoS(prefetchCount int) error
	ConsumeMessages(queue, consumer string) (<-chan amqp.Delivery, error)
	CancelConsumer(consumer string) error
	IsHealthy() bool
}

// Subscriber feeds deliveries from one queue to a message handler
type Subscriber struct {
	cfg         *config.SubscriberConfig
	broker      Broker
	handler     consumer.MessageHandler
	logger      *zap.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	consumerTag string
	wg          sync.WaitGroup

	restartDelay time.Duration
}

func New(cfg *config.SubscriberConfig, broker Broker, handler consumer.MessageHandler, logger *zap.Logger) *Subscriber {
	ctx, cancel := context.WithCancel(context.Background())
	return &Subscriber{
		cfg:         cfg,
		broker:      broker,
		handler:     handler,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		consumerTag: "employee-timelog-list-" + uuid.NewString()[:8],

		restartDelay: defaultRestartDelay,
	}
}

// Start registers the consumer and processes deliveries in the background.
// The queue must already exist.
func (s *Subscriber) Start() error {
	if s.cfg.Queue == "" {
		return fmt.Errorf("subscriber queue is required")
	}

	messages, err := s.consume()
	if err != nil {
		return err
	}

	s.wg.Add(1)
	go s.processMessages(messages)

	s.logger.Info("Subscriber started and consuming messages",
		zap.String("queue", s.cfg.Queue),
		zap.String("consumer_tag", s.consumerTag),
		zap.Int("prefetch_count", s.cfg.PrefetchCount),
	)
	return nil
}

func (s *Subscriber) consume() (<-chan amqp.Delivery, error) {
	if err := s.broker.SetQoS(s.cfg.PrefetchCount); err != nil {
		return nil, err
	}

	messages, err := s.broker.ConsumeMessages(s.cfg.Queue, s.consumerTag)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming from queue %s: %w", s.cfg.Queue, err)
	}
	return messages, nil
}

// Stop cancels the consumer and waits for the in-flight message to finish
func (s *Subscriber) Stop() {
	s.logger.Info("Stopping subscriber", zap.String("consumer_tag", s.consumerTag))

	if err := s.broker.CancelConsumer(s.consumerTag); err != nil {
		s.logger.Error("Failed to cancel consumer",
			zap.String("consumer_tag", s.consumerTag),
			zap.Error(err),
		)
	}
	s.cancel()
	s.wg.Wait()

	s.logger.Info("Subscriber stopped")
}

func (s *Subscriber) processMessages(messages <-chan amqp.Delivery) {
	defer s.wg.Done()

	opts := consumer.Options{RequeueOnFailure: s.cfg.RequeueOnFailure}

	for {
		select {
		case <-s.ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				s.logger.Warn("Message channel closed, waiting for reconnection...",
					zap.String("queue", s.cfg.Queue),
				)
				messages = s.resubscribe()
				if messages == nil {
					return
				}
				continue
			}
			// The handler gets a context that outlives Stop so the current
			// message finishes and is acked.
			consumer.ProcessMessage(context.WithoutCancel(s.ctx), s.logger, s.cfg.Queue, msg, s.handler, opts)
		}
	}
}

// resubscribe waits for the broker to come back and registers the consumer
// again. It returns nil once the subscriber is stopped.
func (s *Subscriber) resubscribe() <-chan amqp.Delivery {
	for {
		select {
		case <-s.ctx.Done():
			return nil
		case <-time.After(s.restartDelay):
		}

		if !s.broker.IsHealthy() {
			s.logger.Debug("Connection not healthy yet, waiting...", zap.String("queue", s.cfg.Queue))
			continue
		}

		messages, err := s.consume()
		if err != nil {
			s.logger.Error("Failed to restart consuming, will retry",
				zap.String("queue", s.cfg.Queue),
				zap.Error(err),
			)
			continue
		}

		s.logger.Info("Restarted consumer after channel close", zap.String("queue", s.cfg.Queue))
		return messages
	}
}
