package dashboard

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher is the part of rabbitmq.Connection the sender needs.
type Publisher interface {
	PublishMessage(ctx context.Context, exchange, routingKey string, body []byte, headers amqp.Table) error
}

// RabbitMQSender publishes updates to an exchange with a fixed routing key.
type RabbitMQSender struct {
	pub        Publisher
	exchange   string
	routingKey string
	topic      string
	logger     *zap.Logger
}

func NewRabbitMQSender(pub Publisher, exchange, routingKey, topic string, logger *zap.Logger) *RabbitMQSender {
	return &RabbitMQSender{
		pub:        pub,
		exchange:   exchange,
		routingKey: routingKey,
		topic:      topic,
		logger:     logger,
	}
}

func (s *RabbitMQSender) Send(ctx context.Context, target, eventType string, payload any) error {
	body, err := encodeUpdate(newUpdate(s.topic, target, eventType, payload))
	if err != nil {
		return err
	}

	headers := amqp.Table{
		"dashboard_topic": s.topic,
		"event_type":      eventType,
		"target":          target,
	}
	if err := s.pub.PublishMessage(ctx, s.exchange, s.routingKey, body, headers); err != nil {
		return fmt.Errorf("failed to publish dashboard update: %w", err)
	}

	s.logger.Debug("Published dashboard update",
		zap.String("exchange", s.exchange),
		zap.String("routing_key", s.routingKey),
		zap.String("event_type", eventType),
		zap.Int("bytes", len(body)),
	)
	return nil
}
