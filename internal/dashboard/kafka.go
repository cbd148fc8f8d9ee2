package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter is the part of *kafka.Writer the sender needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSender writes updates to a Kafka topic keyed by target.
type KafkaSender struct {
	writer MessageWriter
	topic  string
	logger *zap.Logger
}

// NewKafkaWriter returns a synchronous writer that waits for all replicas.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
	}
}

// NewKafkaSender wraps writer. topic is the logical dashboard topic carried in
// each update, not the Kafka topic.
func NewKafkaSender(writer MessageWriter, topic string, logger *zap.Logger) *KafkaSender {
	return &KafkaSender{writer: writer, topic: topic, logger: logger}
}

func (s *KafkaSender) Send(ctx context.Context, target, eventType string, payload any) error {
	u := newUpdate(s.topic, target, eventType, payload)
	body, err := encodeUpdate(u)
	if err != nil {
		return err
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(target),
		Value: body,
		Time:  u.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to write dashboard update to kafka: %w", err)
	}

	s.logger.Debug("Wrote dashboard update to kafka",
		zap.String("event_type", eventType),
		zap.Int("bytes", len(body)),
	)
	return nil
}

func (s *KafkaSender) Close() error {
	return s.writer.Close()
}
