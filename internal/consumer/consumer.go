package consumer

import (
	"context"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/mathewdenison/employees-timesheet-list/internal/models"
)

// MessageHandler handles one inbound message. A returned error marks the
// message for redelivery.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg models.Message, dctx models.DeliveryContext) error
}

// Options controls how failures are reported back to the broker
type Options struct {
	RequeueOnFailure bool
}

// ProcessMessage turns a RabbitMQ delivery into one handler call:
// 1. Builds the message envelope and delivery context from the delivery
// 2. Calls the handler
// 3. ACKs on success, NACKs on failure (requeue per opts)
// It reports whether the message was acknowledged.
func ProcessMessage(
	ctx context.Context,
	logger *zap.Logger,
	queue string,
	msg amqp.Delivery,
	handler MessageHandler,
	opts Options,
) bool {
	message := models.ParseBody(msg.Body)
	dctx := DeliveryContext(queue, msg, message)

	logger.Info("Received message from queue",
		zap.String("queue", queue),
		zap.Uint64("delivery_tag", msg.DeliveryTag),
		zap.String("event_id", dctx.EventID),
		zap.Bool("redelivered", msg.Redelivered),
	)

	if err := handler.HandleMessage(ctx, message, dctx); err != nil {
		// The handler has already logged the cause at error level.
		logger.Warn("Failed to process message from queue",
			zap.String("queue", queue),
			zap.Uint64("delivery_tag", msg.DeliveryTag),
			zap.Bool("requeue", opts.RequeueOnFailure),
			zap.Error(err),
		)
		rejectMessage(logger, msg, opts.RequeueOnFailure)
		return false
	}

	if err := msg.Ack(false); err != nil {
		logger.Error("Failed to ack message from queue",
			zap.String("queue", queue),
			zap.Uint64("delivery_tag", msg.DeliveryTag),
			zap.Error(err),
		)
		return false
	}

	logger.Info("Message from queue processed successfully",
		zap.String("queue", queue),
		zap.Uint64("delivery_tag", msg.DeliveryTag),
	)
	return true
}

// DeliveryContext describes a delivery for logging. The event id comes from
// the envelope, then the AMQP message id, and is generated if neither is set.
func DeliveryContext(queue string, msg amqp.Delivery, message models.Message) models.DeliveryContext {
	eventID := message.MessageID
	if eventID == "" {
		eventID = msg.MessageId
	}
	if eventID == "" {
		eventID = uuid.NewString()
	}

	ts := msg.Timestamp
	if ts.IsZero() {
		ts = message.PublishTime
	}
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	attempt := 1
	if msg.Redelivered {
		attempt = 2
	}
	// Quorum queues report the real count.
	if n, ok := msg.Headers["x-delivery-count"].(int64); ok {
		attempt = int(n) + 1
	}

	return models.DeliveryContext{
		EventID:         eventID,
		Source:          "rabbitmq:" + queue,
		Timestamp:       ts,
		DeliveryAttempt: attempt,
	}
}

func rejectMessage(logger *zap.Logger, msg amqp.Delivery, requeue bool) {
	if err := msg.Nack(false, requeue); err != nil {
		logger.Error("Failed to nack a message",
			zap.Uint64("delivery_tag", msg.DeliveryTag),
			zap.Error(err),
		)
	}
}
