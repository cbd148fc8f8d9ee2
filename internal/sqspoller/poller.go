// Package sqspoller triggers lookups from an AWS SQS queue.
package sqspoller

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/mathewdenison/employees-timesheet-list/internal/config"
	"github.com/mathewdenison/employees-timesheet-list/internal/consumer"
	"github.com/mathewdenison/employees-timesheet-list/internal/models"
)

const receiveErrorDelay = 5 * time.Second

// SQSClient is the subset of *sqs.Client the poller calls.
type SQSClient interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Poller long-polls a queue and hands each message to the handler. Messages
// are deleted only after the handler succeeds; failed ones become visible
// again when their visibility timeout expires.
type Poller struct {
	cfg     *config.SQSConfig
	client  SQSClient
	handler consumer.MessageHandler
	logger  *zap.Logger
}

func New(cfg *config.SQSConfig, client SQSClient, handler consumer.MessageHandler, logger *zap.Logger) *Poller {
	return &Poller{cfg: cfg, client: client, handler: handler, logger: logger}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	if p.cfg.QueueURL == "" {
		return errors.New("SQS queue URL is required")
	}

	p.logger.Info("Starting SQS poller", zap.String("queue_url", p.cfg.QueueURL))

	for {
		if ctx.Err() != nil {
			p.logger.Info("SQS poller stopped")
			return nil
		}

		n, err := p.PollOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Error("Failed to receive messages from SQS", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(receiveErrorDelay):
			}
			continue
		}
		if n > 0 {
			p.logger.Debug("Processed SQS batch", zap.Int("count", n))
		}
	}
}

// PollOnce receives one batch and processes it sequentially. It returns the
// number of messages received.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	out, err := p.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:                    aws.String(p.cfg.QueueURL),
		MaxNumberOfMessages:         p.cfg.MaxMessages,
		WaitTimeSeconds:             p.cfg.WaitTimeSeconds,
		VisibilityTimeout:           p.cfg.VisibilityTimeout,
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameSentTimestamp,
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
	})
	if err != nil {
		return 0, err
	}

	for _, m := range out.Messages {
		p.process(ctx, m)
	}
	return len(out.Messages), nil
}

func (p *Poller) process(ctx context.Context, m types.Message) {
	message := models.ParseBody([]byte(aws.ToString(m.Body)))
	dctx := deliveryContext(m, message)

	if err := p.handler.HandleMessage(ctx, message, dctx); err != nil {
		p.logger.Warn("Leaving SQS message for redelivery",
			zap.String("message_id", aws.ToString(m.MessageId)),
			zap.Error(err),
		)
		return
	}

	_, err := p.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(p.cfg.QueueURL),
		ReceiptHandle: m.ReceiptHandle,
	})
	if err != nil {
		p.logger.Error("Failed to delete SQS message",
			zap.String("message_id", aws.ToString(m.MessageId)),
			zap.Error(err),
		)
	}
}

func deliveryContext(m types.Message, message models.Message) models.DeliveryContext {
	dctx := models.DeliveryContext{
		EventID:   aws.ToString(m.MessageId),
		Source:    "sqs",
		Timestamp: message.PublishTime,
	}
	if message.MessageID != "" {
		dctx.EventID = message.MessageID
	}

	attrs := m.Attributes
	if v, ok := attrs[string(types.MessageSystemAttributeNameSentTimestamp)]; ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			dctx.Timestamp = time.UnixMilli(ms).UTC()
		}
	}
	if v, ok := attrs[string(types.MessageSystemAttributeNameApproximateReceiveCount)]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			dctx.DeliveryAttempt = n
		}
	}
	return dctx
}
