package dashboard

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mathewdenison/employees-timesheet-list/internal/config"
)

// New builds the Sender selected by cfg.Transport. pub is only used by the
// rabbitmq transport and may be nil otherwise.
func New(cfg *config.DashboardConfig, pub Publisher, logger *zap.Logger) (Sender, error) {
	switch cfg.Transport {
	case config.TransportRabbitMQ:
		if pub == nil {
			return nil, fmt.Errorf("rabbitmq transport requires a publisher")
		}
		return NewRabbitMQSender(pub, cfg.Exchange, cfg.RoutingKey, cfg.Topic, logger), nil
	case config.TransportKafka:
		return NewKafkaSender(NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic), cfg.Topic, logger), nil
	case config.TransportWebhook:
		timeout := time.Duration(cfg.WebhookTimeoutSeconds) * time.Second
		return NewWebhookSender(cfg.WebhookURL, cfg.WebhookSecret, cfg.Topic, timeout, logger), nil
	default:
		return nil, fmt.Errorf("unknown dashboard transport: %s", cfg.Transport)
	}
}
