package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/mathewdenison/employees-timesheet-list/internal/config"
)

const (
	initialBackoff     = time.Second
	maxBackoff         = 30 * time.Second
	maxInitialAttempts = 10
	publishRetries     = 3
)

// ErrClosed is returned once Close has been called
var ErrClosed = errors.New("rabbitmq connection closed")

// Connection owns one AMQP connection and channel and re-dials both when the
// broker drops them
type Connection struct {
	name    string
	config  *config.RabbitMQConfig
	logger  *zap.Logger
	dial    func(url string, cfg amqp.Config) (*amqp.Connection, error)
	conn    *amqp.Connection
	channel *amqp.Channel
	mu      sync.RWMutex

	stopChan     chan struct{}
	stopOnce     sync.Once
	reconnecting bool
	reconnectMu  sync.Mutex
}

// NewConnection creates a new Connection. name is reported to the broker as
// the connection name.
func NewConnection(name string, rabbitMQConfig *config.RabbitMQConfig, logger *zap.Logger) *Connection {
	return &Connection{
		name:     name,
		config:   rabbitMQConfig,
		logger:   logger,
		dial:     amqp.DialConfig,
		stopChan: make(chan struct{}),
	}
}

// Connect dials the broker, retrying with exponential backoff, then watches
// the connection in the background
func (c *Connection) Connect(ctx context.Context) error {
	backoff := initialBackoff

	for attempt := 1; ; attempt++ {
		c.logger.Info("Connecting to RabbitMQ",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxInitialAttempts),
		)

		err := c.connect()
		if err == nil {
			break
		}
		if attempt >= maxInitialAttempts {
			return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxInitialAttempts, err)
		}

		c.logger.Warn("RabbitMQ connection failed, retrying...",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
		)
		if err := sleepContext(ctx, backoff); err != nil {
			return err
		}
		backoff = nextBackoff(backoff)
	}

	go c.monitorConnection()

	return nil
}

func (c *Connection) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && !c.conn.IsClosed() {
		c.conn.Close()
	}

	// Vhost stays empty so the one in the URL applies.
	amqpConfig := amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Properties: amqp.Table{
			"connection_name": c.name,
		},
	}

	url := c.config.ConnectionURL()
	conn, err := c.dial(url, amqpConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	c.conn, c.channel = conn, ch

	fields := []zap.Field{zap.String("connection", c.name)}
	if uri, err := amqp.ParseURI(url); err == nil {
		fields = append(fields,
			zap.String("host", uri.Host),
			zap.Int("port", uri.Port),
			zap.String("vhost", uri.Vhost),
		)
	}
	c.logger.Info("Connected to RabbitMQ", fields...)
	return nil
}

// monitorConnection blocks until the connection or channel closes, then
// reconnects and starts watching again
func (c *Connection) monitorConnection() {
	for {
		c.mu.RLock()
		if c.conn == nil || c.channel == nil {
			c.mu.RUnlock()
			c.logger.Error("RabbitMQ connection not initialized, monitor exiting")
			return
		}
		connClose := c.conn.NotifyClose(make(chan *amqp.Error, 1))
		channelClose := c.channel.NotifyClose(make(chan *amqp.Error, 1))
		c.mu.RUnlock()

		var reason *amqp.Error
		select {
		case <-c.stopChan:
			return
		case reason = <-connClose:
		case reason = <-channelClose:
		}

		// A nil reason means a graceful close that we initiated.
		if reason == nil {
			select {
			case <-c.stopChan:
				return
			default:
			}
		} else {
			c.logger.Error("RabbitMQ connection lost, reconnecting",
				zap.Error(reason),
				zap.String("reason", reason.Reason),
			)
		}
		c.reconnect()
	}
}

func (c *Connection) reconnect() {
	c.reconnectMu.Lock()
	if c.reconnecting {
		c.reconnectMu.Unlock()
		return
	}
	c.reconnecting = true
	c.reconnectMu.Unlock()

	defer func() {
		c.reconnectMu.Lock()
		c.reconnecting = false
		c.reconnectMu.Unlock()
	}()

	backoff := initialBackoff
	for attempt := 1; ; attempt++ {
		select {
		case <-c.stopChan:
			return
		default:
		}

		if err := c.connect(); err != nil {
			c.logger.Warn("Failed to reconnect to RabbitMQ, retrying...",
				zap.Error(err),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
			)
			select {
			case <-c.stopChan:
				return
			case <-time.After(backoff):
			}
			backoff = nextBackoff(backoff)
			continue
		}

		c.logger.Info("Reconnected to RabbitMQ", zap.Int("attempt", attempt))
		return
	}
}

// Close stops the monitor and closes the channel and connection
func (c *Connection) Close() {
	c.stopOnce.Do(func() { close(c.stopChan) })

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
		c.logger.Info("RabbitMQ connection closed")
	}
}

// PublishMessage publishes a persistent JSON message, retrying briefly while
// the connection is being re-established
func (c *Connection) PublishMessage(ctx context.Context, exchange, routingKey string, body []byte, headers amqp.Table) error {
	retryDelay := 100 * time.Millisecond

	for attempt := 1; attempt <= publishRetries; attempt++ {
		select {
		case <-c.stopChan:
			return ErrClosed
		default:
		}

		ch, ok := c.liveChannel()
		if !ok {
			if attempt == publishRetries {
				return fmt.Errorf("RabbitMQ channel is not available after %d attempts", publishRetries)
			}
			c.logger.Warn("RabbitMQ channel not available for publish, retrying...",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", publishRetries),
			)
			if err := sleepContext(ctx, retryDelay); err != nil {
				return err
			}
			retryDelay *= 2
			continue
		}

		err := ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
			Headers:      headers,
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
		if err == nil {
			return nil
		}

		// Only connection loss is worth retrying; anything else is returned as is.
		if _, live := c.liveChannel(); live || attempt == publishRetries {
			return fmt.Errorf("failed to publish message: %w", err)
		}
		c.logger.Warn("Publish failed due to connection issue, retrying...",
			zap.Error(err),
			zap.Int("attempt", attempt),
		)
		if err := sleepContext(ctx, retryDelay); err != nil {
			return err
		}
		retryDelay *= 2
	}

	return fmt.Errorf("failed to publish message after %d attempts", publishRetries)
}

// ConsumeMessages registers a consumer with manual acknowledgement
func (c *Connection) ConsumeMessages(queue, consumer string) (<-chan amqp.Delivery, error) {
	ch, ok := c.liveChannel()
	if !ok {
		return nil, fmt.Errorf("RabbitMQ channel is not initialized or closed")
	}

	messages, err := ch.Consume(
		queue,
		consumer,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register consumer: %w", err)
	}

	return messages, nil
}

// CancelConsumer stops deliveries to the named consumer
func (c *Connection) CancelConsumer(consumer string) error {
	ch, ok := c.liveChannel()
	if !ok {
		return nil
	}
	return ch.Cancel(consumer, false)
}

// SetQoS sets the prefetch count for the channel
func (c *Connection) SetQoS(prefetchCount int) error {
	ch, ok := c.liveChannel()
	if !ok {
		return fmt.Errorf("RabbitMQ channel is not initialized or closed")
	}

	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}
	return nil
}

// IsHealthy checks if the connection and channel are open
func (c *Connection) IsHealthy() bool {
	_, ok := c.liveChannel()
	return ok
}

func (c *Connection) liveChannel() (*amqp.Channel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conn == nil || c.conn.IsClosed() || c.channel == nil || c.channel.IsClosed() {
		return nil, false
	}
	return c.channel, true
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
