package rabbitmq

import (
	"context"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mathewdenison/employees-timesheet-list/internal/config"
)

func newTestConnection() *Connection {
	return NewConnection("test", &config.RabbitMQConfig{Host: "localhost", Port: "5672", VHost: "/"}, zap.NewNop())
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, nextBackoff(time.Second))
	assert.Equal(t, 16*time.Second, nextBackoff(8*time.Second))
	assert.Equal(t, maxBackoff, nextBackoff(20*time.Second))
	assert.Equal(t, maxBackoff, nextBackoff(maxBackoff))
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

func TestConnect_GivesUpWhenContextCancelled(t *testing.T) {
	c := newTestConnection()

	dialErr := errors.New("dial tcp: connection refused")
	calls := 0
	c.dial = func(string, amqp.Config) (*amqp.Connection, error) {
		calls++
		return nil, dialErr
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Connect(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.False(t, c.IsHealthy())
}

func TestUnconnected(t *testing.T) {
	c := newTestConnection()

	assert.False(t, c.IsHealthy())
	assert.Error(t, c.SetQoS(1))

	_, err := c.ConsumeMessages("q", "consumer")
	assert.Error(t, err)
	assert.NoError(t, c.CancelConsumer("consumer"))
}

func TestPublishMessage_AfterClose(t *testing.T) {
	c := newTestConnection()
	c.Close()
	c.Close()

	err := c.PublishMessage(context.Background(), "", "dashboard-queue", []byte(`{}`), nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPublishMessage_NoChannel(t *testing.T) {
	c := newTestConnection()

	err := c.PublishMessage(context.Background(), "", "dashboard-queue", []byte(`{}`), nil)
	assert.EqualError(t, err, "RabbitMQ channel is not available after 3 attempts")
}

func TestConnect_DialsVhostFromURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.RabbitMQConfig
		want string
	}{
		{
			name: "url vhost beats vhost default",
			cfg:  config.RabbitMQConfig{URL: "amqp://u:p@127.0.0.1:1/prod", VHost: "/"},
			want: "prod",
		},
		{
			name: "url without vhost",
			cfg:  config.RabbitMQConfig{URL: "amqp://u:p@127.0.0.1:1", VHost: "staging"},
			want: "/",
		},
		{
			name: "default vhost from parts",
			cfg:  config.RabbitMQConfig{Host: "mq", Port: "5672", User: "guest", Password: "guest", VHost: "/"},
			want: "/",
		},
		{
			name: "named vhost from parts",
			cfg:  config.RabbitMQConfig{Host: "mq", Port: "5672", User: "guest", Password: "guest", VHost: "timesheets"},
			want: "timesheets",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			c := NewConnection("test", &cfg, zap.NewNop())

			var gotURL string
			var gotConfig amqp.Config
			c.dial = func(url string, cfg amqp.Config) (*amqp.Connection, error) {
				gotURL, gotConfig = url, cfg
				return nil, errors.New("dial tcp: connection refused")
			}

			require.Error(t, c.connect())

			// amqp091 only falls back to the URL vhost when Config.Vhost is empty.
			vhost := gotConfig.Vhost
			if vhost == "" {
				uri, err := amqp.ParseURI(gotURL)
				require.NoError(t, err)
				vhost = uri.Vhost
			}
			assert.Equal(t, tt.want, vhost)
			assert.Equal(t, "test", gotConfig.Properties["connection_name"])
		})
	}
}
