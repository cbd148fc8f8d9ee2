package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const defaultProjectID = "hopkinstimesheetproj"

// Dashboard transports
const (
	TransportRabbitMQ = "rabbitmq"
	TransportKafka    = "kafka"
	TransportWebhook  = "webhook"
)

type Config struct {
	ProjectID  string
	LogLevel   string
	Server     ServerConfig
	Database   DatabaseConfig
	RabbitMQ   RabbitMQConfig
	Subscriber SubscriberConfig
	Dashboard  DashboardConfig
	SQS        SQSConfig
}

type ServerConfig struct {
	Port string
	Host string
}

type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MigrationsPath string
}

type RabbitMQConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	VHost    string
}

// SubscriberConfig controls the RabbitMQ consume loop
type SubscriberConfig struct {
	Queue            string
	PrefetchCount    int
	RequeueOnFailure bool
}

// DashboardConfig selects and configures the dashboard update transport
type DashboardConfig struct {
	Transport             string
	Topic                 string
	Exchange              string
	RoutingKey            string
	KafkaBrokers          []string
	KafkaTopic            string
	WebhookURL            string
	WebhookSecret         string
	WebhookTimeoutSeconds int
}

type SQSConfig struct {
	QueueURL          string
	WaitTimeSeconds   int32
	MaxMessages       int32
	VisibilityTimeout int32
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first if present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var missing []string

	get := func(key string) string {
		val := os.Getenv(key)
		if val == "" {
			missing = append(missing, key)
		}
		return val
	}

	projectID := getenv("PROJECT_ID", defaultProjectID)

	config := &Config{
		ProjectID: projectID,
		LogLevel:  getenv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Port: getenv("SERVER_PORT", "8080"),
			Host: getenv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:           get("DB_HOST"),
			Port:           getenv("DB_PORT", "5432"),
			User:           get("DB_USER"),
			Password:       get("DB_PASSWORD"),
			DBName:         get("DB_NAME"),
			SSLMode:        getenv("DB_SSLMODE", "disable"),
			MigrationsPath: getenv("DB_MIGRATIONS_PATH", "file://db/migrations"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      os.Getenv("RABBITMQ_URL"),
			Host:     getenv("RABBITMQ_HOST", "localhost"),
			Port:     getenv("RABBITMQ_PORT", "5672"),
			User:     getenv("RABBITMQ_USER", "guest"),
			Password: getenv("RABBITMQ_PASSWORD", "guest"),
			VHost:    getenv("RABBITMQ_VHOST", "/"),
		},
		Subscriber: SubscriberConfig{
			Queue:            getenv("SUBSCRIBER_QUEUE", "employee-timelog-list"),
			PrefetchCount:    getenvInt("SUBSCRIBER_PREFETCH_COUNT", 1),
			RequeueOnFailure: getenvBool("SUBSCRIBER_REQUEUE_ON_FAILURE", true),
		},
		Dashboard: DashboardConfig{
			Transport:             strings.ToLower(getenv("DASHBOARD_TRANSPORT", TransportRabbitMQ)),
			Topic:                 DashboardTopic(projectID),
			Exchange:              getenv("DASHBOARD_EXCHANGE", ""),
			RoutingKey:            getenv("DASHBOARD_ROUTING_KEY", "dashboard-queue"),
			KafkaBrokers:          splitList(os.Getenv("DASHBOARD_KAFKA_BROKERS")),
			KafkaTopic:            getenv("DASHBOARD_KAFKA_TOPIC", "dashboard-queue"),
			WebhookURL:            os.Getenv("DASHBOARD_WEBHOOK_URL"),
			WebhookSecret:         os.Getenv("DASHBOARD_WEBHOOK_SECRET"),
			WebhookTimeoutSeconds: getenvInt("DASHBOARD_WEBHOOK_TIMEOUT_SECONDS", 10),
		},
		SQS: SQSConfig{
			QueueURL:          os.Getenv("SQS_QUEUE_URL"),
			WaitTimeSeconds:   int32(getenvInt("SQS_WAIT_TIME_SECONDS", 20)),
			MaxMessages:       int32(getenvInt("SQS_MAX_MESSAGES", 10)),
			VisibilityTimeout: int32(getenvInt("SQS_VISIBILITY_TIMEOUT", 60)),
		},
	}

	switch config.Dashboard.Transport {
	case TransportRabbitMQ:
	case TransportKafka:
		if len(config.Dashboard.KafkaBrokers) == 0 {
			missing = append(missing, "DASHBOARD_KAFKA_BROKERS")
		}
	case TransportWebhook:
		if config.Dashboard.WebhookURL == "" {
			missing = append(missing, "DASHBOARD_WEBHOOK_URL")
		}
		if config.Dashboard.WebhookSecret == "" {
			missing = append(missing, "DASHBOARD_WEBHOOK_SECRET")
		}
	default:
		return nil, fmt.Errorf("unknown dashboard transport: %s", config.Dashboard.Transport)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %v", missing)
	}

	return config, nil
}

// DashboardTopic returns the fully qualified dashboard topic for a project.
func DashboardTopic(projectID string) string {
	return fmt.Sprintf("projects/%s/topics/dashboard-queue", projectID)
}

// ConnectionString returns a DSN string for GORM
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.Host, c.User, c.Password, c.DBName, c.Port, c.SSLMode)
}

// MigrationURL returns the postgres:// URL golang-migrate expects
func (c *DatabaseConfig) MigrationURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

func (c *RabbitMQConfig) ConnectionURL() string {
	if c.URL != "" {
		return c.URL
	}
	vhost := c.VHost
	if vhost == "/" {
		vhost = ""
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%s/%s",
		c.User, c.Password, c.Host, c.Port, strings.TrimPrefix(vhost, "/"))
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
