package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/juliakaiko/orderservice/internal/broker"
)

// Config holds the complete application configuration, loadable from
// environment variables (ORDERS_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (ORDERS_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ServiceName string `default:"order-service" usage:"Service name reported to downstream services" flag:"service-name"`
	Kafka       KafkaConfig
	Buyer       BuyerConfig
	Redis       RedisConfig
	Graceful    GracefulConfig
}

// KafkaConfig configures the settlement topics.
type KafkaConfig struct {
	Brokers         string        `default:"localhost:9092" usage:"Comma-separated Kafka brokers (or KAFKA_BROKERS)"`
	RequestTopic    string        `default:"create-order" usage:"Topic for settlement requests" flag:"request-topic"`
	OutcomeTopic    string        `default:"create-payment" usage:"Topic for payment outcomes" flag:"outcome-topic"`
	GroupID         string        `default:"order-service" usage:"Consumer group for payment outcomes" flag:"group-id"`
	Workers         int           `default:"1" usage:"Number of outcome consumers"`
	PublishTimeout  time.Duration `default:"10s" usage:"Timeout for a single settlement request send" flag:"publish-timeout"`
	RedeliveryDelay time.Duration `default:"100ms" usage:"Pause before a failed outcome is handled again" flag:"redelivery-delay"`
	MaxAttempts     int           `default:"0" usage:"Max handling attempts per outcome, 0 means unbounded" flag:"max-attempts"`
}

// BuyerConfig configures the user service client.
type BuyerConfig struct {
	BaseURL  string        `default:"http://localhost:8081" usage:"User service base URL" flag:"buyer-url"`
	Timeout  time.Duration `default:"5s" usage:"User service request timeout" flag:"buyer-timeout"`
	CacheTTL time.Duration `default:"1m" usage:"Buyer profile cache TTL" flag:"buyer-cache-ttl"`
}

// RedisConfig configures the buyer profile cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string `default:"" usage:"Redis address (host:port)" flag:"redis-addr"`
	Password string `default:"" usage:"Redis password" flag:"redis-password"`
	DB       int    `default:"0" usage:"Redis database" flag:"redis-db"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "ORDERS",
		Files:     []string{"config.yaml", "/etc/orderservice/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first missing or inconsistent setting.
func (c *Config) Validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set ORDERS_DATABASE_URL or DATABASE_URL")
	case len(c.KafkaBrokers()) == 0:
		return errors.New("at least one Kafka broker is required")
	case c.Kafka.RequestTopic == "" || c.Kafka.OutcomeTopic == "":
		return errors.New("Kafka topics must not be empty")
	case c.Kafka.GroupID == "":
		return errors.New("Kafka consumer group is required")
	case c.Kafka.Workers < 1:
		return errors.Errorf("Kafka workers must be positive, got %d", c.Kafka.Workers)
	case c.Kafka.MaxAttempts < 0:
		return errors.Errorf("Kafka max attempts must not be negative, got %d", c.Kafka.MaxAttempts)
	case c.Buyer.BaseURL == "":
		return errors.New("user service URL is required")
	}
	return nil
}

// KafkaBrokers returns the parsed broker list.
func (c *Config) KafkaBrokers() []string {
	return broker.ParseBrokers(c.Kafka.Brokers)
}

// applyPlatformDefaults maps platform-provided environment variables that use
// standard names like DATABASE_URL and PORT to the ORDERS_-prefixed
// configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" && os.Getenv("ORDERS_KAFKA_BROKERS") == "" {
		c.Kafka.Brokers = v
	}
}
