// Package config loads service configuration from defaults, an optional
// config.yaml and environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/orderbuddy/orderbuddy/internal/domain"
)

type Config struct {
	HTTP struct {
		Port            string        `mapstructure:"port"`
		RequestTimeout  time.Duration `mapstructure:"request_timeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
		MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	} `mapstructure:"http"`
	GRPC struct {
		Port string `mapstructure:"port"`
	} `mapstructure:"grpc"`
	DB struct {
		Driver         string `mapstructure:"driver"`
		Path           string `mapstructure:"path"`
		Host           string `mapstructure:"host"`
		Port           int    `mapstructure:"port"`
		User           string `mapstructure:"user"`
		Password       string `mapstructure:"password"`
		Name           string `mapstructure:"name"`
		MigrationsPath string `mapstructure:"migrations_path"`
	} `mapstructure:"db"`
	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
	} `mapstructure:"redis"`
	Auth struct {
		JWTSecret string        `mapstructure:"jwt_secret"`
		TokenTTL  time.Duration `mapstructure:"token_ttl"`
	} `mapstructure:"auth"`
	Kafka struct {
		Brokers       []string `mapstructure:"brokers"`
		Topic         string   `mapstructure:"topic"`
		Client        string   `mapstructure:"client"`
		ConsumerGroup string   `mapstructure:"consumer_group"`
	} `mapstructure:"kafka"`
	Assistant struct {
		URL     string        `mapstructure:"url"`
		APIKey  string        `mapstructure:"api_key"`
		Model   string        `mapstructure:"model"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"assistant"`
	Mongo struct {
		URI      string `mapstructure:"uri"`
		Database string `mapstructure:"database"`
	} `mapstructure:"mongo"`
	Delivery struct {
		VisibleFrom string `mapstructure:"visible_from"`
	} `mapstructure:"delivery"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

const (
	KafkaClientKafkaGo = "kafka-go"
	KafkaClientSarama  = "sarama"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", "8080")
	v.SetDefault("http.request_timeout", 30*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.max_body_bytes", 1<<20) // 1MB
	v.SetDefault("grpc.port", "50060")
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.path", "orderbuddy.db")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "orderbuddy")
	v.SetDefault("db.migrations_path", "internal/repository/migrations")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("auth.jwt_secret", "orderbuddy-dev-secret")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "order-events")
	v.SetDefault("kafka.client", KafkaClientKafkaGo)
	v.SetDefault("kafka.consumer_group", "orderbuddy-cart-invalidator")
	v.SetDefault("assistant.url", "")
	v.SetDefault("assistant.api_key", "")
	v.SetDefault("assistant.model", "gpt-4o-mini")
	v.SetDefault("assistant.timeout", 20*time.Second)
	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", "orderbuddy")
	v.SetDefault("delivery.visible_from", string(domain.OrderStatusPacked))
	v.SetDefault("log.level", "info")
}

// Load reads ./config/config.yaml or ./config.yaml if present. Environment
// variables override file values, with dots replaced by underscores
// (HTTP_PORT, DB_DRIVER, KAFKA_BROKERS).
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.DB.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("db.driver must be sqlite or postgres, got %q", c.DB.Driver)
	}
	switch c.Kafka.Client {
	case KafkaClientKafkaGo, KafkaClientSarama:
	default:
		return fmt.Errorf("kafka.client must be %s or %s, got %q", KafkaClientKafkaGo, KafkaClientSarama, c.Kafka.Client)
	}
	st, err := domain.ParseOrderStatus(c.Delivery.VisibleFrom)
	if err != nil || st == domain.OrderStatusPending {
		return fmt.Errorf("delivery.visible_from must be packed, on_the_way or delivered, got %q", c.Delivery.VisibleFrom)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret must not be empty")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.token_ttl must be positive")
	}
	return nil
}

// VisibleFrom is the first status delivery personnel can see.
func (c *Config) VisibleFrom() domain.OrderStatus {
	return domain.OrderStatus(c.Delivery.VisibleFrom)
}
