// Package config provides configuration for the live chat service.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the live chat configuration.
type Config struct {
	// Server settings
	HTTPPort     int `env:"HTTP_PORT" envDefault:"8080"`     // Public API + websocket
	InternalPort int `env:"INTERNAL_PORT" envDefault:"8081"` // Trusted notification intake, /health
	RPCPort      int `env:"RPC_PORT" envDefault:"8082"`      // JSON-RPC notification intake, 0 disables

	// Database
	DatabaseURL string `env:"DATABASE_URL" envDefault:"file:livechat.db?cache=shared&mode=rwc"`

	// Auth settings. An empty secret trusts the role each caller declares.
	AdminJWTSecret string `env:"ADMIN_JWT_SECRET"`

	// WebSocket settings
	PingInterval   time.Duration `env:"WS_PING_INTERVAL" envDefault:"30s"`
	WriteTimeout   time.Duration `env:"WS_WRITE_TIMEOUT" envDefault:"10s"`
	ReadTimeout    time.Duration `env:"WS_READ_TIMEOUT" envDefault:"60s"`
	MaxMessageSize int64         `env:"WS_MAX_MESSAGE_SIZE" envDefault:"65536"`
	SendBuffer     int           `env:"WS_SEND_BUFFER" envDefault:"256"`

	// Chat limits
	MaxMessageLength int `env:"MAX_MESSAGE_LENGTH" envDefault:"4000"`

	// Redis relay for multi-instance fan-out. Empty address keeps delivery in-process.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisChannel  string `env:"REDIS_CHANNEL" envDefault:"livechat:rooms"`

	// Kafka intake for back-office events. No brokers disables it.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaGroupID string   `env:"KAFKA_GROUP_ID" envDefault:"livechat-notifications"`
	KafkaTopics  []string `env:"KAFKA_TOPICS" envSeparator:"," envDefault:"backoffice.events"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	return cfg, nil
}

// AdminAuthEnabled reports whether admin identity is verified rather than declared.
func (c *Config) AdminAuthEnabled() bool {
	return c.AdminJWTSecret != ""
}

// RedisEnabled reports whether the cross-instance relay is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// KafkaEnabled reports whether back-office event intake is configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}
