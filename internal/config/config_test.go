package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 8081, cfg.InternalPort)
	assert.Equal(t, 30*time.Second, cfg.PingInterval)
	assert.Equal(t, int64(65536), cfg.MaxMessageSize)
	assert.Equal(t, []string{"backoffice.events"}, cfg.KafkaTopics)
	assert.False(t, cfg.AdminAuthEnabled())
	assert.False(t, cfg.RedisEnabled())
	assert.False(t, cfg.KafkaEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("WS_PING_INTERVAL", "5s")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("ADMIN_JWT_SECRET", "s3cret")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, 5*time.Second, cfg.PingInterval)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.AdminAuthEnabled())
	assert.True(t, cfg.RedisEnabled())
	assert.True(t, cfg.KafkaEnabled())
}

func TestLoadRejectsMalformedPort(t *testing.T) {
	t.Setenv("HTTP_PORT", "not-a-port")

	_, err := Load()
	assert.Error(t, err)
}
