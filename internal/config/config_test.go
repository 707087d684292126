package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PORT", "")

	cfg := LoadConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, time.Duration(0), cfg.JWTTTL)
	assert.Equal(t, 30*time.Second, cfg.WebhookTestTimeout)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.RedisEnabled)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("JWT_TTL_HOURS", "24")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")
	t.Setenv("WEBHOOK_TEST_TIMEOUT_SECONDS", "5")
	t.Setenv("HTTP_READ_TIMEOUT", "3s")
	t.Setenv("REDIS_ENABLED", "true")

	cfg := LoadConfig()
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 5*time.Second, cfg.WebhookTestTimeout)
	assert.Equal(t, 3*time.Second, cfg.ReadTimeout)
	assert.True(t, cfg.RedisEnabled)
}

func TestValidate(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	assert.Error(t, LoadConfig().Validate())

	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PUBSUB_ENABLED", "true")
	t.Setenv("PUBSUB_PROJECT_ID", "")
	assert.Error(t, LoadConfig().Validate())
}
