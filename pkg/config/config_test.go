package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewsync/crewsync/pkg/observability"
)

func TestGetEnvHelpers(t *testing.T) {
	t.Run("getEnv", func(t *testing.T) {
		t.Setenv("TEST_VAR", "custom")
		assert.Equal(t, "custom", getEnv("TEST_VAR", "default"))
		assert.Equal(t, "default", getEnv("TEST_VAR_NOT_SET", "default"))
	})

	t.Run("getEnvBool", func(t *testing.T) {
		t.Setenv("TEST_BOOL_TRUE", "TRUE")
		t.Setenv("TEST_BOOL_ONE", "1")
		t.Setenv("TEST_BOOL_FALSE", "false")
		assert.True(t, getEnvBool("TEST_BOOL_TRUE", false))
		assert.True(t, getEnvBool("TEST_BOOL_ONE", false))
		assert.False(t, getEnvBool("TEST_BOOL_FALSE", true))
		assert.True(t, getEnvBool("TEST_BOOL_NOT_SET", true))
	})

	t.Run("getEnvInt", func(t *testing.T) {
		t.Setenv("TEST_INT", "42")
		t.Setenv("TEST_INT_BAD", "forty-two")
		assert.Equal(t, 42, getEnvInt("TEST_INT", 7))
		assert.Equal(t, 7, getEnvInt("TEST_INT_BAD", 7))
	})

	t.Run("getEnvDuration", func(t *testing.T) {
		t.Setenv("TEST_DURATION", "90s")
		t.Setenv("TEST_DURATION_BAD", "soon")
		assert.Equal(t, 90*time.Second, getEnvDuration("TEST_DURATION", time.Minute))
		assert.Equal(t, time.Minute, getEnvDuration("TEST_DURATION_BAD", time.Minute))
	})
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
	assert.Equal(t, "crewsync", cfg.Mongo.Database)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
	assert.True(t, cfg.Observability.MetricsEnabled)
	assert.Equal(t, "@every 15s", cfg.Sync.Schedule)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("CREWSYNC_PORT", "9000")
	t.Setenv("CREWSYNC_MONGO_DATABASE", "crewsync_test")
	t.Setenv("CREWSYNC_LOG_LEVEL", "debug")
	t.Setenv("CREWSYNC_SYNC_BATCH_SIZE", "25")
	t.Setenv("CREWSYNC_TOKEN_SECRET", "a-long-enough-secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "crewsync_test", cfg.Mongo.Database)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
	assert.Equal(t, 25, cfg.Sync.Worker.BatchSize)
	assert.Equal(t, "a-long-enough-secret", cfg.Auth.TokenSecret)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := LoadConfig()
		require.NoError(t, err)
		return cfg
	}

	t.Run("same port for server and health", func(t *testing.T) {
		cfg := valid()
		cfg.Server.HealthPort = cfg.Server.Port
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing mongo URI", func(t *testing.T) {
		cfg := valid()
		cfg.Mongo.URI = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("short token secret", func(t *testing.T) {
		cfg := valid()
		cfg.Auth.TokenSecret = "short"
		assert.Error(t, cfg.Validate())
	})

	t.Run("empty secret is allowed", func(t *testing.T) {
		cfg := valid()
		cfg.Auth.TokenSecret = ""
		assert.NoError(t, cfg.Validate())
	})
}
