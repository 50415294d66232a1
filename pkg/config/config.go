package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/crewsync/crewsync/pkg/cache"
	"github.com/crewsync/crewsync/pkg/observability"
	"github.com/crewsync/crewsync/pkg/store/mongostore"
	evsync "github.com/crewsync/crewsync/pkg/sync"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Mongo         mongostore.Config
	Redis         RedisConfig
	Cache         cache.Config
	Auth          AuthConfig
	Sync          SyncConfig
	Audit         AuditConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// RedisConfig holds the mapping-cache Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig holds token signing settings. An empty secret disables API
// authorization and token issuance.
type AuthConfig struct {
	TokenSecret string
	TokenTTL    time.Duration
}

// SyncConfig holds the synchronizer worker settings.
type SyncConfig struct {
	Worker   evsync.WorkerConfig
	Schedule string
}

// AuditConfig holds the file audit trail settings. An empty directory
// disables the file logger.
type AuditConfig struct {
	Dir      string
	MaxSize  int64
	MaxFiles int
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Mongo:         loadMongoConfig(),
		Redis:         loadRedisConfig(),
		Cache:         loadCacheConfig(),
		Auth:          loadAuthConfig(),
		Sync:          loadSyncConfig(),
		Audit:         loadAuditConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("CREWSYNC_HOST", "0.0.0.0"),
		Port:            getEnv("CREWSYNC_PORT", "8080"),
		ReadTimeout:     getEnvDuration("CREWSYNC_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("CREWSYNC_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("CREWSYNC_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("CREWSYNC_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("CREWSYNC_HEALTH_PORT", "9090"),
	}
}

func loadMongoConfig() mongostore.Config {
	cfg := mongostore.DefaultConfig()
	cfg.URI = getEnv("CREWSYNC_MONGO_URI", cfg.URI)
	cfg.Database = getEnv("CREWSYNC_MONGO_DATABASE", cfg.Database)
	cfg.ConnectTimeout = getEnvDuration("CREWSYNC_MONGO_CONNECT_TIMEOUT", cfg.ConnectTimeout)
	cfg.OperationTimeout = getEnvDuration("CREWSYNC_MONGO_OPERATION_TIMEOUT", cfg.OperationTimeout)
	return cfg
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:     getEnv("CREWSYNC_REDIS_ADDR", "localhost:6379"),
		Password: getEnv("CREWSYNC_REDIS_PASSWORD", ""),
		DB:       getEnvInt("CREWSYNC_REDIS_DB", 0),
	}
}

func loadCacheConfig() cache.Config {
	cfg := cache.DefaultConfig()
	if entries := getEnvInt("CREWSYNC_CACHE_LOCAL_ENTRIES", 0); entries > 0 {
		cfg.LocalEntries = entries
	}
	if ttl := getEnvDuration("CREWSYNC_CACHE_TTL", 0); ttl > 0 {
		cfg.TTL = ttl
	}
	return cfg
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		TokenSecret: getEnv("CREWSYNC_TOKEN_SECRET", ""),
		TokenTTL:    getEnvDuration("CREWSYNC_TOKEN_TTL", time.Hour),
	}
}

func loadSyncConfig() SyncConfig {
	return SyncConfig{
		Worker: evsync.WorkerConfig{
			BatchSize:   getEnvInt("CREWSYNC_SYNC_BATCH_SIZE", 0),
			MaxAttempts: getEnvInt("CREWSYNC_SYNC_MAX_ATTEMPTS", 0),
			BaseBackoff: getEnvDuration("CREWSYNC_SYNC_BASE_BACKOFF", 0),
			Interval:    getEnvDuration("CREWSYNC_SYNC_INTERVAL", 0),
			Parallelism: getEnvInt("CREWSYNC_SYNC_PARALLELISM", 0),
			OpTimeout:   getEnvDuration("CREWSYNC_SYNC_OP_TIMEOUT", 0),
		},
		Schedule: getEnv("CREWSYNC_SYNC_SCHEDULE", "@every 15s"),
	}
}

func loadAuditConfig() AuditConfig {
	return AuditConfig{
		Dir:      getEnv("CREWSYNC_AUDIT_DIR", ""),
		MaxSize:  getEnvInt64("CREWSYNC_AUDIT_MAX_SIZE", 50*1024*1024),
		MaxFiles: getEnvInt("CREWSYNC_AUDIT_MAX_FILES", 10),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       observability.ParseLevel(getEnv("CREWSYNC_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("CREWSYNC_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Mongo.URI == "" {
		return fmt.Errorf("mongo URI is required")
	}
	if c.Mongo.Database == "" {
		return fmt.Errorf("mongo database is required")
	}

	if c.Auth.TokenSecret != "" && len(c.Auth.TokenSecret) < 16 {
		return fmt.Errorf("token secret must be at least 16 bytes")
	}

	if c.Sync.Schedule == "" {
		return fmt.Errorf("sync schedule is required")
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
