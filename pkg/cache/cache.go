// Package cache provides a two-level cache for resolved role mappings.
//
// The first level is a small in-process LRU with TTL; the second is Redis,
// shared across instances. Mappings are derived data, so the cache is a
// pure latency optimization: every entry can be recomputed from the
// document store, and both levels are invalidated whole on any role or
// tier change.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/crewsync/crewsync/pkg/bridge"
	"github.com/crewsync/crewsync/pkg/observability"
)

const (
	layerLocal = "local"
	layerRedis = "redis"
)

// Config tunes the mapping cache.
type Config struct {
	// LocalEntries bounds the in-process LRU.
	LocalEntries int

	// TTL applies to both levels. Short by default: invalidation covers
	// correctness, the TTL only bounds staleness after missed
	// invalidations.
	TTL time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		LocalEntries: 4096,
		TTL:          5 * time.Minute,
	}
}

// MappingCache caches resolved mappings per (user, project). The Redis
// client may be nil, leaving a process-local cache only.
type MappingCache struct {
	local   *lru.LRU[string, *bridge.Mapping]
	redis   *redis.Client
	ttl     time.Duration
	logger  *observability.Logger
	metrics *observability.Metrics
}

// New creates a mapping cache. logger and metrics may be nil.
func New(cfg Config, redisClient *redis.Client, logger *observability.Logger, metrics *observability.Metrics) *MappingCache {
	if cfg.LocalEntries <= 0 {
		cfg.LocalEntries = DefaultConfig().LocalEntries
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	return &MappingCache{
		local:   lru.NewLRU[string, *bridge.Mapping](cfg.LocalEntries, nil, cfg.TTL),
		redis:   redisClient,
		ttl:     cfg.TTL,
		logger:  logger,
		metrics: metrics,
	}
}

func cacheKey(userID, projectID string) string {
	return fmt.Sprintf("mapping:%s:%s", userID, projectID)
}

// Get returns the cached mapping for (user, project), checking the local
// level before Redis. A Redis hit backfills the local level.
func (c *MappingCache) Get(ctx context.Context, userID, projectID string) (*bridge.Mapping, bool) {
	key := cacheKey(userID, projectID)

	if m, ok := c.local.Get(key); ok {
		c.hit(layerLocal)
		return m, true
	}
	c.miss(layerLocal)

	if c.redis == nil {
		return nil, false
	}

	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).Warn("redis cache read failed")
		}
		c.miss(layerRedis)
		return nil, false
	}

	var m bridge.Mapping
	if err := json.Unmarshal(data, &m); err != nil {
		c.logger.WithError(err).Warn("corrupt cache entry discarded")
		c.redis.Del(ctx, key)
		c.miss(layerRedis)
		return nil, false
	}

	c.hit(layerRedis)
	c.local.Add(key, &m)
	return &m, true
}

// Put replaces the cached mapping for (user, project) at both levels.
func (c *MappingCache) Put(ctx context.Context, userID, projectID string, m *bridge.Mapping) error {
	key := cacheKey(userID, projectID)
	c.local.Add(key, m)

	if c.redis == nil {
		return nil
	}

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode mapping: %w", err)
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		// A failed write leaves Redis cold, not wrong.
		c.logger.WithError(err).Warn("redis cache write failed")
	}
	return nil
}

// Invalidate drops the cached mapping for (user, project) at both levels.
// Called on every role change before the new mapping is written.
func (c *MappingCache) Invalidate(ctx context.Context, userID, projectID string) error {
	key := cacheKey(userID, projectID)
	c.local.Remove(key)
	c.evicted(layerLocal)

	if c.redis == nil {
		return nil
	}
	if err := c.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cache entry: %w", err)
	}
	c.evicted(layerRedis)
	return nil
}

// Purge drops every local entry. Used when an organization-wide change
// (such as a tier downgrade) invalidates an unknown set of keys.
func (c *MappingCache) Purge() {
	c.local.Purge()
}

func (c *MappingCache) hit(layer string) {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(layer).Inc()
	}
}

func (c *MappingCache) miss(layer string) {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues(layer).Inc()
	}
}

func (c *MappingCache) evicted(layer string) {
	if c.metrics != nil {
		c.metrics.CacheEvictionsTotal.WithLabelValues(layer).Inc()
	}
}
