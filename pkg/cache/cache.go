// Package cache memoizes expensive explanation computations. Results are
// keyed by namespace plus parameter digest, expire after a TTL, and can
// be invalidated by namespace prefix when a model is retrained. Cache
// failures never propagate to callers: a failed read is a miss, a failed
// write is a no-op, both are logged.
package cache

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Cache is the memoization layer shared by the explanation engines.
type Cache struct {
	store   Store
	ttl     time.Duration
	enabled bool
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a cache over the given store. A disabled cache misses on
// every read and drops every write.
func New(store Store, ttl time.Duration, enabled bool, logger *zap.Logger) *Cache {
	return &Cache{
		store:   store,
		ttl:     ttl,
		enabled: enabled,
		logger:  logger.Named("cache"),
		now:     time.Now,
	}
}

// Enabled reports whether the cache is active.
func (c *Cache) Enabled() bool {
	return c.enabled
}

// Get looks up a cached payload. Expired entries are removed and
// reported as misses.
func (c *Cache) Get(namespace string, params Params) ([]byte, bool) {
	if !c.enabled {
		return nil, false
	}

	key := BuildKey(namespace, params)
	payload, expiresAt, ok, err := c.store.Get(key)
	if err != nil {
		c.logger.Warn("cache read failed, treating as miss",
			zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if c.now().After(expiresAt) {
		if err := c.store.Delete(key); err != nil {
			c.logger.Warn("failed to evict expired entry",
				zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	c.logger.Debug("cache hit", zap.String("key", key))
	return payload, true
}

// Set stores a payload under the namespace and parameter set.
func (c *Cache) Set(namespace string, params Params, payload []byte) {
	if !c.enabled {
		return
	}

	key := BuildKey(namespace, params)
	if err := c.store.Set(key, payload, c.now().Add(c.ttl)); err != nil {
		c.logger.Warn("cache write failed, skipping",
			zap.String("key", key), zap.Error(err))
	}
}

// GetJSON looks up a cached payload and unmarshals it into out. A corrupt
// payload counts as a miss.
func (c *Cache) GetJSON(namespace string, params Params, out any) bool {
	payload, ok := c.Get(namespace, params)
	if !ok {
		return false
	}
	if err := json.Unmarshal(payload, out); err != nil {
		c.logger.Warn("cached payload corrupt, treating as miss",
			zap.String("namespace", namespace), zap.Error(err))
		return false
	}
	return true
}

// SetJSON marshals v and stores it under the namespace and parameter set.
func (c *Cache) SetJSON(namespace string, params Params, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("failed to marshal cache payload, skipping",
			zap.String("namespace", namespace), zap.Error(err))
		return
	}
	c.Set(namespace, params, payload)
}

// InvalidatePrefix removes every entry whose namespace starts with the
// prefix and returns the number removed. Failures are logged and
// reported as zero removals.
func (c *Cache) InvalidatePrefix(prefix string) int {
	removed, err := c.store.DeletePrefix(prefix)
	if err != nil {
		c.logger.Warn("cache invalidation failed",
			zap.String("prefix", prefix), zap.Error(err))
		return 0
	}
	if removed > 0 {
		c.logger.Info("invalidated cache entries",
			zap.String("prefix", prefix), zap.Int("removed", removed))
	}
	return removed
}

// Clear removes every entry and returns the number removed.
func (c *Cache) Clear() int {
	removed, err := c.store.Clear()
	if err != nil {
		c.logger.Warn("cache clear failed", zap.Error(err))
		return 0
	}
	c.logger.Info("cleared cache", zap.Int("removed", removed))
	return removed
}

// Close releases the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}
