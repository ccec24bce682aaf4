package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

// itemCost is the cost charged per entry. Entries are counted rather than
// sized: the engine holds at most a few hundred market pages and analyses,
// never enough for byte accounting to matter.
const itemCost = 1

// RistrettoCache is the ristretto-backed Cache implementation.
type RistrettoCache struct {
	inner  *ristretto.Cache
	logger *zap.Logger
}

var _ Cache = (*RistrettoCache)(nil)

// RistrettoConfig sizes the underlying cache.
type RistrettoConfig struct {
	// NumCounters is the number of keys tracked for admission, roughly
	// 10x the expected live entry count.
	NumCounters int64
	// MaxCost caps total cost, which at itemCost 1 is the entry count.
	MaxCost int64
	// BufferItems is ristretto's Get buffer size; 64 is the recommended
	// value.
	BufferItems int64
	Logger      *zap.Logger
}

// NewRistrettoCache builds a cache with internal metrics enabled.
func NewRistrettoCache(cfg *RistrettoConfig) (Cache, error) {
	inner, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}

	return &RistrettoCache{inner: inner, logger: cfg.Logger}, nil
}

// Get returns the cached value for key and whether it was present.
func (c *RistrettoCache) Get(key string) (interface{}, bool) {
	value, found := c.inner.Get(key)
	if found {
		CacheHitsTotal.Inc()
	} else {
		CacheMissesTotal.Inc()
	}
	c.logger.Debug("cache-lookup", zap.String("key", key), zap.Bool("hit", found))
	return value, found
}

// Set stores value under key for ttl. Admission is probabilistic; callers
// must tolerate a rejected write and refetch on the next miss.
func (c *RistrettoCache) Set(key string, value interface{}, ttl time.Duration) bool {
	admitted := c.inner.SetWithTTL(key, value, itemCost, ttl)
	if admitted {
		CacheSetsTotal.Inc()
		c.logger.Debug("cache-set", zap.String("key", key), zap.Duration("ttl", ttl))
	}
	return admitted
}

// Delete drops key.
func (c *RistrettoCache) Delete(key string) {
	c.inner.Del(key)
	CacheDeletesTotal.Inc()
}

// Clear drops every entry.
func (c *RistrettoCache) Clear() {
	c.inner.Clear()
	c.logger.Info("cache-cleared")
}

// Close releases the cache's resources.
func (c *RistrettoCache) Close() {
	c.inner.Close()
}

// Wait blocks until buffered writes are applied. Only lookups immediately
// after a Set need this; the poll loops never do.
func (c *RistrettoCache) Wait() {
	c.inner.Wait()
}
