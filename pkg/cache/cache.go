// Package cache wraps the in-process cache the pollers use to avoid
// refetching upstream payloads (market catalogues, order books, trade-flow
// analyses) inside a single polling interval.
package cache

import "time"

// Cache stores upstream responses keyed by request identity.
type Cache interface {
	// Get returns the cached value for key and whether it was present.
	Get(key string) (interface{}, bool)

	// Set stores value under key for ttl. The return reports whether the
	// entry was admitted.
	Set(key string, value interface{}, ttl time.Duration) bool

	// Delete drops key.
	Delete(key string)

	// Clear drops every entry.
	Clear()

	// Close releases the cache's resources.
	Close()
}
