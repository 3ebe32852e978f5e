package cache

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultSize is the cache capacity used when a non-positive size is given.
const DefaultSize = 1000

// Cache is a bounded key/value cache with per-entry TTL and LRU eviction.
// All methods are safe for concurrent use.
type Cache[K comparable, V any] struct {
	lru *expirable.LRU[K, V]

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// New creates a cache holding at most size entries, each expiring ttl
// after insertion. A non-positive size falls back to DefaultSize; a zero
// ttl disables expiry (entries live until evicted).
func New[K comparable, V any](size int, ttl time.Duration) *Cache[K, V] {
	c := &Cache[K, V]{}
	if size <= 0 {
		size = DefaultSize
	}
	c.lru = expirable.NewLRU[K, V](size, func(K, V) {
		c.evictions.Add(1)
	}, ttl)
	return c
}

// Get returns the value for key if present and not expired.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	v, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Set stores value under key, resetting its TTL.
func (c *Cache[K, V]) Set(key K, value V) {
	c.lru.Add(key, value)
}

// Invalidate removes key from the cache. It reports whether the key was present.
func (c *Cache[K, V]) Invalidate(key K) bool {
	return c.lru.Remove(key)
}

// Purge removes all entries.
func (c *Cache[K, V]) Purge() {
	c.lru.Purge()
}

// Len returns the number of live entries.
func (c *Cache[K, V]) Len() int {
	return c.lru.Len()
}

// Stats holds cache statistics for monitoring.
type Stats struct {
	Entries   int
	Hits      int64
	Misses    int64
	Evictions int64
}

// GetStats returns a snapshot of cache statistics.
func (c *Cache[K, V]) GetStats() Stats {
	return Stats{
		Entries:   c.lru.Len(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}
