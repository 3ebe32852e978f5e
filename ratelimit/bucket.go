package ratelimit

import (
	"container/list"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// bucketEntry tracks a per-key token bucket and its last access time.
type bucketEntry struct {
	key        string
	limiter    *rate.Limiter
	lastAccess time.Time
}

// BucketLimiter provides per-key token-bucket limiting for weighted
// costs. Tokens refill continuously at maxRequests per window, capped
// at maxRequests; a check consumes its weight in tokens or is rejected
// with a computed wait time. LRU eviction bounds memory for unbounded
// key spaces.
type BucketLimiter struct {
	buckets         map[string]*list.Element // key -> list element
	lruList         *list.List               // LRU list of *bucketEntry
	mu              sync.RWMutex
	refill          rate.Limit
	burst           int
	maxEntries      int
	logger          *slog.Logger
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once

	totalEvictions int64
	totalCleanups  int64
}

// NewBucketLimiter creates a token-bucket limiter. Capacity refills at
// maxRequests per window. Default max tracked keys is 10,000; use
// NewBucketLimiterWithConfig for a custom bound.
func NewBucketLimiter(maxRequests int, window time.Duration, logger *slog.Logger) *BucketLimiter {
	return NewBucketLimiterWithConfig(maxRequests, window, 10000, logger)
}

// NewBucketLimiterWithConfig creates a token-bucket limiter with a
// custom cap on tracked keys. When the cap is reached, least recently
// used buckets are evicted. Set maxEntries to 0 for unlimited (not
// recommended for production).
func NewBucketLimiterWithConfig(maxRequests int, window time.Duration, maxEntries int, logger *slog.Logger) *BucketLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	if maxRequests <= 0 {
		maxRequests = 100
		logger.Warn("Invalid bucket capacity, using default", "max_requests", maxRequests)
	}
	if window <= 0 {
		window = time.Minute
		logger.Warn("Invalid bucket window, using default", "window", window)
	}
	if maxEntries < 0 {
		maxEntries = 10000
		logger.Warn("Invalid maxEntries, using default", "max_entries", maxEntries)
	}

	bl := &BucketLimiter{
		buckets:         make(map[string]*list.Element),
		lruList:         list.New(),
		refill:          rate.Limit(float64(maxRequests) / window.Seconds()),
		burst:           maxRequests,
		maxEntries:      maxEntries,
		logger:          logger,
		cleanupInterval: 5 * time.Minute,
		stopCleanup:     make(chan struct{}),
	}

	go bl.cleanupLoop()

	return bl
}

// Allow checks a unit-weight request for the key.
func (bl *BucketLimiter) Allow(key string) bool {
	ok, _ := bl.AllowN(key, 1)
	return ok
}

// AllowN consumes weight tokens for the key, or rejects with the wait
// until enough tokens refill. A weight above the bucket capacity can
// never succeed and is rejected with zero wait.
func (bl *BucketLimiter) AllowN(key string, weight int) (bool, time.Duration) {
	if weight <= 0 {
		weight = 1
	}
	if weight > bl.burst {
		return false, 0
	}

	now := time.Now()
	limiter := bl.bucketFor(key, now)

	r := limiter.ReserveN(now, weight)
	if !r.OK() {
		return false, 0
	}
	if delay := r.DelayFrom(now); delay > 0 {
		// Not enough tokens yet. Cancel so the reservation does not
		// debit future capacity.
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// bucketFor returns the limiter for a key, creating it and evicting the
// LRU entry if at capacity.
func (bl *BucketLimiter) bucketFor(key string, now time.Time) *rate.Limiter {
	bl.mu.Lock()
	defer bl.mu.Unlock()

	if elem, exists := bl.buckets[key]; exists {
		bl.lruList.MoveToFront(elem)
		entry := elem.Value.(*bucketEntry)
		entry.lastAccess = now
		return entry.limiter
	}

	if bl.maxEntries > 0 && len(bl.buckets) >= bl.maxEntries {
		bl.evictLRU()
	}

	entry := &bucketEntry{
		key:        key,
		limiter:    rate.NewLimiter(bl.refill, bl.burst),
		lastAccess: now,
	}
	elem := bl.lruList.PushFront(entry)
	bl.buckets[key] = elem
	return entry.limiter
}

// evictLRU removes the least recently used bucket. Must be called with
// the mutex locked.
func (bl *BucketLimiter) evictLRU() {
	elem := bl.lruList.Back()
	if elem == nil {
		return
	}

	entry := elem.Value.(*bucketEntry)
	delete(bl.buckets, entry.key)
	bl.lruList.Remove(elem)
	bl.totalEvictions++

	bl.logger.Debug("Bucket limiter LRU eviction",
		"key", entry.key,
		"total_evictions", bl.totalEvictions,
		"current_entries", len(bl.buckets))
}

func (bl *BucketLimiter) cleanupLoop() {
	ticker := time.NewTicker(bl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			bl.Cleanup(30 * time.Minute)
		case <-bl.stopCleanup:
			return
		}
	}
}

// Cleanup removes buckets that have not been accessed for maxIdleTime.
func (bl *BucketLimiter) Cleanup(maxIdleTime time.Duration) {
	bl.mu.Lock()
	defer bl.mu.Unlock()

	now := time.Now()
	removed := 0

	var next *list.Element
	for elem := bl.lruList.Front(); elem != nil; elem = next {
		next = elem.Next()
		entry := elem.Value.(*bucketEntry)

		if now.Sub(entry.lastAccess) > maxIdleTime {
			delete(bl.buckets, entry.key)
			bl.lruList.Remove(elem)
			removed++
		}
	}

	if removed > 0 {
		bl.totalCleanups++
		bl.logger.Debug("Bucket limiter cleanup completed",
			"removed", removed,
			"remaining", len(bl.buckets),
			"total_cleanups", bl.totalCleanups)
	}
}

// Stop halts the cleanup goroutine. Safe to call multiple times.
func (bl *BucketLimiter) Stop() {
	bl.stopOnce.Do(func() {
		close(bl.stopCleanup)
	})
}

// BucketStats holds bucket limiter statistics for monitoring.
type BucketStats struct {
	CurrentEntries int
	MaxEntries     int
	TotalEvictions int64
	TotalCleanups  int64
	MemoryPressure float64 // percentage of max capacity used (0-100)
}

// GetStats returns current limiter statistics for monitoring and
// alerting.
func (bl *BucketLimiter) GetStats() BucketStats {
	bl.mu.RLock()
	defer bl.mu.RUnlock()

	stats := BucketStats{
		CurrentEntries: len(bl.buckets),
		MaxEntries:     bl.maxEntries,
		TotalEvictions: bl.totalEvictions,
		TotalCleanups:  bl.totalCleanups,
	}
	if bl.maxEntries > 0 {
		stats.MemoryPressure = float64(stats.CurrentEntries) / float64(bl.maxEntries) * 100.0
	}
	return stats
}
