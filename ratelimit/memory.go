package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MemoryStore is an in-process sliding-window store. Suitable for
// tests and single-instance deployments; it provides no cross-instance
// coordination. Idle keys are swept by a background cleanup loop; call
// Stop when the store is no longer needed.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string][]time.Time

	cleanupInterval time.Duration
	maxIdle         time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
	logger          *slog.Logger
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an in-process store with a 1-minute cleanup
// interval.
func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	return NewMemoryStoreWithInterval(time.Minute, logger)
}

// NewMemoryStoreWithInterval creates an in-process store with a custom
// cleanup interval. If cleanupInterval is 0 or negative, the default of
// 1 minute is used.
func NewMemoryStoreWithInterval(cleanupInterval time.Duration, logger *slog.Logger) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	s := &MemoryStore{
		entries:         make(map[string][]time.Time),
		cleanupInterval: cleanupInterval,
		maxIdle:         5 * time.Minute,
		stopCleanup:     make(chan struct{}),
		logger:          logger,
	}

	go s.cleanupLoop()
	return s
}

// Take implements Store. The prune+count+add sequence runs under the
// store mutex, so concurrent callers for the same key serialize.
func (s *MemoryStore) Take(ctx context.Context, key string, limit int, window time.Duration) (TakeResult, error) {
	if err := ctx.Err(); err != nil {
		return TakeResult{}, err
	}

	now := time.Now()
	cutoff := now.Add(-window)

	s.mu.Lock()
	defer s.mu.Unlock()

	live := s.entries[key][:0]
	for _, ts := range s.entries[key] {
		if ts.After(cutoff) {
			live = append(live, ts)
		}
	}

	res := TakeResult{Count: len(live)}
	if len(live) < limit {
		live = append(live, now)
		res.Allowed = true
		res.Count = len(live)
	}
	if len(live) > 0 {
		res.OldestAt = live[0]
		s.entries[key] = live
	} else {
		delete(s.entries, key)
	}

	return res, nil
}

// Keys returns the number of tracked keys, for monitoring.
func (s *MemoryStore) Keys() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stop halts the background cleanup loop. Safe to call multiple times.
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCleanup)
	})
}

func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

// cleanup drops keys whose newest entry is older than maxIdle. Live
// windows are left alone; Take prunes them on access.
func (s *MemoryStore) cleanup() {
	cutoff := time.Now().Add(-s.maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entries := range s.entries {
		if len(entries) == 0 || entries[len(entries)-1].Before(cutoff) {
			delete(s.entries, key)
			removed++
		}
	}

	if removed > 0 {
		s.logger.Debug("Rate limit store cleanup completed",
			"removed", removed,
			"remaining", len(s.entries))
	}
}
