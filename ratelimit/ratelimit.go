package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Limit is a window/ceiling pair applied to a key.
type Limit struct {
	Window      time.Duration
	MaxRequests int
}

// Result is the outcome of a rate-limit check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetTime time.Time

	// RetryAfter is the whole number of seconds the client should wait
	// before retrying. Set only when the request is rejected, always at
	// least 1.
	RetryAfter int
}

// Service performs sliding-window rate-limit checks against a Store.
// Checks are keyed by (caller key, path) so limits apply per endpoint.
// Store errors fail open: the request is allowed and a warning logged.
type Service struct {
	store  Store
	def    Limit
	logger *slog.Logger

	mu        sync.RWMutex
	overrides map[string]Limit
}

// NewService creates a rate-limit service with a default limit applied
// to every path.
func NewService(store Store, window time.Duration, maxRequests int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if window <= 0 {
		window = time.Minute
		logger.Warn("Invalid rate limit window, using default", "window", window)
	}
	if maxRequests <= 0 {
		maxRequests = 100
		logger.Warn("Invalid rate limit ceiling, using default", "max_requests", maxRequests)
	}

	return &Service{
		store:     store,
		def:       Limit{Window: window, MaxRequests: maxRequests},
		overrides: make(map[string]Limit),
		logger:    logger,
	}
}

// SetPathLimit overrides the default limit for a specific path.
func (s *Service) SetPathLimit(path string, window time.Duration, maxRequests int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[path] = Limit{Window: window, MaxRequests: maxRequests}
}

// Check records a request against the window for (key, path) and
// reports whether it is admitted. Rejected results carry RetryAfter and
// a ResetTime derived from the oldest live entry.
func (s *Service) Check(ctx context.Context, key, path string) Result {
	limit := s.limitFor(path)

	take, err := s.store.Take(ctx, key+":"+path, limit.MaxRequests, limit.Window)
	if err != nil {
		// Fail open. An unreachable store must not take the service down
		// with it; the trade-off is that throttling lapses for the
		// duration of the outage.
		s.logger.Warn("Rate limit store unreachable, failing open",
			"key", key,
			"path", path,
			"error", err)
		return Result{
			Allowed:   true,
			Limit:     limit.MaxRequests,
			Remaining: limit.MaxRequests - 1,
			ResetTime: time.Now().Add(limit.Window),
		}
	}

	remaining := limit.MaxRequests - take.Count
	if remaining < 0 {
		remaining = 0
	}

	reset := take.OldestAt.Add(limit.Window)
	if take.OldestAt.IsZero() {
		reset = time.Now().Add(limit.Window)
	}

	res := Result{
		Allowed:   take.Allowed,
		Limit:     limit.MaxRequests,
		Remaining: remaining,
		ResetTime: reset,
	}
	if !take.Allowed {
		res.RetryAfter = retryAfterSeconds(reset)
		s.logger.Warn("Rate limit exceeded",
			"key", key,
			"path", path,
			"limit", limit.MaxRequests,
			"retry_after", res.RetryAfter)
	}
	return res
}

func (s *Service) limitFor(path string) Limit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if l, ok := s.overrides[path]; ok {
		return l
	}
	return s.def
}

// retryAfterSeconds is ceil(reset - now) in whole seconds, floored at 1
// so a rejected client never retries immediately.
func retryAfterSeconds(reset time.Time) int {
	d := time.Until(reset)
	if d <= 0 {
		return 1
	}
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
