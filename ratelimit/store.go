package ratelimit

import (
	"context"
	"time"
)

// TakeResult reports the outcome of an atomic window reservation.
type TakeResult struct {
	// Allowed is true when the request was recorded under the limit.
	Allowed bool

	// Count is the number of live entries for the key after the call,
	// including the entry recorded by this call when allowed.
	Count int

	// OldestAt is the timestamp of the oldest live entry, used to
	// compute when the window resets. Zero when the window is empty.
	OldestAt time.Time
}

// Store records sliding-window entries for rate-limit keys.
//
// Take must behave atomically per key: prune entries older than
// now-window, count the survivors, and record a new entry only when the
// count is below limit. Without atomicity, concurrent requests observe
// stale counts and all slip past the limit.
type Store interface {
	Take(ctx context.Context, key string, limit int, window time.Duration) (TakeResult, error)
}
