package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, window time.Duration, maxRequests int) *Service {
	t.Helper()
	store := NewMemoryStore(nil)
	t.Cleanup(store.Stop)
	return NewService(store, window, maxRequests, nil)
}

func TestService_SlidingWindow(t *testing.T) {
	svc := newTestService(t, 300*time.Millisecond, 3)
	ctx := context.Background()

	// Three requests within the window are admitted with remaining
	// counting down 2, 1, 0.
	for i, wantRemaining := range []int{2, 1, 0} {
		res := svc.Check(ctx, "client-1", "/api/data")
		require.True(t, res.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 3, res.Limit)
		assert.Equal(t, wantRemaining, res.Remaining, "request %d", i+1)
	}

	// Fourth request inside the same window is rejected.
	res := svc.Check(ctx, "client-1", "/api/data")
	require.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Greater(t, res.RetryAfter, 0)
	assert.False(t, res.ResetTime.IsZero())

	// After the window elapses a request is admitted again.
	time.Sleep(350 * time.Millisecond)
	res = svc.Check(ctx, "client-1", "/api/data")
	require.True(t, res.Allowed)
	assert.Equal(t, 2, res.Remaining)
}

func TestService_KeysAreIndependent(t *testing.T) {
	svc := newTestService(t, time.Second, 1)
	ctx := context.Background()

	require.True(t, svc.Check(ctx, "client-1", "/api/data").Allowed)
	require.False(t, svc.Check(ctx, "client-1", "/api/data").Allowed)

	// A different client and a different path each get their own window.
	assert.True(t, svc.Check(ctx, "client-2", "/api/data").Allowed)
	assert.True(t, svc.Check(ctx, "client-1", "/api/other").Allowed)
}

func TestService_PathOverride(t *testing.T) {
	svc := newTestService(t, time.Second, 100)
	svc.SetPathLimit("/api/login", time.Second, 1)
	ctx := context.Background()

	require.True(t, svc.Check(ctx, "client-1", "/api/login").Allowed)
	res := svc.Check(ctx, "client-1", "/api/login")
	assert.False(t, res.Allowed)
	assert.Equal(t, 1, res.Limit)

	// The default limit still applies elsewhere.
	assert.True(t, svc.Check(ctx, "client-1", "/api/data").Allowed)
}

type failingStore struct{}

func (failingStore) Take(ctx context.Context, key string, limit int, window time.Duration) (TakeResult, error) {
	return TakeResult{}, errors.New("store unreachable")
}

func TestService_FailsOpenOnStoreError(t *testing.T) {
	svc := NewService(failingStore{}, time.Second, 3, nil)

	res := svc.Check(context.Background(), "client-1", "/api/data")
	assert.True(t, res.Allowed)
	assert.Equal(t, 3, res.Limit)
	assert.Equal(t, 0, res.RetryAfter)
}

func TestService_DefaultsOnInvalidConfig(t *testing.T) {
	store := NewMemoryStore(nil)
	defer store.Stop()

	svc := NewService(store, 0, -1, nil)
	res := svc.Check(context.Background(), "client-1", "/api/data")
	assert.True(t, res.Allowed)
	assert.Equal(t, 100, res.Limit)
}

func TestMemoryStore_TakeConcurrent(t *testing.T) {
	store := NewMemoryStore(nil)
	defer store.Stop()
	ctx := context.Background()

	const workers = 50
	const limit = 10

	allowed := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		go func() {
			res, err := store.Take(ctx, "k", limit, time.Second)
			if err != nil {
				allowed <- false
				return
			}
			allowed <- res.Allowed
		}()
	}

	admitted := 0
	for i := 0; i < workers; i++ {
		if <-allowed {
			admitted++
		}
	}
	// Exactly limit requests may be admitted; concurrency must never
	// let extras past the ceiling.
	assert.Equal(t, limit, admitted)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	store := NewMemoryStore(nil)
	defer store.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Take(ctx, "k", 1, time.Second)
	assert.Error(t, err)
}

func TestMemoryStore_CleanupDropsIdleKeys(t *testing.T) {
	store := NewMemoryStoreWithInterval(10*time.Millisecond, nil)
	defer store.Stop()
	store.maxIdle = 20 * time.Millisecond

	store.Take(context.Background(), "k", 5, 10*time.Millisecond)
	require.Equal(t, 1, store.Keys())

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 0, store.Keys())
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, retryAfterSeconds(time.Now().Add(-time.Second)))
	assert.Equal(t, 1, retryAfterSeconds(time.Now().Add(200*time.Millisecond)))
	got := retryAfterSeconds(time.Now().Add(2500 * time.Millisecond))
	assert.Equal(t, 3, got)
}
