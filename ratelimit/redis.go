package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces rate-limit keys so the store can share a Redis
// database with other data.
const keyPrefix = "gatekit:ratelimit:"

// takeScript runs the whole sliding-window check server-side: prune,
// count, conditionally add, refresh expiry. One round trip, atomic per
// key. Scores and ARGV timestamps are microseconds; the key TTL is set
// to twice the window so idle keys expire on their own.
var takeScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, member)
  redis.call('PEXPIRE', key, math.ceil(window / 500))
  allowed = 1
  count = count + 1
end
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local oldestScore = 0
if oldest[2] then
  oldestScore = tonumber(oldest[2])
end
return {allowed, count, oldestScore}
`)

// RedisStore is a Redis-backed sliding-window store for multi-instance
// deployments. Each key is a sorted set of request markers scored by
// microsecond timestamps.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a Redis-backed store from a Redis URL
// (redis://host:port/db). Connectivity is probed once at startup; a
// failed probe is logged but not fatal, since the service fails open
// when the store is unreachable.
func NewRedisStore(redisURL string, logger *slog.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("Rate limit store unreachable at startup, requests will fail open",
			"error", err)
	}

	return &RedisStore{
		client: client,
		logger: logger,
	}, nil
}

// NewRedisStoreWithClient wraps an existing client, e.g. one shared
// with other subsystems or a test instance.
func NewRedisStoreWithClient(client *redis.Client, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{client: client, logger: logger}
}

// Take implements Store.
func (s *RedisStore) Take(ctx context.Context, key string, limit int, window time.Duration) (TakeResult, error) {
	now := time.Now()

	raw, err := takeScript.Run(ctx, s.client,
		[]string{keyPrefix + key},
		now.UnixMicro(),
		window.Microseconds(),
		limit,
		uuid.NewString(),
	).Result()
	if err != nil {
		return TakeResult{}, fmt.Errorf("rate limit script failed: %w", err)
	}

	vals, ok := raw.([]interface{})
	if !ok || len(vals) != 3 {
		return TakeResult{}, fmt.Errorf("unexpected rate limit script reply: %T", raw)
	}
	allowed, _ := vals[0].(int64)
	count, _ := vals[1].(int64)
	oldest, _ := vals[2].(int64)

	res := TakeResult{
		Allowed: allowed == 1,
		Count:   int(count),
	}
	if oldest > 0 {
		res.OldestAt = time.UnixMicro(oldest)
	}
	return res, nil
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
