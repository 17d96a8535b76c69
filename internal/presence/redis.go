package presence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "chat:last_seen:"

// RedisStore keeps last-seen timestamps in Redis so they survive restarts.
type RedisStore struct {
	rdb   *redis.Client
	clock clockwork.Clock
}

// NewRedisClient creates a go-redis client from a URL
// (e.g. "redis://localhost:6379") and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}

func NewRedisStore(rdb *redis.Client, clock clockwork.Clock) *RedisStore {
	return &RedisStore{rdb: rdb, clock: clock}
}

func (s *RedisStore) TouchOnline(ctx context.Context, username string) error {
	return s.touch(ctx, username)
}

func (s *RedisStore) TouchOffline(ctx context.Context, username string) error {
	return s.touch(ctx, username)
}

func (s *RedisStore) touch(ctx context.Context, username string) error {
	ts := s.clock.Now().UTC().Format(time.RFC3339Nano)
	if err := s.rdb.Set(ctx, keyPrefix+username, ts, 0).Err(); err != nil {
		return fmt.Errorf("failed to record last seen: %w", err)
	}
	return nil
}

func (s *RedisStore) LastSeen(ctx context.Context, username string) (time.Time, bool, error) {
	val, err := s.rdb.Get(ctx, keyPrefix+username).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read last seen: %w", err)
	}

	ts, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("corrupt last seen value for %q: %w", username, err)
	}
	return ts, true, nil
}
