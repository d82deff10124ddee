package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

// UploadRetention keeps period counters around long enough to outlive the
// longest quota period.
const UploadRetention = 35 * 24 * time.Hour

// RedisUploadCounter implements UploadCounter with one INCR key per user
// per period.
type RedisUploadCounter struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisUploadCounter connects to Redis and verifies the connection.
func NewRedisUploadCounter(ctx context.Context, addr, password string, db int, prefix string, logger *slog.Logger) (*RedisUploadCounter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	c := &RedisUploadCounter{client: client, prefix: prefix, logger: logger}
	if err := c.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to Redis at %s: %w", addr, err)
	}
	logger.Info("connected to Redis", "addr", addr, "db", db)
	return c, nil
}

// NewRedisUploadCounterFromClient wraps an existing client.
func NewRedisUploadCounterFromClient(client *redis.Client, prefix string, logger *slog.Logger) *RedisUploadCounter {
	return &RedisUploadCounter{client: client, prefix: prefix, logger: logger}
}

func (c *RedisUploadCounter) key(userID string, period time.Time) string {
	return fmt.Sprintf("%s:uploads:%s:%d", c.prefix, userID, period.Unix())
}

// Ping verifies the connection.
func (c *RedisUploadCounter) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// ReadUploadCount returns the uploads consumed in the period.
func (c *RedisUploadCounter) ReadUploadCount(ctx context.Context, userID string, period time.Time) (int, error) {
	n, err := c.client.Get(ctx, c.key(userID, period)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading upload count for %s: %w", userID, err)
	}
	return n, nil
}

// incrementScript runs the cap check, INCR and EXPIRE as one atomic step.
// ARGV[1] is the cap (negative for none), ARGV[2] the TTL in seconds.
// It returns {count, counted}.
var incrementScript = redis.NewScript(`
local n = tonumber(redis.call('GET', KEYS[1]) or '0')
local limit = tonumber(ARGV[1])
if limit >= 0 and n >= limit then
  return {n, 0}
end
n = redis.call('INCR', KEYS[1])
redis.call('EXPIRE', KEYS[1], ARGV[2])
return {n, 1}
`)

// IncrementUploadCount adds one upload if the counter is below limit and
// refreshes the key's expiry.
func (c *RedisUploadCounter) IncrementUploadCount(ctx context.Context, userID string, period time.Time, limit int) (int, bool, error) {
	key := c.key(userID, period)
	res, err := incrementScript.Run(ctx, c.client, []string{key}, limit, int64(UploadRetention/time.Second)).Slice()
	if err != nil {
		return 0, false, fmt.Errorf("incrementing upload count for %s: %w", userID, err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("incrementing upload count for %s: unexpected reply %v", userID, res)
	}
	n, _ := res[0].(int64)
	counted, _ := res[1].(int64)
	return int(n), counted == 1, nil
}

// Close closes the Redis client.
func (c *RedisUploadCounter) Close() error {
	return c.client.Close()
}
