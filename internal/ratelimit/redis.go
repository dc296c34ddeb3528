package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window limiter shared by every server instance
// pointing at the same Redis. Redis errors fail open.
type RedisLimiter struct {
	client  *redis.Client
	prefix  string
	rate    int
	window  time.Duration
	timeout time.Duration
	now     func() time.Time
}

// NewRedisLimiter connects to Redis and verifies the connection.
func NewRedisLimiter(ctx context.Context, addr, password string, db, rate int, window time.Duration) (*RedisLimiter, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return newRedisLimiter(client, rate, window), nil
}

func newRedisLimiter(client *redis.Client, rate int, window time.Duration) *RedisLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RedisLimiter{
		client:  client,
		prefix:  "orgbook:ratelimit:",
		rate:    rate,
		window:  window,
		timeout: 250 * time.Millisecond,
		now:     time.Now,
	}
}

// Decide increments the counter for key in the current window.
func (rl *RedisLimiter) Decide(ctx context.Context, key string) Decision {
	if rl.rate <= 0 {
		return Decision{Allowed: true}
	}

	ctx, cancel := context.WithTimeout(ctx, rl.timeout)
	defer cancel()

	redisKey := rl.prefix + key
	counter, err := rl.client.Incr(ctx, redisKey).Result()
	if err != nil {
		rl.logError("incr", err)
		return Decision{Allowed: true, Limit: rl.rate, Remaining: rl.rate}
	}

	// A key without a TTL is new or survived a failed EXPIRE.
	ttl, err := rl.client.TTL(ctx, redisKey).Result()
	switch {
	case err != nil:
		rl.logError("ttl", err)
		ttl = rl.window
	case ttl < 0:
		if err := rl.client.Expire(ctx, redisKey, rl.window).Err(); err != nil {
			rl.logError("expire", err)
		}
		ttl = rl.window
	}

	remaining := rl.rate - int(counter)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   int(counter) <= rl.rate,
		Limit:     rl.rate,
		Remaining: remaining,
		ResetAt:   rl.now().Add(ttl),
	}
}

// Close releases the Redis connection.
func (rl *RedisLimiter) Close() error {
	return rl.client.Close()
}

func (rl *RedisLimiter) logError(op string, err error) {
	slog.Error("redis rate limiter error", "op", op, "error", err)
}
