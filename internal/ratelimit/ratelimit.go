// Package ratelimit caps how many one-time codes a mobile number can
// request within a window.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "rideshare:otp:"

// Counter is the subset of the redis client the limiter needs.
type Counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	ExpireNX(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// FixedWindow allows at most limit hits per key in each window. The window
// starts with the first hit. Every hit re-arms a missing TTL with
// EXPIRE NX (Redis 7+), so a key never outlives its window even when an
// earlier expire call failed.
type FixedWindow struct {
	client Counter
	limit  int64
	window time.Duration
}

func NewFixedWindow(client Counter, limit int, window time.Duration) *FixedWindow {
	return &FixedWindow{client: client, limit: int64(limit), window: window}
}

// Connect parses url and returns a client that answers a ping.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Allow records a hit for key and reports whether it is within the limit.
func (f *FixedWindow) Allow(ctx context.Context, key string) (bool, error) {
	if f.limit <= 0 {
		return true, nil
	}
	redisKey := keyPrefix + key
	count, err := f.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("incr %s: %w", redisKey, err)
	}
	if err := f.client.ExpireNX(ctx, redisKey, f.window).Err(); err != nil {
		return false, fmt.Errorf("expire %s: %w", redisKey, err)
	}
	return count <= f.limit, nil
}
