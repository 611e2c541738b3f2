// Package ratelimit implements a fixed window request limiter on Redis.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vibast-solutions/ms-go-accounts/config"
)

var ErrNotConfigured = errors.New("redis is not configured")

// INCR and PEXPIRE on the first hit, returning the count and remaining ttl.
var incrExpireScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {current, redis.call("PTTL", KEYS[1])}
`)

type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Duration
}

type Limiter struct {
	client redis.Scripter
	max    int
	window time.Duration
}

func New(client redis.Scripter, max int, window time.Duration) *Limiter {
	return &Limiter{client: client, max: max, window: window}
}

// NewRedisClient connects and pings. It returns ErrNotConfigured without an
// address.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, ErrNotConfigured
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Allow counts one hit against key.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	res, err := incrExpireScript.Run(ctx, l.client, []string{key}, l.window.Milliseconds()).Slice()
	if err != nil {
		return Result{}, err
	}
	if len(res) != 2 {
		return Result{}, fmt.Errorf("unexpected rate limit reply %v", res)
	}

	count := toInt(res[0])
	ttl := toInt(res[1])
	remaining := l.max - count
	if remaining < 0 {
		remaining = 0
	}
	reset := time.Duration(0)
	if ttl > 0 {
		reset = time.Duration(ttl) * time.Millisecond
	}

	return Result{
		Allowed:   count <= l.max,
		Limit:     l.max,
		Remaining: remaining,
		Reset:     reset,
	}, nil
}

func toInt(v any) int {
	switch x := v.(type) {
	case int64:
		return int(x)
	case int:
		return x
	}
	return 0
}
