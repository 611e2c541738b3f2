package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibast-solutions/ms-go-accounts/config"
)

// fakeRedis answers the limiter script from an in-memory counter.
type fakeRedis struct {
	redis.Scripter
	counts map[string]int64
	window map[string]int64
	err    error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{counts: map[string]int64{}, window: map[string]int64{}}
}

func (f *fakeRedis) eval(ctx context.Context, keys []string, args ...any) *redis.Cmd {
	cmd := redis.NewCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	key := keys[0]
	f.counts[key]++
	if f.counts[key] == 1 {
		f.window[key] = args[0].(int64)
	}
	cmd.SetVal([]any{f.counts[key], f.window[key]})
	return cmd
}

func (f *fakeRedis) EvalSha(ctx context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	return f.eval(ctx, keys, args...)
}

func (f *fakeRedis) Eval(ctx context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	return f.eval(ctx, keys, args...)
}

func TestAllowWithinAndBeyondLimit(t *testing.T) {
	limiter := New(newFakeRedis(), 2, time.Minute)
	ctx := context.Background()

	first, err := limiter.Allow(ctx, "rl:login:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, first.Allowed)
	assert.Equal(t, 1, first.Remaining)
	assert.Equal(t, 2, first.Limit)
	assert.Equal(t, time.Minute, first.Reset)

	second, err := limiter.Allow(ctx, "rl:login:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, second.Allowed)
	assert.Equal(t, 0, second.Remaining)

	third, err := limiter.Allow(ctx, "rl:login:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, third.Allowed)
	assert.Equal(t, 0, third.Remaining)

	other, err := limiter.Allow(ctx, "rl:login:5.6.7.8")
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestAllowReturnsRedisErrors(t *testing.T) {
	fake := newFakeRedis()
	fake.err = errors.New("connection refused")

	_, err := New(fake, 5, time.Minute).Allow(context.Background(), "k")
	assert.Error(t, err)
}

func TestNewRedisClientRequiresAddr(t *testing.T) {
	_, err := NewRedisClient(context.Background(), config.RedisConfig{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
