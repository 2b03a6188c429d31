package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buralog/etl-healthcare/internal/ratelimit"
)

func newTestLimiter(t *testing.T, limit int, window time.Duration) (ratelimit.RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return ratelimit.NewRedisRateLimiterFromClient(client, limit, window), mr
}

func TestRateLimiter_AllowsUpToLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "tenant-1")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, err := limiter.Allow(ctx, "tenant-1")
	require.NoError(t, err)
	assert.False(t, allowed, "request over the limit must be denied")
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	allowed, err := limiter.Allow(ctx, "tenant-1")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "tenant-1")
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = limiter.Allow(ctx, "tenant-2")
	require.NoError(t, err)
	assert.True(t, allowed, "another tenant has its own window")
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter, err := ratelimit.NewRedisRateLimiter("", 1, time.Minute, true)
	require.NoError(t, err, "disabled limiter must not touch redis")

	for i := 0; i < 10; i++ {
		allowed, err := limiter.Allow(context.Background(), "tenant-1")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	assert.NoError(t, limiter.Close())
}
