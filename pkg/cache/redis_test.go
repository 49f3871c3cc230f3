package cache_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/forgeioc/pkg/cache"
	"github.com/dmitrymomot/forgeioc/pkg/redis"
)

func TestRedis(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}

	ctx := context.Background()
	client, err := redis.Open(ctx, redis.Config{URL: url, RetryAttempts: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	c := cache.NewRedis[map[string]int](client, nil, cache.WithPrefix("forgeioc-test"))

	require.NoError(t, c.Set(ctx, "k", map[string]int{"a": 1}, time.Minute))
	val, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, map[string]int{"a": 1}, val)

	require.NoError(t, c.Touch(ctx, "k", time.Hour))
	ttl, err := client.TTL(ctx, "forgeioc-test:k").Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Minute)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	require.ErrorIs(t, err, cache.ErrNotFound)
	require.ErrorIs(t, c.Touch(ctx, "k", time.Minute), cache.ErrNotFound)
}
