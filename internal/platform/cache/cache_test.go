package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, "arcbooks_test"), mr
}

func TestRedisCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_, err := c.Get(ctx, "tenant:42")
	require.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Set(ctx, "tenant:42", "tenant_acme", time.Minute))

	val, err := c.Get(ctx, "tenant:42")
	require.NoError(t, err)
	require.Equal(t, "tenant_acme", val)

	require.NoError(t, c.Invalidate(ctx, "tenant:42"))
	_, err = c.Get(ctx, "tenant:42")
	require.ErrorIs(t, err, ErrMiss)
}

func TestRedisCacheTTLExpiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "tenant:7", "tenant_beta", time.Second))
	mr.FastForward(2 * time.Second)

	_, err := c.Get(ctx, "tenant:7")
	require.ErrorIs(t, err, ErrMiss)
}

func TestNoopCacheAlwaysMisses(t *testing.T) {
	ctx := context.Background()
	var c Cache = Noop{}
	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	_, err := c.Get(ctx, "k")
	require.ErrorIs(t, err, ErrMiss)
}
