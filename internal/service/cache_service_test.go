package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/geo-checkin-api/internal/repository"
)

func newTestCache(t *testing.T, metrics *MetricsService) (*CacheService, *miniredis.Miniredis) {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheService(repository.NewCacheRepository(client, zap.NewNop()), metrics, time.Minute, zap.NewNop(), true), server
}

func TestCacheServiceHitAndMiss(t *testing.T) {
	metrics := NewMetricsService()
	cache, _ := newTestCache(t, metrics)
	ctx := context.Background()

	var got map[string]string
	hit, err := cache.Get(ctx, "roster:s1", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, cache.Set(ctx, "roster:s1", map[string]string{"name": "Algebra"}, 0))
	hit, err = cache.Get(ctx, "roster:s1", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "Algebra", got["name"])

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheLookups.WithLabelValues("miss")))
}

func TestCacheServiceDefaultTTL(t *testing.T) {
	cache, server := newTestCache(t, nil)
	require.NoError(t, cache.Set(context.Background(), "roster:s1", 1, 0))
	assert.Equal(t, time.Minute, server.TTL("roster:s1"))
}

func TestCacheServiceInvalidatePattern(t *testing.T) {
	cache, server := newTestCache(t, nil)
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "roster:s1", 1, 0))
	require.NoError(t, cache.Set(ctx, "roster:s2", 2, 0))
	require.NoError(t, cache.Set(ctx, "other", 3, 0))

	require.NoError(t, cache.Invalidate(ctx, "roster:*"))
	assert.False(t, server.Exists("roster:s1"))
	assert.False(t, server.Exists("roster:s2"))
	assert.True(t, server.Exists("other"))

	require.NoError(t, cache.Delete(ctx, "other"))
	assert.False(t, server.Exists("other"))
}

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	var nilCache *CacheService
	hit, err := nilCache.Get(context.Background(), "k", &struct{}{})
	assert.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, nilCache.Set(context.Background(), "k", 1, 0))
	assert.NoError(t, nilCache.Invalidate(context.Background(), "*"))

	disabled := NewCacheService(nil, nil, 0, nil, true)
	assert.False(t, disabled.Enabled())
}
