package repository

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/geo-checkin-api/pkg/errors"
)

func newCacheRepo(t *testing.T) (*CacheRepository, *miniredis.Miniredis) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheRepository(client, nil), server
}

func TestCacheRoundTripAndExpiry(t *testing.T) {
	repo, server := newCacheRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "roster:s1", map[string]int{"students": 3}, time.Minute))

	var got map[string]int
	require.NoError(t, repo.Get(ctx, "roster:s1", &got))
	assert.Equal(t, 3, got["students"])

	server.FastForward(2 * time.Minute)
	assert.ErrorIs(t, repo.Get(ctx, "roster:s1", &got), appErrors.ErrCacheMiss)
}

func TestCacheDeleteAndPattern(t *testing.T) {
	repo, server := newCacheRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "roster:s1", 1, 0))
	require.NoError(t, repo.Set(ctx, "roster:s2", 2, 0))
	require.NoError(t, repo.Set(ctx, "other", 3, 0))

	require.NoError(t, repo.Delete(ctx, "roster:s1"))
	assert.False(t, server.Exists("roster:s1"))

	require.NoError(t, repo.DeleteByPattern(ctx, "roster:*"))
	assert.False(t, server.Exists("roster:s2"))
	assert.True(t, server.Exists("other"))
}

func TestCacheUndecodableEntryIsMiss(t *testing.T) {
	repo, server := newCacheRepo(t)
	require.NoError(t, server.Set("roster:bad", "{not json"))

	var got map[string]int
	err := repo.Get(context.Background(), "roster:bad", &got)
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
	assert.False(t, server.Exists("roster:bad"))
}

func TestCacheWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	var got int
	assert.ErrorIs(t, repo.Get(ctx, "k", &got), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "k", 1, time.Minute))
	assert.NoError(t, repo.Delete(ctx, "k"))
	assert.NoError(t, repo.Ping(ctx))
}
