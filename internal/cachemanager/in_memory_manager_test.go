package cachemanager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryCacheManager_SetAndGet(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCacheManager[string, string]("test", DefaultExpiration, DefaultCleanupInterval)

	_, found := c.Get(ctx, "missing")
	assert.False(t, found)

	c.Set(ctx, "key", "value", time.Minute)
	got, found := c.Get(ctx, "key")
	require.True(t, found)
	assert.Equal(t, "value", got)
}

func TestInMemoryCacheManager_Expiration(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCacheManager[string, int]("test", DefaultExpiration, DefaultCleanupInterval)

	c.Set(ctx, "key", 42, 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	_, found := c.Get(ctx, "key")
	assert.False(t, found)
}

func TestInMemoryCacheManager_DeleteAndFlush(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCacheManager[string, string]("test", DefaultExpiration, DefaultCleanupInterval)

	c.Set(ctx, "a", "1", time.Minute)
	c.Set(ctx, "b", "2", time.Minute)

	require.NoError(t, c.Delete(ctx, "a"))
	_, found := c.Get(ctx, "a")
	assert.False(t, found)

	require.NoError(t, c.Flush(ctx))
	_, found = c.Get(ctx, "b")
	assert.False(t, found)
}

func TestReadThroughCache_LoadsOnMissOnly(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCacheManager[string, string]("test", DefaultExpiration, DefaultCleanupInterval)

	calls := 0
	rt := NewReadThroughCache[string, string, string](c, func(ctx context.Context, input string) (string, error) {
		calls++
		return "loaded:" + input, nil
	}, false)

	got, err := rt.Get(ctx, "key", "input", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "loaded:input", got)

	got, err = rt.Get(ctx, "key", "input", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "loaded:input", got)
	assert.Equal(t, 1, calls, "second get should be served from cache")
}

func TestReadThroughCache_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCacheManager[string, string]("test", DefaultExpiration, DefaultCleanupInterval)

	calls := 0
	rt := NewReadThroughCache[string, string, string](c, func(ctx context.Context, input string) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("probe failed")
		}
		return "ok", nil
	}, false)

	_, err := rt.Get(ctx, "key", "input", time.Minute)
	require.Error(t, err)

	got, err := rt.Get(ctx, "key", "input", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 2, calls)
}

func TestReadThroughCache_SkipCache(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCacheManager[string, string]("test", DefaultExpiration, DefaultCleanupInterval)

	calls := 0
	rt := NewReadThroughCache[string, string, string](c, func(ctx context.Context, input string) (string, error) {
		calls++
		return "v", nil
	}, true)

	_, _ = rt.Get(ctx, "key", "input", time.Minute)
	_, _ = rt.Get(ctx, "key", "input", time.Minute)
	assert.Equal(t, 2, calls)
}
