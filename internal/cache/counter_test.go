package cache_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/muzz-matching/internal/cache"
)

func TestWindowCounterExpiresAfterWindow(t *testing.T) {
	ctx := context.Background()
	c, mr := setupCache(t)
	day := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	w := cache.NewWindowCounter(c, cache.SwipeCounterPrefix, 24*time.Hour).WithClock(func() time.Time { return day })

	n, err := w.Current(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, n)

	for i := 1; i <= 3; i++ {
		n, err = w.Increment(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(i), n)
	}

	key := "swipe_counter:u1:2026-03-01"
	assert.True(t, mr.Exists(key))
	assert.Equal(t, 24*time.Hour, mr.TTL(key))

	mr.FastForward(24 * time.Hour)
	n, err = w.Current(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWindowCounterExpirySetOnlyOnFirstIncrement(t *testing.T) {
	ctx := context.Background()
	c, mr := setupCache(t)
	day := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	w := cache.NewWindowCounter(c, cache.UndoCounterPrefix, 24*time.Hour).WithClock(func() time.Time { return day })

	_, err := w.Increment(ctx, "u1")
	require.NoError(t, err)
	mr.FastForward(time.Hour)
	_, err = w.Increment(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, 23*time.Hour, mr.TTL("undo_counter:u1:2026-03-01"))
}

func TestWindowCounterReserveStopsAtLimit(t *testing.T) {
	ctx := context.Background()
	c, mr := setupCache(t)
	day := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	w := cache.NewWindowCounter(c, cache.SwipeCounterPrefix, 24*time.Hour).WithClock(func() time.Time { return day })

	for i := 1; i <= 2; i++ {
		n, ok, err := w.Reserve(ctx, "u1", 2)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(i), n)
	}
	_, ok, err := w.Reserve(ctx, "u1", 2)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 24*time.Hour, mr.TTL("swipe_counter:u1:2026-03-01"))

	require.NoError(t, w.Release(ctx, "u1"))
	n, ok, err := w.Reserve(ctx, "u1", 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(2), n)
}

func TestWindowCounterReleaseNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	c, _ := setupCache(t)
	w := cache.NewWindowCounter(c, cache.SwipeCounterPrefix, 24*time.Hour)

	require.NoError(t, w.Release(ctx, "u1"))
	n, err := w.Current(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWindowCounterReserveUnderContention(t *testing.T) {
	ctx := context.Background()
	c, _ := setupCache(t)
	w := cache.NewWindowCounter(c, cache.SwipeCounterPrefix, 24*time.Hour)

	var (
		wg       sync.WaitGroup
		accepted atomic.Int64
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, err := w.Reserve(ctx, "u1", 5); err == nil && ok {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(5), accepted.Load())
	n, err := w.Current(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}
