package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/muzz-matching/internal/cache"
	"github.com/oggyb/muzz-matching/internal/model"
	"github.com/oggyb/muzz-matching/internal/repository"
)

func TestCreateIfAbsentIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c, _ := setupRedis(t)
	repo := repository.NewMatchRepository(c)

	first, created, err := repo.CreateIfAbsent(ctx, "a", "b", time.Now())
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := repo.CreateIfAbsent(ctx, "b", "a", time.Now())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestCreateIfAbsentConcurrentOppositeDirections(t *testing.T) {
	ctx := context.Background()
	c, _ := setupRedis(t)
	repo := repository.NewMatchRepository(c)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ids     = map[string]struct{}{}
		creates int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := "a", "b"
			if i%2 == 1 {
				a, b = b, a
			}
			rec, created, err := repo.CreateIfAbsent(ctx, a, b, time.Now())
			require.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			ids[rec.ID] = struct{}{}
			if created {
				creates++
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, ids, 1)
	assert.Equal(t, 1, creates)
}

func TestTerminalMatchIsReplacedNotReactivated(t *testing.T) {
	ctx := context.Background()
	c, _ := setupRedis(t)
	repo := repository.NewMatchRepository(c)

	old, _, err := repo.CreateIfAbsent(ctx, "a", "b", time.Now())
	require.NoError(t, err)
	ended, err := repo.Deactivate(ctx, "a", "b", old.ID, model.MatchUnmatched)
	require.NoError(t, err)
	require.NotNil(t, ended)

	fresh, created, err := repo.CreateIfAbsent(ctx, "a", "b", time.Now())
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, old.ID, fresh.ID)
	assert.Equal(t, model.MatchActive, fresh.Status)

	got, err := repo.FindByID(ctx, old.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFindByIDFallsBackToScan(t *testing.T) {
	ctx := context.Background()
	c, mr := setupRedis(t)
	repo := repository.NewMatchRepository(c)

	rec, _, err := repo.CreateIfAbsent(ctx, "a", "b", time.Now())
	require.NoError(t, err)
	mr.Del(cache.KeyMatchID(rec.ID))

	got, err := repo.FindByID(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.ID, got.ID)
}

func TestIndexAndGetMany(t *testing.T) {
	ctx := context.Background()
	c, _ := setupRedis(t)
	repo := repository.NewMatchRepository(c)

	m1, _, err := repo.CreateIfAbsent(ctx, "me", "x", time.Now())
	require.NoError(t, err)
	m2, _, err := repo.CreateIfAbsent(ctx, "y", "me", time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.Index(ctx, m1))
	require.NoError(t, repo.Index(ctx, m2))

	ids, err := repo.IDs(ctx, "me")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{m1.ID, m2.ID}, ids)

	recs, err := repo.GetMany(ctx, append(ids, "ghost"))
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	require.NoError(t, repo.Unindex(ctx, m1))
	ok, err := repo.IsIndexed(ctx, "x", m1.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeactivateOnlyOnce(t *testing.T) {
	ctx := context.Background()
	c, _ := setupRedis(t)
	repo := repository.NewMatchRepository(c)

	rec, _, err := repo.CreateIfAbsent(ctx, "a", "b", time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.Index(ctx, rec))

	got, err := repo.Deactivate(ctx, "a", "b", "someone-else", model.MatchUnmatched)
	require.NoError(t, err)
	assert.Nil(t, got, "id mismatch must not touch the record")

	got, err = repo.Deactivate(ctx, "b", "a", rec.ID, model.MatchUnmatched)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.MatchUnmatched, got.Status)

	ids, err := repo.IDs(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, ids)

	got, err = repo.Deactivate(ctx, "a", "b", "", model.MatchUnmatched)
	require.NoError(t, err)
	assert.Nil(t, got)
}
