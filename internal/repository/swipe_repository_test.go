package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/muzz-matching/internal/model"
	"github.com/oggyb/muzz-matching/internal/repository"
)

func TestSwipeCreateIsOncePerPair(t *testing.T) {
	ctx := context.Background()
	c, _ := setupRedis(t)
	repo := repository.NewSwipeRepository(c)

	rec := model.SwipeRecord{SwiperID: "a", SwipedID: "b", Action: model.ActionLike, CreatedAt: time.Now()}
	created, err := repo.Create(ctx, rec)
	require.NoError(t, err)
	assert.True(t, created)

	rec.Action = model.ActionPass
	created, err = repo.Create(ctx, rec)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := repo.Get(ctx, "a", "b")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.ActionLike, got.Action)

	require.NoError(t, repo.AddToSwipeSet(ctx, "a", "b"))
	require.NoError(t, repo.Delete(ctx, "a", "b"))
	got, err = repo.Get(ctx, "a", "b")
	require.NoError(t, err)
	assert.Nil(t, got)
	n, err := repo.SwipeCount(ctx, "a")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLikersNewestFirst(t *testing.T) {
	ctx := context.Background()
	c, _ := setupRedis(t)
	repo := repository.NewSwipeRepository(c)
	base := time.Now().Add(-time.Hour)

	for i, id := range []string{"l1", "l2", "l3"} {
		require.NoError(t, repo.AddLike(ctx, "me", id, base.Add(time.Duration(i)*time.Minute)))
	}

	likers, err := repo.Likers(ctx, "me", 0, 2)
	require.NoError(t, err)
	require.Len(t, likers, 2)
	assert.Equal(t, "l3", likers[0].UserID)
	assert.Equal(t, "l2", likers[1].UserID)

	likers, err = repo.Likers(ctx, "me", 2, 2)
	require.NoError(t, err)
	require.Len(t, likers, 1)
	assert.Equal(t, "l1", likers[0].UserID)

	ok, err := repo.HasLike(ctx, "me", "l2")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.HasLike(ctx, "me", "nobody")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := repo.CountLikesSince(ctx, "me", base.Add(90*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestGetManyAndBlocked(t *testing.T) {
	ctx := context.Background()
	c, mr := setupRedis(t)
	repo := repository.NewSwipeRepository(c)

	_, err := repo.Create(ctx, model.SwipeRecord{SwiperID: "x", SwipedID: "me", Action: model.ActionSuperLike})
	require.NoError(t, err)

	recs, err := repo.GetMany(ctx, []string{"x", "y"}, "me")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, model.ActionSuperLike, recs["x"].Action)

	_, _ = mr.SAdd("user:blocks:me", "b1")
	_, _ = mr.SAdd("user:blocked-by:me", "b2")
	blocked, err := repo.Blocked(ctx, "me")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b1", "b2"}, blocked)
}
