package scoring_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/muzz-matching/internal/cache"
	"github.com/oggyb/muzz-matching/internal/config"
	"github.com/oggyb/muzz-matching/internal/logger"
	"github.com/oggyb/muzz-matching/internal/model"
	"github.com/oggyb/muzz-matching/internal/repository"
	"github.com/oggyb/muzz-matching/internal/service/scoring"
)

type fakeRecommender struct {
	recs  []model.Recommendation
	calls int
}

func (f *fakeRecommender) GetRecommendations(context.Context, string, int, []string) []model.Recommendation {
	f.calls++
	return f.recs
}

type fixture struct {
	engine *scoring.Engine
	cache  *cache.RedisCache
	mr     *miniredis.Miniredis
	swipes *repository.SwipeRepository
	recs   *fakeRecommender
	cfg    *config.Config
}

func setup(t *testing.T) *fixture {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := config.Defaults()
	cfg.Redis.Addr = mr.Addr()
	c := cache.NewRedisCache(cfg)
	swipes := repository.NewSwipeRepository(c)
	recs := &fakeRecommender{}
	engine := scoring.NewEngine(c, scoring.NewSignals(c, swipes), recs, cfg.Matching, logger.Nop())
	return &fixture{engine: engine, cache: c, mr: mr, swipes: swipes, recs: recs, cfg: cfg}
}

func (f *fixture) addSwipes(t *testing.T, userID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := f.mr.SAdd(cache.KeyUserSwipes(userID), fmt.Sprintf("seen-%d", i))
		require.NoError(t, err)
	}
}

func TestScoreColdStartPopularity(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.addSwipes(t, "viewer", 5)
	require.NoError(t, f.mr.Set(cache.KeyPopularity("cand"), "40"))

	b := f.engine.Score(ctx, "viewer", "cand", nil, nil)
	assert.Equal(t, 6.0, b.BehaviorScore)
	assert.Zero(t, f.recs.calls, "cold start must not consult the model")
}

func TestScoreDistanceAndUserType(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// ~15 km apart along the same latitude
	require.NoError(t, f.cache.GeoAdd(ctx, cache.GeoUsersKey, "viewer", 13.4050, 52.5200))
	require.NoError(t, f.cache.GeoAdd(ctx, cache.GeoUsersKey, "cand", 13.6262, 52.5200))
	require.NoError(t, f.mr.Set(cache.KeyUserType("viewer"), model.UserTypeSugarDaddy))
	require.NoError(t, f.mr.Set(cache.KeyUserType("cand"), model.UserTypeSugarBaby))
	require.NoError(t, f.mr.Set(cache.KeyUserAge("viewer"), "45"))
	require.NoError(t, f.mr.Set(cache.KeyUserAge("cand"), "40"))
	require.NoError(t, f.mr.Set(cache.KeyPrefAgeMin("viewer"), "21"))
	require.NoError(t, f.mr.Set(cache.KeyPrefAgeMax("viewer"), "35"))

	b := f.engine.Score(ctx, "viewer", "cand", []model.Tag{{ID: "t1"}}, []model.Tag{{ID: "t1"}})
	assert.Equal(t, 30.0, b.UserTypeMatch)
	assert.Equal(t, 17.0, b.DistanceScore)
	assert.Equal(t, 6.0, b.AgeScore)
	assert.Equal(t, 20.0, b.TagScore)
	assert.Equal(t, 0.0, b.BehaviorScore)
	assert.Equal(t, 73.0, scoring.Total(b))
}

func TestScoreHotStartUsesModel(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.addSwipes(t, "viewer", 60)
	require.NoError(t, f.mr.Set(cache.KeyPopularity("cand"), "100"))
	f.recs.recs = []model.Recommendation{{UserID: "other", Score: 0.1}, {UserID: "cand", Score: 1}}

	b := f.engine.Score(ctx, "viewer", "cand", nil, nil)
	assert.Equal(t, 12.75, b.BehaviorScore)

	f.recs.recs = nil
	f.mr.Del(cache.KeyCompat("viewer", "cand"))
	b = f.engine.Score(ctx, "viewer", "cand", nil, nil)
	assert.Equal(t, 15.0, b.BehaviorScore, "unavailable model falls back to popularity")
}

func TestScoreIsCachedUntilInvalidated(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	first := f.engine.Score(ctx, "viewer", "cand", nil, nil)
	assert.True(t, f.mr.Exists(cache.KeyCompat("viewer", "cand")))
	ttl := f.mr.TTL(cache.KeyCompat("viewer", "cand"))
	assert.Equal(t, f.cfg.Matching.CompatTTL, ttl)

	require.NoError(t, f.mr.Set(cache.KeyUserType("viewer"), model.UserTypeSugarDaddy))
	require.NoError(t, f.mr.Set(cache.KeyUserType("cand"), model.UserTypeSugarBaby))
	assert.Equal(t, first, f.engine.Score(ctx, "viewer", "cand", nil, nil))

	f.engine.Score(ctx, "other", "viewer", nil, nil)
	f.engine.Score(ctx, "other", "cand", nil, nil)

	n, err := f.engine.InvalidateScores(ctx, "viewer")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, f.mr.Exists(cache.KeyCompat("other", "cand")))

	assert.Equal(t, 30.0, f.engine.Score(ctx, "viewer", "cand", nil, nil).UserTypeMatch)
}

func TestCorruptCacheIsAMiss(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.mr.Set(cache.KeyCompat("viewer", "cand"), "{not json"))

	b := f.engine.Score(context.Background(), "viewer", "cand", nil, nil)
	assert.Equal(t, 15.0, b.UserTypeMatch)
}

func TestScoreFailsSoftWhenStoreIsDown(t *testing.T) {
	f := setup(t)
	f.mr.Close()

	b := f.engine.Score(context.Background(), "viewer", "cand", nil, nil)
	assert.Equal(t, model.Breakdown{
		UserTypeMatch: 15,
		DistanceScore: 10,
		AgeScore:      7.5,
		TagScore:      10,
		BehaviorScore: 7.5,
	}, b)
}

func TestComputePopularity(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, f.swipes.AddLike(ctx, "star", "a", now.Add(-time.Hour)))
	require.NoError(t, f.swipes.AddLike(ctx, "star", "b", now.Add(-2*time.Hour)))
	require.NoError(t, f.swipes.AddLike(ctx, "star", "old", now.Add(-8*24*time.Hour)))
	_, err := f.swipes.Create(ctx, model.SwipeRecord{SwiperID: "b", SwipedID: "star", Action: model.ActionSuperLike, CreatedAt: now})
	require.NoError(t, err)

	score, err := f.engine.ComputePopularity(ctx, "star")
	require.NoError(t, err)
	assert.Equal(t, 2.0, score)
	assert.Equal(t, 2.0, f.engine.PopularityScore(ctx, "star"))

	weighted := f.cfg.Matching
	weighted.SuperLikePopularityWeight = 3
	engine := scoring.NewEngine(f.cache, scoring.NewSignals(f.cache, f.swipes), nil, weighted, logger.Nop())
	score, err = engine.ComputePopularity(ctx, "star")
	require.NoError(t, err)
	assert.Equal(t, 4.0, score)
	assert.Equal(t, weighted.PopularityTTL, f.mr.TTL(cache.KeyPopularity("star")))
}

func TestComputePopularityCapped(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	for i := 0; i < 120; i++ {
		require.NoError(t, f.swipes.AddLike(ctx, "star", fmt.Sprintf("fan-%d", i), time.Now()))
	}
	score, err := f.engine.ComputePopularity(ctx, "star")
	require.NoError(t, err)
	assert.Equal(t, float64(scoring.MaxPopularity), score)
}
