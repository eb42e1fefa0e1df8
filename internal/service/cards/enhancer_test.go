package cards_test

import (
	"context"
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
	"github.com/oggyb/muzz-matching/internal/service/cards"
	"github.com/oggyb/muzz-matching/internal/service/scoring"
)

func setup(t *testing.T) (*cards.Enhancer, *cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := config.Defaults()
	cfg.Redis.Addr = mr.Addr()
	c := cache.NewRedisCache(cfg)
	engine := scoring.NewEngine(c, scoring.NewSignals(c, repository.NewSwipeRepository(c)), nil, cfg.Matching, logger.Nop())
	return cards.NewEnhancer(engine, logger.Nop()), c, mr
}

func TestEnhanceAttachesSignals(t *testing.T) {
	enh, c, mr := setup(t)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, cache.KeyUserTags("viewer"), []model.Tag{{ID: "golf"}, {ID: "wine"}}, 0))
	require.NoError(t, c.SetJSON(ctx, cache.KeyUserTags("b"), []model.Tag{{ID: "wine"}, {ID: "art"}}, 0))
	require.NoError(t, mr.Set(cache.KeyUserAge("b"), "27"))
	require.NoError(t, c.SetJSON(ctx, cache.KeyBoost("a"), model.BoostRecord{UserID: "a"}, time.Minute))

	in := []model.Card{{ID: "a", DisplayName: "A"}, {ID: "b", DisplayName: "B"}}
	out := enh.Enhance(ctx, "viewer", in, map[string]float64{"b": 4.2})
	require.Len(t, out, 2)

	assert.Equal(t, "a", out[0].ID)
	assert.True(t, out[0].IsBoosted)
	assert.Nil(t, out[0].Age)
	assert.Empty(t, out[0].Tags)
	assert.NotNil(t, out[0].Tags)
	assert.Nil(t, out[0].Distance)

	assert.Equal(t, "b", out[1].ID)
	assert.False(t, out[1].IsBoosted)
	require.NotNil(t, out[1].Age)
	assert.Equal(t, 27, *out[1].Age)
	assert.Equal(t, 1, out[1].CommonTagCount)
	require.NotNil(t, out[1].Distance)
	assert.Equal(t, 4.2, *out[1].Distance)

	// one shared tag out of two: 20 × min(0.5×1.5, 1) = 15 on top of neutral factors
	assert.Greater(t, out[1].CompatibilityScore, out[0].CompatibilityScore)
}

func TestEnhanceEmpty(t *testing.T) {
	enh, _, _ := setup(t)
	assert.Empty(t, enh.Enhance(context.Background(), "viewer", nil, nil))
}

func TestEnhanceOneSurvivesStoreOutage(t *testing.T) {
	enh, _, mr := setup(t)
	mr.Close()

	ec := enh.EnhanceOne(context.Background(), "viewer", model.Card{ID: "x"})
	assert.Equal(t, "x", ec.ID)
	assert.Equal(t, 50.0, ec.CompatibilityScore)
}
