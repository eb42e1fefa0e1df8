package scoring

import (
	"context"
	"math"
	"strconv"

	"github.com/oggyb/muzz-matching/internal/cache"
	"github.com/oggyb/muzz-matching/internal/model"
)

// MaxPopularity caps the popularity score.
const MaxPopularity = 100

// PopularityScore returns the cached popularity of userID, 0 when unknown.
func (e *Engine) PopularityScore(ctx context.Context, userID string) float64 {
	return fetchOr(ctx, e.log, "popularity", 0.0, func(ctx context.Context) (float64, error) {
		return e.signals.Popularity(ctx, userID)
	})
}

// ComputePopularity recounts the likes userID received inside the popularity
// window, caps the result at MaxPopularity and caches it.
//
// Behavior:
//   - With SuperLikePopularityWeight <= 1 every like counts once (sorted-set count).
//   - With a larger weight the likers' swipe records are fetched and each
//     super_like counts that many times.
func (e *Engine) ComputePopularity(ctx context.Context, userID string) (float64, error) {
	since := e.now().Add(-e.cfg.PopularityWindow)

	var count float64
	if e.cfg.SuperLikePopularityWeight <= 1 {
		n, err := e.signals.swipes.CountLikesSince(ctx, userID, since)
		if err != nil {
			return 0, err
		}
		count = float64(n)
	} else {
		likers, err := e.signals.swipes.LikersSince(ctx, userID, since)
		if err != nil {
			return 0, err
		}
		recs, err := e.signals.swipes.GetMany(ctx, likers, userID)
		if err != nil {
			return 0, err
		}
		for _, id := range likers {
			if rec, ok := recs[id]; ok && rec.Action == model.ActionSuperLike {
				count += float64(e.cfg.SuperLikePopularityWeight)
				continue
			}
			count++
		}
	}

	score := math.Min(count, MaxPopularity)
	return score, e.cache.Set(ctx, cache.KeyPopularity(userID), strconv.FormatFloat(score, 'f', -1, 64), e.cfg.PopularityTTL)
}
