// Package scoring computes the five-factor compatibility score between a
// viewer and a candidate and maintains the per-user popularity signal.
package scoring

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oggyb/muzz-matching/internal/cache"
	"github.com/oggyb/muzz-matching/internal/config"
	"github.com/oggyb/muzz-matching/internal/metrics"
	"github.com/oggyb/muzz-matching/internal/model"
)

// Recommender is the external recommendation model. A nil result means the
// model is unavailable.
type Recommender interface {
	GetRecommendations(ctx context.Context, userID string, limit int, excludeIDs []string) []model.Recommendation
}

// Engine scores (viewer, candidate) pairs. Score never fails: each factor that
// cannot be computed is replaced by half of its weight.
type Engine struct {
	cache   *cache.RedisCache
	signals *Signals
	recs    Recommender
	cfg     config.MatchingConfig
	log     *slog.Logger
	now     func() time.Time
}

func NewEngine(c *cache.RedisCache, signals *Signals, recs Recommender, cfg config.MatchingConfig, log *slog.Logger) *Engine {
	return &Engine{
		cache:   c,
		signals: signals,
		recs:    recs,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

// WithClock overrides the clock used for the popularity window.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Signals exposes the signal reader shared with card enhancement.
func (e *Engine) Signals() *Signals { return e.signals }

// factor is one weighted component of the breakdown. A failed score is
// replaced by half the weight.
type factor struct {
	name   string
	weight float64
	field  func(*model.Breakdown) *float64
	score  func(ctx context.Context) (float64, error)
}

func (e *Engine) factors(viewerID, candidateID string, viewerTags, candidateTags []model.Tag) []factor {
	return []factor{
		{
			name:   "user_type",
			weight: WeightUserType,
			field:  func(b *model.Breakdown) *float64 { return &b.UserTypeMatch },
			score: func(ctx context.Context) (float64, error) {
				vt, ct, err := e.signals.UserTypes(ctx, viewerID, candidateID)
				if err != nil {
					return 0, err
				}
				return userTypeScore(vt, ct), nil
			},
		},
		{
			name:   "distance",
			weight: WeightDistance,
			field:  func(b *model.Breakdown) *float64 { return &b.DistanceScore },
			score: func(ctx context.Context) (float64, error) {
				km, ok, err := e.signals.Distance(ctx, viewerID, candidateID)
				if err != nil {
					return 0, err
				}
				return distanceScore(km, ok), nil
			},
		},
		{
			name:   "age",
			weight: WeightAge,
			field:  func(b *model.Breakdown) *float64 { return &b.AgeScore },
			score: func(ctx context.Context) (float64, error) {
				ages, err := e.signals.Ages(ctx, viewerID, candidateID)
				if err != nil {
					return 0, err
				}
				lo, hi, err := e.signals.AgePreference(ctx, viewerID)
				if err != nil {
					return 0, err
				}
				return ageScore(agePtr(ages, viewerID), agePtr(ages, candidateID), lo, hi), nil
			},
		},
		{
			name:   "tags",
			weight: WeightTags,
			field:  func(b *model.Breakdown) *float64 { return &b.TagScore },
			score: func(context.Context) (float64, error) {
				return tagScore(viewerTags, candidateTags), nil
			},
		},
		{
			name:   "behavior",
			weight: WeightBehavior,
			field:  func(b *model.Breakdown) *float64 { return &b.BehaviorScore },
			score: func(ctx context.Context) (float64, error) {
				return e.behavior(ctx, viewerID, candidateID)
			},
		},
	}
}

// Score returns the breakdown for (viewerID, candidateID), from cache when a
// fresh one exists. Tags are taken as given; an empty list scores neutral.
func (e *Engine) Score(ctx context.Context, viewerID, candidateID string, viewerTags, candidateTags []model.Tag) model.Breakdown {
	key := cache.KeyCompat(viewerID, candidateID)

	var b model.Breakdown
	if ok, err := e.cache.GetJSON(ctx, key, &b); err == nil && ok {
		metrics.CompatCacheLookups.WithLabelValues("hit").Inc()
		return b
	}
	metrics.CompatCacheLookups.WithLabelValues("miss").Inc()

	var g errgroup.Group
	for _, f := range e.factors(viewerID, candidateID, viewerTags, candidateTags) {
		dst := f.field(&b)
		g.Go(func() error {
			*dst = round2(fetchOr(ctx, e.log, f.name, f.weight*0.5, f.score))
			return nil
		})
	}
	_ = g.Wait()

	if err := e.cache.SetJSON(ctx, key, b, e.cfg.CompatTTL); err != nil {
		e.log.Warn("cache compatibility failed", "viewer", viewerID, "candidate", candidateID, "err", err)
	}
	e.log.Debug("compatibility calculated", "viewer", viewerID, "candidate", candidateID, "total", Total(b))
	return b
}

func (e *Engine) behavior(ctx context.Context, viewerID, candidateID string) (float64, error) {
	count := fetchOr(ctx, e.log, "swipe_count", int64(0), func(ctx context.Context) (int64, error) {
		return e.signals.SwipeCount(ctx, viewerID)
	})
	popularity, err := e.signals.Popularity(ctx, candidateID)
	if err != nil {
		return 0, err
	}

	var ml *float64
	if count >= ColdStartThreshold {
		ml = e.mlScore(ctx, viewerID, candidateID)
	}
	return behaviorScore(count, popularity, ml), nil
}

// mlScore is the candidate's score in the viewer's recommendation list, or
// nil when the model is unavailable or did not rank the candidate.
func (e *Engine) mlScore(ctx context.Context, viewerID, candidateID string) *float64 {
	if e.recs == nil {
		return nil
	}
	recs := e.recs.GetRecommendations(ctx, viewerID, e.cfg.RecommendationLimit, nil)
	if recs == nil {
		metrics.SignalFallbacks.WithLabelValues("ml").Inc()
		return nil
	}
	for _, r := range recs {
		if r.UserID == candidateID {
			s := r.Score
			return &s
		}
	}
	return nil
}

// InvalidateScores drops every cached breakdown where userID is either side.
func (e *Engine) InvalidateScores(ctx context.Context, userID string) (int, error) {
	forward, reverse := cache.CompatPatterns(userID)
	n, err := e.cache.DeletePattern(ctx, forward)
	if err != nil {
		return n, err
	}
	m, err := e.cache.DeletePattern(ctx, reverse)
	n += m
	if err != nil {
		return n, err
	}
	e.log.Info("invalidated compatibility scores", "user", userID, "count", n)
	return n, nil
}

func agePtr(ages map[string]int, id string) *int {
	if a, ok := ages[id]; ok {
		return &a
	}
	return nil
}
