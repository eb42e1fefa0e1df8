// Package cards decorates profile cards with the viewer-specific matching
// signals shown in discovery, likes and undo responses.
package cards

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/oggyb/muzz-matching/internal/model"
	"github.com/oggyb/muzz-matching/internal/service/scoring"
)

const scoreConcurrency = 8

// Enhancer attaches age, tags, boost status, common tag count and
// compatibility score to cards.
type Enhancer struct {
	engine  *scoring.Engine
	signals *scoring.Signals
	log     *slog.Logger
}

func NewEnhancer(engine *scoring.Engine, log *slog.Logger) *Enhancer {
	return &Enhancer{engine: engine, signals: engine.Signals(), log: log}
}

// Enhance decorates cards for viewerID, keeping their order. A distance in
// distances replaces the card's own. Signal failures degrade to empty values.
//
// Example:
//
//	enh.Enhance(ctx, "viewer-1", cards, map[string]float64{"user-2": 3.4})
func (e *Enhancer) Enhance(ctx context.Context, viewerID string, cards []model.Card, distances map[string]float64) []model.EnhancedCard {
	out := make([]model.EnhancedCard, len(cards))
	if len(cards) == 0 {
		return out
	}
	ids := make([]string, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
	}

	boosted, err := e.signals.Boosted(ctx, ids)
	if err != nil {
		e.log.Warn("boost lookup failed", "viewer", viewerID, "err", err)
	}
	viewerTags, err := e.signals.Tags(ctx, viewerID)
	if err != nil {
		e.log.Warn("viewer tags unavailable", "viewer", viewerID, "err", err)
	}
	tags, err := e.signals.TagsOf(ctx, ids)
	if err != nil {
		e.log.Warn("candidate tags unavailable", "viewer", viewerID, "err", err)
	}
	ages, err := e.signals.Ages(ctx, ids...)
	if err != nil {
		e.log.Warn("candidate ages unavailable", "viewer", viewerID, "err", err)
	}

	var g errgroup.Group
	g.SetLimit(scoreConcurrency)
	for i, c := range cards {
		if d, ok := distances[c.ID]; ok {
			c.Distance = &d
		}
		candidateTags := tags[c.ID]
		if candidateTags == nil {
			candidateTags = []model.Tag{}
		}
		ec := model.EnhancedCard{
			Card:           c,
			CommonTagCount: scoring.CommonTags(viewerTags, candidateTags),
			IsBoosted:      boosted[c.ID],
			Tags:           candidateTags,
		}
		if a, ok := ages[c.ID]; ok {
			ec.Age = &a
		}
		out[i] = ec

		g.Go(func() error {
			b := e.engine.Score(ctx, viewerID, c.ID, viewerTags, candidateTags)
			out[i].CompatibilityScore = scoring.Total(b)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// EnhanceOne decorates a single card.
func (e *Enhancer) EnhanceOne(ctx context.Context, viewerID string, card model.Card) model.EnhancedCard {
	return e.Enhance(ctx, viewerID, []model.Card{card}, nil)[0]
}
