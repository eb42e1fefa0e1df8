// Package discovery builds the ranked, paginated card stack a viewer swipes through.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/oggyb/muzz-matching/internal/app"
	"github.com/oggyb/muzz-matching/internal/cache"
	"github.com/oggyb/muzz-matching/internal/clients"
	svcErr "github.com/oggyb/muzz-matching/internal/errors"
	"github.com/oggyb/muzz-matching/internal/metrics"
	"github.com/oggyb/muzz-matching/internal/model"
	"github.com/oggyb/muzz-matching/internal/repository"
	"github.com/oggyb/muzz-matching/internal/service/cards"
	"github.com/oggyb/muzz-matching/internal/service/scoring"
	"github.com/oggyb/muzz-matching/internal/utils/pagination"
)

const (
	DefaultLimit    = 20
	MaxLimit        = 100
	DefaultRadiusKm = 50.0
	MinRadiusKm     = 1.0
	MaxRadiusKm     = 500.0

	maxExcludedSwipes = 1000
	onlineWindow      = 24 * time.Hour
)

// Directory is the profile directory: card projections by id or a seed batch.
type Directory interface {
	GetCardsByIDs(ctx context.Context, ids []string) ([]model.Card, error)
	GetCardsForRecommendation(ctx context.Context, excludeIDs []string, limit int) ([]model.Card, error)
}

// Query narrows and pages the card stack. Zero values mean "no constraint".
type Query struct {
	Limit          int      `json:"limit" validate:"min=0"`
	Cursor         string   `json:"cursor,omitempty"`
	RadiusKm       float64  `json:"radius,omitempty" validate:"min=0"`
	UserType       string   `json:"userType,omitempty" validate:"omitempty,oneof=sugar_daddy sugar_baby"`
	VerifiedOnly   bool     `json:"verifiedOnly,omitempty"`
	OnlineRecently bool     `json:"onlineRecently,omitempty"`
	AgeMin         *int     `json:"ageMin,omitempty" validate:"omitempty,min=18,max=120"`
	AgeMax         *int     `json:"ageMax,omitempty" validate:"omitempty,min=18,max=120"`
	Tags           []string `json:"tags,omitempty" validate:"omitempty,max=20,dive,required"`
}

// Page is one slice of the ranked stack. TotalEstimate counts the candidates
// that survived every filter, not the whole population in range.
type Page struct {
	Cards         []model.EnhancedCard `json:"cards"`
	NextCursor    string               `json:"nextCursor,omitempty"`
	TotalEstimate int                  `json:"totalEstimate"`
}

type Engine struct {
	cache    *cache.RedisCache
	swipes   *repository.SwipeRepository
	dir      Directory
	scoring  *scoring.Engine
	enhancer *cards.Enhancer
	content  app.ContentSource
	log      *slog.Logger
	now      func() time.Time
}

func NewEngine(appCtx *app.AppContext, dir Directory, scorer *scoring.Engine, enhancer *cards.Enhancer) *Engine {
	return &Engine{
		cache:    appCtx.RedisCache,
		swipes:   repository.NewSwipeRepository(appCtx.RedisCache),
		dir:      dir,
		scoring:  scorer,
		enhancer: enhancer,
		content:  appCtx.Content,
		log:      appCtx.Logger,
		now:      time.Now,
	}
}

// GetCards returns the next page of candidates for viewerID.
//
// Behavior:
//   - Candidates come from a radius search around the viewer's position, or
//     from the directory's seed batch when the viewer has no position or the
//     geo search fails.
//   - Excludes the viewer, already swiped users and block relations both ways.
//   - Boosted candidates sort first, then by compatibility score.
//   - The cursor is the id of the last card returned.
//
// Example:
//
//	engine.GetCards(ctx, "user-1", discovery.Query{Limit: 10, RadiusKm: 25})
func (e *Engine) GetCards(ctx context.Context, viewerID string, q Query) (Page, error) {
	if viewerID == "" {
		return Page{}, fmt.Errorf("%w: viewer is required", svcErr.ErrInvalidArgument)
	}
	start := time.Now()
	defer func() { metrics.DiscoveryDuration.Observe(time.Since(start).Seconds()) }()

	limit := clampLimit(q.Limit)
	radius := clampRadius(q.RadiusKm)
	exclude := e.exclusions(ctx, viewerID)

	candidates, distances, source := e.candidates(ctx, viewerID, radius, limit, exclude)
	candidates = e.basicFilter(candidates, q)

	enhanced := e.enhancer.Enhance(ctx, viewerID, candidates, distances)
	enhanced = advancedFilter(enhanced, q)
	metrics.DiscoveryCandidates.WithLabelValues(source).Observe(float64(len(enhanced)))

	sort.SliceStable(enhanced, func(i, j int) bool {
		if enhanced[i].IsBoosted != enhanced[j].IsBoosted {
			return enhanced[i].IsBoosted
		}
		return enhanced[i].CompatibilityScore > enhanced[j].CompatibilityScore
	})

	page, next := pagination.ByID(enhanced, func(c model.EnhancedCard) string { return c.ID }, q.Cursor, limit)
	e.log.Debug("cards served", "viewer", viewerID, "source", source, "returned", len(page), "total", len(enhanced))

	return Page{Cards: page, NextCursor: next, TotalEstimate: len(enhanced)}, nil
}

func (e *Engine) exclusions(ctx context.Context, viewerID string) map[string]struct{} {
	exclude := map[string]struct{}{viewerID: {}}

	swiped, err := e.swipes.SwipedIDs(ctx, viewerID, maxExcludedSwipes)
	if err != nil {
		e.log.Warn("swiped ids unavailable", "viewer", viewerID, "err", err)
	}
	blocked, err := e.swipes.Blocked(ctx, viewerID)
	if err != nil {
		e.log.Warn("block list unavailable", "viewer", viewerID, "err", err)
	}
	for _, id := range swiped {
		exclude[id] = struct{}{}
	}
	for _, id := range blocked {
		exclude[id] = struct{}{}
	}
	return exclude
}

// candidates returns unfiltered cards, the geo distances known for them and
// which source produced them ("geo" or "seed").
func (e *Engine) candidates(ctx context.Context, viewerID string, radiusKm float64, limit int, exclude map[string]struct{}) ([]model.Card, map[string]float64, string) {
	pos, err := e.cache.GeoPos(ctx, cache.GeoUsersKey, viewerID)
	if err != nil {
		e.log.Warn("viewer position unavailable", "viewer", viewerID, "err", err)
	}
	if pos == nil {
		return e.seed(ctx, viewerID, limit, exclude), nil, "seed"
	}

	nearby, err := e.cache.GeoRadius(ctx, cache.GeoUsersKey, pos.Longitude, pos.Latitude, radiusKm, max(limit*3, 100))
	if err != nil {
		e.log.Warn("geo search failed, falling back to seed batch", "viewer", viewerID, "err", err)
		return e.seed(ctx, viewerID, limit, exclude), nil, "seed"
	}

	ids := make([]string, 0, len(nearby))
	distances := make(map[string]float64, len(nearby))
	for _, m := range nearby {
		if _, skip := exclude[m.ID]; skip {
			continue
		}
		ids = append(ids, m.ID)
		distances[m.ID] = m.DistanceKm
	}
	if len(ids) == 0 {
		return nil, nil, "geo"
	}

	found, err := e.dir.GetCardsByIDs(ctx, ids)
	if err != nil {
		e.log.Warn("directory lookup failed", "viewer", viewerID, "err", err)
		return nil, nil, "geo"
	}
	for i := range found {
		if d, ok := distances[found[i].ID]; ok {
			found[i].Distance = &d
		}
	}
	return found, distances, "geo"
}

func (e *Engine) seed(ctx context.Context, viewerID string, limit int, exclude map[string]struct{}) []model.Card {
	ids := make([]string, 0, len(exclude))
	for id := range exclude {
		ids = append(ids, id)
	}
	found, err := e.dir.GetCardsForRecommendation(ctx, ids, max(limit*2, 50))
	if err != nil {
		e.log.Warn("seed batch unavailable", "viewer", viewerID, "err", err)
		return nil
	}
	out := found[:0]
	for _, c := range found {
		if _, skip := exclude[c.ID]; !skip {
			out = append(out, c)
		}
	}
	return out
}

func (e *Engine) basicFilter(in []model.Card, q Query) []model.Card {
	onlineSince := e.now().Add(-onlineWindow)
	out := in[:0]
	for _, c := range in {
		if q.UserType != "" && c.UserType != q.UserType {
			continue
		}
		if q.VerifiedOnly && c.VerificationStatus != model.VerificationVerified {
			continue
		}
		if q.OnlineRecently && !c.LastActiveAt.After(onlineSince) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func advancedFilter(in []model.EnhancedCard, q Query) []model.EnhancedCard {
	ageMin, ageMax := scoring.DefaultAgeMin, scoring.DefaultAgeMax
	if q.AgeMin != nil {
		ageMin = *q.AgeMin
	}
	if q.AgeMax != nil {
		ageMax = *q.AgeMax
	}
	checkAge := q.AgeMin != nil || q.AgeMax != nil

	wanted := make(map[string]struct{}, len(q.Tags))
	for _, t := range q.Tags {
		if t != "" {
			wanted[t] = struct{}{}
		}
	}

	out := in[:0]
	for _, c := range in {
		if checkAge && c.Age != nil && (*c.Age < ageMin || *c.Age > ageMax) {
			continue
		}
		if len(wanted) > 0 && !hasAnyTag(c.Tags, wanted) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func hasAnyTag(tags []model.Tag, wanted map[string]struct{}) bool {
	for _, t := range tags {
		if _, ok := wanted[t.ID]; ok {
			return true
		}
	}
	return false
}

func clampLimit(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	return min(n, MaxLimit)
}

func clampRadius(km float64) float64 {
	if km <= 0 {
		return DefaultRadiusKm
	}
	return min(max(km, MinRadiusKm), MaxRadiusKm)
}

// GetCardDetail assembles the full profile view of targetID for viewerID.
// Returns ErrNotFound when the directory has no card for targetID.
func (e *Engine) GetCardDetail(ctx context.Context, viewerID, targetID string) (model.CardDetail, error) {
	found, err := e.dir.GetCardsByIDs(ctx, []string{targetID})
	if err != nil {
		return model.CardDetail{}, fmt.Errorf("load card %s: %w", targetID, err)
	}
	if len(found) == 0 {
		e.log.Warn("card detail target not found", "viewer", viewerID, "target", targetID)
		return model.CardDetail{}, svcErr.ErrNotFound
	}
	card := found[0]
	signals := e.scoring.Signals()

	viewerTags, err := signals.Tags(ctx, viewerID)
	if err != nil {
		e.log.Warn("viewer tags unavailable", "viewer", viewerID, "err", err)
	}
	candidateTags, err := signals.Tags(ctx, targetID)
	if err != nil {
		e.log.Warn("candidate tags unavailable", "target", targetID, "err", err)
	}
	if candidateTags == nil {
		candidateTags = []model.Tag{}
	}

	breakdown := e.scoring.Score(ctx, viewerID, targetID, viewerTags, candidateTags)
	posts := e.content.RecentPosts(ctx, targetID, clients.MaxRecentPosts)

	if km, ok, err := signals.Distance(ctx, viewerID, targetID); err != nil {
		e.log.Warn("distance unavailable", "viewer", viewerID, "target", targetID, "err", err)
	} else if ok {
		card.Distance = &km
	}

	photos, err := signals.Photos(ctx, targetID)
	if err != nil {
		e.log.Warn("photos unavailable", "target", targetID, "err", err)
	}

	detail := model.CardDetail{
		EnhancedCard: model.EnhancedCard{
			Card:               card,
			CompatibilityScore: scoring.Total(breakdown),
			CommonTagCount:     scoring.CommonTags(viewerTags, candidateTags),
			Tags:               candidateTags,
		},
		Photos:         withAvatarFirst(card.AvatarURL, photos),
		RecentPosts:    posts,
		ScoreBreakdown: breakdown,
	}
	if ages, err := signals.Ages(ctx, targetID); err == nil {
		if a, ok := ages[targetID]; ok {
			detail.Age = &a
		}
	}
	if boosted, err := signals.Boosted(ctx, []string{targetID}); err == nil {
		detail.IsBoosted = boosted[targetID]
	}
	return detail, nil
}

func withAvatarFirst(avatar string, photos []string) []string {
	out := make([]string, 0, len(photos)+1)
	if avatar != "" {
		out = append(out, avatar)
	}
	for _, p := range photos {
		if p != avatar {
			out = append(out, p)
		}
	}
	return out
}
