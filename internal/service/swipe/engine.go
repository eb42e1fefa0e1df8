// Package swipe records swipe decisions, turns mutual likes into matches and
// lets users take back their last swipe.
package swipe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oggyb/muzz-matching/internal/app"
	"github.com/oggyb/muzz-matching/internal/cache"
	"github.com/oggyb/muzz-matching/internal/clients"
	"github.com/oggyb/muzz-matching/internal/config"
	svcErr "github.com/oggyb/muzz-matching/internal/errors"
	"github.com/oggyb/muzz-matching/internal/events"
	"github.com/oggyb/muzz-matching/internal/metrics"
	"github.com/oggyb/muzz-matching/internal/model"
	"github.com/oggyb/muzz-matching/internal/repository"
	"github.com/oggyb/muzz-matching/internal/service/cards"
)

// dayWindow is the lifetime of the daily counters and of the undo target.
const dayWindow = 24 * time.Hour

// CardSource resolves profile cards by id.
type CardSource interface {
	GetCardsByIDs(ctx context.Context, ids []string) ([]model.Card, error)
}

// Result is the outcome of a swipe.
type Result struct {
	Matched bool   `json:"matched"`
	MatchID string `json:"matchId,omitempty"`
}

// UndoResult is the outcome of an undo. Card is the undone candidate, ready
// to be shown again, when it could be fetched.
type UndoResult struct {
	Undone             bool                `json:"undone"`
	Card               *model.EnhancedCard `json:"card,omitempty"`
	MatchRevoked       bool                `json:"matchRevoked"`
	DiamondCost        int64               `json:"diamondCost"`
	FreeUndosRemaining int64               `json:"freeUndosRemaining"`
}

// Engine is the swipe state machine.
//
// Per ordered pair: unswiped → swiped (undo deletes the record).
// Per unordered pair: none → active → unmatched.
type Engine struct {
	swipes   *repository.SwipeRepository
	matches  *repository.MatchRepository
	daily    *cache.WindowCounter
	undos    *cache.WindowCounter
	profiles CardSource
	enhancer *cards.Enhancer
	ledger   app.Ledger
	tiers    app.TierSource
	events   *events.Emitter
	cfg      config.MatchingConfig
	log      *slog.Logger
	now      func() time.Time
}

// NewEngine builds the state machine on the shared Redis cache.
func NewEngine(appCtx *app.AppContext, profiles CardSource, enhancer *cards.Enhancer) *Engine {
	return &Engine{
		swipes:   repository.NewSwipeRepository(appCtx.RedisCache),
		matches:  repository.NewMatchRepository(appCtx.RedisCache),
		daily:    cache.NewWindowCounter(appCtx.RedisCache, cache.SwipeCounterPrefix, dayWindow),
		undos:    cache.NewWindowCounter(appCtx.RedisCache, cache.UndoCounterPrefix, dayWindow),
		profiles: profiles,
		enhancer: enhancer,
		ledger:   appCtx.Ledger,
		tiers:    appCtx.Tiers,
		events:   appCtx.Events,
		cfg:      appCtx.Config.Matching,
		log:      appCtx.Logger,
		now:      time.Now,
	}
}

// WithClock overrides the clock used for records and counter buckets.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	e.daily.WithClock(now)
	e.undos.WithClock(now)
	return e
}

// Swipe records swiperID's decision on targetID.
//
// Behavior:
//   - Rejects with ErrQuotaExceeded once the daily limit is reached. The quota
//     slot is taken atomically before the write and handed back on a replay.
//   - The first swipe of an ordered pair is persisted with its indexes; a
//     replay keeps the stored decision and only re-runs match detection.
//   - A positive swipe answered by a positive reverse swipe yields a match.
//     Concurrent mutual swipes agree on one match id.
//
// Example:
//
//	engine.Swipe(ctx, "user-1", "user-2", model.ActionLike)
func (e *Engine) Swipe(ctx context.Context, swiperID, targetID string, action model.SwipeAction) (Result, error) {
	if swiperID == "" || targetID == "" {
		return Result{}, fmt.Errorf("%w: swiper and target are required", svcErr.ErrInvalidArgument)
	}
	if swiperID == targetID {
		return Result{}, fmt.Errorf("%w: cannot swipe on yourself", svcErr.ErrInvalidArgument)
	}
	if !action.Valid() {
		return Result{}, fmt.Errorf("%w: unknown action %q", svcErr.ErrInvalidArgument, action)
	}

	_, ok, err := e.daily.Reserve(ctx, swiperID, e.cfg.DailySwipeLimit)
	if err != nil {
		return Result{}, fmt.Errorf("reserve swipe quota: %w", err)
	}
	if !ok {
		metrics.QuotaRejections.Inc()
		e.log.Info("daily swipe limit reached", "swiper", swiperID, "limit", e.cfg.DailySwipeLimit)
		return Result{}, svcErr.ErrQuotaExceeded
	}

	now := e.now().UTC()
	rec := model.SwipeRecord{SwiperID: swiperID, SwipedID: targetID, Action: action, CreatedAt: now}
	created, err := e.swipes.Create(ctx, rec)
	if err != nil || !created {
		// only a new swipe keeps its quota slot
		if relErr := e.daily.Release(ctx, swiperID); relErr != nil {
			e.log.Warn("release swipe quota failed", "swiper", swiperID, "err", relErr)
		}
	}
	if err != nil {
		return Result{}, fmt.Errorf("persist swipe: %w", err)
	}

	if created {
		e.index(ctx, rec)
	} else {
		existing, err := e.swipes.Get(ctx, swiperID, targetID)
		if err != nil {
			return Result{}, fmt.Errorf("read swipe: %w", err)
		}
		if existing != nil {
			rec = *existing
		}
		e.log.Debug("swipe replayed", "swiper", swiperID, "target", targetID, "action", rec.Action)
	}

	if !rec.Action.Positive() {
		return Result{}, nil
	}
	return e.detectMatch(ctx, swiperID, targetID, now)
}

// index writes the derived state of a new swipe. Failures are logged; the
// swipe record itself is already durable.
func (e *Engine) index(ctx context.Context, rec model.SwipeRecord) {
	log := e.log.With("swiper", rec.SwiperID, "target", rec.SwipedID)

	if err := e.swipes.AddToSwipeSet(ctx, rec.SwiperID, rec.SwipedID); err != nil {
		log.Warn("add to swipe set failed", "err", err)
	}
	if err := e.swipes.SetLastSwipe(ctx, rec, dayWindow); err != nil {
		log.Warn("store last swipe failed", "err", err)
	}
	if rec.Action.Positive() {
		if err := e.swipes.AddLike(ctx, rec.SwipedID, rec.SwiperID, rec.CreatedAt); err != nil {
			log.Warn("record like failed", "err", err)
		}
	}

	metrics.SwipesTotal.WithLabelValues(string(rec.Action)).Inc()
	e.events.Emit(events.Event{
		Type:       events.TypeSwipe,
		UserID:     rec.SwiperID,
		TargetID:   rec.SwipedID,
		Action:     string(rec.Action),
		OccurredAt: rec.CreatedAt,
	})
	log.Debug("swipe recorded", "action", rec.Action)
}

func (e *Engine) detectMatch(ctx context.Context, swiperID, targetID string, now time.Time) (Result, error) {
	reverse, err := e.swipes.Get(ctx, targetID, swiperID)
	if err != nil {
		e.log.Warn("reverse swipe lookup failed", "swiper", swiperID, "target", targetID, "err", err)
		return Result{}, nil
	}
	if reverse == nil || !reverse.Action.Positive() {
		return Result{}, nil
	}

	match, created, err := e.matches.CreateIfAbsent(ctx, swiperID, targetID, now)
	if err != nil {
		return Result{}, fmt.Errorf("create match: %w", err)
	}
	if created {
		if err := e.matches.Index(ctx, match); err != nil {
			e.log.Warn("index match failed", "match_id", match.ID, "err", err)
		}
		metrics.MatchesCreated.Inc()
		e.events.Emit(events.Event{
			Type:       events.TypeMatchCreated,
			UserID:     swiperID,
			TargetID:   targetID,
			MatchID:    match.ID,
			OccurredAt: now,
		})
		e.log.Info("match created", "match_id", match.ID, "swiper", swiperID, "target", targetID)
	}
	return Result{Matched: true, MatchID: match.ID}, nil
}

// Undo takes back userID's last swipe.
//
// Behavior:
//   - No last swipe → {undone: false}, no error.
//   - Past the tier's free allowance the undo costs diamonds; a failed spend
//     returns ErrInsufficientBalance before anything is changed.
//   - Removes the swipe with its indexes and revokes an active match of the pair.
//   - The undone candidate's card is re-fetched best effort.
func (e *Engine) Undo(ctx context.Context, userID, authToken string) (UndoResult, error) {
	if userID == "" {
		return UndoResult{}, fmt.Errorf("%w: user is required", svcErr.ErrInvalidArgument)
	}
	last, err := e.swipes.LastSwipe(ctx, userID)
	if err != nil {
		return UndoResult{}, fmt.Errorf("read last swipe: %w", err)
	}
	if last == nil {
		e.log.Info("nothing to undo", "user", userID)
		return UndoResult{}, nil
	}
	targetID := last.SwipedID

	allowance := e.cfg.FreeUndoLimit
	if e.tiers.GetUserTier(ctx, userID).IsSubscriber {
		allowance = e.cfg.SubscriberUndoLimit
	}
	used, err := e.undos.Current(ctx, userID)
	if err != nil {
		return UndoResult{}, fmt.Errorf("read undo counter: %w", err)
	}

	var cost int64
	if used >= allowance {
		cost = e.cfg.UndoDiamondCost
		_, err := e.ledger.SpendDiamonds(ctx, clients.SpendRequest{
			UserID:      userID,
			Amount:      cost,
			Reason:      clients.ReasonUndo,
			Description: fmt.Sprintf("Undo swipe (%d diamonds)", cost),
			AuthToken:   authToken,
		})
		if err != nil {
			e.log.Warn("paid undo refused", "user", userID, "err", err)
			return UndoResult{}, err
		}
	}

	if err := e.swipes.Delete(ctx, userID, targetID); err != nil {
		return UndoResult{}, fmt.Errorf("delete swipe: %w", err)
	}
	if last.Action.Positive() {
		if err := e.swipes.RemoveLike(ctx, targetID, userID); err != nil {
			e.log.Warn("remove like failed", "user", userID, "target", targetID, "err", err)
		}
	}

	revoked := false
	if m, err := e.matches.Deactivate(ctx, userID, targetID, "", model.MatchUnmatched); err != nil {
		e.log.Warn("revoke match failed", "user", userID, "target", targetID, "err", err)
	} else if m != nil {
		revoked = true
		metrics.Unmatches.WithLabelValues("undo").Inc()
		e.log.Info("match revoked via undo", "match_id", m.ID, "user", userID)
	}

	if err := e.swipes.ClearLastSwipe(ctx, userID); err != nil {
		e.log.Warn("clear last swipe failed", "user", userID, "err", err)
	}
	usedNow, err := e.undos.Increment(ctx, userID)
	if err != nil {
		e.log.Warn("increment undo counter failed", "user", userID, "err", err)
		usedNow = used + 1
	}

	e.events.Emit(events.Event{
		Type:     events.TypeUndo,
		UserID:   userID,
		TargetID: targetID,
		Action:   string(last.Action),
		Data:     map[string]any{"matchRevoked": revoked, "diamondCost": cost},
	})
	e.log.Info("undo completed", "user", userID, "target", targetID, "match_revoked", revoked, "diamond_cost", cost)

	return UndoResult{
		Undone:             true,
		Card:               e.refetch(ctx, userID, targetID),
		MatchRevoked:       revoked,
		DiamondCost:        cost,
		FreeUndosRemaining: max(allowance-usedNow, 0),
	}, nil
}

func (e *Engine) refetch(ctx context.Context, viewerID, targetID string) *model.EnhancedCard {
	found, err := e.profiles.GetCardsByIDs(ctx, []string{targetID})
	if err != nil || len(found) == 0 {
		e.log.Warn("fetch undone card failed", "user", viewerID, "target", targetID, "err", err)
		return nil
	}
	ec := e.enhancer.EnhanceOne(ctx, viewerID, found[0])
	return &ec
}
