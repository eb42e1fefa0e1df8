// Package likes serves the likes-received list and the paid reveal of a liker.
package likes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oggyb/muzz-matching/internal/app"
	"github.com/oggyb/muzz-matching/internal/clients"
	"github.com/oggyb/muzz-matching/internal/config"
	svcErr "github.com/oggyb/muzz-matching/internal/errors"
	"github.com/oggyb/muzz-matching/internal/events"
	"github.com/oggyb/muzz-matching/internal/model"
	"github.com/oggyb/muzz-matching/internal/repository"
	"github.com/oggyb/muzz-matching/internal/service/cards"
	"github.com/oggyb/muzz-matching/internal/utils/pagination"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// CardSource resolves profile cards by id.
type CardSource interface {
	GetCardsByIDs(ctx context.Context, ids []string) ([]model.Card, error)
}

// LikerCard is one entry of the likes-received list.
type LikerCard struct {
	model.EnhancedCard
	LikedAt     time.Time `json:"likedAt"`
	IsSuperLike bool      `json:"isSuperLike"`
	IsBlurred   bool      `json:"isBlurred"`
}

// Page is one slice of the likes-received list. Count is the size of the
// whole set, before exclusions.
type Page struct {
	Likes      []LikerCard `json:"likes"`
	NextCursor string      `json:"nextCursor,omitempty"`
	Count      int64       `json:"count"`
}

// RevealResult is the unblurred liker and the balance left after paying.
type RevealResult struct {
	Card           model.EnhancedCard `json:"card"`
	DiamondCost    int64              `json:"diamondCost"`
	DiamondBalance int64              `json:"diamondBalance"`
}

type Engine struct {
	swipes   *repository.SwipeRepository
	profiles CardSource
	enhancer *cards.Enhancer
	ledger   app.Ledger
	events   *events.Emitter
	cfg      config.MatchingConfig
	log      *slog.Logger
}

func NewEngine(appCtx *app.AppContext, profiles CardSource, enhancer *cards.Enhancer) *Engine {
	return &Engine{
		swipes:   repository.NewSwipeRepository(appCtx.RedisCache),
		profiles: profiles,
		enhancer: enhancer,
		ledger:   appCtx.Ledger,
		events:   appCtx.Events,
		cfg:      appCtx.Config.Matching,
		log:      appCtx.Logger,
	}
}

// GetLikes lists the users who liked userID, newest first.
//
// Behavior:
//   - The cursor is an integer offset into the likes-received set.
//   - Likers the user already swiped on, and block relations in either
//     direction, are dropped from the page; a page may be shorter than limit.
//   - Non-subscribers get blurred cards: id, like time and super-like flag
//     only. They are not scored.
//
// Example:
//
//	engine.GetLikes(ctx, "user-1", false, 20, "")
func (e *Engine) GetLikes(ctx context.Context, userID string, isSubscriber bool, limit int, cursor string) (Page, error) {
	if userID == "" {
		return Page{}, fmt.Errorf("%w: user is required", svcErr.ErrInvalidArgument)
	}
	offset, err := pagination.ParseOffset(cursor)
	if err != nil {
		return Page{}, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	count, err := e.swipes.LikeCount(ctx, userID)
	if err != nil {
		return Page{}, fmt.Errorf("count likes: %w", err)
	}
	likers, err := e.swipes.Likers(ctx, userID, offset, limit)
	if err != nil {
		return Page{}, fmt.Errorf("list likes: %w", err)
	}
	page := Page{Likes: []LikerCard{}, NextCursor: pagination.NextOffset(offset, limit, count), Count: count}
	if len(likers) == 0 {
		return page, nil
	}

	likers = e.visible(ctx, userID, likers)
	ids := make([]string, len(likers))
	for i, l := range likers {
		ids[i] = l.UserID
	}

	found, err := e.profiles.GetCardsByIDs(ctx, ids)
	if err != nil {
		e.log.Warn("liker cards unavailable", "user", userID, "err", err)
		return page, nil
	}
	byID := make(map[string]model.Card, len(found))
	for _, c := range found {
		byID[c.ID] = c
	}

	reverse, err := e.swipes.GetMany(ctx, ids, userID)
	if err != nil {
		e.log.Warn("liker swipe records unavailable", "user", userID, "err", err)
	}

	ordered := make([]model.Card, 0, len(likers))
	kept := make([]repository.Liker, 0, len(likers))
	for _, l := range likers {
		if c, ok := byID[l.UserID]; ok {
			ordered = append(ordered, c)
			kept = append(kept, l)
		}
	}

	if !isSubscriber {
		for _, l := range kept {
			page.Likes = append(page.Likes, blurred(l, reverse[l.UserID].Action == model.ActionSuperLike))
		}
		e.log.Debug("likes served blurred", "user", userID, "offset", offset, "returned", len(page.Likes), "count", count)
		return page, nil
	}

	enhanced := e.enhancer.Enhance(ctx, userID, ordered, nil)
	for i, ec := range enhanced {
		page.Likes = append(page.Likes, LikerCard{
			EnhancedCard: ec,
			LikedAt:      kept[i].LikedAt,
			IsSuperLike:  reverse[kept[i].UserID].Action == model.ActionSuperLike,
		})
	}
	e.log.Debug("likes served", "user", userID, "offset", offset, "returned", len(page.Likes), "count", count)
	return page, nil
}

// visible drops likers that userID already swiped on or has a block relation with.
func (e *Engine) visible(ctx context.Context, userID string, likers []repository.Liker) []repository.Liker {
	hidden := make(map[string]struct{})
	swiped, err := e.swipes.SwipedIDs(ctx, userID, 0)
	if err != nil {
		e.log.Warn("swiped ids unavailable", "user", userID, "err", err)
	}
	blocked, err := e.swipes.Blocked(ctx, userID)
	if err != nil {
		e.log.Warn("block list unavailable", "user", userID, "err", err)
	}
	for _, id := range swiped {
		hidden[id] = struct{}{}
	}
	for _, id := range blocked {
		hidden[id] = struct{}{}
	}

	out := likers[:0]
	for _, l := range likers {
		if _, skip := hidden[l.UserID]; !skip {
			out = append(out, l)
		}
	}
	return out
}

// blurred carries only what a non-subscriber may see: who, when and how.
func blurred(l repository.Liker, superLike bool) LikerCard {
	return LikerCard{
		EnhancedCard: model.EnhancedCard{Card: model.Card{ID: l.UserID}},
		LikedAt:      l.LikedAt,
		IsSuperLike:  superLike,
		IsBlurred:    true,
	}
}

// Reveal unblurs likerID for userID in exchange for diamonds.
//
// Behavior:
//   - ErrNotLiked when likerID is not in userID's likes-received set.
//   - ErrNotFound when the liker has no card; nothing is spent.
//   - A failed spend returns ErrInsufficientBalance with no side effects.
func (e *Engine) Reveal(ctx context.Context, userID, likerID, authToken string) (RevealResult, error) {
	if userID == "" || likerID == "" {
		return RevealResult{}, fmt.Errorf("%w: user and liker are required", svcErr.ErrInvalidArgument)
	}
	liked, err := e.swipes.HasLike(ctx, userID, likerID)
	if err != nil {
		return RevealResult{}, fmt.Errorf("check like: %w", err)
	}
	if !liked {
		return RevealResult{}, svcErr.ErrNotLiked
	}

	found, err := e.profiles.GetCardsByIDs(ctx, []string{likerID})
	if err != nil {
		return RevealResult{}, fmt.Errorf("load liker %s: %w", likerID, err)
	}
	if len(found) == 0 {
		return RevealResult{}, svcErr.ErrNotFound
	}

	cost := e.cfg.RevealDiamondCost
	balance, err := e.ledger.SpendDiamonds(ctx, clients.SpendRequest{
		UserID:      userID,
		Amount:      cost,
		Reason:      clients.ReasonReveal,
		Description: fmt.Sprintf("Reveal who liked you (%d diamonds)", cost),
		AuthToken:   authToken,
	})
	if err != nil {
		e.log.Warn("reveal refused", "user", userID, "liker", likerID, "err", err)
		return RevealResult{}, err
	}

	card := e.enhancer.EnhanceOne(ctx, userID, found[0])
	e.events.Emit(events.Event{
		Type:     events.TypeReveal,
		UserID:   userID,
		TargetID: likerID,
		Data:     map[string]any{"diamondCost": cost},
	})
	e.log.Info("liker revealed", "user", userID, "liker", likerID, "diamond_cost", cost)

	return RevealResult{Card: card, DiamondCost: cost, DiamondBalance: balance}, nil
}
