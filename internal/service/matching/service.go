// Package matching exposes the matching core over gRPC. Messages are plain
// structs carried by the JSON codec registered in internal/server.
package matching

import (
	"context"
	"strings"

	"google.golang.org/grpc/metadata"

	"github.com/oggyb/muzz-matching/internal/app"
	svcErr "github.com/oggyb/muzz-matching/internal/errors"
	"github.com/oggyb/muzz-matching/internal/model"
	"github.com/oggyb/muzz-matching/internal/repository"
	"github.com/oggyb/muzz-matching/internal/service/cards"
	"github.com/oggyb/muzz-matching/internal/service/discovery"
	"github.com/oggyb/muzz-matching/internal/service/likes"
	"github.com/oggyb/muzz-matching/internal/service/matches"
	"github.com/oggyb/muzz-matching/internal/service/scoring"
	"github.com/oggyb/muzz-matching/internal/service/swipe"
)

type SwipeRequest struct {
	UserID   string            `json:"userId" validate:"required"`
	TargetID string            `json:"targetId" validate:"required,nefield=UserID"`
	Action   model.SwipeAction `json:"action" validate:"required,oneof=like pass super_like"`
}

type UndoRequest struct {
	UserID string `json:"userId" validate:"required"`
}

type GetCardsRequest struct {
	UserID string `json:"userId" validate:"required"`
	discovery.Query
}

type GetCardDetailRequest struct {
	UserID   string `json:"userId" validate:"required"`
	TargetID string `json:"targetId" validate:"required"`
}

type GetLikesRequest struct {
	UserID string `json:"userId" validate:"required"`
	Limit  int    `json:"limit" validate:"min=0"`
	Cursor string `json:"cursor,omitempty" validate:"omitempty,numeric"`
}

type RevealLikeRequest struct {
	UserID  string `json:"userId" validate:"required"`
	LikerID string `json:"likerId" validate:"required"`
}

type GetMatchesRequest struct {
	UserID string `json:"userId" validate:"required"`
	Limit  int    `json:"limit" validate:"min=0"`
	Cursor string `json:"cursor,omitempty"`
}

// UnmatchRequest leaves MatchID unchecked: a bad id is a refusal, not an error.
type UnmatchRequest struct {
	UserID  string `json:"userId" validate:"required"`
	MatchID string `json:"matchId"`
}

type BoostRequest struct {
	UserID string `json:"userId" validate:"required"`
}

type GetBoostResponse struct {
	Active bool               `json:"active"`
	Boost  *model.BoostRecord `json:"boost,omitempty"`
}

type InvalidateScoresRequest struct {
	UserID string `json:"userId" validate:"required"`
}

type InvalidateScoresResponse struct {
	Deleted int `json:"deleted"`
}

type HealthRequest struct{}

type HealthResponse struct {
	Status string `json:"status"`
}

// Service implements the Matching gRPC API on top of the engines.
// Each method validates its request, calls one engine and maps errors.
type Service struct {
	appCtx    *app.AppContext
	scoring   *scoring.Engine
	swipes    *swipe.Engine
	discovery *discovery.Engine
	likes     *likes.Engine
	matches   *matches.Manager
}

// NewMatchingService builds every engine from the shared dependencies.
func NewMatchingService(appCtx *app.AppContext) *Service {
	profiles := repository.NewProfileRepository(appCtx.DB)
	signals := scoring.NewSignals(appCtx.RedisCache, repository.NewSwipeRepository(appCtx.RedisCache))
	scorer := scoring.NewEngine(appCtx.RedisCache, signals, appCtx.Recommender, appCtx.Config.Matching, appCtx.Logger)
	enhancer := cards.NewEnhancer(scorer, appCtx.Logger)

	return &Service{
		appCtx:    appCtx,
		scoring:   scorer,
		swipes:    swipe.NewEngine(appCtx, profiles, enhancer),
		discovery: discovery.NewEngine(appCtx, profiles, scorer, enhancer),
		likes:     likes.NewEngine(appCtx, profiles, enhancer),
		matches:   matches.NewManager(appCtx),
	}
}

// Scoring exposes the scoring engine for background jobs.
func (s *Service) Scoring() *scoring.Engine { return s.scoring }

// authToken returns the bearer token forwarded in the "authorization" header.
func authToken(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(vals[0], "Bearer "))
}

// Swipe records a like, pass or super like.
//
// Example:
//
//	svc.Swipe(ctx, &SwipeRequest{UserID: "1", TargetID: "2", Action: model.ActionLike})
func (s *Service) Swipe(ctx context.Context, req *SwipeRequest) (*swipe.Result, error) {
	s.appCtx.Logger.Debug("Swipe called", "user", req.UserID, "target", req.TargetID, "action", req.Action)
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	res, err := s.swipes.Swipe(ctx, req.UserID, req.TargetID, req.Action)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &res, nil
}

// Undo takes back the caller's last swipe.
func (s *Service) Undo(ctx context.Context, req *UndoRequest) (*swipe.UndoResult, error) {
	s.appCtx.Logger.Debug("Undo called", "user", req.UserID)
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	res, err := s.swipes.Undo(ctx, req.UserID, authToken(ctx))
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &res, nil
}

// GetCards returns a page of the ranked discovery stack.
func (s *Service) GetCards(ctx context.Context, req *GetCardsRequest) (*discovery.Page, error) {
	s.appCtx.Logger.Debug("GetCards called", "user", req.UserID, "limit", req.Limit, "cursor", req.Cursor)
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	page, err := s.discovery.GetCards(ctx, req.UserID, req.Query)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &page, nil
}

// GetCardDetail returns one candidate's full profile view.
func (s *Service) GetCardDetail(ctx context.Context, req *GetCardDetailRequest) (*model.CardDetail, error) {
	s.appCtx.Logger.Debug("GetCardDetail called", "user", req.UserID, "target", req.TargetID)
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	d, err := s.discovery.GetCardDetail(ctx, req.UserID, req.TargetID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &d, nil
}

// GetLikes lists who liked the caller; blurred unless the caller subscribes.
func (s *Service) GetLikes(ctx context.Context, req *GetLikesRequest) (*likes.Page, error) {
	s.appCtx.Logger.Debug("GetLikes called", "user", req.UserID, "cursor", req.Cursor)
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	tier := s.appCtx.Tiers.GetUserTier(ctx, req.UserID)
	page, err := s.likes.GetLikes(ctx, req.UserID, tier.IsSubscriber, req.Limit, req.Cursor)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &page, nil
}

// RevealLike pays to unblur one liker.
func (s *Service) RevealLike(ctx context.Context, req *RevealLikeRequest) (*likes.RevealResult, error) {
	s.appCtx.Logger.Debug("RevealLike called", "user", req.UserID, "liker", req.LikerID)
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	res, err := s.likes.Reveal(ctx, req.UserID, req.LikerID, authToken(ctx))
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &res, nil
}

// GetMatches lists the caller's active matches.
func (s *Service) GetMatches(ctx context.Context, req *GetMatchesRequest) (*matches.Page, error) {
	s.appCtx.Logger.Debug("GetMatches called", "user", req.UserID, "cursor", req.Cursor)
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	page, err := s.matches.GetMatches(ctx, req.UserID, req.Limit, req.Cursor)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &page, nil
}

// Unmatch ends a match. Refusals come back as {success: false}.
func (s *Service) Unmatch(ctx context.Context, req *UnmatchRequest) (*matches.UnmatchResult, error) {
	s.appCtx.Logger.Debug("Unmatch called", "user", req.UserID, "match_id", req.MatchID)
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	res, err := s.matches.Unmatch(ctx, req.UserID, req.MatchID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &res, nil
}

func (s *Service) ApplyBoost(ctx context.Context, req *BoostRequest) (*matches.BoostResult, error) {
	s.appCtx.Logger.Debug("ApplyBoost called", "user", req.UserID)
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	res, err := s.matches.ApplyBoost(ctx, req.UserID, authToken(ctx))
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &res, nil
}

func (s *Service) GetBoost(ctx context.Context, req *BoostRequest) (*GetBoostResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	b, err := s.matches.GetBoost(ctx, req.UserID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &GetBoostResponse{Active: b != nil, Boost: b}, nil
}

// InvalidateScores drops every cached compatibility score involving the user,
// typically after a profile edit.
func (s *Service) InvalidateScores(ctx context.Context, req *InvalidateScoresRequest) (*InvalidateScoresResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	n, err := s.scoring.InvalidateScores(ctx, req.UserID)
	if err != nil {
		s.appCtx.Logger.Error("InvalidateScores failed", "user", req.UserID, "err", err)
		return nil, svcErr.Map(err)
	}
	return &InvalidateScoresResponse{Deleted: n}, nil
}

// Health pings Redis and the profile database.
func (s *Service) Health(ctx context.Context, _ *HealthRequest) (*HealthResponse, error) {
	if err := s.appCtx.RedisCache.Ping(ctx); err != nil {
		s.appCtx.Logger.Warn("health: redis unreachable", "err", err)
		return nil, svcErr.Unavailable("redis unreachable")
	}
	sqlDB, err := s.appCtx.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		s.appCtx.Logger.Warn("health: database unreachable", "err", err)
		return nil, svcErr.Unavailable("database unreachable")
	}
	return &HealthResponse{Status: "ok"}, nil
}
