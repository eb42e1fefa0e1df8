package app

import (
	"context"
	"log/slog"

	"gorm.io/gorm"

	"github.com/oggyb/muzz-matching/internal/cache"
	"github.com/oggyb/muzz-matching/internal/clients"
	"github.com/oggyb/muzz-matching/internal/config"
	"github.com/oggyb/muzz-matching/internal/events"
	"github.com/oggyb/muzz-matching/internal/model"
)

// Recommender is the external recommendation model. nil means unavailable.
type Recommender interface {
	GetRecommendations(ctx context.Context, userID string, limit int, excludeIDs []string) []model.Recommendation
}

// Ledger spends diamonds. Any error means nothing was spent.
type Ledger interface {
	SpendDiamonds(ctx context.Context, req clients.SpendRequest) (int64, error)
}

// TierSource never fails; it answers the free tier when unsure.
type TierSource interface {
	GetUserTier(ctx context.Context, userID string) model.Tier
}

// ContentSource returns a user's recent posts, empty on failure.
type ContentSource interface {
	RecentPosts(ctx context.Context, userID string, limit int) []model.Post
}

// AppContext holds shared dependencies (config, DB, Redis, logger, events and
// the external collaborators).
type AppContext struct {
	Config     *config.Config
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Logger     *slog.Logger
	Events     *events.Emitter

	Recommender Recommender
	Ledger      Ledger
	Tiers       TierSource
	Content     ContentSource
}

// New creates a new AppContext. Collaborators are attached with the With* helpers.
func New(cfg *config.Config, db *gorm.DB, rdb *cache.RedisCache, logger *slog.Logger, emitter *events.Emitter) *AppContext {
	return &AppContext{
		Config:     cfg,
		DB:         db,
		RedisCache: rdb,
		Logger:     logger,
		Events:     emitter,
	}
}

// WithClients wires the HTTP collaborators described by cfg.Clients.
func (a *AppContext) WithClients() *AppContext {
	c := a.Config.Clients
	a.Recommender = clients.NewRecommendationClient(c.RecommendationURL, c.Timeout, a.RedisCache, a.Config.Matching.RecommendationCacheTTL, a.Logger)
	a.Ledger = clients.NewLedgerClient(c.LedgerURL, c.Timeout, a.Logger)
	a.Tiers = clients.NewSubscriptionClient(c.SubscriptionURL, c.Timeout, a.Logger)
	a.Content = clients.NewContentClient(c.ContentURL, c.Timeout, a.Logger)
	return a
}
