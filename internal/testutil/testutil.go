// Package testutil wires the matching engines against miniredis and an
// in-memory SQLite directory, with fakes for the HTTP collaborators.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/oggyb/muzz-matching/internal/app"
	"github.com/oggyb/muzz-matching/internal/cache"
	"github.com/oggyb/muzz-matching/internal/clients"
	"github.com/oggyb/muzz-matching/internal/config"
	"github.com/oggyb/muzz-matching/internal/db"
	svcErr "github.com/oggyb/muzz-matching/internal/errors"
	"github.com/oggyb/muzz-matching/internal/logger"
	"github.com/oggyb/muzz-matching/internal/model"
	"github.com/oggyb/muzz-matching/internal/repository"
	"github.com/oggyb/muzz-matching/internal/service/cards"
	"github.com/oggyb/muzz-matching/internal/service/scoring"
)

// Env is one isolated set of dependencies.
type Env struct {
	App      *app.AppContext
	Cache    *cache.RedisCache
	Redis    *miniredis.Miniredis
	DB       *gorm.DB
	Profiles *repository.ProfileRepository
	Scoring  *scoring.Engine
	Enhancer *cards.Enhancer
	Ledger   *FakeLedger
	Tiers    *FakeTiers
	Content  *FakeContent
	Recs     *FakeRecommender
}

// New builds an Env whose resources are released with the test.
func New(t *testing.T) *Env {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := config.Defaults()
	cfg.Redis.Addr = mr.Addr()
	rc := cache.NewRedisCache(cfg)
	t.Cleanup(func() { _ = rc.Close() })

	database := NewDB(t)
	log := logger.Nop()

	env := &Env{
		Cache:    rc,
		Redis:    mr,
		DB:       database,
		Profiles: repository.NewProfileRepository(database),
		Ledger:   &FakeLedger{Balance: 1000},
		Tiers:    &FakeTiers{Subscribers: map[string]bool{}},
		Content:  &FakeContent{},
		Recs:     &FakeRecommender{},
	}

	env.App = app.New(cfg, database, rc, log, nil)
	env.App.Ledger = env.Ledger
	env.App.Tiers = env.Tiers
	env.App.Content = env.Content
	env.App.Recommender = env.Recs

	swipes := repository.NewSwipeRepository(rc)
	env.Scoring = scoring.NewEngine(rc, scoring.NewSignals(rc, swipes), env.Recs, cfg.Matching, log)
	env.Enhancer = cards.NewEnhancer(env.Scoring, log)
	return env
}

// NewDB opens a migrated in-memory SQLite database private to t.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	sqlDB, err := database.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(database))
	return database
}

// AddProfiles inserts active profiles with the given ids and user type.
func (e *Env) AddProfiles(t *testing.T, userType string, ids ...string) {
	t.Helper()
	rows := make([]db.Profile, len(ids))
	for i, id := range ids {
		rows[i] = db.Profile{
			ID:           id,
			Username:     id,
			DisplayName:  "Name " + id,
			AvatarURL:    "https://cdn.example.com/" + id + ".jpg",
			UserType:     userType,
			Active:       true,
			LastActiveAt: time.Now().UTC(),
		}
	}
	require.NoError(t, e.DB.Create(&rows).Error)
}

// FakeLedger debits an in-memory balance.
type FakeLedger struct {
	mu       sync.Mutex
	Balance  int64
	Requests []clients.SpendRequest
}

func (l *FakeLedger) SpendDiamonds(_ context.Context, req clients.SpendRequest) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Requests = append(l.Requests, req)
	if req.Amount > l.Balance {
		return 0, fmt.Errorf("%w: balance %d", svcErr.ErrInsufficientBalance, l.Balance)
	}
	l.Balance -= req.Amount
	return l.Balance, nil
}

// Calls counts spend requests, failed ones included.
func (l *FakeLedger) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Requests)
}

type FakeTiers struct {
	Subscribers map[string]bool
}

func (f *FakeTiers) GetUserTier(_ context.Context, userID string) model.Tier {
	if f.Subscribers[userID] {
		return model.Tier{IsSubscriber: true, TierName: "premium"}
	}
	return clients.FreeTier
}

type FakeContent struct {
	Posts map[string][]model.Post
}

func (f *FakeContent) RecentPosts(_ context.Context, userID string, limit int) []model.Post {
	posts := f.Posts[userID]
	if len(posts) > limit {
		posts = posts[:limit]
	}
	if posts == nil {
		return []model.Post{}
	}
	return posts
}

type FakeRecommender struct {
	Recs []model.Recommendation
}

func (f *FakeRecommender) GetRecommendations(context.Context, string, int, []string) []model.Recommendation {
	return f.Recs
}
