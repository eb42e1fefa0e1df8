// Package matches lists and ends matches, and sells discovery boosts.
package matches

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
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
	"github.com/oggyb/muzz-matching/internal/utils/pagination"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100

	maxReserveAttempts = 3
	// pendingBoostTTL bounds a reservation whose payment never completes.
	pendingBoostTTL = time.Minute
)

// Page is one slice of a user's active matches, newest first.
type Page struct {
	Matches    []model.MatchRecord `json:"matches"`
	NextCursor string              `json:"nextCursor,omitempty"`
}

// UnmatchResult reports whether the match was ended by this call.
type UnmatchResult struct {
	Success bool `json:"success"`
}

// BoostResult describes the boost in effect after ApplyBoost.
type BoostResult struct {
	Boost       model.BoostRecord `json:"boost"`
	DiamondCost int64             `json:"diamondCost"`
	Balance     *int64            `json:"diamondBalance,omitempty"`
}

// Manager is the match lifecycle manager.
type Manager struct {
	cache   *cache.RedisCache
	matches *repository.MatchRepository
	ledger  app.Ledger
	events  *events.Emitter
	cfg     config.MatchingConfig
	log     *slog.Logger
	now     func() time.Time
}

func NewManager(appCtx *app.AppContext) *Manager {
	return &Manager{
		cache:   appCtx.RedisCache,
		matches: repository.NewMatchRepository(appCtx.RedisCache),
		ledger:  appCtx.Ledger,
		events:  appCtx.Events,
		cfg:     appCtx.Config.Matching,
		log:     appCtx.Logger,
		now:     time.Now,
	}
}

// WithClock overrides the clock used for boost records.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// GetMatches lists userID's active matches, most recent first. The cursor is
// the id of the last match returned.
//
// Example:
//
//	mgr.GetMatches(ctx, "user-1", 20, "")
func (m *Manager) GetMatches(ctx context.Context, userID string, limit int, cursor string) (Page, error) {
	if userID == "" {
		return Page{}, fmt.Errorf("%w: user is required", svcErr.ErrInvalidArgument)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	ids, err := m.matches.IDs(ctx, userID)
	if err != nil {
		return Page{}, fmt.Errorf("list match ids: %w", err)
	}
	recs, err := m.matches.GetMany(ctx, ids)
	if err != nil {
		return Page{}, fmt.Errorf("load matches: %w", err)
	}

	active := recs[:0]
	for _, r := range recs {
		if r.Status == model.MatchActive {
			active = append(active, r)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if !active[i].MatchedAt.Equal(active[j].MatchedAt) {
			return active[i].MatchedAt.After(active[j].MatchedAt)
		}
		return active[i].ID < active[j].ID
	})

	page, next := pagination.ByID(active, func(r model.MatchRecord) string { return r.ID }, cursor, limit)
	if page == nil {
		page = []model.MatchRecord{}
	}
	return Page{Matches: page, NextCursor: next}, nil
}

// Unmatch ends matchID on behalf of userID.
//
// Behavior:
//   - The match must be in userID's index, involve userID and still be active.
//   - Any failed check returns {success: false} with no error.
//   - The record turns unmatched and leaves both participants' indexes.
func (m *Manager) Unmatch(ctx context.Context, userID, matchID string) (UnmatchResult, error) {
	log := m.log.With("user", userID, "match_id", matchID)
	if userID == "" || matchID == "" {
		return UnmatchResult{}, nil
	}

	indexed, err := m.matches.IsIndexed(ctx, userID, matchID)
	if err != nil {
		log.Warn("match index lookup failed", "err", err)
		return UnmatchResult{}, nil
	}
	if !indexed {
		log.Info("unmatch refused: match not in user's list")
		return UnmatchResult{}, nil
	}

	rec, err := m.matches.FindByID(ctx, matchID)
	if err != nil {
		log.Warn("match lookup failed", "err", err)
		return UnmatchResult{}, nil
	}
	if rec == nil || !rec.Involves(userID) || rec.Status != model.MatchActive {
		log.Info("unmatch refused: match missing, foreign or already ended")
		return UnmatchResult{}, nil
	}

	ended, err := m.matches.Deactivate(ctx, rec.UserAID, rec.UserBID, matchID, model.MatchUnmatched)
	if err != nil {
		log.Warn("unmatch failed", "err", err)
		return UnmatchResult{}, nil
	}
	if ended == nil {
		log.Info("unmatch lost the race to another terminal transition")
		return UnmatchResult{}, nil
	}

	other := ended.UserAID
	if other == userID {
		other = ended.UserBID
	}
	metrics.Unmatches.WithLabelValues("user").Inc()
	m.events.Emit(events.Event{
		Type:     events.TypeUnmatch,
		UserID:   userID,
		TargetID: other,
		MatchID:  matchID,
	})
	log.Info("match ended")
	return UnmatchResult{Success: true}, nil
}

// ApplyBoost puts userID at the top of discovery for the configured duration.
//
// Behavior:
//   - An active boost is returned as is, at zero cost.
//   - Otherwise a pending reservation is taken, the boost is paid for and
//     only then stored as active. A failed payment drops the reservation and
//     returns ErrInsufficientBalance.
//   - A caller racing an in-flight payment gets the pending record
//     (Pending: true) at zero cost.
func (m *Manager) ApplyBoost(ctx context.Context, userID, authToken string) (BoostResult, error) {
	if userID == "" {
		return BoostResult{}, fmt.Errorf("%w: user is required", svcErr.ErrInvalidArgument)
	}
	log := m.log.With("user", userID)

	active, err := m.GetBoost(ctx, userID)
	if err != nil {
		return BoostResult{}, err
	}
	if active != nil {
		log.Debug("boost already active", "expires_at", active.ExpiresAt)
		return BoostResult{Boost: *active}, nil
	}

	now := m.now().UTC()
	rec := model.BoostRecord{
		UserID:      userID,
		StartedAt:   now,
		ExpiresAt:   now.Add(m.cfg.BoostDuration),
		DiamondCost: m.cfg.BoostDiamondCost,
		Pending:     true,
	}
	pendingKey := cache.KeyBoostPending(userID)
	inFlight, err := m.reserveBoost(ctx, pendingKey, rec)
	if err != nil {
		return BoostResult{}, err
	}
	if inFlight != nil {
		log.Debug("boost payment in flight", "expires_at", inFlight.ExpiresAt)
		return BoostResult{Boost: *inFlight}, nil
	}
	release := func() {
		if err := m.cache.Del(ctx, pendingKey); err != nil {
			log.Error("release boost reservation failed", "err", err)
		}
	}

	// a payment may have completed between the first read and the reservation
	active, err = m.GetBoost(ctx, userID)
	if err != nil || active != nil {
		release()
		if err != nil {
			return BoostResult{}, err
		}
		return BoostResult{Boost: *active}, nil
	}

	balance, err := m.ledger.SpendDiamonds(ctx, clients.SpendRequest{
		UserID:      userID,
		Amount:      rec.DiamondCost,
		Reason:      clients.ReasonBoost,
		Description: fmt.Sprintf("Profile boost for %s (%d diamonds)", m.cfg.BoostDuration, rec.DiamondCost),
		AuthToken:   authToken,
	})
	if err != nil {
		release()
		log.Warn("boost refused", "err", err)
		return BoostResult{}, err
	}

	rec.Pending = false
	if err := m.cache.SetJSON(ctx, cache.KeyBoost(userID), rec, m.cfg.BoostDuration); err != nil {
		log.Error("store paid boost failed", "err", err)
		return BoostResult{}, fmt.Errorf("store boost: %w", err)
	}
	release()

	m.events.Emit(events.Event{
		Type:       events.TypeBoost,
		UserID:     userID,
		Data:       map[string]any{"expiresAt": rec.ExpiresAt, "diamondCost": rec.DiamondCost},
		OccurredAt: now,
	})
	log.Info("boost applied", "expires_at", rec.ExpiresAt)
	return BoostResult{Boost: rec, DiamondCost: rec.DiamondCost, Balance: &balance}, nil
}

// reserveBoost claims the pending slot for rec. It returns the record already
// holding the slot, or nil when rec now holds it. A held slot that does not
// decode is cleared and claimed again.
func (m *Manager) reserveBoost(ctx context.Context, key string, rec model.BoostRecord) (*model.BoostRecord, error) {
	for attempt := 0; attempt < maxReserveAttempts; attempt++ {
		ok, err := m.cache.SetNXJSON(ctx, key, rec, pendingBoostTTL)
		if err != nil {
			return nil, fmt.Errorf("reserve boost: %w", err)
		}
		if ok {
			return nil, nil
		}
		var cur model.BoostRecord
		readable, err := m.cache.GetJSON(ctx, key, &cur)
		if err != nil {
			return nil, fmt.Errorf("read boost reservation: %w", err)
		}
		if readable {
			return &cur, nil
		}
		if err := m.cache.Del(ctx, key); err != nil {
			return nil, fmt.Errorf("clear boost reservation: %w", err)
		}
	}
	return nil, fmt.Errorf("reserve boost for %s: slot keeps changing", rec.UserID)
}

// GetBoost returns userID's active (paid) boost, or nil.
func (m *Manager) GetBoost(ctx context.Context, userID string) (*model.BoostRecord, error) {
	var rec model.BoostRecord
	ok, err := m.cache.GetJSON(ctx, cache.KeyBoost(userID), &rec)
	if err != nil {
		return nil, fmt.Errorf("read boost: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// IsUserBoosted reports whether userID has an active boost. Lookup failures read as false.
func (m *Manager) IsUserBoosted(ctx context.Context, userID string) bool {
	ok, err := m.cache.BatchExists(ctx, []string{cache.KeyBoost(userID)})
	if err != nil {
		m.log.Warn("boost lookup failed", "user", userID, "err", err)
		return false
	}
	return ok[0]
}
