package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/oggyb/muzz-matching/internal/cache"
	"github.com/oggyb/muzz-matching/internal/model"
)

const maxTxRetries = 5

// MatchRepository stores one MatchRecord per unordered pair under a canonical
// key, a match-id pointer to that key and a per-user index of match ids.
type MatchRepository struct {
	cache *cache.RedisCache
}

func NewMatchRepository(c *cache.RedisCache) *MatchRepository {
	return &MatchRepository{cache: c}
}

// CreateIfAbsent creates an active match for the pair unless one is already active.
//
// Behavior:
//   - The first writer wins through SETNX on the canonical pair key.
//   - An existing active record is returned with created = false.
//   - An unmatched/blocked record is never reactivated; it is replaced by a
//     fresh record with a new id inside a WATCH transaction.
//
// The new record is not added to the users' match indexes; see Index.
func (r *MatchRepository) CreateIfAbsent(ctx context.Context, userA, userB string, now time.Time) (model.MatchRecord, bool, error) {
	key := cache.KeyMatch(userA, userB)
	rec := model.MatchRecord{
		ID:        uuid.NewString(),
		UserAID:   userA,
		UserBID:   userB,
		MatchedAt: now,
		Status:    model.MatchActive,
	}

	ok, err := r.cache.SetNXJSON(ctx, key, rec, 0)
	if err != nil {
		return model.MatchRecord{}, false, err
	}
	if ok {
		if err := r.cache.Set(ctx, cache.KeyMatchID(rec.ID), key, 0); err != nil {
			return model.MatchRecord{}, false, err
		}
		return rec, true, nil
	}

	var existing model.MatchRecord
	found, err := r.cache.GetJSON(ctx, key, &existing)
	if err != nil {
		return model.MatchRecord{}, false, err
	}
	if found && existing.Status == model.MatchActive {
		return existing, false, nil
	}
	return r.replaceTerminal(ctx, key, rec)
}

func (r *MatchRepository) replaceTerminal(ctx context.Context, key string, rec model.MatchRecord) (model.MatchRecord, bool, error) {
	var (
		out     model.MatchRecord
		created bool
	)
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			var cur model.MatchRecord
			if json.Unmarshal(raw, &cur) == nil && cur.Status == model.MatchActive {
				out, created = cur, false
				return nil
			}
		}
		b, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, b, 0)
			p.Set(ctx, cache.KeyMatchID(rec.ID), key, 0)
			return nil
		})
		if err == nil {
			out, created = rec, true
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.cache.Client.Watch(ctx, txf, key)
		if err == nil {
			return out, created, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return model.MatchRecord{}, false, err
	}
	return model.MatchRecord{}, false, fmt.Errorf("create match %s: %w", key, redis.TxFailedErr)
}

// FindByID resolves a match id through its pointer key, then falls back to a
// scan over every pair key.
func (r *MatchRepository) FindByID(ctx context.Context, matchID string) (*model.MatchRecord, error) {
	key, err := r.cache.Get(ctx, cache.KeyMatchID(matchID))
	if err != nil {
		return nil, err
	}
	if key != "" {
		var rec model.MatchRecord
		ok, err := r.cache.GetJSON(ctx, key, &rec)
		if err != nil {
			return nil, err
		}
		if ok && rec.ID == matchID {
			return &rec, nil
		}
	}

	keys, err := r.cache.ScanKeys(ctx, "match:*")
	if err != nil {
		return nil, err
	}
	recs, err := cache.MGetJSON[model.MatchRecord](ctx, r.cache, keys)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		if rec != nil && rec.ID == matchID {
			return rec, nil
		}
	}
	return nil, nil
}

// GetMany resolves match ids to records in two batched round trips.
// Ids whose record is gone or was replaced are skipped.
func (r *MatchRepository) GetMany(ctx context.Context, ids []string) ([]model.MatchRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ptrKeys := make([]string, len(ids))
	for i, id := range ids {
		ptrKeys[i] = cache.KeyMatchID(id)
	}
	ptrs, err := r.cache.Client.MGet(ctx, ptrKeys...).Result()
	if err != nil {
		return nil, err
	}

	pairKeys := make([]string, 0, len(ptrs))
	wanted := make([]string, 0, len(ptrs))
	for i, p := range ptrs {
		if s, ok := p.(string); ok && s != "" {
			pairKeys = append(pairKeys, s)
			wanted = append(wanted, ids[i])
		}
	}
	recs, err := cache.MGetJSON[model.MatchRecord](ctx, r.cache, pairKeys)
	if err != nil {
		return nil, err
	}

	out := make([]model.MatchRecord, 0, len(recs))
	for i, rec := range recs {
		if rec != nil && rec.ID == wanted[i] {
			out = append(out, *rec)
		}
	}
	return out, nil
}

// Index adds the match id to both participants' match sets.
func (r *MatchRepository) Index(ctx context.Context, rec model.MatchRecord) error {
	_, err := r.cache.Client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.SAdd(ctx, cache.KeyUserMatches(rec.UserAID), rec.ID)
		p.SAdd(ctx, cache.KeyUserMatches(rec.UserBID), rec.ID)
		return nil
	})
	return err
}

// Unindex removes the match id from both participants' match sets.
func (r *MatchRepository) Unindex(ctx context.Context, rec model.MatchRecord) error {
	_, err := r.cache.Client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.SRem(ctx, cache.KeyUserMatches(rec.UserAID), rec.ID)
		p.SRem(ctx, cache.KeyUserMatches(rec.UserBID), rec.ID)
		return nil
	})
	return err
}

// IDs lists the match ids indexed for userID.
func (r *MatchRepository) IDs(ctx context.Context, userID string) ([]string, error) {
	return r.cache.Client.SMembers(ctx, cache.KeyUserMatches(userID)).Result()
}

// IsIndexed reports whether matchID is in userID's match set.
func (r *MatchRepository) IsIndexed(ctx context.Context, userID, matchID string) (bool, error) {
	return r.cache.Client.SIsMember(ctx, cache.KeyUserMatches(userID), matchID).Result()
}

// Deactivate moves the pair's record from active to status (unmatched or
// blocked) and drops it from both match indexes. A non-empty matchID must
// equal the stored id. Returns nil when there was no active record to move.
func (r *MatchRepository) Deactivate(ctx context.Context, userA, userB, matchID string, status model.MatchStatus) (*model.MatchRecord, error) {
	key := cache.KeyMatch(userA, userB)
	var out *model.MatchRecord

	txf := func(tx *redis.Tx) error {
		out = nil
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		var cur model.MatchRecord
		if json.Unmarshal(raw, &cur) != nil || cur.Status != model.MatchActive {
			return nil
		}
		if matchID != "" && cur.ID != matchID {
			return nil
		}
		cur.Status = status
		b, err := json.Marshal(cur)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, b, 0)
			p.SRem(ctx, cache.KeyUserMatches(cur.UserAID), cur.ID)
			p.SRem(ctx, cache.KeyUserMatches(cur.UserBID), cur.ID)
			return nil
		})
		if err == nil {
			out = &cur
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.cache.Client.Watch(ctx, txf, key)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("deactivate match %s: %w", key, redis.TxFailedErr)
}
