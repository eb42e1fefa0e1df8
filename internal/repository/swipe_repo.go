package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oggyb/muzz-matching/internal/cache"
	"github.com/oggyb/muzz-matching/internal/model"
)

// SwipeRepository stores directional swipe records and the indexes derived
// from them: the swiper's swipe-set, the target's likes-received sorted set
// and the swiper's last swipe for undo.
type SwipeRepository struct {
	cache *cache.RedisCache
}

// Liker is one entry of a likes-received sorted set.
type Liker struct {
	UserID  string
	LikedAt time.Time
}

func NewSwipeRepository(c *cache.RedisCache) *SwipeRepository {
	return &SwipeRepository{cache: c}
}

// Get returns the record for (swiperID, swipedID) or nil.
func (r *SwipeRepository) Get(ctx context.Context, swiperID, swipedID string) (*model.SwipeRecord, error) {
	var rec model.SwipeRecord
	ok, err := r.cache.GetJSON(ctx, cache.KeySwipe(swiperID, swipedID), &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &rec, nil
}

// Create persists rec only if the ordered pair has no record yet.
// Returns false when a record already existed.
func (r *SwipeRepository) Create(ctx context.Context, rec model.SwipeRecord) (bool, error) {
	return r.cache.SetNXJSON(ctx, cache.KeySwipe(rec.SwiperID, rec.SwipedID), rec, 0)
}

// Delete removes the record and the target from the swiper's swipe-set.
func (r *SwipeRepository) Delete(ctx context.Context, swiperID, swipedID string) error {
	_, err := r.cache.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, cache.KeySwipe(swiperID, swipedID))
		p.SRem(ctx, cache.KeyUserSwipes(swiperID), swipedID)
		return nil
	})
	return err
}

// GetMany fetches the records swiperIDs[i] → swipedID in one round trip.
// The result is keyed by swiper id; missing records are absent.
func (r *SwipeRepository) GetMany(ctx context.Context, swiperIDs []string, swipedID string) (map[string]model.SwipeRecord, error) {
	keys := make([]string, len(swiperIDs))
	for i, id := range swiperIDs {
		keys[i] = cache.KeySwipe(id, swipedID)
	}
	recs, err := cache.MGetJSON[model.SwipeRecord](ctx, r.cache, keys)
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.SwipeRecord, len(recs))
	for i, rec := range recs {
		if rec != nil {
			out[swiperIDs[i]] = *rec
		}
	}
	return out, nil
}

func (r *SwipeRepository) AddToSwipeSet(ctx context.Context, swiperID, swipedID string) error {
	return r.cache.Client.SAdd(ctx, cache.KeyUserSwipes(swiperID), swipedID).Err()
}

// SwipedIDs returns up to max targets the user has swiped. max <= 0 means all.
func (r *SwipeRepository) SwipedIDs(ctx context.Context, userID string, max int) ([]string, error) {
	ids, err := r.cache.Client.SMembers(ctx, cache.KeyUserSwipes(userID)).Result()
	if err != nil {
		return nil, err
	}
	if max > 0 && len(ids) > max {
		ids = ids[:max]
	}
	return ids, nil
}

// SwipeCount is the cardinality of the user's swipe-set.
func (r *SwipeRepository) SwipeCount(ctx context.Context, userID string) (int64, error) {
	return r.cache.Client.SCard(ctx, cache.KeyUserSwipes(userID)).Result()
}

// SetLastSwipe remembers rec as the swiper's undo target for ttl.
func (r *SwipeRepository) SetLastSwipe(ctx context.Context, rec model.SwipeRecord, ttl time.Duration) error {
	return r.cache.SetJSON(ctx, cache.KeyLastSwipe(rec.SwiperID), rec, ttl)
}

func (r *SwipeRepository) LastSwipe(ctx context.Context, userID string) (*model.SwipeRecord, error) {
	var rec model.SwipeRecord
	ok, err := r.cache.GetJSON(ctx, cache.KeyLastSwipe(userID), &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &rec, nil
}

func (r *SwipeRepository) ClearLastSwipe(ctx context.Context, userID string) error {
	return r.cache.Del(ctx, cache.KeyLastSwipe(userID))
}

// AddLike records likerID in targetID's likes-received set, scored by time.
func (r *SwipeRepository) AddLike(ctx context.Context, targetID, likerID string, at time.Time) error {
	return r.cache.Client.ZAdd(ctx, cache.KeyLikesReceived(targetID), redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: likerID,
	}).Err()
}

func (r *SwipeRepository) RemoveLike(ctx context.Context, targetID, likerID string) error {
	return r.cache.Client.ZRem(ctx, cache.KeyLikesReceived(targetID), likerID).Err()
}

// HasLike reports whether likerID is in userID's likes-received set.
func (r *SwipeRepository) HasLike(ctx context.Context, userID, likerID string) (bool, error) {
	err := r.cache.Client.ZScore(ctx, cache.KeyLikesReceived(userID), likerID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	return err == nil, err
}

func (r *SwipeRepository) LikeCount(ctx context.Context, userID string) (int64, error) {
	return r.cache.Client.ZCard(ctx, cache.KeyLikesReceived(userID)).Result()
}

// Likers returns likers newest first, starting at offset.
func (r *SwipeRepository) Likers(ctx context.Context, userID string, offset, limit int) ([]Liker, error) {
	zs, err := r.cache.Client.ZRevRangeWithScores(ctx, cache.KeyLikesReceived(userID),
		int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Liker, 0, len(zs))
	for _, z := range zs {
		id, _ := z.Member.(string)
		out = append(out, Liker{UserID: id, LikedAt: time.UnixMilli(int64(z.Score))})
	}
	return out, nil
}

// CountLikesSince counts likes received at or after since.
func (r *SwipeRepository) CountLikesSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	return r.cache.Client.ZCount(ctx, cache.KeyLikesReceived(userID),
		strconv.FormatInt(since.UnixMilli(), 10), "+inf").Result()
}

// LikersSince lists likers whose like landed at or after since.
func (r *SwipeRepository) LikersSince(ctx context.Context, userID string, since time.Time) ([]string, error) {
	return r.cache.Client.ZRangeByScore(ctx, cache.KeyLikesReceived(userID), &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
}

// Blocked returns every user with a block relationship to userID, in either direction.
func (r *SwipeRepository) Blocked(ctx context.Context, userID string) ([]string, error) {
	return r.cache.Client.SUnion(ctx, cache.KeyBlocks(userID), cache.KeyBlockedBy(userID)).Result()
}
