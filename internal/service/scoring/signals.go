package scoring

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/oggyb/muzz-matching/internal/cache"
	"github.com/oggyb/muzz-matching/internal/metrics"
	"github.com/oggyb/muzz-matching/internal/model"
	"github.com/oggyb/muzz-matching/internal/repository"
)

// fetchOr is the one place a failed signal read turns into its neutral
// default: the failure is logged at warn level and counted.
func fetchOr[T any](ctx context.Context, log *slog.Logger, signal string, def T, read func(context.Context) (T, error)) T {
	v, err := read(ctx)
	if err != nil {
		metrics.SignalFallbacks.WithLabelValues(signal).Inc()
		log.Warn("signal unavailable, using default", "signal", signal, "err", err)
		return def
	}
	return v
}

// Signals reads the per-user matching signals kept in Redis: declared user
// type, age and preferred age range, interest tags, photos, geo position and
// popularity. A missing key is not an error; it yields the zero value.
type Signals struct {
	cache  *cache.RedisCache
	swipes *repository.SwipeRepository
	today  *cache.WindowCounter
}

func NewSignals(c *cache.RedisCache, swipes *repository.SwipeRepository) *Signals {
	return &Signals{
		cache:  c,
		swipes: swipes,
		today:  cache.NewWindowCounter(c, cache.SwipeCounterPrefix, 24*time.Hour),
	}
}

// UserTypes returns the declared types of a and b ("" when unset).
func (s *Signals) UserTypes(ctx context.Context, a, b string) (string, string, error) {
	vals, err := s.cache.Client.MGet(ctx, cache.KeyUserType(a), cache.KeyUserType(b)).Result()
	if err != nil {
		return "", "", err
	}
	return asString(vals[0]), asString(vals[1]), nil
}

// Ages returns the known ages of ids. Users without an age are absent.
func (s *Signals) Ages(ctx context.Context, ids ...string) (map[string]int, error) {
	out := make(map[string]int, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cache.KeyUserAge(id)
	}
	vals, err := s.cache.Client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		if n, ok := asInt(v); ok {
			out[ids[i]] = n
		}
	}
	return out, nil
}

// AgePreference returns the user's preferred age range, defaulting each
// unset bound to [DefaultAgeMin, DefaultAgeMax].
func (s *Signals) AgePreference(ctx context.Context, userID string) (int, int, error) {
	vals, err := s.cache.Client.MGet(ctx, cache.KeyPrefAgeMin(userID), cache.KeyPrefAgeMax(userID)).Result()
	if err != nil {
		return DefaultAgeMin, DefaultAgeMax, err
	}
	lo, hi := DefaultAgeMin, DefaultAgeMax
	if n, ok := asInt(vals[0]); ok {
		lo = n
	}
	if n, ok := asInt(vals[1]); ok {
		hi = n
	}
	return lo, hi, nil
}

func (s *Signals) Tags(ctx context.Context, userID string) ([]model.Tag, error) {
	var tags []model.Tag
	if _, err := s.cache.GetJSON(ctx, cache.KeyUserTags(userID), &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// TagsOf fetches the tags of every id in one round trip.
func (s *Signals) TagsOf(ctx context.Context, ids []string) (map[string][]model.Tag, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cache.KeyUserTags(id)
	}
	lists, err := cache.MGetJSON[[]model.Tag](ctx, s.cache, keys)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]model.Tag, len(ids))
	for i, l := range lists {
		if l != nil {
			out[ids[i]] = *l
		}
	}
	return out, nil
}

func (s *Signals) Photos(ctx context.Context, userID string) ([]string, error) {
	var photos []string
	if _, err := s.cache.GetJSON(ctx, cache.KeyUserPhotos(userID), &photos); err != nil {
		return nil, err
	}
	return photos, nil
}

// Distance returns the km between a and b; ok is false when either has no position.
func (s *Signals) Distance(ctx context.Context, a, b string) (float64, bool, error) {
	return s.cache.GeoDist(ctx, cache.GeoUsersKey, a, b)
}

// Popularity returns the cached popularity score, 0 when none is cached.
func (s *Signals) Popularity(ctx context.Context, userID string) (float64, error) {
	raw, err := s.cache.Get(ctx, cache.KeyPopularity(userID))
	if err != nil || raw == "" {
		return 0, err
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, nil
	}
	return v, nil
}

// SwipeCount is the user's lifetime swipe-set size, or today's counter when
// the set is empty.
func (s *Signals) SwipeCount(ctx context.Context, userID string) (int64, error) {
	total, err := s.swipes.SwipeCount(ctx, userID)
	if err != nil {
		return 0, err
	}
	if total > 0 {
		return total, nil
	}
	return s.today.Current(ctx, userID)
}

// Boosted reports, per id, whether the user has an active boost.
func (s *Signals) Boosted(ctx context.Context, ids []string) (map[string]bool, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cache.KeyBoost(id)
	}
	exists, err := s.cache.BatchExists(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(ids))
	for i, ok := range exists {
		out[ids[i]] = ok
	}
	return out, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) (int, bool) {
	s, ok := v.(string)
	if !ok || s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
