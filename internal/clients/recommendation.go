package clients

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/oggyb/muzz-matching/internal/cache"
	"github.com/oggyb/muzz-matching/internal/model"
)

// RecommendationClient talks to the external recommendation model.
//
// Behavior:
//   - The full list for a user is cached in Redis for cacheTTL.
//   - Concurrent misses for the same user share one outbound call.
//   - Any failure yields nil, which callers read as "unavailable".
type RecommendationClient struct {
	http     *httpClient
	cache    *cache.RedisCache
	cacheTTL time.Duration
	group    singleflight.Group
	log      *slog.Logger
}

type recommendationsResponse struct {
	Recommendations []model.Recommendation `json:"recommendations"`
}

func NewRecommendationClient(baseURL string, timeout time.Duration, c *cache.RedisCache, cacheTTL time.Duration, log *slog.Logger) *RecommendationClient {
	return &RecommendationClient{
		http:     newHTTPClient("recommendation", baseURL, timeout, log),
		cache:    c,
		cacheTTL: cacheTTL,
		log:      log,
	}
}

// GetRecommendations returns up to limit recommendations for userID that are
// not in excludeIDs, best first, or nil when the model is unavailable.
func (c *RecommendationClient) GetRecommendations(ctx context.Context, userID string, limit int, excludeIDs []string) []model.Recommendation {
	if !c.http.enabled() {
		return nil
	}

	key := cache.KeyRecommendations(userID)
	var recs []model.Recommendation
	if ok, err := c.cache.GetJSON(ctx, key, &recs); err == nil && ok {
		return filterRecommendations(recs, limit, excludeIDs)
	}

	v, err, _ := c.group.Do(userID+":"+strconv.Itoa(limit), func() (any, error) {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(limit))
		var resp recommendationsResponse
		path := "/users/" + url.PathEscape(userID) + "/recommendations?" + q.Encode()
		if err := c.http.do(ctx, http.MethodGet, path, nil, &resp, nil); err != nil {
			return nil, err
		}
		if resp.Recommendations == nil {
			resp.Recommendations = []model.Recommendation{}
		}
		if err := c.cache.SetJSON(ctx, key, resp.Recommendations, c.cacheTTL); err != nil {
			c.log.Warn("cache recommendations failed", "user", userID, "err", err)
		}
		return resp.Recommendations, nil
	})
	if err != nil {
		c.log.Warn("recommendations unavailable", "user", userID, "err", err)
		return nil
	}
	return filterRecommendations(v.([]model.Recommendation), limit, excludeIDs)
}

func filterRecommendations(recs []model.Recommendation, limit int, excludeIDs []string) []model.Recommendation {
	skip := make(map[string]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		skip[id] = struct{}{}
	}
	out := make([]model.Recommendation, 0, len(recs))
	for _, r := range recs {
		if _, ok := skip[r.UserID]; ok {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
