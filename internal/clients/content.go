package clients

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/oggyb/muzz-matching/internal/model"
)

// MaxRecentPosts caps the preview attached to a card detail.
const MaxRecentPosts = 5

type ContentClient struct {
	http *httpClient
	log  *slog.Logger
}

type postsResponse struct {
	Posts []model.Post `json:"posts"`
}

func NewContentClient(baseURL string, timeout time.Duration, log *slog.Logger) *ContentClient {
	return &ContentClient{http: newHTTPClient("content", baseURL, timeout, log), log: log}
}

// RecentPosts returns up to limit of the user's latest posts. Failures yield an empty list.
func (c *ContentClient) RecentPosts(ctx context.Context, userID string, limit int) []model.Post {
	if limit <= 0 || limit > MaxRecentPosts {
		limit = MaxRecentPosts
	}
	if !c.http.enabled() {
		return []model.Post{}
	}
	var resp postsResponse
	path := "/users/" + url.PathEscape(userID) + "/posts?limit=" + strconv.Itoa(limit)
	if err := c.http.do(ctx, http.MethodGet, path, nil, &resp, nil); err != nil {
		c.log.Warn("recent posts unavailable", "user", userID, "err", err)
		return []model.Post{}
	}
	if len(resp.Posts) > limit {
		resp.Posts = resp.Posts[:limit]
	}
	if resp.Posts == nil {
		return []model.Post{}
	}
	return resp.Posts
}
