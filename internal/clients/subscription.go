package clients

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/oggyb/muzz-matching/internal/model"
)

// FreeTier is what every user gets when the subscription service cannot say otherwise.
var FreeTier = model.Tier{IsSubscriber: false, TierName: "free"}

type SubscriptionClient struct {
	http *httpClient
	log  *slog.Logger
}

func NewSubscriptionClient(baseURL string, timeout time.Duration, log *slog.Logger) *SubscriptionClient {
	return &SubscriptionClient{http: newHTTPClient("subscription", baseURL, timeout, log), log: log}
}

// GetUserTier returns the user's tier, or FreeTier on any failure.
func (c *SubscriptionClient) GetUserTier(ctx context.Context, userID string) model.Tier {
	if !c.http.enabled() {
		return FreeTier
	}
	var tier model.Tier
	if err := c.http.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID)+"/tier", nil, &tier, nil); err != nil {
		c.log.Warn("subscription tier unavailable", "user", userID, "err", err)
		return FreeTier
	}
	if tier.TierName == "" {
		tier.TierName = FreeTier.TierName
	}
	return tier
}
