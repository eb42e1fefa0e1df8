package clients

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	svcErr "github.com/oggyb/muzz-matching/internal/errors"
	"github.com/oggyb/muzz-matching/internal/metrics"
)

// Spend reasons sent to the ledger.
const (
	ReasonUndo   = "swipe_undo"
	ReasonReveal = "likes_reveal"
	ReasonBoost  = "profile_boost"
)

// SpendRequest debits Amount diamonds from UserID.
type SpendRequest struct {
	UserID      string `json:"userId"`
	Amount      int64  `json:"amount"`
	Reason      string `json:"reason"`
	Description string `json:"description"`
	AuthToken   string `json:"-"`
}

type spendResponse struct {
	Balance int64 `json:"balance"`
}

// LedgerClient spends diamonds through the currency ledger.
type LedgerClient struct {
	http *httpClient
	log  *slog.Logger
}

func NewLedgerClient(baseURL string, timeout time.Duration, log *slog.Logger) *LedgerClient {
	return &LedgerClient{http: newHTTPClient("ledger", baseURL, timeout, log), log: log}
}

// SpendDiamonds debits the wallet and returns the new balance.
// Every failure, including a timeout, wraps ErrInsufficientBalance: a spend
// that did not clearly succeed must abort the paid action.
func (c *LedgerClient) SpendDiamonds(ctx context.Context, req SpendRequest) (int64, error) {
	var resp spendResponse
	err := c.http.do(ctx, http.MethodPost, "/diamonds/spend", req, &resp, bearer(req.AuthToken))
	if err != nil {
		metrics.DiamondSpends.WithLabelValues(req.Reason, "failed").Inc()
		var se *StatusError
		if errors.As(err, &se) && se.Code < http.StatusInternalServerError {
			c.log.Info("diamond spend refused", "user", req.UserID, "reason", req.Reason, "status", se.Code)
		} else {
			c.log.Warn("diamond spend failed", "user", req.UserID, "reason", req.Reason, "err", err)
		}
		return 0, fmt.Errorf("%w: %v", svcErr.ErrInsufficientBalance, err)
	}
	metrics.DiamondSpends.WithLabelValues(req.Reason, "ok").Inc()
	return resp.Balance, nil
}
