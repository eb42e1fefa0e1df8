// Package jobs runs the matching core's periodic background work.
package jobs

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oggyb/muzz-matching/internal/cache"
	"github.com/oggyb/muzz-matching/internal/service/scoring"
)

const (
	refreshConcurrency = 8
	refreshTimeout     = 10 * time.Minute
)

var likesKeyPrefix = cache.KeyLikesReceived("")

// PopularityRefresher recomputes the cached popularity of every known user:
// members of the geo index and users with a likes-received set.
type PopularityRefresher struct {
	cache    *cache.RedisCache
	engine   *scoring.Engine
	interval time.Duration
	log      *slog.Logger
}

func NewPopularityRefresher(c *cache.RedisCache, engine *scoring.Engine, interval time.Duration, log *slog.Logger) *PopularityRefresher {
	if interval <= 0 {
		interval = time.Hour
	}
	return &PopularityRefresher{cache: c, engine: engine, interval: interval, log: log}
}

func (r *PopularityRefresher) String() string { return "popularity refresher" }

// Serve refreshes once immediately and then on every tick until ctx ends.
func (r *PopularityRefresher) Serve(ctx context.Context) error {
	r.log.Info("popularity refresher starting", "interval", r.interval)
	r.refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.log.Info("popularity refresher shutting down")
			return ctx.Err()
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *PopularityRefresher) refresh(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	start := time.Now()
	n, err := r.RunOnce(runCtx)
	if err != nil {
		r.log.Warn("popularity refresh incomplete", "refreshed", n, "err", err)
		return
	}
	r.log.Info("popularity refreshed", "users", n, "took", time.Since(start))
}

// RunOnce recomputes popularity for every known user and returns how many
// were refreshed. Per-user failures are logged and skipped.
func (r *PopularityRefresher) RunOnce(ctx context.Context) (int, error) {
	users, err := r.users(ctx)
	if err != nil {
		return 0, err
	}

	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(refreshConcurrency)
	for _, id := range users {
		g.Go(func() error {
			if _, err := r.engine.ComputePopularity(gctx, id); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				r.log.Warn("popularity recompute failed", "user", id, "err", err)
				return nil
			}
			done.Add(1)
			return nil
		})
	}
	err = g.Wait()
	return int(done.Load()), err
}

func (r *PopularityRefresher) users(ctx context.Context) ([]string, error) {
	members, err := r.cache.Client.ZRange(ctx, cache.GeoUsersKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	keys, err := r.cache.ScanKeys(ctx, likesKeyPrefix+"*")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(members)+len(keys))
	out := make([]string, 0, len(members)+len(keys))
	add := func(id string) {
		if _, ok := seen[id]; ok || id == "" {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range members {
		add(id)
	}
	for _, k := range keys {
		add(strings.TrimPrefix(k, likesKeyPrefix))
	}
	return out, nil
}
