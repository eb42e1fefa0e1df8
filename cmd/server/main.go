package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/oggyb/muzz-matching/internal/app"
	"github.com/oggyb/muzz-matching/internal/cache"
	"github.com/oggyb/muzz-matching/internal/config"
	"github.com/oggyb/muzz-matching/internal/db"
	"github.com/oggyb/muzz-matching/internal/events"
	"github.com/oggyb/muzz-matching/internal/jobs"
	"github.com/oggyb/muzz-matching/internal/logger"
	"github.com/oggyb/muzz-matching/internal/metrics"
	"github.com/oggyb/muzz-matching/internal/server"
	"github.com/oggyb/muzz-matching/internal/service/matching"
)

const drainTimeout = 10 * time.Second

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L() // slog.Logger pointer

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(ctx); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}
	defer redisCache.Close()

	// Init event publisher
	publisher, err := events.NewPublisher(cfg.NATS, watermill.NewSlogLogger(log))
	if err != nil {
		log.Error("failed to init event publisher", "err", err)
		return
	}
	emitter := events.NewEmitter(publisher, log, 0)

	appCtx := app.New(cfg, database, redisCache, log, emitter).WithClients()

	if cfg.App.ENV == "development" {
		profiles, err := db.SeedProfiles(database, 50)
		if err == nil {
			err = db.SeedSignals(ctx, redisCache, profiles)
		}
		if err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	registrar := matching.NewRegistrar(appCtx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	sup := server.NewSupervisor("matching", logger.With("component", "supervisor"))
	sup.Add(&server.GRPCService{Addr: server.GRPCAddr(cfg), Server: server.NewGRPCServer(registrar)})
	sup.Add(&server.HTTPService{Server: &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}})
	sup.Add(jobs.NewPopularityRefresher(redisCache, registrar.Service().Scoring(), cfg.Matching.PopularityRefresh, log))

	log.Info("starting matching service", "grpc", server.GRPCAddr(cfg), "metrics", cfg.Metrics.Addr)
	if err := sup.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("supervisor stopped", "err", err)
	}
	log.Info("shutting down")

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := emitter.Close(drainCtx); err != nil {
		log.Warn("event emitter shutdown", "err", err)
	}
}
