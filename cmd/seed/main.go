package main

import (
	"context"
	"flag"
	"os"

	"github.com/oggyb/muzz-matching/internal/cache"
	"github.com/oggyb/muzz-matching/internal/config"
	"github.com/oggyb/muzz-matching/internal/db"
	"github.com/oggyb/muzz-matching/internal/logger"
)

const defaultProfiles = 50

func main() {
	n := flag.Int("n", defaultProfiles, "number of demo profiles")
	flag.Parse()

	// Load configuration
	cfg := config.New()
	logger.InitFromConfig(cfg)

	if *n <= 0 {
		logger.Warn("invalid profile count, using default", "n", *n, "default", defaultProfiles)
		*n = defaultProfiles
	}
	logger.Debug("seeding", "profiles", *n, "redis", cfg.Redis.Addr)

	database, err := db.NewDB(cfg)
	if err != nil {
		logger.Error("failed to init db", "err", err)
		os.Exit(1)
	}

	redisCache := cache.NewRedisCache(cfg)
	defer redisCache.Close()

	profiles, err := db.SeedProfiles(database, *n)
	if err != nil {
		logger.Error("failed to seed profiles", "err", err)
		os.Exit(1)
	}
	if err := db.SeedSignals(context.Background(), redisCache, profiles); err != nil {
		logger.Error("failed to seed signals", "err", err)
		os.Exit(1)
	}

	logger.Info("seeding completed", "profiles", len(profiles))
}
