package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(PathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(100), cfg.Matching.DailySwipeLimit)
	assert.Equal(t, int64(1), cfg.Matching.FreeUndoLimit)
	assert.Equal(t, int64(5), cfg.Matching.SubscriberUndoLimit)
	assert.Equal(t, 24*time.Hour, cfg.Matching.CompatTTL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Contains(t, cfg.DB.DSN, "@tcp(localhost:3306)/muzz")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(PathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("MYSQL_DSN", "u:p@tcp(db:3306)/x")
	t.Setenv("MATCHING__DAILY_SWIPE_LIMIT", "7")
	t.Setenv("CLIENTS__TIMEOUT", "1500ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
	assert.Equal(t, "u:p@tcp(db:3306)/x", cfg.DB.DSN)
	assert.Equal(t, int64(7), cfg.Matching.DailySwipeLimit)
	assert.Equal(t, 1500*time.Millisecond, cfg.Clients.Timeout)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "grpc:\n  port: \"6000\"\nmatching:\n  reveal_diamond_cost: 35\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv(PathEnvVar, path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "6000", cfg.GRPC.Port)
	assert.Equal(t, int64(35), cfg.Matching.RevealDiamondCost)
	assert.Equal(t, int64(20), Defaults().Matching.RevealDiamondCost)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "log.level", envKey("LOG_LEVEL"))
	assert.Equal(t, "matching.boost_duration", envKey("MATCHING__BOOST_DURATION"))
	assert.Equal(t, "", envKey("HOME"))
}
