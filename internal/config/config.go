package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// PathEnvVar overrides the YAML config file location.
const PathEnvVar = "CONFIG_PATH"

var defaultPaths = []string{"config.yaml", "config.yml"}

type LogConfig struct {
	Level     string `koanf:"level"`
	Format    string `koanf:"format"`
	Component string `koanf:"component"`
	Source    bool   `koanf:"source"`
}

type DBConfig struct {
	DSN      string `koanf:"dsn"`
	Host     string `koanf:"host"`
	Port     string `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Name     string `koanf:"name"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type GRPCConfig struct {
	Host string `koanf:"host"`
	Port string `koanf:"port"`
}

type NATSConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`
}

// ClientsConfig points at the external collaborators. An empty URL disables the client.
type ClientsConfig struct {
	RecommendationURL string        `koanf:"recommendation_url"`
	LedgerURL         string        `koanf:"ledger_url"`
	SubscriptionURL   string        `koanf:"subscription_url"`
	ContentURL        string        `koanf:"content_url"`
	Timeout           time.Duration `koanf:"timeout"`
}

// MatchingConfig holds the quotas, prices and TTLs of the matching core.
type MatchingConfig struct {
	DailySwipeLimit           int64         `koanf:"daily_swipe_limit"`
	FreeUndoLimit             int64         `koanf:"free_undo_limit"`
	SubscriberUndoLimit       int64         `koanf:"subscriber_undo_limit"`
	UndoDiamondCost           int64         `koanf:"undo_diamond_cost"`
	RevealDiamondCost         int64         `koanf:"reveal_diamond_cost"`
	BoostDiamondCost          int64         `koanf:"boost_diamond_cost"`
	BoostDuration             time.Duration `koanf:"boost_duration"`
	CompatTTL                 time.Duration `koanf:"compat_ttl"`
	PopularityWindow          time.Duration `koanf:"popularity_window"`
	PopularityTTL             time.Duration `koanf:"popularity_ttl"`
	SuperLikePopularityWeight int64         `koanf:"super_like_popularity_weight"`
	PopularityRefresh         time.Duration `koanf:"popularity_refresh"`
	RecommendationLimit       int           `koanf:"recommendation_limit"`
	RecommendationCacheTTL    time.Duration `koanf:"recommendation_cache_ttl"`
}

type Config struct {
	App struct {
		ENV string `koanf:"env"`
	} `koanf:"app"`

	Log      LogConfig      `koanf:"log"`
	DB       DBConfig       `koanf:"db"`
	Redis    RedisConfig    `koanf:"redis"`
	GRPC     GRPCConfig     `koanf:"grpc"`
	NATS     NATSConfig     `koanf:"nats"`
	Clients  ClientsConfig  `koanf:"clients"`
	Matching MatchingConfig `koanf:"matching"`

	Metrics struct {
		Addr string `koanf:"addr"`
	} `koanf:"metrics"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() *Config {
	cfg := &Config{
		Log: LogConfig{Level: "info", Format: "text", Component: "matching"},
		DB: DBConfig{
			Host:     "localhost",
			Port:     "3306",
			User:     "root",
			Password: "root",
			Name:     "muzz",
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		GRPC:  GRPCConfig{Host: "127.0.0.1", Port: "50051"},
		NATS:  NATSConfig{URL: "nats://127.0.0.1:4222"},
		Clients: ClientsConfig{
			Timeout: 3 * time.Second,
		},
		Matching: MatchingConfig{
			DailySwipeLimit:           100,
			FreeUndoLimit:             1,
			SubscriberUndoLimit:       5,
			UndoDiamondCost:           10,
			RevealDiamondCost:         20,
			BoostDiamondCost:          50,
			BoostDuration:             30 * time.Minute,
			CompatTTL:                 24 * time.Hour,
			PopularityWindow:          7 * 24 * time.Hour,
			PopularityTTL:             7 * 24 * time.Hour,
			SuperLikePopularityWeight: 1,
			PopularityRefresh:         time.Hour,
			RecommendationLimit:       50,
			RecommendationCacheTTL:    10 * time.Minute,
		},
	}
	cfg.App.ENV = "production"
	cfg.Metrics.Addr = ":9090"
	return cfg
}

// New loads configuration and falls back to defaults if loading fails.
func New() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v, using defaults\n", err)
		return Defaults()
	}
	return cfg
}

// Load layers struct defaults, an optional YAML file and environment variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if cfg.DB.DSN == "" {
		cfg.DB.DSN = fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
			cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name,
		)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := strings.TrimSpace(os.Getenv(PathEnvVar)); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range defaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envAliases keeps the flat variable names the service has always read.
var envAliases = map[string]string{
	"log_level":      "log.level",
	"log_format":     "log.format",
	"log_component":  "log.component",
	"log_source":     "log.source",
	"mysql_dsn":      "db.dsn",
	"db_host":        "db.host",
	"db_port":        "db.port",
	"db_user":        "db.user",
	"db_password":    "db.password",
	"db_name":        "db.name",
	"redis_addr":     "redis.addr",
	"redis_password": "redis.password",
	"redis_db":       "redis.db",
	"grpc_host":      "grpc.host",
	"grpc_port":      "grpc.port",
	"app_env":        "app.env",
	"nats_enabled":   "nats.enabled",
	"nats_url":       "nats.url",
	"metrics_addr":   "metrics.addr",
}

// envKey maps LOG_LEVEL to log.level and MATCHING__DAILY_SWIPE_LIMIT to
// matching.daily_swipe_limit. Unknown variables map to "" and are skipped.
func envKey(key string) string {
	key = strings.ToLower(key)
	if mapped, ok := envAliases[key]; ok {
		return mapped
	}
	for _, section := range []string{"clients", "matching"} {
		if rest, ok := strings.CutPrefix(key, section+"__"); ok && rest != "" {
			return section + "." + rest
		}
	}
	return ""
}
