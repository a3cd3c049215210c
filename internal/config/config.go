package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/joho/godotenv"
)

const (
	DefaultServerAddr      = ":8080"
	DefaultKafkaBrokers    = "localhost:9092"
	DefaultEventsTopic     = "routine_completion_events"
	DefaultStatsGroupID    = "routine-stats-group"
	DefaultStoreTimeout    = 3 * time.Second
	DefaultMetricsInterval = 30 * time.Second
)

type Config struct {
	ServerAddr string

	DBType string
	DBDSN  string

	// CatalogPath is a YAML or JSON catalog file; empty selects the embedded catalog.
	CatalogPath   string
	Location      *time.Location
	StoreTimeout  time.Duration
	RetentionDays int

	// TestModeAllowed exposes the operator test-mode routes.
	TestModeAllowed bool

	KafkaEnabled    bool
	KafkaBrokers    []string
	EventsTopic     string
	StatsGroupID    string
	MetricsInterval time.Duration
}

// Load reads the process environment, seeded from the given .env files when they exist.
// Variables already set in the environment win over .env values.
func Load(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
		hlog.Infof("Loaded environment from %s", f)
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an environment lookup function.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := Config{
		ServerAddr:   get("SERVER_ADDR", DefaultServerAddr),
		DBType:       get("DB_TYPE", "sqlite"),
		DBDSN:        get("DB_DSN", ""),
		CatalogPath:  get("ROUTINE_CATALOG_PATH", ""),
		EventsTopic:  get("ROUTINE_EVENTS_TOPIC", DefaultEventsTopic),
		StatsGroupID: get("STATS_GROUP_ID", DefaultStatsGroupID),
	}

	tz := get("ROUTINE_TIMEZONE", "Local")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Config{}, fmt.Errorf("ROUTINE_TIMEZONE %q: %w", tz, err)
	}
	cfg.Location = loc

	if cfg.StoreTimeout, err = parseDuration(get("ROUTINE_STORE_TIMEOUT", ""), DefaultStoreTimeout); err != nil {
		return Config{}, fmt.Errorf("ROUTINE_STORE_TIMEOUT: %w", err)
	}
	if cfg.MetricsInterval, err = parseDuration(get("STATS_METRICS_INTERVAL", ""), DefaultMetricsInterval); err != nil {
		return Config{}, fmt.Errorf("STATS_METRICS_INTERVAL: %w", err)
	}

	if v := get("ROUTINE_RETENTION_DAYS", "0"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("ROUTINE_RETENTION_DAYS must be a non-negative integer, got %q", v)
		}
		cfg.RetentionDays = n
	}

	cfg.TestModeAllowed = parseBool(get("ROUTINE_TEST_MODE_ALLOWED", ""))
	cfg.KafkaEnabled = parseBool(get("KAFKA_ENABLED", ""))
	for _, b := range strings.Split(get("KAFKA_BROKERS", DefaultKafkaBrokers), ",") {
		if b = strings.TrimSpace(b); b != "" {
			cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
		}
	}
	return cfg, nil
}

func parseDuration(v string, def time.Duration) (time.Duration, error) {
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", v)
	}
	return d, nil
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
