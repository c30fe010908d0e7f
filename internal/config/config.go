package config

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

type AppConfig struct {
	AppEnv   string
	LogLevel slog.Level

	// Feed source.
	FeedURL        string
	FeedTimeout    time.Duration
	FeedMaxRetries int

	// Cron is a 5-field crontab expression evaluated in UTC.
	Cron string
	// RunOnce runs a single cycle and exits instead of scheduling.
	RunOnce bool

	StoreDriver  string
	SQLitePath   string
	SQLiteDSN    string
	MaxOpenConns int

	// CSV snapshots of each cycle's extracted rows; empty disables a file.
	ExportMeasurementsCSV string
	ExportStationsCSV     string

	Port string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.AppEnv = getenvDefault("APP_ENV", "dev")
	switch cfg.AppEnv {
	case "dev", "prod":
	default:
		return nil, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", cfg.AppEnv)
	}

	level, err := parseLogLevel(getenvDefault("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	cfg.FeedURL = getenvDefault("FEED_URL", "https://data.buienradar.nl/2.0/feed/json")

	// The feed is bounded by a fixed request timeout.
	timeoutStr := getenvDefault("FEED_TIMEOUT", "20s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid FEED_TIMEOUT: %w", err)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("invalid FEED_TIMEOUT: must be positive, got %s", timeout)
	}
	cfg.FeedTimeout = timeout
	cfg.FeedMaxRetries, err = getenvInt("FEED_MAX_RETRIES", 0)
	if err != nil {
		return nil, err
	}
	if cfg.FeedMaxRetries < 0 {
		return nil, fmt.Errorf("invalid FEED_MAX_RETRIES: must not be negative")
	}

	cfg.Cron = getenvDefault("ETL_CRON", "*/1 * * * *")
	if n := len(strings.Fields(cfg.Cron)); n != 5 {
		return nil, fmt.Errorf("invalid ETL_CRON %q: want 5 fields, got %d", cfg.Cron, n)
	}
	if _, err := cron.ParseStandard(cfg.Cron); err != nil {
		return nil, fmt.Errorf("invalid ETL_CRON %q: %w", cfg.Cron, err)
	}

	runOnce, err := strconv.ParseBool(getenvDefault("ETL_RUN_ONCE", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid ETL_RUN_ONCE: %w", err)
	}
	cfg.RunOnce = runOnce

	cfg.StoreDriver = strings.ToLower(getenvDefault("STORE_DRIVER", DriverSQLite))
	switch cfg.StoreDriver {
	case DriverSQLite, DriverMemory:
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER %q (allowed: sqlite, memory)", cfg.StoreDriver)
	}
	cfg.SQLitePath = getenvDefault("SQLITE_PATH", "data/weather.sqlite")
	cfg.SQLiteDSN = os.Getenv("SQLITE_DSN")
	cfg.MaxOpenConns, err = getenvInt("DB_MAX_OPEN_CONNS", 1)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns < 1 {
		return nil, fmt.Errorf("invalid DB_MAX_OPEN_CONNS: must be at least 1, got %d", cfg.MaxOpenConns)
	}

	cfg.ExportMeasurementsCSV = os.Getenv("EXPORT_MEASUREMENTS_CSV")
	cfg.ExportStationsCSV = os.Getenv("EXPORT_STATIONS_CSV")

	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
