package config

import (
	"log/slog"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "LOG_LEVEL", "FEED_URL", "FEED_TIMEOUT", "FEED_MAX_RETRIES",
		"ETL_CRON", "ETL_RUN_ONCE", "STORE_DRIVER", "SQLITE_PATH", "SQLITE_DSN",
		"DB_MAX_OPEN_CONNS", "PORT", "EXPORT_MEASUREMENTS_CSV", "EXPORT_STATIONS_CSV",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.AppEnv != "dev" {
		t.Errorf("AppEnv = %q, want dev", cfg.AppEnv)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want info", cfg.LogLevel)
	}
	if cfg.FeedURL != "https://data.buienradar.nl/2.0/feed/json" {
		t.Errorf("FeedURL = %q", cfg.FeedURL)
	}
	if cfg.FeedTimeout != 20*time.Second {
		t.Errorf("FeedTimeout = %v, want 20s", cfg.FeedTimeout)
	}
	if cfg.FeedMaxRetries != 0 {
		t.Errorf("FeedMaxRetries = %d, want 0", cfg.FeedMaxRetries)
	}
	if cfg.Cron != "*/1 * * * *" {
		t.Errorf("Cron = %q", cfg.Cron)
	}
	if cfg.RunOnce {
		t.Error("RunOnce should default to false")
	}
	if cfg.StoreDriver != DriverSQLite {
		t.Errorf("StoreDriver = %q, want sqlite", cfg.StoreDriver)
	}
	if cfg.SQLitePath != "data/weather.sqlite" {
		t.Errorf("SQLitePath = %q", cfg.SQLitePath)
	}
	if cfg.MaxOpenConns != 1 {
		t.Errorf("MaxOpenConns = %d, want 1", cfg.MaxOpenConns)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("LOG_LEVEL", "WARNING")
	t.Setenv("FEED_TIMEOUT", "5s")
	t.Setenv("ETL_CRON", "*/5 * * * *")
	t.Setenv("ETL_RUN_ONCE", "true")
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("FEED_MAX_RETRIES", " 2 ")
	t.Setenv("EXPORT_MEASUREMENTS_CSV", "data/measurements.csv")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.AppEnv != "prod" || cfg.LogLevel != slog.LevelWarn {
		t.Errorf("got env=%q level=%v", cfg.AppEnv, cfg.LogLevel)
	}
	if cfg.FeedTimeout != 5*time.Second {
		t.Errorf("FeedTimeout = %v, want 5s", cfg.FeedTimeout)
	}
	if cfg.Cron != "*/5 * * * *" || !cfg.RunOnce {
		t.Errorf("got cron=%q runOnce=%v", cfg.Cron, cfg.RunOnce)
	}
	if cfg.StoreDriver != DriverMemory {
		t.Errorf("StoreDriver = %q, want memory", cfg.StoreDriver)
	}
	if cfg.FeedMaxRetries != 2 {
		t.Errorf("FeedMaxRetries = %d, want 2", cfg.FeedMaxRetries)
	}
	if cfg.ExportMeasurementsCSV != "data/measurements.csv" || cfg.ExportStationsCSV != "" {
		t.Errorf("got export paths %q, %q", cfg.ExportMeasurementsCSV, cfg.ExportStationsCSV)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"app env", "APP_ENV", "staging"},
		{"log level", "LOG_LEVEL", "verbose"},
		{"timeout", "FEED_TIMEOUT", "soon"},
		{"zero timeout", "FEED_TIMEOUT", "0s"},
		{"negative retries", "FEED_MAX_RETRIES", "-1"},
		{"non-numeric retries", "FEED_MAX_RETRIES", "three"},
		{"cron", "ETL_CRON", "* * *"},
		{"cron minute out of range", "ETL_CRON", "61 * * * *"},
		{"cron garbage", "ETL_CRON", "a b c d e"},
		{"non-numeric conns", "DB_MAX_OPEN_CONNS", "many"},
		{"zero conns", "DB_MAX_OPEN_CONNS", "0"},
		{"run once", "ETL_RUN_ONCE", "maybe"},
		{"driver", "STORE_DRIVER", "postgres"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			cfg, err := Load()
			if err == nil {
				t.Fatalf("Load() should fail for %s=%q", tt.key, tt.value)
			}
			if cfg != nil {
				t.Error("Load() should return nil config on error")
			}
		})
	}
}
