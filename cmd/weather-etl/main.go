package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/weather-etl/internal/api/http"
	"github.com/i474232898/weather-etl/internal/config"
	"github.com/i474232898/weather-etl/internal/db"
	"github.com/i474232898/weather-etl/internal/export"
	"github.com/i474232898/weather-etl/internal/logging"
	"github.com/i474232898/weather-etl/internal/scheduler"
	"github.com/i474232898/weather-etl/internal/store"
	"github.com/i474232898/weather-etl/internal/weather"
	"github.com/i474232898/weather-etl/internal/weather/providers"
)

const appName = "weather-etl"

// Overridden with -ldflags "-X main.version=...".
var version = "dev"

// etlStore is what the process needs from a store: the pipeline contract and
// the reporting queries.
type etlStore interface {
	weather.Store
	weather.Reporter
}

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr := logging.New(cfg, version, appName)
	slog.SetDefault(logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.AppConfig, logr *slog.Logger) error {
	logr.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"feedURL", cfg.FeedURL,
		"feedTimeout", cfg.FeedTimeout,
		"cron", cfg.Cron,
		"runOnce", cfg.RunOnce,
		"storeDriver", cfg.StoreDriver,
		"sqlitePath", cfg.SQLitePath,
	)

	st, closeStore, err := openStore(cfg, logr)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := st.EnsureSchema(ctx); err != nil {
		return err
	}

	// Shared HTTP client bounded by the fixed feed timeout.
	httpClient := &http.Client{
		Timeout: cfg.FeedTimeout,
	}
	provider := providers.NewBuienradarProvider(httpClient, cfg.FeedURL, cfg.FeedMaxRetries)
	opts := []weather.Option{weather.WithFetchTimeout(cfg.FeedTimeout)}
	if cfg.ExportMeasurementsCSV != "" || cfg.ExportStationsCSV != "" {
		opts = append(opts, weather.WithExporter(export.NewCSVExporter(cfg.ExportMeasurementsCSV, cfg.ExportStationsCSV, logr)))
	}
	pipeline := weather.NewPipeline(provider, st, logr, opts...)

	// Cycle timeout leaves room for the load step after a slow fetch.
	sched := scheduler.New(cfg.Cron, 2*cfg.FeedTimeout, pipeline, logr)

	if cfg.RunOnce {
		res := sched.RunNow(ctx)
		if !res.Succeeded() {
			return res.Err
		}
		return nil
	}

	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               appName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": appName,
			"cycles":  sched.Runs(),
		})
	})

	httpapi.RegisterRoutes(app, st, sched)

	go func() {
		logr.Info("http listening", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			logr.Error("fiber server stopped", "error", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logr.Error("error during shutdown", "error", err)
	}
	logr.Info("shutting down")
	return nil
}

func openStore(cfg *config.AppConfig, logr *slog.Logger) (etlStore, func(), error) {
	if cfg.StoreDriver == config.DriverMemory {
		return store.NewMemoryStore(), func() {}, nil
	}

	conn, err := db.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := db.Close(conn); err != nil {
			logr.Error("db close", "error", err)
		}
	}
	return store.NewSQLiteStore(conn, logr), closeFn, nil
}
