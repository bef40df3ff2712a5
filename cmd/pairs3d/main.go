package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/tiMaxal/pairs3d/internal/api"
	"github.com/tiMaxal/pairs3d/internal/config"
	"github.com/tiMaxal/pairs3d/internal/db"
	"github.com/tiMaxal/pairs3d/internal/job"
	"github.com/tiMaxal/pairs3d/internal/scheduler"
)

// Injected at build time via -ldflags; defaults to "dev".
var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// Logging (initial; overridden below once config is loaded).
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))
	slog.Info("pairs3d starting",
		"version", version,
		"log_level", cfg.LogLevel,
		"http_addr", cfg.HTTPAddr,
		"db_path", cfg.DBPath,
		"watch_root", cfg.WatchRoot)

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		slog.Error("open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.RunMigrations(database); err != nil {
		slog.Error("run migrations", "error", err)
		os.Exit(1)
	}

	// Overlay the folder and thresholds remembered from previous runs.
	if settings, err := db.LoadSettings(database); err == nil {
		config.MergeDBSettings(cfg, settings)
	}

	// Mark any jobs that were live when the last process exited as failed.
	if err := job.MarkStaleJobsFailed(database); err != nil {
		slog.Warn("mark stale jobs", "error", err)
	}

	mgr := job.NewManager(database, job.Config{
		BatchSize:   cfg.BatchSize,
		HashWorkers: cfg.HashWorkers,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New()
	if cfg.Schedule != "" && cfg.WatchRoot != "" {
		err := sched.SetJob(cfg.Schedule, func() {
			slog.Info("scheduled job triggered", "root", cfg.WatchRoot)
			_, err := mgr.Start(ctx, job.Request{
				Root:    cfg.WatchRoot,
				Recurse: cfg.Recurse,
				Thresholds: job.Thresholds{
					TimeDeltaMax:    cfg.TimeDeltaMax(),
					HashDistanceMax: cfg.HashDistanceMax,
				},
				TriggeredBy: "schedule",
			})
			if err != nil {
				slog.Warn("scheduled job start", "error", err)
			}
		})
		if err != nil {
			slog.Warn("invalid cron expression", "expr", cfg.Schedule, "error", err)
		}
	}
	sched.Start()
	defer sched.Stop()

	srv := api.New(cfg.HTTPAddr, database, cfg, mgr, sched, version)
	if err := srv.Run(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("pairs3d stopped")
}

// parseLogLevel converts a config string ("debug", "info", "warn",
// "error") to its slog.Level equivalent. Unknown values default to Info.
func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
