// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/olegiv/ocms-langsync/internal/cache"
	"github.com/olegiv/ocms-langsync/internal/config"
	"github.com/olegiv/ocms-langsync/internal/handler"
	"github.com/olegiv/ocms-langsync/internal/lock"
	"github.com/olegiv/ocms-langsync/internal/logging"
	"github.com/olegiv/ocms-langsync/internal/scheduler"
	"github.com/olegiv/ocms-langsync/internal/store"
	"github.com/olegiv/ocms-langsync/internal/taskqueue"
	"github.com/olegiv/ocms-langsync/internal/version"
)

// Build-time variables injected via ldflags.
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")
	reconcileOnce := flag.Bool("reconcile-once", false, "Run a single reconcile pass and exit")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "langsync - translation consistency and sync service\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  LANGSYNC_DB_PATH               SQLite database path (default: ./data/langsync.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  LANGSYNC_SERVER_PORT           Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  LANGSYNC_ADMIN_TOKEN           Bearer token for /api (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  LANGSYNC_DEFAULT_LANGUAGE      Base language code (default: ko)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  LANGSYNC_BOOTSTRAP_LANGUAGES   Languages created on first start (default: ko,en,ja,zh)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  LANGSYNC_INITIAL_SYNC_MODE     explicit-content|always-synced|always-diverged\n")
		_, _ = fmt.Fprintf(os.Stderr, "  LANGSYNC_RECONCILE_SCHEDULE    Cron schedule of the reconcile pass (default: @every 1m)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  LANGSYNC_REDIS_URL             Redis URL for the shared lock and cache invalidation (optional)\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	info := version.Info{Version: appVersion, GitCommit: appGitCommit, BuildTime: appBuildTime}
	if *showVersion {
		_, _ = fmt.Println(info.String())
		os.Exit(0)
	}

	if err := run(info, *reconcileOnce); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run(info version.Info, reconcileOnce bool) error {
	// Load .env if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database ready")

	// WARN and above are also written to the sync event log.
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger = slog.New(logging.NewEventLogHandler(textHandler, db))
	slog.SetDefault(logger)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	a, err := newApp(ctx, cfg, db, logger)
	if err != nil {
		return err
	}
	pool := a.pool

	if cfg.UseRedis() {
		client, err := connectRedis(ctx, cfg.RedisURL)
		if err != nil {
			slog.Warn("redis unavailable, running without shared lock", "error", err)
		} else {
			defer func() { _ = client.Close() }()
			a.reconciler.SetLocker(lock.NewRedisLocker(client, cfg.LockPrefix), cfg.LockTTLDuration())

			invalidator := cache.NewRedisInvalidator(client, cfg.LockPrefix, logger)
			a.registry.SetInvalidator(invalidator)
			go func() {
				if err := invalidator.Listen(ctx, a.languageCache); err != nil {
					slog.Error("language invalidation listener stopped", "error", err)
				}
			}()
			slog.Info("redis coordination enabled")
		}
	}

	if err := a.bootstrap(ctx, cfg); err != nil {
		return err
	}

	if reconcileOnce {
		summary, err := a.reconciler.RunOnce(ctx)
		if err != nil {
			return fmt.Errorf("reconcile pass: %w", err)
		}
		slog.Info("reconcile pass finished",
			"run_id", summary.RunID, "scanned", summary.Scanned,
			"corrected", summary.Corrected, "created", summary.Created, "failed", summary.Failed)
		return shutdownPool(pool, cfg.ShutdownTimeoutDuration())
	}

	sched := scheduler.New(scheduler.NewRegistry(db, logger), a.reconciler, a.events, scheduler.Config{
		ReconcileSchedule: cfg.ReconcileSchedule,
		EventRetention:    time.Duration(cfg.EventRetentionDays) * 24 * time.Hour,
	}, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}

	router := handler.NewRouter(handler.Handlers{
		Health:    handler.NewHealthHandler(db, a.languageCache, pool, a.reconciler, info),
		Languages: handler.NewLanguagesHandler(a.registry, logger),
		Documents: handler.NewDocumentsHandler(a.translations, logger),
		Ops:       handler.NewOpsHandler(a.reconciler, sched.Registry(), a.events, logger),
	}, handler.RouterConfig{
		AdminToken:     cfg.AdminToken,
		RequestTimeout: cfg.RequestTimeoutDuration(),
		RateLimit:      cfg.APIRateLimit,
	})
	if cfg.AdminToken == "" {
		slog.Warn("LANGSYNC_ADMIN_TOKEN is not set, the admin API is unauthenticated")
	}

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.RequestTimeoutDuration() + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", info.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeoutDuration())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	sched.Stop(shutdownCtx)
	if err := pool.Shutdown(shutdownCtx); err != nil {
		slog.Warn("propagation queue not drained", "error", err)
	}
	stop()

	slog.Info("server stopped")
	return nil
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}

func shutdownPool(pool *taskqueue.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return pool.Shutdown(ctx)
}
