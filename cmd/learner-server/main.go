package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Ryo-cool/go-concurrency-learner/internal/api"
	"github.com/Ryo-cool/go-concurrency-learner/internal/cache"
	"github.com/Ryo-cool/go-concurrency-learner/internal/cleanup"
	"github.com/Ryo-cool/go-concurrency-learner/internal/config"
	"github.com/Ryo-cool/go-concurrency-learner/internal/health"
	"github.com/Ryo-cool/go-concurrency-learner/internal/lessons"
	"github.com/Ryo-cool/go-concurrency-learner/internal/session"
	"github.com/Ryo-cool/go-concurrency-learner/internal/storage"
	"github.com/Ryo-cool/go-concurrency-learner/pkg/playground"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting learner-server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"playground", cfg.Playground.URL,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	registry := health.NewRegistry()

	repo, err := openRepository(initCtx, cfg.Database)
	if err != nil {
		slog.Error("failed to open repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	registry.Register("database", health.CheckerFunc(repo.Ping))

	// Response cache is optional
	var respCache api.ResponseCache
	if cfg.Redis.Address != "" {
		rc, err := cache.NewResponseCache(initCtx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.CacheTTL)
		if err != nil {
			slog.Error("failed to connect to redis", "address", cfg.Redis.Address, "error", err)
			os.Exit(1)
		}
		defer rc.Close()
		respCache = rc
		registry.Register("cache", rc)
		slog.Info("playground response cache enabled", "ttl", cfg.Redis.CacheTTL)
	}

	// Load lessons
	loader := lessons.NewLoader()
	if err := loader.LoadFromDir(cfg.Lessons.Dir); err != nil {
		slog.Warn("failed to load lessons from dir", "dir", cfg.Lessons.Dir, "error", err)
	}
	slog.Info("lessons loaded", "count", loader.Count())

	upstream := playground.NewClient(cfg.Playground.URL,
		playground.WithUpstream(),
		playground.WithTimeout(cfg.Playground.Timeout),
	)
	registry.Register("playground", upstream)

	// Sessions run code against the same upstream compiler
	manager := session.NewManager(upstream)
	cleaner := cleanup.NewCleaner(manager, cfg.Sessions.IdleTTL, cfg.Cleanup.Interval)

	server := api.NewServer(cfg.Server, api.Dependencies{
		Lessons:  loader,
		Sessions: manager,
		Repo:     repo,
		Upstream: upstream,
		Cache:    respCache,
		Health:   registry,
	})
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           server.Router(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		cleaner.Run(gctx)
		return nil
	})

	g.Go(func() error {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server error", "error", err)
	}

	// Cancel in-flight runs
	if err := manager.Close(); err != nil {
		slog.Error("session manager close error", "error", err)
	}

	slog.Info("learner-server stopped")
}

// openRepository connects to PostgreSQL and applies migrations, or keeps progress in memory without a DSN.
func openRepository(ctx context.Context, cfg config.DatabaseConfig) (storage.Repository, error) {
	if cfg.DSN == "" {
		slog.Warn("DATABASE_DSN not set, progress is kept in memory")
		return storage.NewMemoryRepository(), nil
	}

	repo, err := storage.NewPostgresRepository(ctx, storage.PostgresConfig{
		DSN:          cfg.DSN,
		MaxOpenConns: int32(cfg.MaxOpenConns),
		MaxIdleConns: int32(cfg.MaxIdleConns),
	})
	if err != nil {
		return nil, err
	}

	fsys, err := storage.MigrationsFS(cfg.MigrationsDir)
	if err != nil {
		repo.Close()
		return nil, err
	}

	slog.Info("running database migrations", "dir", cfg.MigrationsDir)
	if err := storage.RunMigrations(ctx, repo.Pool(), fsys); err != nil {
		repo.Close()
		return nil, err
	}

	slog.Info("database connected successfully")
	return repo, nil
}
