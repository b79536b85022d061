package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"nbconvert/internal/config"
	"nbconvert/internal/exporters"
	"nbconvert/internal/http/handlers"
	"nbconvert/internal/http/server"
	"nbconvert/internal/infra/chrome"
	"nbconvert/internal/infra/logging"
	"nbconvert/internal/infra/postgres"
	"nbconvert/internal/metrics"
	"nbconvert/internal/tokens"
)

func main() {
	cfg := config.Load()
	logging.InitLogger(
		cfg.Logger.File,
		cfg.Logger.MaxSizeMB,
		cfg.Logger.MaxBackups,
		cfg.Logger.MaxAgeDays,
		cfg.Logger.Compress,
		cfg.Logger.Level,
	)
	logging.SetLogLevel(cfg.Logger.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var rdb *redis.Client
	if cfg.Cache.RedisHost != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisHost,
			DB:   cfg.Cache.ResultDB,
		})
		defer rdb.Close()
	}

	tokenCache := tokens.NewCache()
	if cfg.Auth.Enabled {
		repo, closeRepo := tokenRepository(cfg)
		defer closeRepo()
		reloader := tokens.NewReloader(repo, tokenCache, cfg.Auth.TokenReloadInterval)
		if err := reloader.LoadOnce(ctx); err != nil {
			logging.Error("Failed to load API tokens", "error", err)
		}
		reloader.Start(ctx)
	}

	opts := exporters.Options{}
	var stats handlers.StatsProvider
	renderer, err := chrome.NewRenderer(cfg)
	if err != nil {
		logging.Error("PDF renderer unavailable", "error", err)
	} else {
		defer renderer.Close()
		opts.PDF = renderer
		stats = renderer
	}

	app, err := server.New(server.Deps{
		Config:   cfg,
		Redis:    rdb,
		Tokens:   tokenCache,
		Registry: exporters.Default(opts),
		Metrics:  metrics.New(),
		Chrome:   stats,
	})
	if err != nil {
		logging.Error("Failed to set up server", "error", err)
		return
	}

	idleConnsClosed := make(chan struct{})
	startServer(app, cfg, idleConnsClosed)
	<-idleConnsClosed
}

// tokenRepository reads tokens from Postgres when it is configured and
// from auth.static_tokens otherwise.
func tokenRepository(cfg config.Config) (tokens.Repository, func()) {
	if cfg.Auth.Postgres.Host == "" {
		logging.Info("Using static API tokens", "count", len(cfg.Auth.StaticTokens))
		return tokens.StaticRepository(cfg.Auth.StaticTokens), func() {}
	}
	dsn, err := postgres.DSN(cfg.Auth.Postgres)
	if err != nil {
		logging.Error("Invalid postgres config, falling back to static API tokens", "error", err)
		return tokens.StaticRepository(cfg.Auth.StaticTokens), func() {}
	}
	db := postgres.NewDB()
	return postgres.NewTokenRepository(db, dsn), func() { _ = db.Close() }
}

// startServer starts the Fiber app and listens for shutdown signals
func startServer(app *fiber.App, cfg config.Config, idleConnsClosed chan struct{}) {
	go func() {
		if err := app.Listen(cfg.Server.Host + cfg.Server.Port); err != nil {
			logging.Error("Server error", "error", err)
		}
	}()

	// Listen for OS termination signals
	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigint)
	<-sigint

	logging.Warn("Shutdown signal received, closing server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
	}

	close(idleConnsClosed)
	logging.Info("Server stopped cleanly")
}
