// Package server assembles the fiber application.
package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/redis/go-redis/v9"

	"nbconvert/internal/cache"
	"nbconvert/internal/config"
	"nbconvert/internal/exporters"
	"nbconvert/internal/http/handlers"
	"nbconvert/internal/http/middleware"
	"nbconvert/internal/infra/logging"
	"nbconvert/internal/infra/ratelimit"
	"nbconvert/internal/metrics"
	"nbconvert/internal/storage"
	"nbconvert/internal/tokens"
)

// Deps are the long-lived collaborators of the app. Everything except
// Config is optional.
type Deps struct {
	Config   config.Config
	Redis    *redis.Client
	Tokens   *tokens.Cache
	Registry *exporters.Registry
	Metrics  *metrics.Metrics
	Chrome   handlers.StatsProvider
}

// New creates and configures the fiber app.
func New(deps Deps) (*fiber.App, error) {
	cfg := deps.Config

	store, err := storage.New(cfg.Notebooks.Dir)
	if err != nil {
		return nil, err
	}
	if deps.Registry == nil {
		deps.Registry = exporters.Default(exporters.Options{})
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.Tokens == nil {
		deps.Tokens = tokens.NewCache()
	}

	app := fiber.New(fiber.Config{
		Prefork:               cfg.Server.Prefork,
		DisableStartupMessage: true,
		BodyLimit:             cfg.Conversion.MaxBodyBytes,
		ErrorHandler:          errorHandler,
	})

	ready := func() bool { return true }
	if cfg.Auth.Enabled {
		ready = deps.Tokens.Ready
	}
	middleware.Register(app, ready)

	var results *cache.Results
	if cfg.Cache.Enabled {
		results = cache.New(deps.Redis, cfg.Cache.TTL)
	}
	svc := handlers.NewConvertService(handlers.Deps{
		Config:   cfg,
		Registry: deps.Registry,
		Store:    store,
		Cache:    results,
		Metrics:  deps.Metrics,
		Chrome:   deps.Chrome,
	})

	ops := app.Group("/ops")
	ops.Get("/metrics", adaptor.HTTPHandler(deps.Metrics.Handler()))
	ops.Get("/monitor", monitor.New())
	ops.Get("/chrome/stats", svc.ChromeStats)

	protected := guard(cfg, deps.Tokens)
	app.Get("/nbconvert", with(protected, svc.FormatCatalog)...)
	app.Get("/nbconvert/:format/*", with(protected, svc.FileConversion)...)
	app.Post("/nbconvert/:format", with(protected, svc.InlineConversion)...)

	// Ensure all responses, including 404s, return JSON
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})

	return app, nil
}

// guard returns the handlers every conversion route runs first.
func guard(cfg config.Config, tokenCache *tokens.Cache) []fiber.Handler {
	rl := middleware.RateLimitConfigFrom(cfg)
	limiterStore := ratelimit.NewStore(ratelimit.RedisConfig{
		Addr: cfg.Cache.RedisHost,
		DB:   cfg.Cache.RateLimitDB,
	})

	var chain []fiber.Handler
	if cfg.Auth.Enabled {
		chain = append(chain,
			middleware.RequireAPIKey(tokenCache),
			middleware.TokenRateLimit(rl, tokenCache, limiterStore, middleware.NewLimiterCache()),
		)
	}
	chain = append(chain, middleware.UserRateLimit(rl, limiterStore))
	return chain
}

func with(chain []fiber.Handler, h fiber.Handler) []fiber.Handler {
	out := make([]fiber.Handler, 0, len(chain)+1)
	return append(append(out, chain...), h)
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		msg = e.Message
	}

	logging.Warn("Request failed", "path", c.Path(), "status", code, "message", msg)

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": msg,
		},
	})
}
