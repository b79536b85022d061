// Package ratelimit provides the storage behind fiber's limiter middleware.
package ratelimit

import (
	"github.com/gofiber/fiber/v2"
	memoryStorage "github.com/gofiber/storage/memory/v2"
	redisStorage "github.com/gofiber/storage/redis/v2"

	"nbconvert/internal/infra/logging"
)

// RedisConfig selects the Redis database used for limiter counters.
type RedisConfig struct {
	Addr string
	DB   int
}

// NewStore returns Redis-backed limiter storage when an address is given,
// falling back to process memory when none is set or the client cannot be
// created.
func NewStore(cfg RedisConfig) (store fiber.Storage) {
	store = memoryStorage.New()
	if cfg.Addr == "" {
		logging.Info("Using memory for rate limiting")
		return store
	}

	defer func() {
		if r := recover(); r != nil {
			logging.Error("Redis limiter store init panicked, falling back to memory", "panic", r)
		}
	}()
	store = redisStorage.New(redisStorage.Config{
		Addrs:    []string{cfg.Addr},
		Database: cfg.DB,
	})
	logging.Info("Using Redis for rate limiting", "addr", cfg.Addr, "db", cfg.DB)
	return store
}
