package middleware

import (
	"github.com/gofiber/fiber/v2"
	memoryStorage "github.com/gofiber/storage/memory/v2"
	redisStorage "github.com/gofiber/storage/redis/v2"

	"pdfservice/internal/infra/logging"
)

// RedisConfig locates the limiter's Redis database.
type RedisConfig struct {
	Addr string
	DB   int
}

// NewStore returns Redis-backed limiter storage, or in-memory storage when no address is set or
// Redis cannot be reached.
func NewStore(cfg RedisConfig) (store fiber.Storage) {
	if cfg.Addr == "" {
		logging.Info("Using in-memory storage for rate limiting")
		return memoryStorage.New()
	}

	defer func() {
		// redisStorage.New panics when the server does not answer its ping.
		if r := recover(); r != nil {
			logging.Error("Redis limiter store init failed, falling back to memory", "panic", r)
			store = memoryStorage.New()
		}
	}()
	store = redisStorage.New(redisStorage.Config{
		Addrs:    []string{cfg.Addr},
		Database: cfg.DB,
	})
	logging.Info("Using Redis for rate limiting", "addr", cfg.Addr, "db", cfg.DB)
	return store
}
