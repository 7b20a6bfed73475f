package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"pdfservice/internal/config"
	"pdfservice/internal/infra/logging"
)

const tooManyRequests = "Too many requests"

// RateLimitConfig selects which limiters run and over which window.
type RateLimitConfig struct {
	RateInterval           time.Duration
	EnableTokenRateLimiter bool
	EnableUserLimiter      bool
	UserLimit              int
}

// RateLimitConfigFrom extracts the limiter settings from the service configuration.
func RateLimitConfigFrom(cfg config.Config) RateLimitConfig {
	return RateLimitConfig{
		RateInterval:           cfg.RateLimiter.Interval,
		EnableTokenRateLimiter: cfg.RateLimiter.EnableTokenRateLimiter,
		EnableUserLimiter:      cfg.RateLimiter.EnableUserLimiter,
		UserLimit:              cfg.RateLimiter.UserLimit,
	}
}

// TokenRater returns the request budget of a token per interval; 0 means unlimited.
type TokenRater interface {
	RateLimit(token string) int
}

// LimiterCache keeps one limiter handler per distinct budget.
type LimiterCache struct {
	mu       sync.RWMutex
	handlers map[int]fiber.Handler
}

// NewLimiterCache returns an empty cache.
func NewLimiterCache() *LimiterCache {
	return &LimiterCache{handlers: make(map[int]fiber.Handler)}
}

func (lc *LimiterCache) get(limit int, build func() fiber.Handler) fiber.Handler {
	lc.mu.RLock()
	h, ok := lc.handlers[limit]
	lc.mu.RUnlock()
	if ok {
		return h
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()
	if h, ok := lc.handlers[limit]; ok {
		return h
	}
	h = build()
	lc.handlers[limit] = h
	return h
}

// TokenRateLimit applies each authenticated token's own budget with a sliding window.
// Requests without a token pass through.
func TokenRateLimit(cfg RateLimitConfig, rater TokenRater, store fiber.Storage, cache *LimiterCache) fiber.Handler {
	if !cfg.EnableTokenRateLimiter {
		return passThrough
	}
	return func(c *fiber.Ctx) error {
		token, ok := c.Locals(APIKeyLocal).(string)
		if !ok || token == "" {
			return c.Next()
		}
		limit := rater.RateLimit(token)
		if limit <= 0 {
			return c.Next()
		}
		h := cache.get(limit, func() fiber.Handler {
			return limiter.New(limiter.Config{
				Max:               limit,
				Expiration:        cfg.RateInterval,
				LimiterMiddleware: limiter.SlidingWindow{},
				Storage:           store,
				KeyGenerator: func(c *fiber.Ctx) string {
					tok, _ := c.Locals(APIKeyLocal).(string)
					return "token:" + tok
				},
				LimitReached: func(c *fiber.Ctx) error {
					logging.Warn("Rate limit exceeded", "token", redact(token), "path", c.Path())
					return errorJSON(c, fiber.StatusTooManyRequests, tooManyRequests)
				},
			})
		})
		return h(c)
	}
}

// UserRateLimit limits unauthenticated clients, identified by IP and User-Agent. Requests that
// carry a token are left to TokenRateLimit.
func UserRateLimit(cfg RateLimitConfig, store fiber.Storage) fiber.Handler {
	if !cfg.EnableUserLimiter || cfg.UserLimit <= 0 {
		return passThrough
	}
	userLimiter := limiter.New(limiter.Config{
		Max:               cfg.UserLimit,
		Expiration:        cfg.RateInterval,
		LimiterMiddleware: limiter.SlidingWindow{},
		Storage:           store,
		KeyGenerator:      clientKey,
		LimitReached: func(c *fiber.Ctx) error {
			logging.Warn("Rate limit exceeded", "user", clientKey(c), "path", c.Path())
			return errorJSON(c, fiber.StatusTooManyRequests, tooManyRequests)
		},
	})
	return func(c *fiber.Ctx) error {
		if token, ok := c.Locals(APIKeyLocal).(string); ok && token != "" {
			return c.Next()
		}
		return userLimiter(c)
	}
}

func clientKey(c *fiber.Ctx) string {
	sum := sha256.Sum256([]byte(c.IP() + c.Get(fiber.HeaderUserAgent)))
	return "user:" + hex.EncodeToString(sum[:])
}

func passThrough(c *fiber.Ctx) error {
	return c.Next()
}

// redact keeps only a token prefix for logs.
func redact(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return token[:4] + "****"
}
