// Package middleware holds the fiber middleware chain: request ids, CORS, health checks,
// bearer-token auth and rate limiting.
package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/xid"

	"pdfservice/internal/config"
	"pdfservice/internal/infra/logging"
)

// Probe endpoints served by Register.
const (
	HealthPath = "/ops/health"
	ReadyPath  = "/ops/ready"
)

// APIKeyLocal is the fiber.Ctx.Locals key holding the authenticated token.
const APIKeyLocal = "api_key"

// ReadinessCheck reports whether a dependency is ready to serve traffic.
type ReadinessCheck func() bool

// Register attaches the global middleware. The service is ready when every check passes.
func Register(app *fiber.App, cfg config.Config, checks ...ReadinessCheck) {
	app.Use(requestid.New(requestid.Config{
		Generator: func() string {
			return xid.New().String()
		},
	}))

	app.Use(cors.New())

	app.Use(healthcheck.New(healthcheck.Config{
		LivenessEndpoint:  HealthPath,
		ReadinessEndpoint: ReadyPath,
		ReadinessProbe: func(*fiber.Ctx) bool {
			for _, check := range checks {
				if !check() {
					return false
				}
			}
			return true
		},
	}))

	app.Use(requestLogger(cfg))
}

func requestLogger(cfg config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		requestID := c.Get(fiber.HeaderXRequestID)
		if requestID == "" {
			requestID = c.GetRespHeader(fiber.HeaderXRequestID)
		}
		status := c.Response().StatusCode()
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}
		logging.Info("Request handled",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestID,
			"prefork_child", cfg.Server.Prefork && fiber.IsChild(),
		)
		return err
	}
}
