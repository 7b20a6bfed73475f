// Package server assembles the fiber application: error handling, middleware and routes.
package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/redis/go-redis/v9"

	"pdfservice/internal/config"
	"pdfservice/internal/document"
	"pdfservice/internal/http/handlers"
	"pdfservice/internal/http/middleware"
	"pdfservice/internal/infra/cache"
	"pdfservice/internal/infra/chrome"
	"pdfservice/internal/infra/fetch"
	"pdfservice/internal/infra/logging"
	"pdfservice/internal/infra/pdfcodec"
	"pdfservice/internal/markup"
	"pdfservice/internal/render"
	"pdfservice/internal/tokens"
)

// Deps are the collaborators of the application. Everything except Config is optional: a nil
// Redis client disables the PDF cache, a nil Tokens cache is built from the static tokens and
// missing Engine, Renderer or Codec are created from Config.
type Deps struct {
	Config   config.Config
	Redis    *redis.Client
	Tokens   *tokens.Cache
	Engine   *chrome.Engine
	Renderer handlers.Renderer
	Codec    document.Codec
}

// New creates and configures the fiber app. The Chrome engine is closed on app shutdown.
func New(d Deps) *fiber.App {
	cfg := d.Config

	app := fiber.New(fiber.Config{
		Prefork:               cfg.Server.Prefork,
		BodyLimit:             cfg.Limits.MaxUploadBytes,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	engine := d.Engine
	if engine == nil {
		engine = chrome.NewEngine(cfg)
	}
	app.Hooks().OnShutdown(func() error {
		engine.Close()
		return nil
	})

	tc := d.Tokens
	if tc == nil {
		tc = tokens.NewCache()
		tc.SetStatic(cfg.StaticTokens(), cfg.Auth.DefaultRateLimit)
	}

	var checks []middleware.ReadinessCheck
	if cfg.AuthEnabled() {
		checks = append(checks, tc.Ready)
	}
	middleware.Register(app, cfg, checks...)

	h := handlers.New(handlers.Deps{
		Config:   cfg,
		Renderer: renderer(d, engine),
		Codec:    codec(d),
		Cache:    pdfCache(d),
		Stats:    engine,
	})

	app.Get("/", h.Root)

	ops := app.Group("/ops")
	ops.Get("/chrome/stats", h.ChromeStats)
	ops.Get("/monitor", monitor.New())

	var guard []fiber.Handler
	if cfg.AuthEnabled() {
		guard = append(guard, middleware.Auth(tc))
	} else {
		logging.Warn("No access tokens configured, authentication is disabled")
	}
	store := middleware.NewStore(middleware.RedisConfig{
		Addr: cfg.Cache.RedisHost,
		DB:   cfg.Cache.RateLimitDB,
	})
	rl := middleware.RateLimitConfigFrom(cfg)
	guard = append(guard,
		middleware.TokenRateLimit(rl, tc, store, middleware.NewLimiterCache()),
		middleware.UserRateLimit(rl, store),
	)

	app.Post("/pdf-from-html", guarded(guard, h.FromHTML)...)
	app.Post("/pdf-from-markdown", guarded(guard, h.FromMarkdown)...)
	app.Post("/pdf-merge", guarded(guard, h.Merge)...)
	app.Post("/pdf-overlay", guarded(guard, h.Overlay)...)
	app.Post("/pdf-manipulate", guarded(guard, h.Manipulate)...)

	// Ensure all responses, including 404s, return JSON
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})

	return app
}

// guarded returns the handler chain of a protected route.
func guarded(guard []fiber.Handler, h fiber.Handler) []fiber.Handler {
	return append(append([]fiber.Handler{}, guard...), h)
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Internal Server Error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	}

	logging.Warn("Request failed", "path", c.Path(), "status", code, "message", msg)

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": msg,
		},
	})
}

func renderer(d Deps, engine *chrome.Engine) handlers.Renderer {
	if d.Renderer != nil {
		return d.Renderer
	}
	cfg := d.Config
	inliner := markup.NewInliner(fetch.New(cfg.PDF.FetchTimeout), cfg.PDF.ImageConcurrency)
	composer := markup.NewComposer(inliner, cfg.PDF.HeaderImageMaxPx)
	return render.NewService(engine, composer, inliner)
}

func codec(d Deps) document.Codec {
	if d.Codec != nil {
		return d.Codec
	}
	return pdfcodec.New("")
}

func pdfCache(d Deps) *cache.PDFCache {
	if d.Redis == nil || !d.Config.Cache.PDFCacheEnabled {
		return nil
	}
	return cache.New(d.Redis, d.Config.Cache.PDFCacheTTL)
}
