package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	_ "go.uber.org/automaxprocs"

	"pdfservice/internal/config"
	"pdfservice/internal/http/server"
	"pdfservice/internal/infra/cache"
	"pdfservice/internal/infra/chrome"
	"pdfservice/internal/infra/logging"
	"pdfservice/internal/infra/postgres"
	"pdfservice/internal/tokens"
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

	var rdb *redis.Client
	if cfg.Cache.PDFCacheEnabled && cfg.Cache.RedisHost != "" {
		rdb = cache.NewClient(cfg.Cache.RedisHost, cfg.Cache.PDFCacheDB)
		defer rdb.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tc, closeTokens := loadTokens(ctx, cfg)
	defer closeTokens()

	engine := chrome.NewEngine(cfg)
	if _, err := engine.Pool(); err != nil {
		logging.Error("Failed to create Chrome pool", "error", err)
	}
	app := server.New(server.Deps{
		Config: cfg,
		Redis:  rdb,
		Tokens: tc,
		Engine: engine,
	})

	idleConnsClosed := make(chan struct{})
	startServer(app, cfg, idleConnsClosed)
	<-idleConnsClosed
}

// loadTokens builds the token cache from the configured static tokens and, when a token
// database is configured, loads it and keeps reloading it until ctx is done. The returned func
// releases the database handle.
func loadTokens(ctx context.Context, cfg config.Config) (*tokens.Cache, func()) {
	tc := tokens.NewCache()
	tc.SetStatic(cfg.StaticTokens(), cfg.Auth.DefaultRateLimit)
	if !cfg.TokenStoreConfigured() {
		return tc, func() {}
	}

	dsn, err := postgres.DSN(cfg.Auth.PostgresDSN, cfg.Auth.Postgres)
	if err != nil {
		logging.Error("Invalid token database settings", "error", err)
		return tc, func() {}
	}
	db := postgres.NewDB()
	reloader := tokens.NewReloader(postgres.NewTokenRepository(db, dsn), tc, cfg.Auth.TokenReloadInterval)
	if err := reloader.LoadOnce(ctx); err != nil {
		logging.Error("Failed to load API tokens", "error", err)
	}
	reloader.Start(ctx)
	return tc, func() {
		if err := db.Close(); err != nil {
			logging.Warn("Failed to close token database", "error", err)
		}
	}
}

// startServer starts the Fiber app and blocks until a shutdown signal has been handled.
func startServer(app *fiber.App, cfg config.Config, idleConnsClosed chan struct{}) {
	go func() {
		if err := app.Listen(cfg.Server.Host + cfg.Server.Port); err != nil {
			logging.Error("Server error", "error", err)
		}
	}()

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigint)
	<-sigint

	logging.Warn("Shutdown signal received, closing server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
	}

	close(idleConnsClosed)
	logging.Info("Server stopped cleanly")
}
