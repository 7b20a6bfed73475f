package tokens

import (
	"context"
	"time"

	"pdfservice/internal/infra/logging"
)

// Repository loads the full token set from a backing store.
type Repository interface {
	LoadTokens(ctx context.Context) (map[string]Entry, error)
}

// Reloader periodically refreshes a Cache from a Repository.
type Reloader struct {
	repo     Repository
	cache    *Cache
	interval time.Duration
}

// NewReloader returns a Reloader refreshing cache from repo every interval.
func NewReloader(repo Repository, cache *Cache, interval time.Duration) *Reloader {
	return &Reloader{repo: repo, cache: cache, interval: interval}
}

// LoadOnce replaces the cache contents with the repository's. On error the cache is untouched.
func (r *Reloader) LoadOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	m, err := r.repo.LoadTokens(ctx)
	if err != nil {
		return err
	}
	r.cache.Replace(m)
	logging.Debug("API tokens loaded", "count", len(m))
	return nil
}

// Start reloads in the background until ctx is done.
func (r *Reloader) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := r.LoadOnce(ctx); err != nil {
					logging.Error("Failed to reload API tokens", "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
