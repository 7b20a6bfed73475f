// Package cache stores rendered PDFs in Redis.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pdfservice/internal/infra/logging"
)

const (
	keyPrefix  = "pdfcache:"
	opTimeout  = 1 * time.Second
	defaultTTL = 1 * time.Minute
)

// PDFCache is a Redis-backed response cache. A nil *PDFCache or one without a client never hits
// and ignores writes.
type PDFCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New returns a cache writing entries with ttl. A non-positive ttl means one minute.
func New(rdb *redis.Client, ttl time.Duration) *PDFCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &PDFCache{rdb: rdb, ttl: ttl}
}

// NewClient connects to the Redis server at addr using database db.
func NewClient(addr string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,
	})
}

// Key derives the cache key for a request of the given kind from its JSON encoding.
func Key(kind string, req any) (string, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("cache key: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write(raw)
	return keyPrefix + hex.EncodeToString(h.Sum(nil)), nil
}

// Get returns the cached bytes for key. Redis errors count as a miss.
func (c *PDFCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		logging.Warn("Redis read failed", "error", err)
		return nil, false
	}
	logging.Info("PDF cache hit", "key", key)
	return data, true
}

// Set stores data under key. Failures are logged and otherwise ignored.
func (c *PDFCache) Set(ctx context.Context, key string, data []byte) {
	if c == nil || c.rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logging.Warn("Redis write failed", "error", err)
	}
}
