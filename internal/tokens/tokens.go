// Package tokens holds the in-memory set of accepted API tokens and keeps it in sync with its
// backing store.
package tokens

import (
	"errors"
	"sync"
)

var (
	// ErrInvalidAPIKey signals that the presented token is not known.
	ErrInvalidAPIKey = errors.New("invalid api key")
	// ErrTokenStoreNotReady signals that no token source has been loaded yet, typically while the
	// database is still coming up.
	ErrTokenStoreNotReady = errors.New("token store not ready")
)

// Scope lists the permissions granted to a token.
type Scope map[string]bool

// Entry is the stored configuration of one token.
type Entry struct {
	RateLimit int
	Scope     Scope
}

// Cache is a concurrency-safe token lookup table. Static tokens come from configuration and are
// kept across Replace calls; stored tokens come from the database.
type Cache struct {
	mu     sync.RWMutex
	static map[string]Entry
	stored map[string]Entry
}

// NewCache returns an empty cache that is not Ready until tokens are added.
func NewCache() *Cache {
	return &Cache{}
}

// SetStatic registers configuration tokens, each with the given rate limit.
func (c *Cache) SetStatic(list []string, rateLimit int) {
	static := make(map[string]Entry, len(list))
	for _, tok := range list {
		static[tok] = Entry{RateLimit: rateLimit}
	}
	c.mu.Lock()
	c.static = static
	c.mu.Unlock()
}

// Replace swaps the stored token set. A nil map counts as loaded and empty.
func (c *Cache) Replace(m map[string]Entry) {
	next := make(map[string]Entry, len(m))
	for k, v := range m {
		next[k] = v
	}
	c.mu.Lock()
	c.stored = next
	c.mu.Unlock()
}

// Ready reports whether any token source has been loaded.
func (c *Cache) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stored != nil || len(c.static) > 0
}

// Lookup returns the entry for token. Stored entries win over static ones.
func (c *Cache) Lookup(token string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.stored[token]; ok {
		return e, true
	}
	e, ok := c.static[token]
	return e, ok
}

// Validate checks a presented token.
func (c *Cache) Validate(token string) error {
	if !c.Ready() {
		return ErrTokenStoreNotReady
	}
	if _, ok := c.Lookup(token); !ok {
		return ErrInvalidAPIKey
	}
	return nil
}

// RateLimit returns the per-interval request budget of token. Unknown tokens and tokens with a
// zero limit return 0, which disables rate limiting for them.
func (c *Cache) RateLimit(token string) int {
	e, _ := c.Lookup(token)
	return e.RateLimit
}

// Len returns the number of distinct known tokens.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := len(c.stored)
	for tok := range c.static {
		if _, dup := c.stored[tok]; !dup {
			n++
		}
	}
	return n
}
