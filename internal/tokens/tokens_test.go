package tokens

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCache_NotReadyUntilLoaded(t *testing.T) {
	c := NewCache()
	if c.Ready() {
		t.Fatalf("new cache must not be ready")
	}
	if err := c.Validate("whatever"); !errors.Is(err, ErrTokenStoreNotReady) {
		t.Fatalf("Validate error = %v, want ErrTokenStoreNotReady", err)
	}

	c.Replace(nil)
	assert.True(t, c.Ready())
	assert.ErrorIs(t, c.Validate("whatever"), ErrInvalidAPIKey)
}

func TestCache_StaticAndStoredTokens(t *testing.T) {
	c := NewCache()
	c.SetStatic([]string{"static-token-1", "shared-token"}, 60)
	assert.True(t, c.Ready())
	assert.NoError(t, c.Validate("static-token-1"))
	assert.Equal(t, 60, c.RateLimit("static-token-1"))

	c.Replace(map[string]Entry{
		"db-token-123": {RateLimit: 5, Scope: Scope{"pdf": true}},
		"shared-token": {RateLimit: 2},
	})
	assert.NoError(t, c.Validate("db-token-123"))
	assert.NoError(t, c.Validate("static-token-1"), "static tokens survive a reload")
	assert.Equal(t, 2, c.RateLimit("shared-token"), "stored entries override static ones")
	assert.Equal(t, 0, c.RateLimit("unknown"))
	assert.Equal(t, 3, c.Len())

	e, ok := c.Lookup("db-token-123")
	assert.True(t, ok)
	assert.True(t, e.Scope["pdf"])
}

func TestCache_ReplaceCopiesInput(t *testing.T) {
	c := NewCache()
	m := map[string]Entry{"k": {RateLimit: 1}}
	c.Replace(m)
	m["k"] = Entry{RateLimit: 99}
	assert.Equal(t, 1, c.RateLimit("k"))
}
