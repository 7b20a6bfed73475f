package cache

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfservice/internal/domain"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mrs, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mrs.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mrs.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mrs, rdb
}

func TestKey_StableAndKindSpecific(t *testing.T) {
	type req struct {
		Content string `json:"content"`
		Scale   float64
	}
	a, err := Key("html", req{Content: "<p>hi</p>", Scale: 1})
	require.NoError(t, err)
	b, err := Key("html", req{Content: "<p>hi</p>", Scale: 1})
	require.NoError(t, err)
	c, err := Key("markdown", req{Content: "<p>hi</p>", Scale: 1})
	require.NoError(t, err)
	d, err := Key("html", req{Content: "<p>hi</p>", Scale: 1.5})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a, "pdfcache:"))
	assert.Len(t, a, len("pdfcache:")+64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)

	_, err = Key("html", func() {})
	assert.Error(t, err)
}

func TestKey_EmptyKeywordsDifferFromAbsent(t *testing.T) {
	keyOf := func(body string) string {
		var m domain.Metadata
		require.NoError(t, json.Unmarshal([]byte(body), &m))
		k, err := Key("manipulate", m)
		require.NoError(t, err)
		return k
	}

	absent := keyOf(`{"title":"Report"}`)
	cleared := keyOf(`{"title":"Report","keywords":[]}`)
	assert.NotEqual(t, absent, cleared)
	assert.Equal(t, absent, keyOf(`{"title":"Report","keywords":null}`))
}

func TestPDFCache_SetGetAndTTL(t *testing.T) {
	mrs, rdb := newRedis(t)
	c := New(rdb, 0)
	ctx := context.Background()

	_, ok := c.Get(ctx, "pdfcache:missing")
	assert.False(t, ok)

	c.Set(ctx, "pdfcache:k", []byte("%PDF-1.7"))
	got, ok := c.Get(ctx, "pdfcache:k")
	require.True(t, ok)
	assert.Equal(t, []byte("%PDF-1.7"), got)

	ttl := mrs.TTL("pdfcache:k")
	if ttl < 50*time.Second || ttl > 70*time.Second {
		t.Fatalf("expected default ttl around 1m, got %v", ttl)
	}

	New(rdb, 10*time.Minute).Set(ctx, "pdfcache:long", []byte("x"))
	assert.Equal(t, 10*time.Minute, mrs.TTL("pdfcache:long"))
}

func TestPDFCache_RedisDownIsMiss(t *testing.T) {
	mrs, rdb := newRedis(t)
	c := New(rdb, time.Minute)
	mrs.Close()

	c.Set(context.Background(), "pdfcache:k", []byte("x"))
	_, ok := c.Get(context.Background(), "pdfcache:k")
	assert.False(t, ok)
}

func TestPDFCache_NilIsNoop(t *testing.T) {
	var c *PDFCache
	c.Set(context.Background(), "k", []byte("x"))
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)

	_, ok = New(nil, time.Minute).Get(context.Background(), "k")
	assert.False(t, ok)
}
