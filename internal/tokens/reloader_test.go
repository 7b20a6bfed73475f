package tokens

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loadResult is one answer of a scriptedRepo.
type loadResult struct {
	tokens map[string]Entry
	err    error
}

// scriptedRepo answers LoadTokens from a queue and repeats the last answer once it runs dry.
// Every call is reported on calls.
type scriptedRepo struct {
	answers chan loadResult
	last    loadResult
	calls   chan struct{}
}

func newScriptedRepo(answers ...loadResult) *scriptedRepo {
	r := &scriptedRepo{
		answers: make(chan loadResult, len(answers)),
		calls:   make(chan struct{}, 64),
	}
	for _, a := range answers {
		r.answers <- a
	}
	return r
}

func (r *scriptedRepo) LoadTokens(ctx context.Context) (map[string]Entry, error) {
	select {
	case a := <-r.answers:
		r.last = a
	default:
	}
	select {
	case r.calls <- struct{}{}:
	default:
	}
	return r.last.tokens, r.last.err
}

func (r *scriptedRepo) waitCalls(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.calls:
		case <-time.After(time.Second):
			t.Fatalf("repository called %d times, want %d", i, n)
		}
	}
}

func TestReloader_FirstLoadMakesCacheReady(t *testing.T) {
	c := NewCache()
	require.ErrorIs(t, c.Validate("db-token"), ErrTokenStoreNotReady)

	r := NewReloader(newScriptedRepo(loadResult{tokens: map[string]Entry{}}), c, time.Hour)
	require.NoError(t, r.LoadOnce(context.Background()))

	assert.True(t, c.Ready(), "an empty stored set still counts as loaded")
	assert.ErrorIs(t, c.Validate("db-token"), ErrInvalidAPIKey)
}

func TestReloader_FailedFirstLoadKeepsStaticTokensUsable(t *testing.T) {
	c := NewCache()
	c.SetStatic([]string{"cfg-token"}, 30)

	r := NewReloader(newScriptedRepo(loadResult{err: errors.New("connection refused")}), c, time.Hour)
	require.Error(t, r.LoadOnce(context.Background()))

	assert.NoError(t, c.Validate("cfg-token"))
	assert.ErrorIs(t, c.Validate("db-token"), ErrInvalidAPIKey)
	assert.Equal(t, 30, c.RateLimit("cfg-token"))
}

func TestReloader_FailedFirstLoadWithoutStaticTokensIsNotReady(t *testing.T) {
	c := NewCache()
	r := NewReloader(newScriptedRepo(loadResult{err: errors.New("connection refused")}), c, time.Hour)

	require.Error(t, r.LoadOnce(context.Background()))
	assert.False(t, c.Ready())
	assert.ErrorIs(t, c.Validate("anything"), ErrTokenStoreNotReady)
}

func TestReloader_StoredEntriesOverrideStatic(t *testing.T) {
	c := NewCache()
	c.SetStatic([]string{"shared", "cfg-only"}, 10)

	r := NewReloader(newScriptedRepo(loadResult{tokens: map[string]Entry{
		"shared":  {RateLimit: 2, Scope: Scope{"pdf": true}},
		"db-only": {RateLimit: 4},
	}}), c, time.Hour)
	require.NoError(t, r.LoadOnce(context.Background()))

	assert.Equal(t, 2, c.RateLimit("shared"))
	assert.Equal(t, 10, c.RateLimit("cfg-only"))
	assert.Equal(t, 4, c.RateLimit("db-only"))
	assert.Equal(t, 3, c.Len())

	e, ok := c.Lookup("shared")
	require.True(t, ok)
	assert.True(t, e.Scope["pdf"])
}

func TestReloader_StartRefreshesStoredSetAndKeepsStatic(t *testing.T) {
	c := NewCache()
	c.SetStatic([]string{"cfg-token"}, 10)
	repo := newScriptedRepo(
		loadResult{tokens: map[string]Entry{"revoked": {RateLimit: 1}}},
		loadResult{tokens: map[string]Entry{"rotated": {RateLimit: 5}}},
	)
	r := NewReloader(repo, c, 10*time.Millisecond)

	require.NoError(t, r.LoadOnce(context.Background()))
	require.NoError(t, c.Validate("revoked"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	repo.waitCalls(t, 2)
	assert.Eventually(t, func() bool { return c.Validate("rotated") == nil }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, c.Validate("revoked"), ErrInvalidAPIKey)
	assert.NoError(t, c.Validate("cfg-token"))
}

func TestReloader_StartKeepsLastGoodSetDuringOutage(t *testing.T) {
	c := NewCache()
	repo := newScriptedRepo(
		loadResult{tokens: map[string]Entry{"db-token": {RateLimit: 9}}},
		loadResult{err: errors.New("db unavailable")},
	)
	r := NewReloader(repo, c, 10*time.Millisecond)
	require.NoError(t, r.LoadOnce(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	repo.waitCalls(t, 3)
	assert.True(t, c.Ready())
	assert.Equal(t, 9, c.RateLimit("db-token"))
}

func TestReloader_StartStopsOnCancel(t *testing.T) {
	repo := newScriptedRepo(loadResult{tokens: map[string]Entry{}})
	r := NewReloader(repo, NewCache(), 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	repo.waitCalls(t, 1)
	cancel()

	// Let a tick that raced with cancel drain.
	time.Sleep(20 * time.Millisecond)
	for len(repo.calls) > 0 {
		<-repo.calls
	}
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, repo.calls, "no reload after the context is canceled")
}
