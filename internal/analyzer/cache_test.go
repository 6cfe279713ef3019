package analyzer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/pagewright/api/schemas"
	"github.com/xkilldash9x/pagewright/internal/browser"
)

// countingPage counts snapshots taken through it.
type countingPage struct {
	browser.Page
	snapshots int
	err       error
}

func (c *countingPage) Snapshot(ctx context.Context) (*schemas.DocumentSnapshot, error) {
	c.snapshots++
	if c.err != nil {
		return nil, c.err
	}
	return c.Page.Snapshot(ctx)
}

func newCacheFixture(t *testing.T) (*Cache, *countingPage, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	page := &countingPage{Page: openFixture(t, profilePage)}
	return NewCache(newTestAnalyzer(t, WithClock(clock)), page), page, clock
}

func TestCacheReusesWithinWindow(t *testing.T) {
	cache, page, clock := newCacheFixture(t)
	ctx := context.Background()

	assert.True(t, cache.IsStale(), "an empty cache is stale")
	assert.Nil(t, cache.Peek())

	first, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, page.snapshots)
	assert.False(t, cache.IsStale())

	clock.Advance(29 * time.Second)
	second, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, page.snapshots)

	clock.Advance(time.Second)
	assert.True(t, cache.IsStale())
	third, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, 2, page.snapshots)

	// An unchanged document scores identically across scans.
	if diff := cmp.Diff(first.InteractiveElements, third.InteractiveElements); diff != "" {
		t.Errorf("rescan changed interactive elements (-first +third):\n%s", diff)
	}
}

func TestCacheInvalidateAndRefresh(t *testing.T) {
	cache, page, _ := newCacheFixture(t)
	ctx := context.Background()

	first, err := cache.Get(ctx)
	require.NoError(t, err)

	cache.Invalidate()
	assert.True(t, cache.IsStale())
	assert.Nil(t, cache.Peek())

	second, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, second)

	refreshed, err := cache.Refresh(ctx)
	require.NoError(t, err)
	assert.NotSame(t, second, refreshed)
	assert.Same(t, refreshed, cache.Peek())
	assert.Equal(t, 3, page.snapshots)
}

func TestCacheScanFailureClearsAnalysis(t *testing.T) {
	cache, page, _ := newCacheFixture(t)
	ctx := context.Background()

	_, err := cache.Get(ctx)
	require.NoError(t, err)

	page.err = browser.ErrPageClosed
	_, err = cache.Refresh(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, browser.ErrPageClosed))
	assert.Nil(t, cache.Peek())
	assert.True(t, cache.IsStale())
}

func TestCacheSeesRerender(t *testing.T) {
	clock := clockwork.NewFakeClock()
	page := openFixture(t, `<html><body><button>Old</button></body></html>`)
	cache := NewCache(newTestAnalyzer(t, WithClock(clock)), page)
	ctx := context.Background()

	before, err := cache.Get(ctx)
	require.NoError(t, err)
	require.NoError(t, page.SetHTML(`<html><body><button>New</button></body></html>`))

	cached, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Old", cached.InteractiveElements[0].Text, "within the window the cached scan is served")
	assert.Same(t, before, cached)

	cache.Invalidate()
	after, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "New", after.InteractiveElements[0].Text)
}
