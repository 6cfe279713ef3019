package analyzer

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagewright/api/schemas"
	"github.com/xkilldash9x/pagewright/internal/browser"
)

// Cache holds the single live analysis of one page context. A refresh swaps
// the whole analysis; readers never observe a partially built one.
type Cache struct {
	analyzer *Analyzer
	page     browser.Page

	mu      sync.Mutex
	current *schemas.PageAnalysis
}

// NewCache creates an empty cache for page.
func NewCache(a *Analyzer, page browser.Page) *Cache {
	return &Cache{analyzer: a, page: page}
}

// Page returns the page this cache describes.
func (c *Cache) Page() browser.Page { return c.page }

// Get returns the live analysis, scanning the page first when there is none
// or it has outlived the staleness window.
func (c *Cache) Get(ctx context.Context) (*schemas.PageAnalysis, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.staleLocked() {
		c.analyzer.metrics.ObserveScan(true, 0)
		return c.current, nil
	}
	return c.refreshLocked(ctx)
}

// Refresh forces a new scan.
func (c *Cache) Refresh(ctx context.Context) (*schemas.PageAnalysis, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked(ctx)
}

// Invalidate drops the live analysis; the next Get rescans.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
	c.analyzer.logger.Debug("Analysis invalidated.", zap.String("page_id", c.page.ID()))
}

// IsStale reports whether the next Get will rescan.
func (c *Cache) IsStale() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.staleLocked()
}

// Peek returns the live analysis without scanning, or nil.
func (c *Cache) Peek() *schemas.PageAnalysis {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Cache) staleLocked() bool {
	if c.current == nil {
		return true
	}
	return c.analyzer.clock.Since(c.current.Timestamp) >= c.analyzer.cfg.StalenessWindow
}

func (c *Cache) refreshLocked(ctx context.Context) (*schemas.PageAnalysis, error) {
	analysis, err := c.analyzer.Analyze(ctx, c.page)
	if err != nil {
		// Keep serving nothing rather than an analysis of a document that may be gone.
		c.current = nil
		return nil, err
	}
	c.current = analysis
	return analysis, nil
}
