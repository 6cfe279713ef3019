// internal/browser/cdp/browser.go
package cdp

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagewright/internal/browser"
	"github.com/xkilldash9x/pagewright/internal/config"
)

const launchTimeout = 30 * time.Second

// Browser owns one Chrome process, launched or attached, and the tabs opened
// in it.
type Browser struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu    sync.Mutex
	pages map[string]*Page
	seq   int
}

var _ browser.Tabs = (*Browser)(nil)

// ExecOptions translates the browser configuration into allocator options.
func ExecOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("headless", cfg.Headless),
	)
	if cfg.IgnoreTLSErrors {
		opts = append(opts, chromedp.IgnoreCertErrors)
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if w, h := cfg.Viewport["width"], cfg.Viewport["height"]; w > 0 && h > 0 {
		opts = append(opts, chromedp.WindowSize(w, h))
	}

	for _, arg := range cfg.Args {
		key, value, hasValue := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if key == "" {
			continue
		}
		if hasValue {
			opts = append(opts, chromedp.Flag(key, value))
		} else {
			opts = append(opts, chromedp.Flag(key, true))
		}
	}
	return opts
}

// New starts Chrome, or attaches to RemoteURL when set, and waits until the
// browser answers.
func New(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Browser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("cdp")

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if cfg.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), ExecOptions(cfg)...)
	}

	ctxOpts := []chromedp.ContextOption{chromedp.WithErrorf(logger.Sugar().Errorf)}
	if cfg.Debug {
		ctxOpts = append(ctxOpts, chromedp.WithDebugf(logger.Sugar().Debugf))
	}
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, ctxOpts...)

	b := &Browser{
		cfg:           cfg,
		logger:        logger,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		pages:         make(map[string]*Page),
	}

	// The first Run on the browser context starts the process.
	startCtx, cancel := CombineContext(browserCtx, ctx)
	defer cancel()
	startCtx, cancelTimeout := context.WithTimeout(startCtx, launchTimeout)
	defer cancelTimeout()
	if err := chromedp.Run(startCtx); err != nil {
		b.Shutdown()
		return nil, fmt.Errorf("browser failed to start or respond: %w", err)
	}

	logger.Info("Browser ready.", zap.Bool("remote", cfg.RemoteURL != ""), zap.Bool("headless", cfg.Headless))
	return b, nil
}

// Open implements browser.Tabs. The new tab is registered once its first
// navigation finishes.
func (b *Browser) Open(ctx context.Context, url string) (browser.Page, error) {
	b.mu.Lock()
	b.seq++
	id := fmt.Sprintf("tab-%d", b.seq)
	b.mu.Unlock()

	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	p := &Page{
		id:      id,
		ctx:     tabCtx,
		cancel:  cancel,
		cfg:     b.cfg,
		logger:  b.logger,
		onClose: b.forget,
	}

	setup := []chromedp.Action{}
	if w, h := b.cfg.Viewport["width"], b.cfg.Viewport["height"]; w > 0 && h > 0 {
		setup = append(setup, chromedp.EmulateViewport(int64(w), int64(h)))
	}
	runCtx, cancelRun := CombineContext(tabCtx, ctx)
	err := chromedp.Run(runCtx, setup...)
	cancelRun()
	if err == nil {
		err = p.Navigate(ctx, url)
	}
	if err != nil {
		p.onClose = nil
		_ = p.Close()
		return nil, fmt.Errorf("failed to open %s: %w", url, err)
	}

	b.mu.Lock()
	b.pages[id] = p
	b.mu.Unlock()

	if t := chromedp.FromContext(tabCtx).Target; t != nil {
		b.logger.Debug("Tab opened.", zap.String("page_id", id), zap.String("target_id", t.TargetID.String()))
	}
	return p, nil
}

// Get implements browser.Tabs.
func (b *Browser) Get(id string) (browser.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pages[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", browser.ErrPageNotFound, id)
	}
	return p, nil
}

// List implements browser.Tabs.
func (b *Browser) List() []browser.Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]string, 0, len(b.pages))
	for id := range b.pages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]browser.Page, 0, len(ids))
	for _, id := range ids {
		out = append(out, b.pages[id])
	}
	return out
}

// Close implements browser.Tabs.
func (b *Browser) Close(id string) error {
	b.mu.Lock()
	p, ok := b.pages[id]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", browser.ErrPageNotFound, id)
	}
	return p.Close()
}

func (b *Browser) forget(id string) {
	b.mu.Lock()
	delete(b.pages, id)
	b.mu.Unlock()
}

// Shutdown closes every tab and stops the browser, or detaches from a remote one.
func (b *Browser) Shutdown() {
	for _, p := range b.List() {
		if err := p.Close(); err != nil {
			b.logger.Warn("Failed to close tab during shutdown.", zap.String("page_id", p.ID()), zap.Error(err))
		}
	}
	if err := chromedp.Cancel(b.browserCtx); err != nil {
		b.logger.Debug("Browser context cancel reported an error.", zap.Error(err))
	}
	b.browserCancel()
	b.allocCancel()
	b.logger.Info("Browser shut down.")
}
