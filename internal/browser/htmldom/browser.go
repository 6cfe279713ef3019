package htmldom

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagewright/api/schemas"
	"github.com/xkilldash9x/pagewright/internal/browser"
)

// ErrDocumentNotFound is returned by loaders that have no document for a URL.
var ErrDocumentNotFound = errors.New("document not found")

// Loader fetches the markup for a URL.
type Loader interface {
	Load(ctx context.Context, url string) (io.ReadCloser, error)
}

// MapLoader serves documents from memory, keyed by URL.
type MapLoader map[string]string

// Load implements Loader.
func (m MapLoader) Load(_ context.Context, u string) (io.ReadCloser, error) {
	if doc, ok := m[u]; ok {
		return io.NopCloser(strings.NewReader(doc)), nil
	}
	if doc, ok := m[strings.TrimSuffix(u, "/")]; ok {
		return io.NopCloser(strings.NewReader(doc)), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, u)
}

// FileLoader serves file:// URLs and bare paths from disk, relative to Root.
type FileLoader struct {
	Root string
}

// Load implements Loader.
func (f FileLoader) Load(_ context.Context, u string) (io.ReadCloser, error) {
	path := u
	if parsed, err := url.Parse(u); err == nil && parsed.Scheme == "file" {
		path = parsed.Path
	}
	if f.Root != "" && !filepath.IsAbs(path) {
		path = filepath.Join(f.Root, path)
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, u)
		}
		return nil, err
	}
	return file, nil
}

// HTTPLoader fetches documents over HTTP without running scripts. A nil
// Client gets a default one that decodes brotli and gzip responses.
type HTTPLoader struct {
	Client *http.Client
}

// Load implements Loader.
func (h HTTPLoader) Load(ctx context.Context, u string) (io.ReadCloser, error) {
	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second, Transport: newDecompressingTransport(nil)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, u)
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, u)
	}
	return resp.Body, nil
}

// MultiLoader dispatches file:// and bare paths to Files and everything else
// to Web.
type MultiLoader struct {
	Files Loader
	Web   Loader
}

// Load implements Loader.
func (m MultiLoader) Load(ctx context.Context, u string) (io.ReadCloser, error) {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return m.Web.Load(ctx, u)
	}
	return m.Files.Load(ctx, u)
}

// Browser is the offline tab surface. It hands out Page contexts that share
// one Loader.
type Browser struct {
	loader   Loader
	viewport schemas.Viewport
	logger   *zap.Logger

	mu    sync.Mutex
	pages map[string]*Page
	seq   int
}

// NewBrowser creates an offline browser.
func NewBrowser(loader Loader, viewport schemas.Viewport, logger *zap.Logger) *Browser {
	if logger == nil {
		logger = zap.NewNop()
	}
	if viewport.Width == 0 || viewport.Height == 0 {
		viewport = schemas.Viewport{Width: 1280, Height: 720}
	}
	return &Browser{
		loader:   loader,
		viewport: viewport,
		logger:   logger.Named("htmldom"),
		pages:    make(map[string]*Page),
	}
}

// Open implements browser.Tabs.
func (b *Browser) Open(ctx context.Context, target string) (browser.Page, error) {
	return b.OpenPage(ctx, target)
}

// OpenPage is Open returning the concrete type.
func (b *Browser) OpenPage(ctx context.Context, target string) (*Page, error) {
	b.mu.Lock()
	b.seq++
	id := fmt.Sprintf("tab-%d", b.seq)
	b.mu.Unlock()

	p := newPage(id, b.loader, b.viewport, b.logger)
	p.onClose = b.forget
	if err := p.Navigate(ctx, target); err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.pages[id] = p
	b.mu.Unlock()
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
