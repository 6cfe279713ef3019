package htmldom

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pagewright/api/schemas"
	"github.com/xkilldash9x/pagewright/internal/browser"
)

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func TestMapLoader(t *testing.T) {
	l := MapLoader{"https://a.test": "<p>a</p>"}

	rc, err := l.Load(context.Background(), "https://a.test/")
	require.NoError(t, err)
	assert.Equal(t, "<p>a</p>", readAll(t, rc))

	_, err = l.Load(context.Background(), "https://b.test/")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestFileLoader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page.html"), []byte("<p>disk</p>"), 0o600))
	l := FileLoader{Root: dir}

	rc, err := l.Load(context.Background(), "page.html")
	require.NoError(t, err)
	assert.Equal(t, "<p>disk</p>", readAll(t, rc))

	rc, err = l.Load(context.Background(), "file://"+filepath.Join(dir, "page.html"))
	require.NoError(t, err)
	assert.Equal(t, "<p>disk</p>", readAll(t, rc))

	_, err = l.Load(context.Background(), "missing.html")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestHTTPAndMultiLoader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, "<p>web</p>")
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "local.html"), []byte("<p>local</p>"), 0o600))
	l := MultiLoader{Files: FileLoader{Root: dir}, Web: HTTPLoader{Client: srv.Client()}}

	rc, err := l.Load(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, "<p>web</p>", readAll(t, rc))

	rc, err = l.Load(context.Background(), "local.html")
	require.NoError(t, err)
	assert.Equal(t, "<p>local</p>", readAll(t, rc))

	_, err = l.Load(context.Background(), srv.URL+"/nope")
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	_, err = l.Load(context.Background(), srv.URL+"/broken")
	assert.ErrorContains(t, err, "HTTP 500")
}

func TestCompressedResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept := r.Header.Get("Accept-Encoding")
		switch {
		case r.URL.Path == "/br" && strings.Contains(accept, "br"):
			w.Header().Set("Content-Encoding", "br")
			bw := brotli.NewWriter(w)
			fmt.Fprint(bw, "<p>brotli</p>")
			bw.Close()
		case r.URL.Path == "/gz" && strings.Contains(accept, "gzip"):
			w.Header().Set("Content-Encoding", "gzip")
			gw := gzip.NewWriter(w)
			fmt.Fprint(gw, "<p>gzip</p>")
			gw.Close()
		case r.URL.Path == "/odd":
			w.Header().Set("Content-Encoding", "zstd")
			fmt.Fprint(w, "????")
		default:
			fmt.Fprint(w, "<p>plain</p>")
		}
	}))
	defer srv.Close()

	l := HTTPLoader{Client: &http.Client{Transport: newDecompressingTransport(srv.Client().Transport)}}
	for path, want := range map[string]string{"/br": "<p>brotli</p>", "/gz": "<p>gzip</p>", "/": "<p>plain</p>"} {
		rc, err := l.Load(context.Background(), srv.URL+path)
		require.NoError(t, err, path)
		assert.Equal(t, want, readAll(t, rc), path)
	}

	_, err := l.Load(context.Background(), srv.URL+"/odd")
	assert.ErrorContains(t, err, "unsupported Content-Encoding")
}

func TestBrowserTabs(t *testing.T) {
	b := NewBrowser(MapLoader{"https://a.test/": "<title>A</title>"}, schemas.Viewport{}, zaptest.NewLogger(t))

	first, err := b.Open(context.Background(), "https://a.test/")
	require.NoError(t, err)
	second, err := b.Open(context.Background(), "about:blank")
	require.NoError(t, err)
	assert.Equal(t, "tab-1", first.ID())
	assert.Equal(t, "tab-2", second.ID())

	pages := b.List()
	require.Len(t, pages, 2)
	assert.Equal(t, "tab-1", pages[0].ID())

	got, err := b.Get("tab-2")
	require.NoError(t, err)
	assert.Same(t, second, got)

	require.NoError(t, b.Close("tab-1"))
	_, err = b.Get("tab-1")
	assert.ErrorIs(t, err, browser.ErrPageNotFound)
	assert.ErrorIs(t, b.Close("tab-1"), browser.ErrPageNotFound)

	_, err = first.Snapshot(context.Background())
	assert.ErrorIs(t, err, browser.ErrPageClosed)
	assert.Len(t, b.List(), 1)
}

func TestUnknownDocumentServesNotFoundPage(t *testing.T) {
	b := NewBrowser(MapLoader{}, schemas.Viewport{}, zaptest.NewLogger(t))
	p, err := b.OpenPage(context.Background(), "https://gone.test/")
	require.NoError(t, err)

	st, err := p.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Not Found", st.Title)
	assert.Equal(t, "https://gone.test/", st.URL)
}
