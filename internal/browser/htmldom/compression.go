package htmldom

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

// decompressingTransport advertises br and gzip and decodes the response body.
// Setting Accept-Encoding by hand turns off net/http's transparent gzip, so
// both encodings are handled here.
type decompressingTransport struct {
	base http.RoundTripper
}

func newDecompressingTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &decompressingTransport{base: base}
}

// RoundTrip implements http.RoundTripper.
func (t *decompressingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", "br, gzip")
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if err := decodeBody(resp); err != nil {
		_ = resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// decodeBody unwraps Content-Encoding layers in reverse order of application.
func decodeBody(resp *http.Response) error {
	encodings := resp.Header.Values("Content-Encoding")
	if len(encodings) == 0 {
		return nil
	}
	for i := len(encodings) - 1; i >= 0; i-- {
		var reader io.ReadCloser
		switch enc := strings.ToLower(strings.TrimSpace(encodings[i])); enc {
		case "br":
			reader = io.NopCloser(brotli.NewReader(resp.Body))
		case "gzip":
			zr, err := gzip.NewReader(resp.Body)
			if err != nil {
				return fmt.Errorf("gzip initialization error: %w", err)
			}
			reader = zr
		case "identity", "":
			continue
		default:
			return fmt.Errorf("unsupported Content-Encoding: %s", enc)
		}
		resp.Body = &layeredBody{ReadCloser: reader, under: resp.Body}
	}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}

// layeredBody closes the decoder and the body it reads from.
type layeredBody struct {
	io.ReadCloser
	under io.ReadCloser
}

func (b *layeredBody) Close() error {
	return errors.Join(b.ReadCloser.Close(), b.under.Close())
}
