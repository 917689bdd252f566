package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxBundleBytes = 2 * 1024 * 1024

// ErrBundleTooLarge rejects a bundle bigger than the fetcher will inject.
var ErrBundleTooLarge = errors.New("content: bundle exceeds size limit")

// Fetcher retrieves a view resource by path.
type Fetcher interface {
	Fetch(ctx context.Context, path string) (string, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, path string) (string, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}

// HTTPFetcher fetches resources over HTTP. Under js/wasm net/http is backed by fetch().
type HTTPFetcher struct {
	Client *http.Client
	// Base is prefixed to relative-to-root paths; empty keeps same-origin paths.
	Base string
}

// NewViewFetcher returns the fetcher for view bundles on base. View fetches carry no
// timeout; a hung fetch leaves the loading placeholder in place.
func NewViewFetcher(base string) *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{}, Base: base}
}

// Fetch performs a GET and returns the body as text.
func (f *HTTPFetcher) Fetch(ctx context.Context, path string) (string, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	endpoint := path
	if base := strings.TrimSuffix(strings.TrimSpace(f.Base), "/"); base != "" && strings.HasPrefix(path, "/") {
		endpoint = base + path
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "text/html, text/plain;q=0.9, */*;q=0.1")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch %s failed: %s", path, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBundleBytes+1))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if len(body) > maxBundleBytes {
		return "", fmt.Errorf("%s: %w", path, ErrBundleTooLarge)
	}
	return string(body), nil
}
