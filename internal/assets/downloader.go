// Package assets fetches page assets (images, stylesheets, scripts) to
// local storage with bounded concurrency, per-asset timeouts, and size
// limits. Failed downloads are reported, never retried.
package assets

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/sync/errgroup"

	"github.com/MacphersonDesigns/site-scraper/pkg/types"
)

var (
	// ErrDataURL marks data: URLs, which are embedded rather than
	// downloadable; they are skipped immediately and are not failures
	// worth retrying.
	ErrDataURL = errors.New("data url is embedded, not downloadable")

	// ErrTooManyRedirects is returned when a fetch redirects more than
	// once. Exactly one redirect hop is followed.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrSizeExceeded is returned when a body outgrows the configured
	// size limit, whether announced via Content-Length or discovered
	// mid-stream.
	ErrSizeExceeded = errors.New("asset exceeds size limit")
)

// Options controls one batch of downloads.
type Options struct {
	// Timeout bounds each individual fetch. Default 5s.
	Timeout time.Duration
	// MaxSizeBytes aborts any transfer growing past this size. Default 10MB.
	MaxSizeBytes int64
	// BaseURL resolves relative and protocol-relative asset URLs.
	BaseURL *url.URL
	// Concurrency is the number of downloads in flight. Default 5.
	Concurrency int
	// UserAgent is sent with every request when set.
	UserAgent string
	// OnResult, when set, observes every completed download (success or
	// failure) with a running done/total count. This is the only channel
	// by which callers learn asset-level progress.
	OnResult func(done, total int, result types.AssetDownloadResult)
}

// Downloader fetches asset URLs over HTTP(S).
type Downloader struct {
	client *http.Client
	logger *slog.Logger
}

// New constructs a downloader. Automatic redirect following is disabled;
// the single permitted hop is re-issued explicitly.
func New(logger *slog.Logger) *Downloader {
	if logger == nil {
		logger = slog.Default()
	}
	transport := &http.Transport{
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout: 5 * time.Second,
		MaxIdleConns:        20,
		IdleConnTimeout:     30 * time.Second,
	}
	client := &http.Client{
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &Downloader{client: client, logger: logger}
}

// DownloadAll fetches every URL into destDir, at most opts.Concurrency in
// flight, and returns one result per input URL in input order.
func (d *Downloader) DownloadAll(ctx context.Context, urls []string, destDir string, opts Options) []types.AssetDownloadResult {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.MaxSizeBytes <= 0 {
		opts.MaxSizeBytes = 10 * 1024 * 1024
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 5
	}

	results := make([]types.AssetDownloadResult, len(urls))
	if len(urls) == 0 {
		return results
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		for i, raw := range urls {
			results[i] = types.AssetDownloadResult{URL: raw, Error: fmt.Sprintf("create destination: %v", err)}
		}
		return results
	}

	names := newNameRegistry(destDir)
	total := len(urls)
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, raw := range urls {
		g.Go(func() error {
			result := d.downloadOne(gctx, raw, destDir, names, opts)
			results[i] = result
			if opts.OnResult != nil {
				opts.OnResult(int(done.Add(1)), total, result)
			}
			// Individual failures are recorded, not propagated: one bad
			// asset must not cancel the batch.
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (d *Downloader) downloadOne(ctx context.Context, raw, destDir string, names *nameRegistry, opts Options) types.AssetDownloadResult {
	result := types.AssetDownloadResult{URL: raw}

	if strings.HasPrefix(raw, "data:") {
		result.Error = ErrDataURL.Error()
		return result
	}

	target, err := resolveURL(raw, opts.BaseURL)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	fetchCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	resp, err := d.fetch(fetchCtx, target, opts.UserAgent)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		result.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		return result
	}
	if cl := resp.ContentLength; cl > 0 && cl > opts.MaxSizeBytes {
		result.Error = fmt.Sprintf("%v: content-length %d > %d", ErrSizeExceeded, cl, opts.MaxSizeBytes)
		return result
	}

	body, err := readLimitedBody(resp, opts.MaxSizeBytes)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	filename := names.claim(filenameFor(target))
	fullPath := filepath.Join(destDir, filename)
	if err := os.WriteFile(fullPath, body, 0o644); err != nil {
		result.Error = fmt.Sprintf("write file: %v", err)
		return result
	}

	result.Success = true
	result.LocalPath = fullPath
	result.SizeBytes = int64(len(body))
	return result
}

// fetch issues a GET and follows at most one redirect hop by re-issuing
// the request at the Location target. A second redirect is an error.
func (d *Downloader) fetch(ctx context.Context, target *url.URL, userAgent string) (*http.Response, error) {
	resp, err := d.doGet(ctx, target, userAgent)
	if err != nil {
		return nil, err
	}
	if !isRedirect(resp.StatusCode) {
		return resp, nil
	}

	location := resp.Header.Get("Location")
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
	if location == "" {
		return nil, fmt.Errorf("redirect %d without location", resp.StatusCode)
	}
	next, err := target.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("parse redirect location: %w", err)
	}

	resp, err = d.doGet(ctx, next, userAgent)
	if err != nil {
		return nil, err
	}
	if isRedirect(resp.StatusCode) {
		resp.Body.Close()
		return nil, ErrTooManyRedirects
	}
	return resp, nil
}

func (d *Downloader) doGet(ctx context.Context, target *url.URL, userAgent string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	return resp, nil
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// readLimitedBody decodes the response body per its Content-Encoding and
// enforces the size limit with a running byte counter, aborting the
// transfer the moment it is exceeded.
func readLimitedBody(resp *http.Response, maxSize int64) ([]byte, error) {
	reader := io.Reader(resp.Body)
	closers := []io.Closer{resp.Body}

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		reader = gz
		closers = append(closers, gz)
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl := flate.NewReader(resp.Body)
		reader = fl
		closers = append(closers, fl)
	}
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	limited := io.LimitReader(reader, maxSize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > maxSize {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrSizeExceeded, maxSize)
	}
	return body, nil
}

// resolveURL handles absolute, relative, and protocol-relative asset URLs.
func resolveURL(raw string, base *url.URL) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("empty asset url")
	}
	if strings.HasPrefix(raw, "//") {
		scheme := "https"
		if base != nil && base.Scheme != "" {
			scheme = base.Scheme
		}
		raw = scheme + ":" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse asset url %q: %w", raw, err)
	}
	if !parsed.IsAbs() {
		if base == nil {
			return nil, fmt.Errorf("relative asset url %q without base", raw)
		}
		parsed = base.ResolveReference(parsed)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	return parsed, nil
}

// filenameFor derives a filesystem-safe name from the URL path.
func filenameFor(u *url.URL) string {
	base := filepath.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		base = "asset"
	}
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	name := b.String()
	if name == "" || strings.Trim(name, "._") == "" {
		name = "asset"
	}
	return name
}

// nameRegistry hands out collision-free filenames within one destination
// directory. The second claim on a name gets a _1 suffix before the
// extension, the third _2, and so on.
type nameRegistry struct {
	mu   sync.Mutex
	dir  string
	used map[string]struct{}
}

func newNameRegistry(dir string) *nameRegistry {
	return &nameRegistry{dir: dir, used: make(map[string]struct{})}
}

func (r *nameRegistry) claim(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	candidate := name
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 1; r.taken(candidate); n++ {
		candidate = fmt.Sprintf("%s_%d%s", stem, n, ext)
	}
	r.used[candidate] = struct{}{}
	return candidate
}

func (r *nameRegistry) taken(name string) bool {
	if _, ok := r.used[name]; ok {
		return true
	}
	_, err := os.Stat(filepath.Join(r.dir, name))
	return err == nil
}
