package assets

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/MacphersonDesigns/site-scraper/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixtureServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/logo.png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("png-data"))
	})
	mux.HandleFunc("/alt/logo.png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("other-png-data"))
	})
	mux.HandleFunc("/huge.bin", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 2048))
	})
	mux.HandleFunc("/hop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/logo.png", http.StatusFound)
	})
	mux.HandleFunc("/loop1", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop2", http.StatusFound)
	})
	mux.HandleFunc("/loop2", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop1", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func baseURL(t *testing.T, srv *httptest.Server) *url.URL {
	t.Helper()
	u, err := url.Parse(srv.URL + "/")
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	return u
}

func TestDownloadAllSuccess(t *testing.T) {
	srv := fixtureServer(t)
	dest := t.TempDir()
	d := New(testLogger())

	results := d.DownloadAll(context.Background(), []string{srv.URL + "/logo.png"}, dest, Options{
		BaseURL: baseURL(t, srv),
	})
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	res := results[0]
	if !res.Success {
		t.Fatalf("download failed: %s", res.Error)
	}
	if res.SizeBytes != int64(len("png-data")) {
		t.Fatalf("size = %d, want %d", res.SizeBytes, len("png-data"))
	}
	data, err := os.ReadFile(res.LocalPath)
	if err != nil || string(data) != "png-data" {
		t.Fatalf("stored file mismatch: %q, %v", data, err)
	}
}

func TestDownloadAllRelativeURL(t *testing.T) {
	srv := fixtureServer(t)
	d := New(testLogger())

	results := d.DownloadAll(context.Background(), []string{"/logo.png"}, t.TempDir(), Options{
		BaseURL: baseURL(t, srv),
	})
	if !results[0].Success {
		t.Fatalf("relative url failed: %s", results[0].Error)
	}
}

func TestDownloadAllNotFound(t *testing.T) {
	srv := fixtureServer(t)
	d := New(testLogger())

	results := d.DownloadAll(context.Background(), []string{srv.URL + "/missing.png"}, t.TempDir(), Options{
		BaseURL: baseURL(t, srv),
	})
	res := results[0]
	if res.Success {
		t.Fatal("missing asset reported success")
	}
	if !strings.Contains(res.Error, "unexpected status 404") {
		t.Fatalf("error = %q, want status 404 mention", res.Error)
	}
}

func TestDownloadAllSizeLimit(t *testing.T) {
	srv := fixtureServer(t)
	d := New(testLogger())

	results := d.DownloadAll(context.Background(), []string{srv.URL + "/huge.bin"}, t.TempDir(), Options{
		BaseURL:      baseURL(t, srv),
		MaxSizeBytes: 1024,
	})
	res := results[0]
	if res.Success {
		t.Fatal("oversized asset reported success")
	}
	if !strings.Contains(res.Error, "exceeds") && !strings.Contains(res.Error, "content-length") {
		t.Fatalf("error = %q, want size limit mention", res.Error)
	}
}

func TestDownloadAllDataURLSkipped(t *testing.T) {
	srv := fixtureServer(t)
	d := New(testLogger())

	results := d.DownloadAll(context.Background(), []string{"data:image/png;base64,iVBORw0="}, t.TempDir(), Options{
		BaseURL: baseURL(t, srv),
	})
	res := results[0]
	if res.Success {
		t.Fatal("data url reported success")
	}
	if res.Error != ErrDataURL.Error() {
		t.Fatalf("error = %q, want %q", res.Error, ErrDataURL.Error())
	}
}

func TestDownloadAllSingleRedirectHop(t *testing.T) {
	srv := fixtureServer(t)
	d := New(testLogger())

	results := d.DownloadAll(context.Background(), []string{srv.URL + "/hop"}, t.TempDir(), Options{
		BaseURL: baseURL(t, srv),
	})
	if !results[0].Success {
		t.Fatalf("single-hop redirect failed: %s", results[0].Error)
	}
}

func TestDownloadAllSecondRedirectRejected(t *testing.T) {
	srv := fixtureServer(t)
	d := New(testLogger())

	results := d.DownloadAll(context.Background(), []string{srv.URL + "/loop1"}, t.TempDir(), Options{
		BaseURL: baseURL(t, srv),
	})
	res := results[0]
	if res.Success {
		t.Fatal("redirect chain reported success")
	}
	if !strings.Contains(res.Error, ErrTooManyRedirects.Error()) {
		t.Fatalf("error = %q, want %q", res.Error, ErrTooManyRedirects.Error())
	}
}

func TestDownloadAllDedupesFilenames(t *testing.T) {
	srv := fixtureServer(t)
	dest := t.TempDir()
	d := New(testLogger())

	results := d.DownloadAll(context.Background(), []string{
		srv.URL + "/logo.png",
		srv.URL + "/alt/logo.png",
	}, dest, Options{
		BaseURL:     baseURL(t, srv),
		Concurrency: 1,
	})

	for i, res := range results {
		if !res.Success {
			t.Fatalf("download %d failed: %s", i, res.Error)
		}
	}
	if results[0].LocalPath == results[1].LocalPath {
		t.Fatalf("colliding filenames were not deduped: %s", results[0].LocalPath)
	}
	want := filepath.Join(dest, "logo_1.png")
	if results[1].LocalPath != want {
		t.Fatalf("second path = %s, want %s", results[1].LocalPath, want)
	}
}

func TestDownloadAllReportsProgress(t *testing.T) {
	srv := fixtureServer(t)
	d := New(testLogger())

	var mu sync.Mutex
	var seenDone, seenTotal []int
	urls := []string{
		srv.URL + "/logo.png",
		srv.URL + "/missing.png",
		srv.URL + "/alt/logo.png",
	}
	results := d.DownloadAll(context.Background(), urls, t.TempDir(), Options{
		BaseURL: baseURL(t, srv),
		OnResult: func(done, total int, _ types.AssetDownloadResult) {
			mu.Lock()
			defer mu.Unlock()
			seenDone = append(seenDone, done)
			seenTotal = append(seenTotal, total)
		},
	})

	if len(results) != len(urls) {
		t.Fatalf("got %d results, want %d", len(results), len(urls))
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seenDone) != len(urls) {
		t.Fatalf("progress fired %d times, want %d", len(seenDone), len(urls))
	}
	for _, total := range seenTotal {
		if total != len(urls) {
			t.Fatalf("total = %d, want %d", total, len(urls))
		}
	}
}
