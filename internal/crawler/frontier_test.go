package crawler

import (
	"net/url"
	"testing"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"drops fragment", "https://example.com/about#team", "https://example.com/about"},
		{"keeps query", "https://example.com/search?q=go", "https://example.com/search?q=go"},
		{"strips trailing slash", "https://example.com/about/", "https://example.com/about"},
		{"bare root keeps slash", "https://example.com/", "https://example.com/"},
		{"empty path becomes root", "https://example.com", "https://example.com/"},
		{"lowercases host", "https://EXAMPLE.com/About", "https://example.com/About"},
		{"keeps percent encoding", "https://example.com/a%20b", "https://example.com/a%20b"},
		{"encoded path trailing slash", "https://example.com/caf%C3%A9/", "https://example.com/caf%C3%A9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeURL(mustParse(t, tt.in))
			if got != tt.want {
				t.Fatalf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeURLIdempotent(t *testing.T) {
	raws := []string{
		"https://Example.com/blog/post/?page=2#comments",
		"https://example.com/a%20b",
		"https://example.com/caf%C3%A9/",
	}
	for _, raw := range raws {
		once := NormalizeURL(mustParse(t, raw))
		twice := NormalizeURL(mustParse(t, once))
		if once != twice {
			t.Fatalf("normalization of %q not idempotent: %q then %q", raw, once, twice)
		}
	}
}

func TestFrontierDedup(t *testing.T) {
	f := NewFrontier()

	if !f.Enqueue(mustParse(t, "https://example.com/a")) {
		t.Fatal("first enqueue rejected")
	}
	if f.Enqueue(mustParse(t, "https://example.com/a/")) {
		t.Fatal("trailing-slash variant accepted as new")
	}
	if f.Enqueue(mustParse(t, "https://example.com/a#section")) {
		t.Fatal("fragment variant accepted as new")
	}
	if f.Len() != 1 {
		t.Fatalf("queue length = %d, want 1", f.Len())
	}
}

func TestFrontierFIFO(t *testing.T) {
	f := NewFrontier()
	f.Enqueue(mustParse(t, "https://example.com/first"))
	f.Enqueue(mustParse(t, "https://example.com/second"))

	u, ok := f.Dequeue()
	if !ok || u.Path != "/first" {
		t.Fatalf("first dequeue = %v, %v", u, ok)
	}
	u, ok = f.Dequeue()
	if !ok || u.Path != "/second" {
		t.Fatalf("second dequeue = %v, %v", u, ok)
	}
	if _, ok := f.Dequeue(); ok {
		t.Fatal("dequeue on empty queue reported ok")
	}
}

func TestFrontierVisitedBlocksReenqueue(t *testing.T) {
	f := NewFrontier()
	page := mustParse(t, "https://example.com/loop")

	f.Enqueue(page)
	got, _ := f.Dequeue()
	f.MarkVisited(got)

	if f.Enqueue(mustParse(t, "https://example.com/loop")) {
		t.Fatal("visited URL re-entered the queue")
	}
	if !f.Visited(page) {
		t.Fatal("Visited returned false for marked URL")
	}
}
