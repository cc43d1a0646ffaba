package crawler

import (
	"net/url"
	"strings"
)

// NormalizeURL produces the canonical string used for visited-set
// membership: fragment dropped, query kept, scheme/host lowercased, and a
// single trailing slash stripped except at the bare-host root. Two URLs
// normalizing to the same string are the same page.
func NormalizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	clone := *u
	clone.Fragment = ""
	clone.Scheme = strings.ToLower(clone.Scheme)
	clone.Host = strings.ToLower(clone.Host)

	if clone.Path == "" {
		clone.Path = "/"
		clone.RawPath = ""
	}
	if clone.Path != "/" && strings.HasSuffix(clone.Path, "/") {
		clone.Path = strings.TrimSuffix(clone.Path, "/")
		clone.RawPath = strings.TrimSuffix(clone.RawPath, "/")
	}

	return clone.String()
}

// Frontier is the ordered queue of discovered, not-yet-visited URLs plus
// the set of normalized fingerprints already seen. FIFO dequeue gives the
// crawl its breadth-first shape. Owned exclusively by one run.
type Frontier struct {
	queue   []*url.URL
	seen    map[string]struct{}
	visited map[string]struct{}
}

// NewFrontier creates an empty frontier.
func NewFrontier() *Frontier {
	return &Frontier{
		seen:    make(map[string]struct{}),
		visited: make(map[string]struct{}),
	}
}

// Enqueue adds a URL to the tail unless its fingerprint is already queued
// or visited. Returns true when the URL was accepted.
func (f *Frontier) Enqueue(u *url.URL) bool {
	if u == nil {
		return false
	}
	key := NormalizeURL(u)
	if key == "" {
		return false
	}
	if _, dup := f.seen[key]; dup {
		return false
	}
	f.seen[key] = struct{}{}
	f.queue = append(f.queue, u)
	return true
}

// Dequeue removes and returns the head of the queue.
func (f *Frontier) Dequeue() (*url.URL, bool) {
	if len(f.queue) == 0 {
		return nil, false
	}
	u := f.queue[0]
	f.queue = f.queue[1:]
	return u, true
}

// MarkVisited records a fingerprint as processed. Marked before the page
// is actually worked on, so a page linking to itself cannot re-enter the
// queue.
func (f *Frontier) MarkVisited(u *url.URL) {
	key := NormalizeURL(u)
	if key == "" {
		return
	}
	f.visited[key] = struct{}{}
	f.seen[key] = struct{}{}
}

// Visited reports whether a URL's fingerprint has been processed.
func (f *Frontier) Visited(u *url.URL) bool {
	_, ok := f.visited[NormalizeURL(u)]
	return ok
}

// Len reports the number of queued URLs.
func (f *Frontier) Len() int {
	return len(f.queue)
}
