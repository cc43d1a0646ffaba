// Package render provides the browser surface the crawler drives: page
// navigation, in-page evaluation, style injection, and screenshots. The
// crawl engine owns exactly one surface per run.
package render

import (
	"context"
	"time"
)

// NavigateOptions controls a single page load.
type NavigateOptions struct {
	Timeout time.Duration
}

// ScreenshotOptions controls page capture.
type ScreenshotOptions struct {
	FullPage bool
	Quality  int
}

// Ext returns the file extension matching the encoding the capture
// produces. Full-page captures below quality 100 come back as JPEG;
// everything else is PNG.
func (o ScreenshotOptions) Ext() string {
	if o.FullPage && o.Quality < 100 {
		return ".jpg"
	}
	return ".png"
}

// Surface is the rendering collaborator consumed by the crawl engine, the
// page extractor, and the technology detector. Implementations load a URL,
// expose the rendered document for query, and capture screenshots.
type Surface interface {
	// Navigate loads a URL and blocks until the document is ready or the
	// timeout elapses. It returns the main-document HTTP status code,
	// defaulting to 200 when the browser did not surface one.
	Navigate(ctx context.Context, url string, opts NavigateOptions) (int, error)

	// Evaluate runs a read-only expression against the live document and
	// decodes the result into out.
	Evaluate(ctx context.Context, expression string, out any) error

	// HTML returns the rendered document's outer HTML.
	HTML(ctx context.Context) (string, error)

	// InjectStyle adds page-scoped style rules.
	InjectStyle(ctx context.Context, css string) error

	// DisableAnimations neutralises CSS and JS animation timing so captures
	// are stable: zero durations/delays via an injected universal rule,
	// synchronous animation-frame callbacks, and force-finished in-flight
	// Web Animations.
	DisableAnimations(ctx context.Context) error

	// Screenshot captures the current page.
	Screenshot(ctx context.Context, opts ScreenshotOptions) ([]byte, error)

	// Sleep pauses cooperatively, honouring context cancellation.
	Sleep(ctx context.Context, d time.Duration) error

	// Close releases the underlying browser.
	Close() error
}
