package render

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Options configures a Chrome surface.
type Options struct {
	ViewportWidth   int
	ViewportHeight  int
	UserAgent       string
	DisableHeadless bool
}

// Chrome drives a single headless browser context via chromedp. One Chrome
// instance serves one crawl run; pages are loaded sequentially into the
// same tab.
type Chrome struct {
	ctx        context.Context
	cancels    []context.CancelFunc
	logger     *slog.Logger
	lastStatus atomic.Int64
}

// NewChrome starts a browser and prepares a tab for navigation. A failure
// here is fatal to the whole run; every later error is page-local.
func NewChrome(parent context.Context, opts Options, logger *slog.Logger) (*Chrome, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ViewportWidth <= 0 {
		opts.ViewportWidth = 1920
	}
	if opts.ViewportHeight <= 0 {
		opts.ViewportHeight = 1080
	}

	headless := !opts.DisableHeadless
	execOpts := []chromedp.ExecAllocatorOption{
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
	}
	if ua := strings.TrimSpace(opts.UserAgent); ua != "" {
		execOpts = append(execOpts, chromedp.UserAgent(ua))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, execOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	c := &Chrome{
		ctx:     browserCtx,
		cancels: []context.CancelFunc{browserCancel, allocCancel},
		logger:  logger,
	}

	// Record main-document responses so Navigate can report HTTP status.
	chromedp.ListenTarget(browserCtx, func(ev any) {
		if resp, ok := ev.(*network.EventResponseReceived); ok {
			if resp.Type == network.ResourceTypeDocument {
				c.lastStatus.Store(resp.Response.Status)
			}
		}
	})

	err := chromedp.Run(browserCtx,
		network.Enable(),
		chromedp.EmulateViewport(int64(opts.ViewportWidth), int64(opts.ViewportHeight)),
	)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	return c, nil
}

// Navigate loads a URL, waits for document readiness, and returns the
// observed HTTP status (200 when the browser surfaced none).
func (c *Chrome) Navigate(ctx context.Context, url string, opts NavigateOptions) (int, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	navCtx, cancel := c.pageContext(ctx, timeout)
	defer cancel()

	c.lastStatus.Store(0)

	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		c.waitDocumentReady(),
	)
	if err != nil {
		return 0, fmt.Errorf("navigate %s: %w", url, err)
	}

	status := int(c.lastStatus.Load())
	if status == 0 {
		status = 200
	}
	return status, nil
}

// Evaluate runs a read-only expression against the live document.
func (c *Chrome) Evaluate(ctx context.Context, expression string, out any) error {
	evalCtx, cancel := c.pageContext(ctx, 10*time.Second)
	defer cancel()
	if err := chromedp.Run(evalCtx, chromedp.Evaluate(expression, out)); err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	return nil
}

// HTML exports the rendered document's outer HTML.
func (c *Chrome) HTML(ctx context.Context) (string, error) {
	htmlCtx, cancel := c.pageContext(ctx, 15*time.Second)
	defer cancel()
	var html string
	if err := chromedp.Run(htmlCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("outer html: %w", err)
	}
	return html, nil
}

// InjectStyle appends a style element carrying the supplied CSS.
func (c *Chrome) InjectStyle(ctx context.Context, css string) error {
	encoded, err := json.Marshal(css)
	if err != nil {
		return fmt.Errorf("encode css: %w", err)
	}
	var ok bool
	return c.Evaluate(ctx, fmt.Sprintf(injectStyleJS, encoded), &ok)
}

// DisableAnimations neutralises CSS and JS animation timing before capture.
func (c *Chrome) DisableAnimations(ctx context.Context) error {
	if err := c.InjectStyle(ctx, animationKillCSS); err != nil {
		return err
	}
	var ok bool
	return c.Evaluate(ctx, animationOverrideJS, &ok)
}

// Screenshot captures the current page, full-page or viewport-only.
func (c *Chrome) Screenshot(ctx context.Context, opts ScreenshotOptions) ([]byte, error) {
	shotCtx, cancel := c.pageContext(ctx, 30*time.Second)
	defer cancel()

	quality := opts.Quality
	if quality <= 0 {
		quality = 80
	}

	var buf []byte
	var action chromedp.Action
	if opts.FullPage {
		action = chromedp.FullScreenshot(&buf, quality)
	} else {
		action = chromedp.CaptureScreenshot(&buf)
	}
	if err := chromedp.Run(shotCtx, action); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

// Sleep pauses cooperatively.
func (c *Chrome) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return c.ctx.Err()
	}
}

// Close shuts the browser down.
func (c *Chrome) Close() error {
	for _, cancel := range c.cancels {
		cancel()
	}
	return nil
}

// pageContext derives a deadline-bound context that is still attached to
// the browser tab, so chromedp actions target the right session.
func (c *Chrome) pageContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	merged, cancelTimeout := context.WithTimeout(c.ctx, timeout)
	stop := context.AfterFunc(ctx, func() { cancelTimeout() })
	return merged, func() {
		stop()
		cancelTimeout()
	}
}

func (c *Chrome) waitDocumentReady() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			var readyState string
			if err := chromedp.Evaluate(`document.readyState`, &readyState).Do(ctx); err != nil {
				return err
			}
			if readyState == "complete" {
				return nil
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})
}
