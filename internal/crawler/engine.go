// Package crawler owns the crawl pipeline: the frontier, per-page
// orchestration (navigate, capture, extract, detect, download), loop
// termination, and report assembly.
package crawler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/MacphersonDesigns/site-scraper/internal/assets"
	"github.com/MacphersonDesigns/site-scraper/internal/config"
	"github.com/MacphersonDesigns/site-scraper/internal/extractor"
	"github.com/MacphersonDesigns/site-scraper/internal/render"
	"github.com/MacphersonDesigns/site-scraper/internal/storage"
	"github.com/MacphersonDesigns/site-scraper/internal/techdetect"
	"github.com/MacphersonDesigns/site-scraper/pkg/types"
)

// skipExtensions lists binary and asset file extensions that never enter
// the frontier.
var skipExtensions = map[string]struct{}{
	".pdf": {}, ".zip": {}, ".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {},
	".svg": {}, ".css": {}, ".js": {}, ".mp4": {}, ".webm": {}, ".mp3": {},
}

const animationSettleDelay = 100 * time.Millisecond

// Hooks lets a caller observe crawl progress. Both callbacks are invoked
// from the crawl goroutine; nil hooks are skipped.
type Hooks struct {
	// PageDone fires after each page record is persisted, with the count
	// of pages collected for the current seed.
	PageDone func(record types.PageRecord, seedPages int)
	// AssetProgress fires for every completed asset download with a
	// running done/total count.
	AssetProgress func(done, total int, result types.AssetDownloadResult)
}

// Engine crawls one site breadth-first over internal links. It exclusively
// owns its render surface and frontier for the duration of a run; the
// frontier and visited set are shared across every seed of the run, so a
// URL reachable from two seeds is captured once.
type Engine struct {
	cfg        config.Config
	surface    render.Surface
	downloader *assets.Downloader
	index      *storage.PageIndex
	throttle   *Throttle
	logger     *slog.Logger
	hooks      Hooks

	runID      string
	anchorHost string
	frontier   *Frontier
	pages      []types.PageRecord
	slugs      map[string]string
	slugCounts map[string]int
	startedAt  time.Time

	closers   []func() error
	closeOnce sync.Once
}

// NewEngine builds an engine around an already-initialised render surface.
// The first seed URL's hostname anchors the internal/external distinction
// for the whole run.
func NewEngine(cfg config.Config, surface render.Surface, logger *slog.Logger, hooks Hooks) (*Engine, error) {
	if surface == nil {
		return nil, fmt.Errorf("render surface is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Crawl.SeedURLs) == 0 {
		return nil, fmt.Errorf("at least one seed url is required")
	}
	first, err := url.Parse(cfg.Crawl.SeedURLs[0])
	if err != nil || first.Hostname() == "" {
		return nil, fmt.Errorf("invalid seed url %q", cfg.Crawl.SeedURLs[0])
	}

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	e := &Engine{
		cfg:        cfg,
		surface:    surface,
		downloader: assets.New(logger),
		throttle:   NewThrottle(cfg.Crawl.Delay.Duration),
		logger:     logger,
		hooks:      hooks,
		runID:      newRunID(),
		anchorHost: first.Hostname(),
		frontier:   NewFrontier(),
		startedAt:  time.Now(),
		slugs:      make(map[string]string),
		slugCounts: make(map[string]int),
	}

	if cfg.Output.PageIndex {
		index, err := storage.OpenPageIndex(filepath.Join(cfg.Output.Dir, "pages.db"))
		if err != nil {
			return nil, err
		}
		e.index = index
		e.closers = append(e.closers, index.Close)
	}
	return e, nil
}

// RunID identifies this run in the page index.
func (e *Engine) RunID() string { return e.runID }

// Close releases resources owned by the engine. The render surface is not
// closed here; its lifecycle belongs to the caller that created it.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		for _, closer := range e.closers {
			if cerr := closer(); cerr != nil && err == nil {
				err = cerr
			}
		}
	})
	return err
}

// Run crawls every configured seed and assembles the site report. Per-page
// failures degrade that page's record and never abort the run.
func (e *Engine) Run(ctx context.Context) (*types.SiteReport, error) {
	for _, seed := range e.cfg.Crawl.SeedURLs {
		if err := e.CrawlSeed(ctx, seed); err != nil {
			return nil, err
		}
	}
	return e.Finish()
}

// Finish assembles the site report from the pages collected so far and
// writes the run artifacts. Callers driving CrawlSeed directly call this
// once after the last seed.
func (e *Engine) Finish() (*types.SiteReport, error) {
	report := e.buildReport()
	if err := WriteArtifacts(e.cfg.Output.Dir, report); err != nil {
		return nil, err
	}
	return report, nil
}

// CrawlSeed drains the frontier for one seed URL, collecting at most
// MaxPages pages (0 means unlimited). The frontier, visited set, and page
// list persist across seeds within the run.
func (e *Engine) CrawlSeed(ctx context.Context, seed string) error {
	parsed, err := url.Parse(strings.TrimSpace(seed))
	if err != nil || parsed.Hostname() == "" {
		return fmt.Errorf("invalid seed url %q", seed)
	}

	e.frontier.Enqueue(parsed)

	collected := 0
	for e.frontier.Len() > 0 && (e.cfg.Crawl.MaxPages == 0 || collected < e.cfg.Crawl.MaxPages) {
		if err := ctx.Err(); err != nil {
			return err
		}

		next, ok := e.frontier.Dequeue()
		if !ok {
			break
		}
		if e.frontier.Visited(next) {
			continue
		}
		// Visited before processing, so a page linking to itself cannot
		// re-enter the queue.
		e.frontier.MarkVisited(next)

		if err := e.throttle.Wait(ctx); err != nil {
			return err
		}

		record := e.processPage(ctx, next)
		e.pages = append(e.pages, record)
		collected++

		e.persistPage(ctx, record)
		e.enqueueLinks(record)

		if e.hooks.PageDone != nil {
			e.hooks.PageDone(record, collected)
		}
	}

	e.logger.Info("seed crawl finished",
		"seed", seed,
		"pages", collected,
		"frontier_remaining", e.frontier.Len(),
	)
	return nil
}

// processPage runs the full per-page pipeline. Any failure yields a
// degraded record rather than an error: one page's failure must never
// stop the crawl.
func (e *Engine) processPage(ctx context.Context, u *url.URL) types.PageRecord {
	started := time.Now()

	degraded := func(stage string, err error) types.PageRecord {
		e.logger.Warn("page degraded", "url", u.String(), "stage", stage, "error", err)
		return types.PageRecord{
			URL:            u.String(),
			LoadTimeMillis: time.Since(started).Milliseconds(),
			CapturedAt:     started,
		}
	}

	status, err := e.surface.Navigate(ctx, u.String(), render.NavigateOptions{
		Timeout: e.cfg.Crawl.NavigationTimeout.Duration,
	})
	if err != nil {
		return degraded("navigate", err)
	}
	loadTime := time.Since(started)

	_ = e.surface.Sleep(ctx, e.cfg.Crawl.SettleDelay.Duration)

	if e.cfg.Screenshot.DisableAnimations {
		if err := e.surface.DisableAnimations(ctx); err != nil {
			e.logger.Debug("animation suppression failed", "url", u.String(), "error", err)
		}
		_ = e.surface.Sleep(ctx, animationSettleDelay)
	}

	slug := e.claimSlug(u)

	var screenshotPath string
	if e.cfg.Screenshot.Enabled {
		screenshotPath, err = e.captureScreenshot(ctx, slug)
		if err != nil {
			e.logger.Warn("screenshot failed", "url", u.String(), "error", err)
			screenshotPath = ""
		}
	}

	// Extraction and the global-symbol probe both read the same loaded
	// page and run concurrently.
	var (
		wg      sync.WaitGroup
		ex      *extractor.Extraction
		exErr   error
		globals = make(map[string]bool)
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		html, herr := e.surface.HTML(ctx)
		if herr != nil {
			exErr = herr
			return
		}
		ex, exErr = extractor.Extract(u, html, e.anchorHost)
	}()
	go func() {
		defer wg.Done()
		names := techdetect.GlobalSymbols()
		var present []string
		if gerr := e.surface.Evaluate(ctx, techdetect.GlobalProbeScript(names), &present); gerr != nil {
			e.logger.Debug("global probe failed", "url", u.String(), "error", gerr)
			return
		}
		for _, name := range present {
			globals[name] = true
		}
	}()
	wg.Wait()

	if exErr != nil {
		return degraded("extract", exErr)
	}

	record := types.PageRecord{
		URL:             u.String(),
		Title:           ex.Title,
		MetaDescription: ex.MetaDescription,
		Text:            ex.Text,
		Headings:        ex.Headings,
		Links:           ex.Links,
		Images:          ex.Images,
		Elements:        ex.Elements,
		Screenshot:      screenshotPath,
		StatusCode:      status,
		LoadTimeMillis:  loadTime.Milliseconds(),
		CapturedAt:      started,
	}

	record.Technologies = techdetect.Detect(techdetect.Probe{
		ScriptSrcs:    ex.ScriptSrcs,
		InlineScripts: ex.InlineScripts,
		MetaTags:      ex.MetaTags,
		HasSelector:   ex.HasSelector,
		Globals:       globals,
	})

	if e.cfg.Assets.DownloadAssets || e.cfg.Assets.DownloadImages {
		e.downloadPageAssets(ctx, u, slug, ex)
	}

	return record
}

func (e *Engine) captureScreenshot(ctx context.Context, slug string) (string, error) {
	opts := render.ScreenshotOptions{
		FullPage: e.cfg.Screenshot.FullPage,
		Quality:  e.cfg.Screenshot.Quality,
	}
	shot, err := e.surface.Screenshot(ctx, opts)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(e.cfg.Output.Dir, "screenshots")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create screenshot dir: %w", err)
	}
	path := filepath.Join(dir, slug+opts.Ext())
	if err := os.WriteFile(path, shot, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	return path, nil
}

// downloadPageAssets clones qualifying assets into the page's
// subdirectory. DownloadImages limits cloning to images; DownloadAssets
// additionally pulls scripts and stylesheets.
func (e *Engine) downloadPageAssets(ctx context.Context, pageURL *url.URL, slug string, ex *extractor.Extraction) {
	var urls []string
	for _, img := range ex.Images {
		urls = append(urls, img.Src)
	}
	if e.cfg.Assets.DownloadAssets {
		urls = append(urls, ex.ScriptSrcs...)
		urls = append(urls, ex.Stylesheets...)
	}
	if len(urls) == 0 {
		return
	}

	destDir := filepath.Join(e.cfg.Output.Dir, "pages", slug, "assets")
	results := e.downloader.DownloadAll(ctx, urls, destDir, assets.Options{
		Timeout:      e.cfg.Assets.Timeout.Duration,
		MaxSizeBytes: e.cfg.Assets.MaxSizeBytes,
		BaseURL:      pageURL,
		Concurrency:  e.cfg.Assets.Concurrency,
		UserAgent:    e.cfg.Crawl.UserAgent,
		OnResult:     e.hooks.AssetProgress,
	})

	failed := 0
	for _, res := range results {
		if !res.Success {
			failed++
		}
	}
	if failed > 0 {
		e.logger.Debug("asset downloads finished with failures",
			"url", pageURL.String(), "total", len(results), "failed", failed)
	}
}

// persistPage writes the per-page data.json and the page-index row.
// Persistence failures are logged, not fatal.
func (e *Engine) persistPage(ctx context.Context, record types.PageRecord) {
	parsed, err := url.Parse(record.URL)
	if err != nil {
		return
	}
	slug := e.claimSlug(parsed)

	dir := filepath.Join(e.cfg.Output.Dir, "pages", slug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		e.logger.Warn("create page dir failed", "url", record.URL, "error", err)
		return
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err == nil {
		if werr := os.WriteFile(filepath.Join(dir, "data.json"), data, 0o644); werr != nil {
			e.logger.Warn("write page data failed", "url", record.URL, "error", werr)
		}
	}

	if e.index != nil {
		if err := e.index.SavePage(ctx, e.runID, record); err != nil {
			e.logger.Warn("page index write failed", "url", record.URL, "error", err)
		}
	}
}

// enqueueLinks feeds internal links back into the frontier, filtering
// asset-like extensions. The frontier drops duplicates on its own.
func (e *Engine) enqueueLinks(record types.PageRecord) {
	for _, link := range record.Links {
		if !link.Internal {
			continue
		}
		target, err := url.Parse(link.Href)
		if err != nil {
			continue
		}
		if _, skip := skipExtensions[strings.ToLower(filepath.Ext(target.Path))]; skip {
			continue
		}
		if e.frontier.Visited(target) {
			continue
		}
		e.frontier.Enqueue(target)
	}
}

// claimSlug returns the deterministic path-derived slug for a URL,
// suffixing _N when two distinct pages sanitise to the same name. The
// same URL always yields the same slug within a run.
func (e *Engine) claimSlug(u *url.URL) string {
	key := NormalizeURL(u)
	if slug, ok := e.slugs[key]; ok {
		return slug
	}
	base := slugify(u)
	slug := base
	if n := e.slugCounts[base]; n > 0 {
		slug = fmt.Sprintf("%s_%d", base, n)
	}
	e.slugCounts[base]++
	e.slugs[key] = slug
	return slug
}

func slugify(u *url.URL) string {
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return "index"
	}
	var b strings.Builder
	for _, r := range path {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	slug := b.String()
	if len(slug) > 120 {
		slug = slug[:120]
	}
	return slug
}

func newRunID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
