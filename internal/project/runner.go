package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"sync"
	"time"

	"github.com/MacphersonDesigns/site-scraper/internal/config"
	"github.com/MacphersonDesigns/site-scraper/internal/crawler"
	"github.com/MacphersonDesigns/site-scraper/internal/render"
	"github.com/MacphersonDesigns/site-scraper/pkg/types"
)

// ErrProjectRunning is returned when a run is requested for a project
// that already has one in flight.
var ErrProjectRunning = errors.New("project is already running")

// Runner executes project crawls one at a time per project. Run failures
// land in the project record, never in the caller: once a run is
// accepted, its outcome is observed through the store and progress
// events.
type Runner struct {
	store   *Store
	baseCfg config.Config
	logger  *slog.Logger

	mu     sync.Mutex
	active map[string]context.CancelFunc

	subMu       sync.RWMutex
	subscribers map[string]map[chan types.ProgressEvent]struct{}
}

// NewRunner builds a runner on top of the store. baseCfg supplies the
// settings a project config does not cover (timeouts, output layout).
func NewRunner(store *Store, baseCfg config.Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		store:       store,
		baseCfg:     baseCfg,
		logger:      logger,
		active:      make(map[string]context.CancelFunc),
		subscribers: make(map[string]map[chan types.ProgressEvent]struct{}),
	}
}

// Start launches a run for the project in the background. It returns
// ErrProjectRunning when one is already in flight and returns as soon as
// the project has transitioned to running.
func (r *Runner) Start(parentCtx context.Context, projectID string) error {
	p, err := r.store.Get(projectID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if _, busy := r.active[projectID]; busy {
		r.mu.Unlock()
		return ErrProjectRunning
	}
	if p.Status == types.StatusRunning {
		r.mu.Unlock()
		return ErrProjectRunning
	}
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	runCtx, cancel := context.WithCancel(parentCtx)
	r.active[projectID] = cancel
	r.mu.Unlock()

	started := time.Now()
	if _, err := r.store.Update(projectID, func(p *types.Project) error {
		p.Status = types.StatusRunning
		p.Progress = 0
		p.Error = ""
		p.LastRunAt = &started
		return nil
	}); err != nil {
		r.finish(projectID)
		cancel()
		return err
	}
	r.publish(projectID, types.ProgressEvent{
		ProjectID: projectID,
		Progress:  0,
		Status:    string(types.StatusRunning),
	})

	go func() {
		defer cancel()
		r.run(runCtx, p)
	}()
	return nil
}

// Cancel stops an in-flight run. It reports whether a run was active.
func (r *Runner) Cancel(projectID string) bool {
	r.mu.Lock()
	cancel, ok := r.active[projectID]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Subscribe registers a progress observer for the project. The returned
// cancel must be called to release the channel. Slow subscribers drop
// events rather than stall the run.
func (r *Runner) Subscribe(projectID string) (<-chan types.ProgressEvent, func()) {
	ch := make(chan types.ProgressEvent, 16)

	r.subMu.Lock()
	if r.subscribers[projectID] == nil {
		r.subscribers[projectID] = make(map[chan types.ProgressEvent]struct{})
	}
	r.subscribers[projectID][ch] = struct{}{}
	r.subMu.Unlock()

	cancel := func() {
		r.subMu.Lock()
		if subs, ok := r.subscribers[projectID]; ok {
			if _, present := subs[ch]; present {
				delete(subs, ch)
				close(ch)
			}
			if len(subs) == 0 {
				delete(r.subscribers, projectID)
			}
		}
		r.subMu.Unlock()
	}
	return ch, cancel
}

func (r *Runner) run(ctx context.Context, p types.Project) {
	report, err := r.execute(ctx, p)

	r.finish(p.ID)

	if err != nil {
		r.logger.Error("project run failed", "project", p.ID, "error", err)
		if _, uerr := r.store.Update(p.ID, func(p *types.Project) error {
			p.Status = types.StatusFailed
			p.Error = err.Error()
			return nil
		}); uerr != nil {
			r.logger.Error("persist failed state", "project", p.ID, "error", uerr)
		}
		r.publish(p.ID, types.ProgressEvent{
			ProjectID: p.ID,
			Progress:  0,
			Status:    string(types.StatusFailed),
			Detail: &types.ProgressDetail{
				Status:    string(types.StatusFailed),
				Message:   err.Error(),
				Timestamp: time.Now(),
			},
		})
		return
	}

	if _, uerr := r.store.Update(p.ID, func(p *types.Project) error {
		p.Status = types.StatusCompleted
		p.Progress = 100
		p.Report = report
		return nil
	}); uerr != nil {
		r.logger.Error("persist completed state", "project", p.ID, "error", uerr)
	}
	r.publish(p.ID, types.ProgressEvent{
		ProjectID: p.ID,
		Progress:  100,
		Status:    string(types.StatusCompleted),
	})
	r.logger.Info("project run completed", "project", p.ID, "pages", report.TotalPages)
}

func (r *Runner) execute(ctx context.Context, p types.Project) (*types.SiteReport, error) {
	cfg := r.buildConfig(p)

	chrome, err := render.NewChrome(ctx, render.Options{
		ViewportWidth:  cfg.Viewport.Width,
		ViewportHeight: cfg.Viewport.Height,
		UserAgent:      cfg.Crawl.UserAgent,
	}, r.logger)
	if err != nil {
		return nil, fmt.Errorf("start browser: %w", err)
	}
	defer chrome.Close()

	totalSeeds := len(cfg.Crawl.SeedURLs)
	seedsDone := 0

	hooks := r.newRunHooks(p.ID, cfg.Crawl.MaxPages, totalSeeds, &seedsDone)

	engine, err := crawler.NewEngine(cfg, chrome, r.logger, hooks)
	if err != nil {
		return nil, err
	}
	defer engine.Close()

	for _, seed := range cfg.Crawl.SeedURLs {
		if err := engine.CrawlSeed(ctx, seed); err != nil {
			return nil, err
		}
		seedsDone++
	}
	return engine.Finish()
}

// newRunHooks wires crawl callbacks into the store and the event stream.
// Asset downloads report between page completions; they carry the last
// page-level figure so observed progress never moves backwards.
func (r *Runner) newRunHooks(projectID string, maxPages, totalSeeds int, seedsDone *int) crawler.Hooks {
	var mu sync.Mutex
	var last float64

	return crawler.Hooks{
		PageDone: func(record types.PageRecord, seedPages int) {
			progress := runProgress(*seedsDone, totalSeeds, seedPages, maxPages)
			mu.Lock()
			last = progress
			mu.Unlock()
			if _, uerr := r.store.Update(projectID, func(p *types.Project) error {
				p.Progress = progress
				return nil
			}); uerr != nil {
				r.logger.Warn("persist progress", "project", projectID, "error", uerr)
			}
			r.publish(projectID, types.ProgressEvent{
				ProjectID: projectID,
				Progress:  progress,
				Status:    string(types.StatusRunning),
				Detail: &types.ProgressDetail{
					Status:    string(types.StatusRunning),
					URL:       record.URL,
					Action:    "page_captured",
					Timestamp: time.Now(),
				},
			})
		},
		AssetProgress: func(done, total int, result types.AssetDownloadResult) {
			mu.Lock()
			progress := last
			mu.Unlock()
			r.publish(projectID, types.ProgressEvent{
				ProjectID: projectID,
				Progress:  progress,
				Status:    string(types.StatusRunning),
				Detail: &types.ProgressDetail{
					Status:    string(types.StatusRunning),
					URL:       result.URL,
					Action:    "asset_downloaded",
					Message:   fmt.Sprintf("%d/%d", done, total),
					Timestamp: time.Now(),
				},
			})
		},
	}
}

// buildConfig layers the project's settings over the runner's base
// config. Fields the project config does not carry keep their defaults.
func (r *Runner) buildConfig(p types.Project) config.Config {
	cfg := r.baseCfg
	cfg.Crawl.SeedURLs = append([]string(nil), p.Config.SeedURLs...)
	if p.Config.MaxPages > 0 {
		cfg.Crawl.MaxPages = p.Config.MaxPages
	}
	if p.Config.DelayMillis > 0 {
		cfg.Crawl.Delay = config.DurationFrom(time.Duration(p.Config.DelayMillis) * time.Millisecond)
	}
	if p.Config.ViewportWidth > 0 {
		cfg.Viewport.Width = p.Config.ViewportWidth
	}
	if p.Config.ViewportHeight > 0 {
		cfg.Viewport.Height = p.Config.ViewportHeight
	}
	cfg.Screenshot.FullPage = p.Config.FullPage
	if p.Config.Quality > 0 {
		cfg.Screenshot.Quality = p.Config.Quality
	}
	cfg.Screenshot.DisableAnimations = p.Config.DisableAnimations
	cfg.Assets.DownloadAssets = p.Config.DownloadAssets
	cfg.Assets.DownloadImages = p.Config.DownloadImages
	cfg.Output.Dir = filepath.Join(cfg.Output.Dir, "projects", p.ID)
	return cfg
}

func (r *Runner) finish(projectID string) {
	r.mu.Lock()
	delete(r.active, projectID)
	r.mu.Unlock()
}

func (r *Runner) publish(projectID string, evt types.ProgressEvent) {
	r.subMu.RLock()
	defer r.subMu.RUnlock()
	for ch := range r.subscribers[projectID] {
		select {
		case ch <- evt:
		default:
		}
	}
}

// runProgress maps seed and page counters onto a [0, 99] percentage. The
// final 100 is reserved for the completed transition.
func runProgress(seedsDone, totalSeeds, seedPages, maxPages int) float64 {
	if totalSeeds <= 0 {
		return 0
	}
	seedShare := 100.0 / float64(totalSeeds)
	progress := float64(seedsDone) * seedShare
	if maxPages > 0 {
		pageFraction := math.Min(float64(seedPages)/float64(maxPages), 1)
		progress += pageFraction * seedShare
	}
	return math.Min(math.Max(progress, 0), 99)
}
