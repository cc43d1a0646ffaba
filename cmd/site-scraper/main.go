package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/MacphersonDesigns/site-scraper/internal/api"
	"github.com/MacphersonDesigns/site-scraper/internal/config"
	"github.com/MacphersonDesigns/site-scraper/internal/crawler"
	"github.com/MacphersonDesigns/site-scraper/internal/project"
	"github.com/MacphersonDesigns/site-scraper/internal/render"
	"github.com/MacphersonDesigns/site-scraper/pkg/types"
)

func main() {
	app := &cli.App{
		Name:      "site-scraper",
		Usage:     "crawl a website, capture screenshots, and detect front-end technologies",
		ArgsUsage: "[url]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Usage: "target site URL (alternative to the positional argument)"},
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to a YAML config file"},
			&cli.IntFlag{Name: "max-pages", Usage: "maximum number of pages to crawl"},
			&cli.DurationFlag{Name: "delay", Usage: "politeness delay between page loads"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output directory"},
			&cli.BoolFlag{Name: "screenshots", Value: true, Usage: "capture a full-page screenshot per page"},
			&cli.BoolFlag{Name: "no-full-page", Usage: "capture only the viewport instead of the full page"},
			&cli.IntFlag{Name: "quality", Usage: "screenshot quality (1-100)"},
			&cli.IntFlag{Name: "width", Usage: "viewport width"},
			&cli.IntFlag{Name: "height", Usage: "viewport height"},
			&cli.BoolFlag{Name: "disable-animations", Usage: "freeze CSS animations before capturing"},
			&cli.BoolFlag{Name: "download-assets", Usage: "clone page assets (images, scripts, stylesheets)"},
			&cli.BoolFlag{Name: "download-images", Usage: "clone page images only"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "debug logging"},
			&cli.BoolFlag{Name: "ui", Usage: "start the project API server instead of a one-shot crawl"},
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "API server port (with --ui)"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	logger, err := buildLogger(cfg.Logging, c.Bool("verbose"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if c.Bool("ui") {
		return serveAPI(ctx, *cfg, logger, c.Int("port"))
	}

	if len(cfg.Crawl.SeedURLs) == 0 {
		return cli.Exit("a target url is required (positional argument or --url)", 1)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return crawlOnce(ctx, *cfg, logger)
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	var cfg *config.Config
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		def := config.Default()
		cfg = &def
	}

	seed := strings.TrimSpace(c.Args().First())
	if seed == "" {
		seed = strings.TrimSpace(c.String("url"))
	}
	if seed != "" {
		if err := config.ValidateSeedURL(seed); err != nil {
			return nil, cli.Exit(err.Error(), 1)
		}
		cfg.Crawl.SeedURLs = []string{seed}
	}

	if c.IsSet("max-pages") {
		cfg.Crawl.MaxPages = c.Int("max-pages")
	}
	if c.IsSet("delay") {
		cfg.Crawl.Delay = config.DurationFrom(c.Duration("delay"))
	}
	if c.IsSet("output") {
		cfg.Output.Dir = c.String("output")
	}
	if c.IsSet("screenshots") {
		cfg.Screenshot.Enabled = c.Bool("screenshots")
	}
	if c.Bool("no-full-page") {
		cfg.Screenshot.FullPage = false
	}
	if c.IsSet("quality") {
		cfg.Screenshot.Quality = c.Int("quality")
	}
	if c.IsSet("width") {
		cfg.Viewport.Width = c.Int("width")
	}
	if c.IsSet("height") {
		cfg.Viewport.Height = c.Int("height")
	}
	if c.IsSet("disable-animations") {
		cfg.Screenshot.DisableAnimations = c.Bool("disable-animations")
	}
	if c.Bool("download-assets") {
		cfg.Assets.DownloadAssets = true
	}
	if c.Bool("download-images") {
		cfg.Assets.DownloadImages = true
	}
	if c.Bool("verbose") {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

func crawlOnce(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	chrome, err := render.NewChrome(ctx, render.Options{
		ViewportWidth:  cfg.Viewport.Width,
		ViewportHeight: cfg.Viewport.Height,
		UserAgent:      cfg.Crawl.UserAgent,
	}, logger)
	if err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer chrome.Close()

	engine, err := crawler.NewEngine(cfg, chrome, logger, crawler.Hooks{
		PageDone: func(record types.PageRecord, seedPages int) {
			logger.Info("page captured",
				"url", record.URL,
				"status", record.StatusCode,
				"links", len(record.Links),
				"load_ms", record.LoadTimeMillis,
			)
		},
	})
	if err != nil {
		return err
	}
	defer engine.Close()

	report, err := engine.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Print(crawler.FormatSummary(report))
	return nil
}

func serveAPI(ctx context.Context, cfg config.Config, logger *slog.Logger, port int) error {
	storePath, err := project.DefaultStorePath()
	if err != nil {
		return err
	}
	store, err := project.OpenStore(storePath, logger)
	if err != nil {
		return err
	}
	runner := project.NewRunner(store, cfg, logger)
	server := api.NewServer(store, runner)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: server,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown error", "error", err)
		}
	}()

	logger.Info("api server listening", "addr", httpServer.Addr, "store", storePath)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("api server stopped")
	return nil
}

func buildLogger(cfg config.LoggingConfig, verbose bool) (*slog.Logger, error) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unsupported log level %q", cfg.Level)
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Structured {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler), nil
}
