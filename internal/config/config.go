package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the full configuration required to run a crawl.
type Config struct {
	Crawl      CrawlConfig      `yaml:"crawl"`
	Viewport   ViewportConfig   `yaml:"viewport"`
	Screenshot ScreenshotConfig `yaml:"screenshot"`
	Assets     AssetsConfig     `yaml:"assets"`
	Output     OutputConfig     `yaml:"output"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// CrawlConfig controls the frontier, limits, and throttling.
type CrawlConfig struct {
	SeedURLs          []string `yaml:"seed_urls"`
	MaxPages          int      `yaml:"max_pages"`
	Delay             Duration `yaml:"delay"`
	NavigationTimeout Duration `yaml:"navigation_timeout"`
	SettleDelay       Duration `yaml:"settle_delay"`
	UserAgent         string   `yaml:"user_agent"`
}

// ViewportConfig sets the browser viewport for rendering and capture.
type ViewportConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// ScreenshotConfig controls page capture behaviour.
type ScreenshotConfig struct {
	Enabled           bool `yaml:"enabled"`
	FullPage          bool `yaml:"full_page"`
	Quality           int  `yaml:"quality"`
	DisableAnimations bool `yaml:"disable_animations"`
}

// AssetsConfig controls optional asset cloning.
type AssetsConfig struct {
	DownloadAssets bool     `yaml:"download_assets"`
	DownloadImages bool     `yaml:"download_images"`
	MaxSizeBytes   int64    `yaml:"max_size_bytes"`
	Timeout        Duration `yaml:"timeout"`
	Concurrency    int      `yaml:"concurrency"`
}

// OutputConfig selects where run artifacts land.
type OutputConfig struct {
	Dir       string `yaml:"dir"`
	PageIndex bool   `yaml:"page_index"`
}

// LoggingConfig selects log verbosity and format.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Structured bool   `yaml:"structured"`
}

// Default returns a Config populated with sensible defaults.
func Default() Config {
	return Config{
		Crawl: CrawlConfig{
			MaxPages:          50,
			Delay:             DurationFrom(time.Second),
			NavigationTimeout: DurationFrom(30 * time.Second),
			SettleDelay:       DurationFrom(500 * time.Millisecond),
			UserAgent:         "site-scraper/1.0",
		},
		Viewport: ViewportConfig{
			Width:  1920,
			Height: 1080,
		},
		Screenshot: ScreenshotConfig{
			Enabled:           true,
			FullPage:          true,
			Quality:           80,
			DisableAnimations: true,
		},
		Assets: AssetsConfig{
			MaxSizeBytes: 10 * 1024 * 1024,
			Timeout:      DurationFrom(5 * time.Second),
			Concurrency:  5,
		},
		Output: OutputConfig{
			Dir:       "output",
			PageIndex: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Structured: false,
		},
	}
}

// Load reads, merges, and validates configuration from a YAML file.
func Load(path string) (*Config, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer fh.Close()
	return LoadFromReader(fh)
}

// LoadFromReader decodes configuration from an arbitrary reader.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces required invariants before any run starts. A config
// rejected here never reaches the crawl engine.
func (c Config) Validate() error {
	if len(c.Crawl.SeedURLs) == 0 {
		return errors.New("at least one seed url must be configured")
	}
	for _, seed := range c.Crawl.SeedURLs {
		if err := ValidateSeedURL(seed); err != nil {
			return err
		}
	}
	if c.Crawl.MaxPages < 0 {
		return fmt.Errorf("crawl.max_pages must be >= 0 (got %d)", c.Crawl.MaxPages)
	}
	if c.Crawl.NavigationTimeout.Duration <= 0 {
		return fmt.Errorf("crawl.navigation_timeout must be > 0 (got %s)", c.Crawl.NavigationTimeout)
	}
	if c.Viewport.Width <= 0 || c.Viewport.Height <= 0 {
		return fmt.Errorf("viewport must be positive (got %dx%d)", c.Viewport.Width, c.Viewport.Height)
	}
	if c.Screenshot.Quality < 0 || c.Screenshot.Quality > 100 {
		return fmt.Errorf("screenshot.quality must be in [0, 100] (got %d)", c.Screenshot.Quality)
	}
	if c.Assets.MaxSizeBytes <= 0 {
		return fmt.Errorf("assets.max_size_bytes must be > 0 (got %d)", c.Assets.MaxSizeBytes)
	}
	if c.Assets.Concurrency <= 0 {
		return fmt.Errorf("assets.concurrency must be > 0 (got %d)", c.Assets.Concurrency)
	}
	if strings.TrimSpace(c.Output.Dir) == "" {
		return errors.New("output.dir must be set")
	}
	return nil
}

// ValidateSeedURL rejects malformed seed URLs synchronously at the boundary.
func ValidateSeedURL(seed string) error {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return errors.New("seed url is empty")
	}
	parsed, err := url.Parse(seed)
	if err != nil {
		return fmt.Errorf("parse seed url %q: %w", seed, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("seed url %q must use http or https", seed)
	}
	if parsed.Host == "" {
		return fmt.Errorf("seed url %q missing host", seed)
	}
	return nil
}

func (c *Config) normalise() {
	cleaned := make([]string, 0, len(c.Crawl.SeedURLs))
	for _, seed := range c.Crawl.SeedURLs {
		seed = strings.TrimSpace(seed)
		if seed == "" {
			continue
		}
		cleaned = append(cleaned, seed)
	}
	c.Crawl.SeedURLs = cleaned
	c.Crawl.UserAgent = strings.TrimSpace(c.Crawl.UserAgent)
	c.Output.Dir = strings.TrimSpace(c.Output.Dir)
}
