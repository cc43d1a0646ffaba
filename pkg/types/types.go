package types

import (
	"time"
)

// Confidence expresses how certain the detector is about a technology match.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Rank orders confidence levels so that high > medium > low.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// TechCategory classifies a detected technology.
type TechCategory string

const (
	CategoryFramework       TechCategory = "framework"
	CategoryLibrary         TechCategory = "library"
	CategoryAnalytics       TechCategory = "analytics"
	CategoryCMS             TechCategory = "cms"
	CategoryBuildTool       TechCategory = "build-tool"
	CategoryStateManagement TechCategory = "state-management"
	CategoryIcons           TechCategory = "icons"
	CategoryUIFramework     TechCategory = "ui-framework"
	CategoryLanguage        TechCategory = "language"
)

// TechnologyMatch is a single detected technology for one page.
type TechnologyMatch struct {
	Name       string       `json:"name"`
	Category   TechCategory `json:"category"`
	Version    string       `json:"version,omitempty"`
	Confidence Confidence   `json:"confidence"`
}

// Heading is one h1-h6 element.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Link is an anchor found on a page, resolved against the page URL.
type Link struct {
	Text     string `json:"text"`
	Href     string `json:"href"`
	Internal bool   `json:"internal"`
}

// Image is an img element found on a page.
type Image struct {
	Src    string `json:"src"`
	Alt    string `json:"alt,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Element is a structural DOM element captured for the page outline.
type Element struct {
	Tag        string   `json:"tag"`
	ID         string   `json:"id,omitempty"`
	Classes    []string `json:"classes,omitempty"`
	Text       string   `json:"text,omitempty"`
	ChildCount int      `json:"child_count"`
}

// PageRecord is the immutable extraction result for one crawled URL.
// A degraded record (empty fields, status 0) is produced when the page
// could not be processed; the crawl continues regardless.
type PageRecord struct {
	URL             string            `json:"url"`
	Title           string            `json:"title"`
	MetaDescription string            `json:"meta_description,omitempty"`
	Text            string            `json:"text,omitempty"`
	Headings        []Heading         `json:"headings,omitempty"`
	Links           []Link            `json:"links,omitempty"`
	Images          []Image           `json:"images,omitempty"`
	Elements        []Element         `json:"elements,omitempty"`
	Technologies    []TechnologyMatch `json:"technologies,omitempty"`
	Screenshot      string            `json:"screenshot,omitempty"`
	StatusCode      int               `json:"status_code"`
	LoadTimeMillis  int64             `json:"load_time_ms"`
	CapturedAt      time.Time         `json:"captured_at"`
}

// AssetDownloadResult records one attempted asset download. Failed
// downloads are never retried.
type AssetDownloadResult struct {
	URL       string `json:"url"`
	LocalPath string `json:"local_path,omitempty"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
}

// StructureEntry describes one page and its distinct internal link targets.
type StructureEntry struct {
	URL   string   `json:"url"`
	Title string   `json:"title"`
	Links []string `json:"links"`
}

// SiteReport is the final artifact of a crawl run. It is written once at
// run completion and never mutated afterwards.
type SiteReport struct {
	BaseURLs     []string          `json:"base_urls"`
	TotalPages   int               `json:"total_pages"`
	Pages        []PageRecord      `json:"pages"`
	Technologies []TechnologyMatch `json:"technologies"`
	Structure    []StructureEntry  `json:"structure"`
	StartedAt    time.Time         `json:"started_at"`
	FinishedAt   time.Time         `json:"finished_at"`
	Duration     string            `json:"duration"`
}

// ProjectStatus is the lifecycle stage of a persisted project.
type ProjectStatus string

const (
	StatusIdle      ProjectStatus = "idle"
	StatusRunning   ProjectStatus = "running"
	StatusCompleted ProjectStatus = "completed"
	StatusFailed    ProjectStatus = "failed"
)

// ProjectConfig is the persisted crawl configuration for a project.
type ProjectConfig struct {
	SeedURLs          []string `json:"seed_urls"`
	MaxPages          int      `json:"max_pages"`
	DelayMillis       int      `json:"delay_ms"`
	ViewportWidth     int      `json:"viewport_width"`
	ViewportHeight    int      `json:"viewport_height"`
	FullPage          bool     `json:"full_page"`
	Quality           int      `json:"quality"`
	DisableAnimations bool     `json:"disable_animations"`
	DownloadAssets    bool     `json:"download_assets"`
	DownloadImages    bool     `json:"download_images"`
}

// Project couples a named crawl configuration with mutable run state.
// Status fields are owned exclusively by the project runner and persisted
// after every transition.
type Project struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Config    ProjectConfig `json:"config"`
	Status    ProjectStatus `json:"status"`
	Progress  float64       `json:"progress"`
	Error     string        `json:"error,omitempty"`
	Report    *SiteReport   `json:"report,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	LastRunAt *time.Time    `json:"last_run_at,omitempty"`
}

// ProgressDetail carries optional structured context for a progress event.
type ProgressDetail struct {
	Status    string    `json:"status"`
	URL       string    `json:"url,omitempty"`
	Action    string    `json:"action,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ProgressEvent is pushed to observers as a run advances. Progress stays
// within [0, 99] until the terminal completion event reports 100.
type ProgressEvent struct {
	ProjectID string          `json:"project_id"`
	Progress  float64         `json:"progress"`
	Status    string          `json:"status"`
	Detail    *ProgressDetail `json:"details,omitempty"`
}
