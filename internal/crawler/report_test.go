package crawler

import (
	"strings"
	"testing"

	"github.com/MacphersonDesigns/site-scraper/pkg/types"
)

func TestMergeTechnologies(t *testing.T) {
	pages := []types.PageRecord{
		{
			URL: "https://example.com/",
			Technologies: []types.TechnologyMatch{
				{Name: "React", Category: types.CategoryFramework, Confidence: types.ConfidenceMedium},
				{Name: "jQuery", Category: types.CategoryLibrary, Confidence: types.ConfidenceHigh, Version: "3.6.0"},
			},
		},
		{
			URL: "https://example.com/about",
			Technologies: []types.TechnologyMatch{
				{Name: "React", Category: types.CategoryFramework, Confidence: types.ConfidenceHigh, Version: "18.2.0"},
				{Name: "jQuery", Category: types.CategoryLibrary, Confidence: types.ConfidenceHigh, Version: "2.0.0"},
			},
		},
	}

	merged := MergeTechnologies(pages)
	if len(merged) != 2 {
		t.Fatalf("merged %d technologies, want 2", len(merged))
	}
	// Later high observation replaces the earlier medium one.
	if merged[0].Name != "React" || merged[0].Confidence != types.ConfidenceHigh || merged[0].Version != "18.2.0" {
		t.Fatalf("React entry = %+v, want high confidence 18.2.0", merged[0])
	}
	// Both high: first-seen wins.
	if merged[1].Name != "jQuery" || merged[1].Version != "3.6.0" {
		t.Fatalf("jQuery entry = %+v, want first-seen 3.6.0", merged[1])
	}
}

func TestBuildStructureDedupesTargets(t *testing.T) {
	pages := []types.PageRecord{
		{
			URL:   "https://example.com/",
			Title: "Home",
			Links: []types.Link{
				{Href: "https://example.com/about", Internal: true},
				{Href: "https://example.com/about", Internal: true},
				{Href: "https://other.com/", Internal: false},
				{Href: "https://example.com/contact", Internal: true},
			},
		},
	}

	entries := BuildStructure(pages)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if len(entries[0].Links) != 2 {
		t.Fatalf("got %d link targets, want 2 (deduped, internal only): %v", len(entries[0].Links), entries[0].Links)
	}
}

func TestFormatSummary(t *testing.T) {
	report := &types.SiteReport{
		BaseURLs:   []string{"https://example.com"},
		TotalPages: 1,
		Duration:   "2.5s",
		Technologies: []types.TechnologyMatch{
			{Name: "Vue.js", Category: types.CategoryFramework, Confidence: types.ConfidenceHigh},
		},
		Pages: []types.PageRecord{
			{
				URL:            "https://example.com/",
				Title:          "Home",
				Links:          []types.Link{{Href: "https://example.com/a"}},
				LoadTimeMillis: 120,
				Screenshot:     "output/screenshots/index.png",
			},
		},
	}

	summary := FormatSummary(report)
	for _, want := range []string{
		"SITE CRAWL REPORT",
		"Base URL: https://example.com",
		"Pages crawled: 1",
		"Duration: 2.5s",
		"Vue.js (framework, high)",
		"links: 1  images: 0  load: 120ms",
		"screenshot: output/screenshots/index.png",
	} {
		if !strings.Contains(summary, want) {
			t.Fatalf("summary missing %q:\n%s", want, summary)
		}
	}
}
