package crawler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"

	"github.com/MacphersonDesigns/site-scraper/pkg/types"
)

func (e *Engine) buildReport() *types.SiteReport {
	finished := time.Now()
	return &types.SiteReport{
		BaseURLs:     e.cfg.Crawl.SeedURLs,
		TotalPages:   len(e.pages),
		Pages:        e.pages,
		Technologies: MergeTechnologies(e.pages),
		Structure:    BuildStructure(e.pages),
		StartedAt:    e.startedAt,
		FinishedAt:   finished,
		Duration:     finished.Sub(e.startedAt).Round(time.Millisecond).String(),
	}
}

// MergeTechnologies folds per-page detections into one site-wide list. A
// later observation with high confidence replaces a non-high entry for the
// same technology; in every other case the first-seen entry wins. Order
// follows first appearance.
func MergeTechnologies(pages []types.PageRecord) []types.TechnologyMatch {
	var order []string
	byName := make(map[string]types.TechnologyMatch)

	for _, page := range pages {
		for _, tech := range page.Technologies {
			existing, seen := byName[tech.Name]
			if !seen {
				byName[tech.Name] = tech
				order = append(order, tech.Name)
				continue
			}
			if tech.Confidence == types.ConfidenceHigh && existing.Confidence != types.ConfidenceHigh {
				byName[tech.Name] = tech
			}
		}
	}

	merged := make([]types.TechnologyMatch, 0, len(order))
	for _, name := range order {
		merged = append(merged, byName[name])
	}
	return merged
}

// BuildStructure maps each crawled page to its distinct internal link
// targets, preserving crawl order.
func BuildStructure(pages []types.PageRecord) []types.StructureEntry {
	entries := make([]types.StructureEntry, 0, len(pages))
	for _, page := range pages {
		var targets []string
		seen := make(map[string]struct{})
		for _, link := range page.Links {
			if !link.Internal {
				continue
			}
			if _, dup := seen[link.Href]; dup {
				continue
			}
			seen[link.Href] = struct{}{}
			targets = append(targets, link.Href)
		}
		entries = append(entries, types.StructureEntry{
			URL:   page.URL,
			Title: page.Title,
			Links: targets,
		})
	}
	return entries
}

// WriteArtifacts writes report.json, summary.txt, and report.md into dir.
func WriteArtifacts(dir string, report *types.SiteReport) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "report.json"), data, 0o644); err != nil {
		return fmt.Errorf("write report.json: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "summary.txt"), []byte(FormatSummary(report)), 0o644); err != nil {
		return fmt.Errorf("write summary.txt: %w", err)
	}

	md, err := os.Create(filepath.Join(dir, "report.md"))
	if err != nil {
		return fmt.Errorf("create report.md: %w", err)
	}
	defer md.Close()
	if err := writeMarkdown(md, report); err != nil {
		return fmt.Errorf("write report.md: %w", err)
	}
	return nil
}

// FormatSummary renders the plain-text run summary.
func FormatSummary(report *types.SiteReport) string {
	var b strings.Builder

	banner := strings.Repeat("=", 50)
	b.WriteString(banner + "\n")
	b.WriteString(" SITE CRAWL REPORT\n")
	b.WriteString(banner + "\n\n")

	b.WriteString("Base URL: " + strings.Join(report.BaseURLs, ", ") + "\n")
	fmt.Fprintf(&b, "Pages crawled: %d\n", report.TotalPages)
	b.WriteString("Duration: " + report.Duration + "\n\n")

	b.WriteString("Technologies:\n")
	if len(report.Technologies) == 0 {
		b.WriteString("  (none detected)\n")
	}
	for _, tech := range report.Technologies {
		name := tech.Name
		if tech.Version != "" {
			name += " " + tech.Version
		}
		fmt.Fprintf(&b, "  - %s (%s, %s)\n", name, tech.Category, tech.Confidence)
	}
	b.WriteString("\nPages:\n")
	for _, page := range report.Pages {
		b.WriteString("  " + page.URL + "\n")
		fmt.Fprintf(&b, "    title: %s\n", page.Title)
		fmt.Fprintf(&b, "    links: %d  images: %d  load: %dms\n",
			len(page.Links), len(page.Images), page.LoadTimeMillis)
		if page.Screenshot != "" {
			fmt.Fprintf(&b, "    screenshot: %s\n", page.Screenshot)
		}
	}
	return b.String()
}

func writeMarkdown(w *os.File, report *types.SiteReport) error {
	md := markdown.NewMarkdown(w)

	md.H1("Site Crawl Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Base URL", strings.Join(report.BaseURLs, ", ")},
			{"Pages crawled", strconv.Itoa(report.TotalPages)},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Duration},
		},
	})
	md.PlainText("")

	md.H2("Technologies")
	md.PlainText("")
	if len(report.Technologies) == 0 {
		md.PlainText("No technologies detected.")
	} else {
		rows := make([][]string, 0, len(report.Technologies))
		for _, tech := range report.Technologies {
			version := tech.Version
			if version == "" {
				version = "-"
			}
			rows = append(rows, []string{
				tech.Name, string(tech.Category), version, string(tech.Confidence),
			})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Name", "Category", "Version", "Confidence"},
			Rows:   rows,
		})
	}
	md.PlainText("")

	md.H2("Pages")
	md.PlainText("")
	rows := make([][]string, 0, len(report.Pages))
	for _, page := range report.Pages {
		rows = append(rows, []string{
			page.URL,
			page.Title,
			strconv.Itoa(page.StatusCode),
			strconv.Itoa(len(page.Links)),
			strconv.Itoa(len(page.Images)),
			strconv.FormatInt(page.LoadTimeMillis, 10) + "ms",
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Title", "Status", "Links", "Images", "Load"},
		Rows:   rows,
	})

	return md.Build()
}
