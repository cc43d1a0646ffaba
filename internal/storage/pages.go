// Package storage maintains a small SQLite index of crawled pages so runs
// can be inspected and queried after the fact without re-parsing report
// JSON.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MacphersonDesigns/site-scraper/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS pages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	url TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	status_code INTEGER NOT NULL DEFAULT 0,
	load_time_ms INTEGER NOT NULL DEFAULT 0,
	link_count INTEGER NOT NULL DEFAULT 0,
	image_count INTEGER NOT NULL DEFAULT 0,
	screenshot TEXT NOT NULL DEFAULT '',
	captured_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pages_run ON pages (run_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_pages_run_url ON pages (run_id, url);
`

// PageSummary is one indexed page row.
type PageSummary struct {
	RunID          string
	URL            string
	Title          string
	StatusCode     int
	LoadTimeMillis int64
	LinkCount      int
	ImageCount     int
	Screenshot     string
	CapturedAt     time.Time
}

// PageIndex is a SQLite-backed index of crawled pages.
type PageIndex struct {
	db *sql.DB
}

// OpenPageIndex opens or creates the index database at path, initialising
// the schema when missing.
func OpenPageIndex(path string) (*PageIndex, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open page index: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init page index schema: %w", err)
	}
	return &PageIndex{db: db}, nil
}

// SavePage upserts an index row for one page record.
func (p *PageIndex) SavePage(ctx context.Context, runID string, record types.PageRecord) error {
	if p == nil {
		return nil
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO pages (run_id, url, title, status_code, load_time_ms, link_count, image_count, screenshot, captured_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, url) DO UPDATE SET
			title = excluded.title,
			status_code = excluded.status_code,
			load_time_ms = excluded.load_time_ms,
			link_count = excluded.link_count,
			image_count = excluded.image_count,
			screenshot = excluded.screenshot,
			captured_at = excluded.captured_at`,
		runID, record.URL, record.Title, record.StatusCode, record.LoadTimeMillis,
		len(record.Links), len(record.Images), record.Screenshot, record.CapturedAt,
	)
	if err != nil {
		return fmt.Errorf("save page %s: %w", record.URL, err)
	}
	return nil
}

// ListPages returns the indexed pages for one run in capture order.
func (p *PageIndex) ListPages(ctx context.Context, runID string) ([]PageSummary, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT run_id, url, title, status_code, load_time_ms, link_count, image_count, screenshot, captured_at
		FROM pages WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	var out []PageSummary
	for rows.Next() {
		var s PageSummary
		if err := rows.Scan(&s.RunID, &s.URL, &s.Title, &s.StatusCode, &s.LoadTimeMillis,
			&s.LinkCount, &s.ImageCount, &s.Screenshot, &s.CapturedAt); err != nil {
			return nil, fmt.Errorf("scan page row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (p *PageIndex) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}
