// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

// Package archive writes every applied click to a DuckDB table for offline
// analysis. The archive is strictly downstream of the ledger: it can lag,
// degrade, or fail without affecting ranking or content generation.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/dealhound/dealhound/internal/events"
)

// ClickStore persists click batches. DuckDBStore is the production
// implementation; tests substitute mocks.
type ClickStore interface {
	InsertClicks(ctx context.Context, clicks []events.ClickRecorded) error
	Close() error
}

const schema = `
CREATE TABLE IF NOT EXISTS clicks (
    event_id    VARCHAR NOT NULL,
    deal        VARCHAR NOT NULL,
    category    VARCHAR NOT NULL,
    pattern_key VARCHAR,
    clicked_at  TIMESTAMP NOT NULL,
    archived_at TIMESTAMP NOT NULL DEFAULT current_timestamp
);
CREATE INDEX IF NOT EXISTS idx_clicks_deal ON clicks (deal);
CREATE INDEX IF NOT EXISTS idx_clicks_category_at ON clicks (category, clicked_at);
`

// DuckDBStore is the DuckDB-backed click archive.
type DuckDBStore struct {
	db *sql.DB
}

// OpenDuckDB opens (or creates) the archive database and applies the
// schema. An empty path opens an in-memory database.
func OpenDuckDB(ctx context.Context, path string) (*DuckDBStore, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	// Single writer; DuckDB holds an exclusive write lock anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply archive schema: %w", err)
	}
	return &DuckDBStore{db: db}, nil
}

// InsertClicks appends one batch inside a transaction.
func (s *DuckDBStore) InsertClicks(ctx context.Context, clicks []events.ClickRecorded) error {
	if len(clicks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO clicks (event_id, deal, category, pattern_key, clicked_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare archive insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range clicks {
		if _, err := stmt.ExecContext(ctx, c.EventID, c.Deal, c.Category, c.PatternKey, c.At.UTC()); err != nil {
			return fmt.Errorf("insert click %s: %w", c.EventID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archive batch: %w", err)
	}
	return nil
}

// ClicksSince counts archived clicks per category newer than the cutoff.
// Used by the admin API for archive health checks.
func (s *DuckDBStore) ClicksSince(ctx context.Context, cutoff time.Time) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, count(*) FROM clicks WHERE clicked_at >= ? GROUP BY category`, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("query archive counts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var cat string
		var n int64
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, fmt.Errorf("scan archive count: %w", err)
		}
		out[cat] = n
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *DuckDBStore) Close() error {
	return s.db.Close()
}
