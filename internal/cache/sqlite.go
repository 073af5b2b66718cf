package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ppiankov/veille/internal/model"
)

// SQLiteStore keeps one flattened row per record in a single results table
type SQLiteStore struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS results (
	id          TEXT PRIMARY KEY,
	query       TEXT NOT NULL,
	timestamp   INTEGER NOT NULL,
	keyword     TEXT NOT NULL DEFAULT '',
	title       TEXT NOT NULL,
	url         TEXT NOT NULL,
	source      TEXT NOT NULL,
	source_name TEXT NOT NULL DEFAULT '',
	date        TEXT NOT NULL DEFAULT 'unknown',
	abstract    TEXT NOT NULL DEFAULT '',
	summary     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_results_query_ts ON results(query, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_results_ts ON results(timestamp);
`

// OpenSQLite opens (creating if needed) the database at dbPath
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	// A single connection serializes writers; overlapping runs only append
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

// Read implements Store
func (s *SQLiteStore) Read(ctx context.Context, query string) (*model.CacheEntry, error) {
	var latest sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(timestamp) FROM results WHERE query = ?`, query).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrCacheUnavailable, err)
	}
	if !latest.Valid {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, keyword, title, url, source, source_name, date, abstract, summary
		FROM results
		WHERE query = ? AND timestamp = ?
		ORDER BY rowid`, query, latest.Int64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrCacheUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	entry := &model.CacheEntry{
		Query:     query,
		Timestamp: time.UnixMilli(latest.Int64).UTC(),
	}
	for rows.Next() {
		var r model.Record
		var st string
		if err := rows.Scan(&r.ID, &r.Keyword, &r.Title, &r.URL, &st, &r.SourceName, &r.PublishedDate, &r.Abstract, &r.Summary); err != nil {
			return nil, fmt.Errorf("%w: scan row: %v", model.ErrCacheUnavailable, err)
		}
		r.SourceType = model.SourceType(st)
		if r.Keyword != "" {
			r.ID = model.RecordID(r.Keyword, r.SourceType, r.URL)
		}
		entry.Records = append(entry.Records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrCacheUnavailable, err)
	}

	return entry, nil
}

// Write implements Store. Every row gets a fresh UUID, so repeated batches are kept side by side.
func (s *SQLiteStore) Write(ctx context.Context, query string, records []model.Record, at time.Time) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", model.ErrCacheUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO results (id, query, timestamp, keyword, title, url, source, source_name, date, abstract, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare: %v", model.ErrCacheUnavailable, err)
	}
	defer func() { _ = stmt.Close() }()

	ts := at.UTC().UnixMilli()
	for _, r := range records {
		date := r.PublishedDate
		if date == "" {
			date = model.UnknownDate
		}
		if _, err := stmt.ExecContext(ctx, uuid.NewString(), query, ts, r.Keyword, r.Title, r.URL,
			string(r.SourceType), r.SourceName, date, r.Abstract, r.Summary); err != nil {
			return fmt.Errorf("%w: insert: %v", model.ErrCacheUnavailable, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", model.ErrCacheUnavailable, err)
	}
	return nil
}

// Purge implements Store
func (s *SQLiteStore) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM results WHERE timestamp < ?`, olderThan.UTC().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("%w: purge: %v", model.ErrCacheUnavailable, err)
	}
	return res.RowsAffected()
}

// Stats implements Store
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Backend: "sqlite:" + s.path}
	var oldest, newest sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT query), MIN(timestamp), MAX(timestamp) FROM results`).
		Scan(&st.Rows, &st.Queries, &oldest, &newest)
	if err != nil {
		return st, fmt.Errorf("%w: stats: %v", model.ErrCacheUnavailable, err)
	}
	if oldest.Valid {
		st.Oldest = time.UnixMilli(oldest.Int64).UTC()
	}
	if newest.Valid {
		st.Newest = time.UnixMilli(newest.Int64).UTC()
	}
	return st, nil
}

// Close implements Store
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
