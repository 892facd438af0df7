// Package fetchlog keeps a SQLite history of fetch attempts.
package fetchlog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Rishwanth-M/finboard/internal/fetch"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS fetch_log (
	id TEXT PRIMARY KEY,
	cache_key TEXT NOT NULL,
	url TEXT NOT NULL,
	status TEXT NOT NULL,
	status_code INTEGER NOT NULL DEFAULT 0,
	cached INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	fetched_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fetch_log_key ON fetch_log(cache_key, fetched_at);
`

// Entry is one recorded fetch attempt.
type Entry struct {
	ID           string    `json:"id"`
	CacheKey     string    `json:"cacheKey"`
	URL          string    `json:"url"`
	Status       string    `json:"status"` // ok, cached, or a fetch.Kind
	StatusCode   int       `json:"statusCode"`
	Cached       bool      `json:"cached"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	DurationMs   int64     `json:"durationMs"`
	FetchedAt    time.Time `json:"fetchedAt"`
}

// Log is a fetch history store.
type Log struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the log database at path. ":memory:" is accepted.
func Open(path string, logger *slog.Logger) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection keeps ":memory:" databases visible to every query.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{db: db, logger: logger}, nil
}

// Close closes the database.
func (l *Log) Close() error {
	return l.db.Close()
}

// Record inserts an entry. Missing IDs and timestamps are filled in.
func (l *Log) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.FetchedAt.IsZero() {
		e.FetchedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO fetch_log (id, cache_key, url, status, status_code, cached,
		error_message, duration_ms, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CacheKey, e.URL, e.Status, e.StatusCode, boolInt(e.Cached),
		e.ErrorMessage, e.DurationMs, e.FetchedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert fetch log: %w", err)
	}
	return nil
}

// RecordFetch implements fetch.Recorder. Write failures are logged, not returned.
func (l *Log) RecordFetch(ctx context.Context, a fetch.Attempt) {
	e := &Entry{
		CacheKey:   a.CacheKey,
		URL:        a.URL,
		Status:     "ok",
		StatusCode: a.StatusCode,
		Cached:     a.Cached,
		DurationMs: a.Duration.Milliseconds(),
		FetchedAt:  a.At,
	}
	switch {
	case a.Cached:
		e.Status = "cached"
	case a.Kind != "":
		e.Status = string(a.Kind)
	}
	if a.Err != nil {
		e.ErrorMessage = a.Err.Error()
	}
	if err := l.Record(ctx, e); err != nil {
		l.logger.Warn("fetchlog: record", "key", a.CacheKey, "error", err)
	}
}

// History returns entries for a cache key, newest first.
func (l *Log) History(ctx context.Context, cacheKey string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, cache_key, url, status, status_code, cached,
		error_message, duration_ms, fetched_at
		FROM fetch_log WHERE cache_key = ?
		ORDER BY fetched_at DESC, rowid DESC LIMIT ?`, cacheKey, limit)
	if err != nil {
		return nil, fmt.Errorf("query fetch log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Entry
	for rows.Next() {
		var (
			e       Entry
			cached  int
			fetched int64
		)
		if err := rows.Scan(&e.ID, &e.CacheKey, &e.URL, &e.Status, &e.StatusCode, &cached,
			&e.ErrorMessage, &e.DurationMs, &fetched); err != nil {
			return nil, fmt.Errorf("scan fetch log: %w", err)
		}
		e.Cached = cached != 0
		e.FetchedAt = time.UnixMilli(fetched)
		result = append(result, &e)
	}
	return result, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
