package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/jiki/trace"

	_ "modernc.org/sqlite"
)

var cacheLog = commonlog.GetLogger("jiki.cache")

const cacheSchema = `
CREATE TABLE IF NOT EXISTS results (
	key     TEXT PRIMARY KEY,
	run_id  TEXT NOT NULL,
	trace   BLOB NOT NULL,
	created INTEGER NOT NULL
)`

// ResultCache stores canonical traces keyed by trace.Key. Interpret and
// EvaluateFunction are deterministic, so a hit is exactly the trace a fresh
// run would produce.
type ResultCache struct {
	db *sql.DB
}

// OpenResultCache opens (or creates) the SQLite database at path. Use
// ":memory:" for a process-local cache.
func OpenResultCache(path string) (*ResultCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cannot open result cache %s: %w", path, err)
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot initialise result cache %s: %w", path, err)
	}
	return &ResultCache{db: db}, nil
}

// Get returns the cached trace and the run that produced it.
func (c *ResultCache) Get(ctx context.Context, key string) (*trace.Trace, string, bool, error) {
	var runID string
	var data []byte
	err := c.db.QueryRowContext(ctx, `SELECT run_id, trace FROM results WHERE key = ?`, key).Scan(&runID, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", false, nil
	}
	if err != nil {
		return nil, "", false, err
	}
	t, err := trace.Unmarshal(data)
	if err != nil {
		// A row we cannot read is a miss; the next Put replaces it.
		cacheLog.Warningf("dropping unreadable entry %s: %v", key, err)
		return nil, "", false, nil
	}
	return t, runID, true, nil
}

// Put stores t under key, replacing any previous entry.
func (c *ResultCache) Put(ctx context.Context, key, runID string, t *trace.Trace) error {
	data, err := trace.Marshal(t)
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO results (key, run_id, trace, created) VALUES (?, ?, ?, ?)`,
		key, runID, data, time.Now().Unix())
	return err
}

// Len returns the number of cached traces.
func (c *ResultCache) Len(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM results`).Scan(&n)
	return n, err
}

func (c *ResultCache) Close() error {
	return c.db.Close()
}
