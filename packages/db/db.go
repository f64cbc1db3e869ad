// Package db stores run history in SQLite. Each run and each of its case
// results is kept so that a run can be compared with the previous one.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/caugusteg/smokecheck/packages/core/runner"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

// Client is a handle on the history database
type Client struct {
	db           *sql.DB
	dataSource   string
	queryTimeout time.Duration
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	base_url    TEXT NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	duration_ms INTEGER NOT NULL,
	total       INTEGER NOT NULL,
	passed      INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	pass_rate   REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_base_url ON runs (base_url, started_at);
CREATE TABLE IF NOT EXISTS results (
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	test        TEXT NOT NULL,
	success     INTEGER NOT NULL,
	details     TEXT NOT NULL,
	status_code INTEGER NOT NULL,
	duration_us INTEGER NOT NULL,
	timestamp   TEXT NOT NULL,
	PRIMARY KEY (run_id, position)
);
`

// NewClient opens the history database and creates its tables.
// Accepted forms: sqlite://path, sqlite:path or a bare file path.
func NewClient(connectionString string) (*Client, error) {
	dsn, err := parseConnectionString(connectionString)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows one writer; a single connection keeps writes ordered
	db.SetMaxOpenConns(1)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create history tables: %w", err)
	}

	return &Client{
		db:           db,
		dataSource:   dsn,
		queryTimeout: 30 * time.Second,
	}, nil
}

// Close closes the database connection
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// RunRecord is one stored run
type RunRecord struct {
	ID        string
	BaseURL   string
	StartedAt time.Time
	Duration  time.Duration
	Total     int
	Passed    int
	Failed    int
	PassRate  float64
}

// AllPassed reports whether the stored run had no failures
func (r *RunRecord) AllPassed() bool {
	return r.Failed == 0
}

// SaveRun stores run and its results in one transaction
func (c *Client) SaveRun(ctx context.Context, run *runner.RunResult) error {
	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	s := run.Summarize()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, base_url, started_at, duration_ms, total, passed, failed, pass_rate)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.BaseURL, run.StartedAt.UTC(), run.Duration.Milliseconds(),
		s.Total, s.Passed, s.Failed, s.PassRate,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO results (run_id, position, test, success, details, status_code, duration_us, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare result insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range run.Results {
		if _, err := stmt.ExecContext(ctx, run.ID, i, r.Test, r.Success, r.Details,
			r.StatusCode, r.Duration.Microseconds(), r.Timestamp); err != nil {
			return fmt.Errorf("insert result %q: %w", r.Test, err)
		}
	}

	return tx.Commit()
}

// LastRun returns the most recent run against baseURL, other than
// excludeID. It returns nil and no error when there is none.
func (c *Client) LastRun(ctx context.Context, baseURL, excludeID string) (*RunRecord, error) {
	runs, err := c.queryRuns(ctx,
		`SELECT id, base_url, started_at, duration_ms, total, passed, failed, pass_rate
		 FROM runs WHERE base_url = ? AND id <> ?
		 ORDER BY started_at DESC, rowid DESC LIMIT 1`,
		baseURL, excludeID)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return runs[0], nil
}

// RecentRuns lists up to limit runs, newest first. An empty baseURL
// matches every target.
func (c *Client) RecentRuns(ctx context.Context, baseURL string, limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	return c.queryRuns(ctx,
		`SELECT id, base_url, started_at, duration_ms, total, passed, failed, pass_rate
		 FROM runs WHERE (? = '' OR base_url = ?)
		 ORDER BY started_at DESC, rowid DESC LIMIT ?`,
		baseURL, baseURL, limit)
}

func (c *Client) queryRuns(ctx context.Context, query string, args ...any) ([]*RunRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		var r RunRecord
		var durationMs int64
		if err := rows.Scan(&r.ID, &r.BaseURL, &r.StartedAt, &durationMs,
			&r.Total, &r.Passed, &r.Failed, &r.PassRate); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// ResultRecord is one stored case result
type ResultRecord struct {
	Position   int
	Test       string
	Success    bool
	Details    string
	StatusCode int
	Duration   time.Duration
	Timestamp  string
}

// RunResults returns the case results of runID in execution order.
// An unknown run gives an empty slice.
func (c *Client) RunResults(ctx context.Context, runID string) ([]*ResultRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx,
		`SELECT position, test, success, details, status_code, duration_us, timestamp
		 FROM results WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	results := make([]*ResultRecord, 0)
	for rows.Next() {
		var r ResultRecord
		var durationUs int64
		if err := rows.Scan(&r.Position, &r.Test, &r.Success, &r.Details,
			&r.StatusCode, &durationUs, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.Duration = time.Duration(durationUs) * time.Microsecond
		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return results, nil
}

// parseConnectionString turns the accepted forms into a sqlite DSN
func parseConnectionString(connStr string) (string, error) {
	connStr = strings.TrimSpace(connStr)
	if connStr == "" {
		return "", fmt.Errorf("empty history database path")
	}

	switch {
	case strings.HasPrefix(connStr, "sqlite://"):
		connStr = strings.TrimPrefix(connStr, "sqlite://")
	case strings.HasPrefix(connStr, "sqlite:"):
		connStr = strings.TrimPrefix(connStr, "sqlite:")
	case strings.Contains(connStr, "://"):
		return "", fmt.Errorf("unsupported database scheme in %q (only sqlite is supported)", connStr)
	}

	if connStr == "" {
		return "", fmt.Errorf("empty history database path")
	}
	return connStr, nil
}
