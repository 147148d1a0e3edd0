package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQL database connection
type DB struct {
	*sql.DB
}

// New creates a new database connection
func New(dbPath string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite doesn't handle concurrent writes well
	db.SetMaxIdleConns(1)

	return &DB{db}, nil
}

// Migrate runs database migrations
func (db *DB) Migrate(ctx context.Context) error {
	migrations := []string{
		migrationRuns,
		migrationRunIndexes,
	}

	for i, migration := range migrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

const migrationRuns = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	run_date DATETIME NOT NULL,
	backend TEXT NOT NULL,
	endpoint TEXT NOT NULL,
	model TEXT NOT NULL DEFAULT '',

	-- Run shape
	num_clients INTEGER NOT NULL,
	num_requests INTEGER NOT NULL,
	warmup INTEGER NOT NULL DEFAULT 0,
	stream INTEGER NOT NULL DEFAULT 1,
	mean_prompt_length INTEGER NOT NULL DEFAULT 0,
	mean_max_new_tokens INTEGER NOT NULL DEFAULT 0,

	-- Aggregates
	duration_sec REAL NOT NULL DEFAULT 0,
	requests_per_sec REAL NOT NULL DEFAULT 0,
	total_tokens INTEGER NOT NULL DEFAULT 0,
	tokens_per_sec REAL NOT NULL DEFAULT 0,
	latency_mean_ms REAL NOT NULL DEFAULT 0,
	latency_p50_ms REAL NOT NULL DEFAULT 0,
	latency_p90_ms REAL NOT NULL DEFAULT 0,
	latency_p99_ms REAL NOT NULL DEFAULT 0,
	ttft_mean_ms REAL NOT NULL DEFAULT 0,
	ttft_p50_ms REAL NOT NULL DEFAULT 0,
	ttft_p90_ms REAL NOT NULL DEFAULT 0,
	ttft_p99_ms REAL NOT NULL DEFAULT 0,
	itl_mean_ms REAL NOT NULL DEFAULT 0,
	itl_p50_ms REAL NOT NULL DEFAULT 0,
	itl_p90_ms REAL NOT NULL DEFAULT 0,
	itl_p99_ms REAL NOT NULL DEFAULT 0,

	-- Raw samples (JSON array of ms values)
	latency_samples TEXT NOT NULL DEFAULT '[]',

	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const migrationRunIndexes = `
CREATE INDEX IF NOT EXISTS idx_runs_backend ON runs(backend);
CREATE INDEX IF NOT EXISTS idx_runs_model ON runs(model);
CREATE INDEX IF NOT EXISTS idx_runs_run_date ON runs(run_date);
`
