// Package state provides SQLite-based persistence for flowpilot: step
// checkpoints written during a run and the history of finished runs.
// It handles both global state (~/.local/share/flowpilot/flowpilot.db) and
// project-local state (.flowpilot/state.db).
package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// SQLite driver names.
const (
	// DriverModernc is the pure-Go driver registered by modernc.org/sqlite.
	DriverModernc = "sqlite"
	// DriverCGO is the cgo driver registered by mattn/go-sqlite3.
	DriverCGO = "sqlite3"
)

// DB wraps an SQLite database connection with flowpilot-specific operations.
type DB struct {
	conn   *sql.DB
	path   string
	driver string
	mu     sync.RWMutex
}

// GlobalDBPath returns the path to the global flowpilot database.
func GlobalDBPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "flowpilot", "flowpilot.db")
}

// ProjectDBPath returns the path to the project-local database.
func ProjectDBPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".flowpilot", "state.db")
}

// Open opens an SQLite database at the given path with the pure-Go driver.
func Open(path string) (*DB, error) {
	return OpenWithDriver(DriverModernc, path)
}

// OpenWithDriver opens an SQLite database at the given path using driver.
// It creates the parent directories if they don't exist.
// WAL mode is enabled for concurrent reads.
func OpenWithDriver(driver, path string) (*DB, error) {
	switch driver {
	case "":
		driver = DriverModernc
	case DriverModernc, DriverCGO:
	default:
		return nil, fmt.Errorf("unsupported sqlite driver %q", driver)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps per-connection pragmas in effect and
	// serializes writers from the async checkpoint queue.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &DB{
		conn:   conn,
		path:   path,
		driver: driver,
	}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Close()
}

// Path returns the path to the database file.
func (db *DB) Path() string {
	return db.path
}

// Driver returns the name of the SQL driver in use.
func (db *DB) Driver() string {
	return db.driver
}

// Migrate applies all pending schema migrations.
func (db *DB) Migrate() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	// Create schema version table
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	// Apply migrations
	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Checkpoints},
		{2, migrationV2Runs},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Migration SQL statements
const migrationV1Checkpoints = `
CREATE TABLE IF NOT EXISTS checkpoints (
	id TEXT PRIMARY KEY,
	workflow_id TEXT NOT NULL,
	checkpoint_name TEXT NOT NULL,
	state_snapshot TEXT NOT NULL,
	tokens_used INTEGER NOT NULL DEFAULT 0,
	cost_usd REAL NOT NULL DEFAULT 0.0,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_checkpoints_workflow_id ON checkpoints(workflow_id);
`

const migrationV2Runs = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	workflow_id TEXT NOT NULL,
	success INTEGER NOT NULL DEFAULT 0,
	completed_tasks TEXT NOT NULL DEFAULT '[]',
	failed_tasks TEXT NOT NULL DEFAULT '[]',
	task_errors TEXT NOT NULL DEFAULT '{}',
	total_tokens INTEGER NOT NULL DEFAULT 0,
	total_cost REAL NOT NULL DEFAULT 0.0,
	started_at DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_runs_workflow_id ON runs(workflow_id);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// Exec executes a query that doesn't return rows.
func (db *DB) Exec(query string, args ...any) (sql.Result, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Exec(query, args...)
}

// ExecContext executes a query that doesn't return rows, honoring ctx.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.ExecContext(ctx, query, args...)
}

// Query executes a query that returns rows.
func (db *DB) Query(query string, args ...any) (*sql.Rows, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.Query(query, args...)
}

// QueryRow executes a query that returns at most one row.
func (db *DB) QueryRow(query string, args ...any) *sql.Row {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.QueryRow(query, args...)
}

// Transaction runs the given function within a transaction.
func (db *DB) Transaction(fn func(tx *sql.Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// formatTime formats a time.Time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// parseNullableTime parses a nullable time string from SQLite.
func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil
	}
	return &t
}

// PurgeOldRuns deletes runs and checkpoints older than the specified duration.
// Returns the number of runs deleted.
func (db *DB) PurgeOldRuns(olderThan time.Duration) (int64, error) {
	cutoffStr := formatTime(time.Now().Add(-olderThan))

	var count int64
	err := db.Transaction(func(tx *sql.Tx) error {
		result, err := tx.Exec(`DELETE FROM runs WHERE started_at < ?`, cutoffStr)
		if err != nil {
			return fmt.Errorf("purge old runs: %w", err)
		}
		count, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM checkpoints WHERE created_at < ?`, cutoffStr); err != nil {
			return fmt.Errorf("purge old checkpoints: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
