// Package store is the SQLite-backed persistence collaborator for cognitive
// states, tasks, and quota records. Row isolation is by user_id predicate on
// every statement; no query ever reads across users.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"neuroflow/internal/logging"
)

// Store wraps the SQLite database. A single connection with WAL keeps the
// conditional quota update serialized at the database without table locks in
// application code.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// timeFormat is the canonical on-disk timestamp encoding.
const timeFormat = time.RFC3339Nano

// New initializes the SQLite database at the given path.
func New(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "store.New")
	defer timer.Stop()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("failed to set sqlite journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("failed to set sqlite synchronous=NORMAL: %v", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	logging.Store("store initialized at %s", path)
	return s, nil
}

// initialize creates the required tables.
func (s *Store) initialize() error {
	statesTable := `
	CREATE TABLE IF NOT EXISTS cognitive_states (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		energy INTEGER NOT NULL,
		focus INTEGER NOT NULL,
		mood INTEGER NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		captured_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_states_user_captured
		ON cognitive_states(user_id, captured_at);
	`

	tasksTable := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		complexity INTEGER NOT NULL,
		estimated_minutes INTEGER NOT NULL DEFAULT 0,
		completed INTEGER NOT NULL DEFAULT 0,
		breakdown TEXT,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id);
	`

	// "limit" is an SQL keyword; the column is max_monthly.
	quotasTable := `
	CREATE TABLE IF NOT EXISTS quotas (
		user_id TEXT PRIMARY KEY,
		tier TEXT NOT NULL,
		used INTEGER NOT NULL DEFAULT 0,
		max_monthly INTEGER NOT NULL,
		reset_at TEXT NOT NULL
	);
	`

	for _, stmt := range []string{statesTable, tasksTable, quotasTable} {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func decodeTime(raw string) (time.Time, error) {
	t, err := time.Parse(timeFormat, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", raw, err)
	}
	return t, nil
}
