package localdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // register the pure-Go sqlite driver
)

// Open opens (creating if needed) the embedded sqlite database that backs the
// local history cache and the advisory usage counters. It fills the role the
// browser's localStorage played for unauthenticated users.
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir local db dir: %w", err)
	}

	database, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open local db: %w", err)
	}

	// A single writer keeps the bounded-insert logic simple.
	database.SetMaxOpenConns(1)

	if err := initSchema(database); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

// OpenMemory opens a throwaway in-memory database, used by tests and when no
// local path is configured.
func OpenMemory() (*sql.DB, error) {
	database, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open memory db: %w", err)
	}
	database.SetMaxOpenConns(1)
	if err := initSchema(database); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

func initSchema(database *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS history (
    id            TEXT PRIMARY KEY,
    user_id       TEXT NOT NULL,
    signal        TEXT NOT NULL,
    trend         TEXT NOT NULL,
    trade_grade   TEXT,
    pattern       TEXT,
    risk_reward   TEXT,
    confidence    INTEGER NOT NULL DEFAULT 3,
    thumbnail_key TEXT,
    result        TEXT NOT NULL,
    created_at    TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_user_created
    ON history (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS usage (
    subject       TEXT PRIMARY KEY,
    count         INTEGER NOT NULL DEFAULT 0,
    is_premium    INTEGER NOT NULL DEFAULT 0,
    premium_since TIMESTAMP
);`
	if _, err := database.Exec(schema); err != nil {
		return fmt.Errorf("init local schema: %w", err)
	}
	return nil
}
