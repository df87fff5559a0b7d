package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DatabaseFile is the name of the history database inside the data dir.
const DatabaseFile = "downloads.db"

// openDB opens the SQLite database in dataDir, creating the directory and
// the schema when needed.
func openDB(dataDir string) (*sql.DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", filepath.Join(dataDir, DatabaseFile))
	if err != nil {
		return nil, err
	}
	// A single connection keeps the pragmas below in effect for every query.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(`
		PRAGMA busy_timeout = 5000;
		PRAGMA journal_mode = WAL;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	if err := initTable(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return db, nil
}

// initTable creates the downloads table if it doesn't exist.
func initTable(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS downloads (
		instance TEXT PRIMARY KEY,
		model_id TEXT NOT NULL,
		file_name TEXT NOT NULL,
		url TEXT NOT NULL,
		path TEXT NOT NULL,
		size INTEGER NOT NULL,
		sha256 TEXT NOT NULL,
		state TEXT NOT NULL,
		bytes_done INTEGER NOT NULL,
		bytes_total INTEGER NOT NULL,
		error TEXT,
		updated_ns INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_downloads_file ON downloads(model_id, file_name);
	CREATE INDEX IF NOT EXISTS idx_downloads_updated ON downloads(updated_ns);
	`
	_, err := db.Exec(query)
	return err
}
