package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a report or sheet is not cached.
var ErrNotFound = errors.New("not found")

// Store caches analyzed reports in an in-memory SQLite database so that
// drill-down pages can be served without re-uploading the workbook.
// Nothing survives a restart.
type Store struct {
	db *sql.DB
}

// New opens a fresh in-memory cache.
func New() (*Store, error) {
	db, err := sql.Open("sqlite", "file::memory:")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Every connection to :memory: is a separate database; keep exactly one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		file_name TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		sheets TEXT NOT NULL DEFAULT '[]',
		skipped TEXT NOT NULL DEFAULT '[]',
		by_descriptor TEXT NOT NULL DEFAULT '[]',
		by_sheet TEXT NOT NULL DEFAULT '[]'
	);

	CREATE TABLE IF NOT EXISTS records (
		report_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		sheet TEXT NOT NULL,
		descriptor TEXT NOT NULL,
		correct INTEGER NOT NULL,
		total_possible INTEGER NOT NULL,
		percentage REAL NOT NULL,
		students INTEGER NOT NULL,
		PRIMARY KEY (report_id, position),
		FOREIGN KEY (report_id) REFERENCES reports(id)
	);

	CREATE INDEX IF NOT EXISTS idx_records_sheet ON records(report_id, sheet);

	CREATE TABLE IF NOT EXISTS warnings (
		report_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		kind TEXT NOT NULL,
		sheet TEXT NOT NULL DEFAULT '',
		column_name TEXT NOT NULL DEFAULT '',
		question TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL,
		PRIMARY KEY (report_id, position),
		FOREIGN KEY (report_id) REFERENCES reports(id)
	);

	CREATE TABLE IF NOT EXISTS raw_sheets (
		report_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		header TEXT NOT NULL DEFAULT '[]',
		cells TEXT NOT NULL DEFAULT '[]',
		PRIMARY KEY (report_id, position),
		FOREIGN KEY (report_id) REFERENCES reports(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}
