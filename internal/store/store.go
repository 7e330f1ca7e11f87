// Package store persists recorded tracking sessions in SQLite.
//
// A session row describes one recording (name, frame rate, roles, frame count).
// Each frame adds one raw pose sample per role to pose_samples and one
// skeleton reading per hand to skeleton_frames, both in the backend's own
// coordinate convention so a replay goes through the same conversion as live data.
// Deleting a session cascades to its frames.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// pragmas run on every new database handle.
var pragmas = []string{
	"PRAGMA foreign_keys = ON",
	// The recorder writes while the HTTP API reads.
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 5000",
}

// Store owns the session database.
type Store struct {
	db   *sql.DB
	path string
}

// New opens the session database at dbPath, creating it and its directory when
// missing, and brings the schema up to date.
func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps the pragmas in effect and serializes writers.
	db.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	s := &Store{db: db, path: dbPath}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DB returns the underlying handle for maintenance queries.
func (s *Store) DB() *sql.DB {
	return s.db
}
