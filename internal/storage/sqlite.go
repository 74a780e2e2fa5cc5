package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "panner.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// One connection serializes readers behind an in-progress media replace.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS verses (
			seq INTEGER PRIMARY KEY,
			text TEXT NOT NULL,
			reference TEXT NOT NULL,
			grp TEXT NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create verses table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS media (
			rank INTEGER PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			locator TEXT NOT NULL,
			mime TEXT NOT NULL DEFAULT '',
			size INTEGER NOT NULL DEFAULT 0
		);
	`); err != nil {
		return fmt.Errorf("create media table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS presentations (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			label TEXT NOT NULL DEFAULT '',
			opened_at TEXT NOT NULL,
			closed_at TEXT,
			close_reason TEXT NOT NULL DEFAULT ''
		);
	`); err != nil {
		return fmt.Errorf("create presentations table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_presentations_opened_at ON presentations(opened_at)"); err != nil {
		return fmt.Errorf("create presentations index: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}
