package store

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

// Store is the SQLite mirror of the link graph: one row per note and one row
// per link occurrence. It answers the reverse (backlink) queries the in-memory
// index cannot answer without a full scan.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dsn. An in-memory database is pinned to
// a single connection so every query sees the same data.
func NewStore(dsn string) (*Store, error) {
	params := "_foreign_keys=ON&_busy_timeout=30000"
	memory := dsn == MemoryDSN || strings.Contains(dsn, "mode=memory")
	if !memory {
		params = "_journal_mode=WAL&" + params
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite3", dsn+sep+params)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if memory {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates the tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS notes (
  id              INTEGER PRIMARY KEY,
  name            TEXT NOT NULL,
  kind            TEXT NOT NULL,
  path            TEXT NOT NULL,
  version         INTEGER NOT NULL DEFAULT 0,
  state           TEXT NOT NULL,
  hash            TEXT,
  line_count      INTEGER,
  last_indexed    TIMESTAMP,
  UNIQUE(name, kind)
);

CREATE TABLE IF NOT EXISTS links (
  id              INTEGER PRIMARY KEY,
  note_id         INTEGER NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
  target          TEXT NOT NULL,
  target_name     TEXT,
  target_kind     TEXT,
  start_line      INTEGER,
  start_col       INTEGER,
  end_line        INTEGER,
  end_col         INTEGER
);

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT
);

CREATE INDEX IF NOT EXISTS idx_notes_path ON notes(path);
CREATE INDEX IF NOT EXISTS idx_links_note ON links(note_id);
CREATE INDEX IF NOT EXISTS idx_links_target ON links(target_name, target_kind);
`

// GetMetadata returns the value stored under key, or "" if absent.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get metadata %s: %w", key, err)
	}
	return value, nil
}

// SetMetadata stores value under key, replacing any previous value.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set metadata %s: %w", key, err)
	}
	return nil
}
