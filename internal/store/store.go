package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migrations run in order on journals whose user_version is below their
// index + 1.
var migrations = []string{
	// 1: look up identical frames across sessions.
	`CREATE INDEX IF NOT EXISTS idx_frames_digest ON frames(digest)`,
}

// dsnParams configure every connection go-sqlite3 opens.
const dsnParams = "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"

// Store is an append-only journal of emitted frames, kept in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens the journal at path, creating it when missing, and brings its
// schema up to date. Opening an existing journal again is safe.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?"+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}

	// One writer; a session's recorder and the CLI readers share it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the database. Closing a zero Store is a no-op.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for v := version; v < len(migrations); v++ {
		if _, err := db.Exec(migrations[v]); err != nil {
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
	}
	if version < len(migrations) {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", len(migrations))); err != nil {
			return fmt.Errorf("write schema version: %w", err)
		}
	}
	return nil
}

// pragma reads the current value of a pragma.
func (s *Store) pragma(name string) (string, error) {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", fmt.Errorf("read pragma %s: %w", name, err)
	}
	return value, nil
}
