package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

//go:embed schema.sql
var schemaSQL string

// pragma is a connection setting applied when the log is opened.
type pragma struct {
	name  string
	value string
}

// WAL lets replay read while a compile run appends. Every connection gets
// these, so they are applied again after a reconnect.
var pragmas = []pragma{
	{"journal_mode", "WAL"},
	{"synchronous", "NORMAL"},
	{"busy_timeout", "5000"},
}

// migrations[i] moves the log from user_version i to i+1.
var migrations = []string{
	// 1: replay groups by produced query
	`CREATE INDEX IF NOT EXISTS idx_compilations_query_hash ON compilations(query_hash)`,
}

// Store is the compilation log, kept in a single SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens the log at path, creating it when missing and bringing an
// older file up to the current schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	// one writer; a second connection would also lose the pragmas below
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "open %s", path)
	}
	return s, nil
}

func (s *Store) init() error {
	if err := s.db.Ping(); err != nil {
		return errors.Wrap(err, "connect")
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)); err != nil {
			return errors.Wrapf(err, "pragma %s", p.name)
		}
	}
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return errors.Wrap(err, "create tables")
	}
	return s.migrate()
}

func (s *Store) migrate() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return errors.Wrap(err, "read user_version")
	}
	if version >= len(migrations) {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin migration")
	}
	defer tx.Rollback()

	for v := version; v < len(migrations); v++ {
		if _, err := tx.Exec(migrations[v]); err != nil {
			return errors.Wrapf(err, "migrate to v%d", v+1)
		}
	}
	// PRAGMA does not take bind parameters
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", len(migrations))); err != nil {
		return errors.Wrap(err, "write user_version")
	}
	return errors.Wrap(tx.Commit(), "commit migration")
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Count returns the number of logged compilations.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM compilations").Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count compilations")
	}
	return n, nil
}

func (s *Store) verifyPragma(name, want string) error {
	var got string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&got); err != nil {
		return errors.Wrapf(err, "read pragma %s", name)
	}
	if got != want {
		return errors.Errorf("pragma %s = %q, want %q", name, got, want)
	}
	return nil
}
