package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jwulff/stenod/pkg/store"
)

// Store is the sqlite-backed [store.Repository] implementation. A single
// *sql.DB is shared by every table; SQLite serializes writers internally, so
// the pool is capped at one open connection to keep the foreign-key PRAGMA
// (set once at open) in effect for every subsequent statement and to avoid
// "database is locked" errors under concurrent writers.
type Store struct {
	db *sql.DB
}

// Config configures [New].
type Config struct {
	// Path is the filesystem path to the SQLite database file. Use ":memory:"
	// for an ephemeral in-process database (tests only — state does not
	// survive process restart).
	Path string
}

// New opens (creating if necessary) the SQLite database at cfg.Path and runs
// [Migrate] against it.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", cfg.Path, err)
	}
	// A single connection keeps PRAGMA foreign_keys and SQLite's own writer
	// serialization from fighting a pool of independent connections.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping %q: %w", cfg.Path, err)
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migrate %q: %w", cfg.Path, err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ store.Repository = (*Store)(nil)
