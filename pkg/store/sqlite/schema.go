// Package sqlite is a pure-Go, CGO-free reference implementation of
// [store.Repository] backed by [modernc.org/sqlite].
//
// A single on-disk database file holds all four tables (sessions, segments,
// summaries, topics); SPEC_FULL.md §2 explains why this replaces the donor's
// client-server Postgres/pgvector stack for a single-process local daemon.
// Foreign keys from segments/summaries/topics to sessions are declared
// ON DELETE CASCADE, and CHECK constraints enforce the text-length and
// confidence-range invariants from spec.md §3 at the storage layer, not just
// in application code.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const ddlSessions = `
CREATE TABLE IF NOT EXISTS sessions (
    id         TEXT PRIMARY KEY,
    locale     TEXT NOT NULL,
    started_at TIMESTAMP NOT NULL,
    ended_at   TIMESTAMP,
    title      TEXT NOT NULL DEFAULT '',
    status     TEXT NOT NULL CHECK (status IN ('active', 'completed')),
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions (started_at DESC);
`

const ddlSegments = `
CREATE TABLE IF NOT EXISTS segments (
    id              TEXT PRIMARY KEY,
    session_id      TEXT NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
    text            TEXT NOT NULL CHECK (length(trim(text)) BETWEEN 1 AND 10000),
    started_at      TIMESTAMP NOT NULL,
    ended_at        TIMESTAMP NOT NULL,
    confidence      REAL CHECK (confidence IS NULL OR (confidence >= 0.0 AND confidence <= 1.0)),
    sequence_number INTEGER NOT NULL CHECK (sequence_number >= 1),
    source          TEXT NOT NULL CHECK (source IN ('microphone', 'systemAudio')),
    created_at      TIMESTAMP NOT NULL,
    UNIQUE (session_id, sequence_number)
);

CREATE INDEX IF NOT EXISTS idx_segments_session_seq ON segments (session_id, sequence_number);
CREATE INDEX IF NOT EXISTS idx_segments_started_at ON segments (started_at);
`

const ddlSummaries = `
CREATE TABLE IF NOT EXISTS summaries (
    id                  TEXT PRIMARY KEY,
    session_id          TEXT NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
    content             TEXT NOT NULL,
    type                TEXT NOT NULL CHECK (type IN ('rolling', 'final')),
    segment_range_start INTEGER NOT NULL,
    segment_range_end   INTEGER NOT NULL CHECK (segment_range_end >= segment_range_start),
    model_id            TEXT NOT NULL DEFAULT '',
    created_at          TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_summaries_session_created ON summaries (session_id, created_at);
`

const ddlTopics = `
CREATE TABLE IF NOT EXISTS topics (
    id                  TEXT PRIMARY KEY,
    session_id          TEXT NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
    title               TEXT NOT NULL,
    summary             TEXT NOT NULL,
    segment_range_start INTEGER NOT NULL,
    segment_range_end   INTEGER NOT NULL CHECK (segment_range_end >= segment_range_start),
    created_at          TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_topics_session_range ON topics (session_id, segment_range_start);
`

// Migrate creates every table and index if it does not already exist. It is
// idempotent and safe to call on every daemon start; schema changes are
// append-only per spec.md §6 ("Schema migrations append-only; never
// destructive").
func Migrate(ctx context.Context, db *sql.DB) error {
	// Foreign keys are off by default per SQLite connection; turn them on so
	// the ON DELETE CASCADE declarations above actually cascade.
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON;`); err != nil {
		return fmt.Errorf("sqlite: enable foreign keys: %w", err)
	}

	for _, stmt := range []string{ddlSessions, ddlSegments, ddlSummaries, ddlTopics} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w", err)
		}
	}
	return nil
}
