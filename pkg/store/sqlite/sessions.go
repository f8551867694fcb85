package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwulff/stenod/pkg/domain"
)

// CreateSession implements [store.Repository].
func (s *Store) CreateSession(ctx context.Context, locale string) (domain.Session, error) {
	now := time.Now().UTC()
	sess := domain.Session{
		ID:        uuid.NewString(),
		Locale:    locale,
		StartedAt: now,
		Status:    domain.SessionActive,
		CreatedAt: now,
	}

	const q = `
		INSERT INTO sessions (id, locale, started_at, ended_at, title, status, created_at)
		VALUES (?, ?, ?, NULL, '', ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, sess.ID, sess.Locale, sess.StartedAt, sess.Status, sess.CreatedAt); err != nil {
		return domain.Session{}, fmt.Errorf("sqlite: create session: %w", err)
	}
	return sess, nil
}

// EndSession implements [store.Repository]. It is idempotent: an unknown id
// or an already-completed session affects zero rows and returns nil.
func (s *Store) EndSession(ctx context.Context, id string) error {
	const q = `
		UPDATE sessions
		SET ended_at = ?, status = 'completed'
		WHERE id = ? AND status = 'active'`
	if _, err := s.db.ExecContext(ctx, q, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("sqlite: end session %s: %w", id, err)
	}
	return nil
}

// Session implements [store.Repository].
func (s *Store) Session(ctx context.Context, id string) (*domain.Session, error) {
	const q = `
		SELECT id, locale, started_at, ended_at, title, status, created_at
		FROM sessions WHERE id = ?`
	row := s.db.QueryRowContext(ctx, q, id)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: session %s: %w", id, err)
	}
	return sess, nil
}

// AllSessions implements [store.Repository].
func (s *Store) AllSessions(ctx context.Context) ([]domain.Session, error) {
	const q = `
		SELECT id, locale, started_at, ended_at, title, status, created_at
		FROM sessions ORDER BY started_at DESC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sqlite: all sessions: %w", err)
	}
	defer rows.Close()

	out := []domain.Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: all sessions: scan: %w", err)
		}
		out = append(out, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: all sessions: %w", err)
	}
	return out, nil
}

// DeleteSession implements [store.Repository]. Foreign keys declared
// ON DELETE CASCADE in [Migrate] remove the session's segments, summaries,
// and topics in the same statement.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: delete session %s: %w", id, err)
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var (
		sess    domain.Session
		endedAt sql.NullTime
	)
	if err := row.Scan(&sess.ID, &sess.Locale, &sess.StartedAt, &endedAt, &sess.Title, &sess.Status, &sess.CreatedAt); err != nil {
		return nil, err
	}
	if endedAt.Valid {
		t := endedAt.Time
		sess.EndedAt = &t
	}
	return &sess, nil
}
