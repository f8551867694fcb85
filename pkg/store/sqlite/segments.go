package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwulff/stenod/pkg/domain"
)

// SaveSegment implements [store.Repository]. It fails wrapping
// [domain.ErrConstraintViolation] when (sessionID, sequenceNumber) already
// exists or text is empty after trimming — the latter is also enforced by
// the CHECK constraint in [Migrate], so the trim check here exists mainly to
// return a typed error rather than a raw driver error.
func (s *Store) SaveSegment(ctx context.Context, segment domain.StoredSegment) error {
	if strings.TrimSpace(segment.Text) == "" {
		return fmt.Errorf("sqlite: save segment: %w: empty text", domain.ErrConstraintViolation)
	}
	if segment.ID == "" {
		segment.ID = uuid.NewString()
	}
	if segment.CreatedAt.IsZero() {
		segment.CreatedAt = time.Now().UTC()
	}

	const q = `
		INSERT INTO segments
		    (id, session_id, text, started_at, ended_at, confidence, sequence_number, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		segment.ID, segment.SessionID, segment.Text, segment.StartedAt, segment.EndedAt,
		segment.Confidence, segment.SequenceNumber, segment.Source, segment.CreatedAt,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("sqlite: save segment: %w: session %s sequence %d: %v",
				domain.ErrConstraintViolation, segment.SessionID, segment.SequenceNumber, err)
		}
		return fmt.Errorf("sqlite: save segment: %w", err)
	}
	return nil
}

// isConstraintViolation reports whether err is a SQLite constraint-violation
// error (UNIQUE or CHECK), distinguishing it from other storage failures so
// callers can wrap it as [domain.ErrConstraintViolation] rather than a bare
// I/O error. modernc.org/sqlite does not export typed constraint-kind errors,
// so this matches on the driver's own error text, the same way the engine's
// cancellation check (pkg/domain.IsCancellation) falls back to a substring
// match where no typed signal is available.
func isConstraintViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "constraint")
}

// SegmentsBySession implements [store.Repository].
func (s *Store) SegmentsBySession(ctx context.Context, sessionID string) ([]domain.StoredSegment, error) {
	const q = `
		SELECT id, session_id, text, started_at, ended_at, confidence, sequence_number, source, created_at
		FROM segments WHERE session_id = ? ORDER BY sequence_number ASC`
	rows, err := s.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: segments by session %s: %w", sessionID, err)
	}
	defer rows.Close()
	return scanSegments(rows)
}

// SegmentsByRange implements [store.Repository].
func (s *Store) SegmentsByRange(ctx context.Context, from, to time.Time) ([]domain.StoredSegment, error) {
	const q = `
		SELECT id, session_id, text, started_at, ended_at, confidence, sequence_number, source, created_at
		FROM segments WHERE started_at >= ? AND started_at < ? ORDER BY started_at ASC`
	rows, err := s.db.QueryContext(ctx, q, from, to)
	if err != nil {
		return nil, fmt.Errorf("sqlite: segments by range: %w", err)
	}
	defer rows.Close()
	return scanSegments(rows)
}

// SegmentCount implements [store.Repository].
func (s *Store) SegmentCount(ctx context.Context, sessionID string) (int, error) {
	const q = `SELECT COUNT(*) FROM segments WHERE session_id = ?`
	var count int
	if err := s.db.QueryRowContext(ctx, q, sessionID).Scan(&count); err != nil {
		return 0, fmt.Errorf("sqlite: segment count %s: %w", sessionID, err)
	}
	return count, nil
}

func scanSegments(rows *sql.Rows) ([]domain.StoredSegment, error) {
	out := []domain.StoredSegment{}
	for rows.Next() {
		var (
			seg        domain.StoredSegment
			confidence sql.NullFloat64
		)
		if err := rows.Scan(&seg.ID, &seg.SessionID, &seg.Text, &seg.StartedAt, &seg.EndedAt,
			&confidence, &seg.SequenceNumber, &seg.Source, &seg.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan segment: %w", err)
		}
		if confidence.Valid {
			v := confidence.Float64
			seg.Confidence = &v
		}
		out = append(out, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: scan segments: %w", err)
	}
	return out, nil
}
