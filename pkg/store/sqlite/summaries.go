package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwulff/stenod/pkg/domain"
)

// SaveSummary implements [store.Repository].
func (s *Store) SaveSummary(ctx context.Context, summary domain.Summary) error {
	if summary.ID == "" {
		summary.ID = uuid.NewString()
	}
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now().UTC()
	}

	const q = `
		INSERT INTO summaries
		    (id, session_id, content, type, segment_range_start, segment_range_end, model_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		summary.ID, summary.SessionID, summary.Content, summary.Type,
		summary.SegmentRangeStart, summary.SegmentRangeEnd, summary.ModelID, summary.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: save summary: %w", err)
	}
	return nil
}

// Summaries implements [store.Repository].
func (s *Store) Summaries(ctx context.Context, sessionID string) ([]domain.Summary, error) {
	const q = `
		SELECT id, session_id, content, type, segment_range_start, segment_range_end, model_id, created_at
		FROM summaries WHERE session_id = ? ORDER BY created_at ASC`
	rows, err := s.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: summaries %s: %w", sessionID, err)
	}
	defer rows.Close()
	return scanSummaries(rows)
}

// LatestSummary implements [store.Repository].
func (s *Store) LatestSummary(ctx context.Context, sessionID string) (*domain.Summary, error) {
	const q = `
		SELECT id, session_id, content, type, segment_range_start, segment_range_end, model_id, created_at
		FROM summaries WHERE session_id = ? ORDER BY created_at DESC LIMIT 1`
	row := s.db.QueryRowContext(ctx, q, sessionID)
	summary, err := scanSummary(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: latest summary %s: %w", sessionID, err)
	}
	return summary, nil
}

func scanSummary(row rowScanner) (*domain.Summary, error) {
	var sum domain.Summary
	if err := row.Scan(&sum.ID, &sum.SessionID, &sum.Content, &sum.Type,
		&sum.SegmentRangeStart, &sum.SegmentRangeEnd, &sum.ModelID, &sum.CreatedAt); err != nil {
		return nil, err
	}
	return &sum, nil
}

func scanSummaries(rows *sql.Rows) ([]domain.Summary, error) {
	out := []domain.Summary{}
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan summary: %w", err)
		}
		out = append(out, *sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: scan summaries: %w", err)
	}
	return out, nil
}
