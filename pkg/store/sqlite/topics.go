package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwulff/stenod/pkg/domain"
)

// SaveTopic implements [store.Repository]. Topics are append-only: nothing
// in this package offers an update path, matching the immutability invariant
// in spec.md §3.
func (s *Store) SaveTopic(ctx context.Context, topic domain.Topic) error {
	if topic.ID == "" {
		topic.ID = uuid.NewString()
	}
	if topic.CreatedAt.IsZero() {
		topic.CreatedAt = time.Now().UTC()
	}

	const q = `
		INSERT INTO topics
		    (id, session_id, title, summary, segment_range_start, segment_range_end, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		topic.ID, topic.SessionID, topic.Title, topic.Summary,
		topic.SegmentRangeStart, topic.SegmentRangeEnd, topic.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: save topic: %w", err)
	}
	return nil
}

// Topics implements [store.Repository].
func (s *Store) Topics(ctx context.Context, sessionID string) ([]domain.Topic, error) {
	const q = `
		SELECT id, session_id, title, summary, segment_range_start, segment_range_end, created_at
		FROM topics WHERE session_id = ? ORDER BY segment_range_start ASC`
	rows, err := s.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: topics %s: %w", sessionID, err)
	}
	defer rows.Close()

	out := []domain.Topic{}
	for rows.Next() {
		var t domain.Topic
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Title, &t.Summary,
			&t.SegmentRangeStart, &t.SegmentRangeEnd, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan topic: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: scan topics: %w", err)
	}
	return out, nil
}
