// Package store defines the Repository contract (C1): durable, transactional
// storage for sessions, segments, summaries, and topics.
//
// Repository is the only shared durable resource in the system — the engine
// (C6) and the summary coordinator (C5) never share mutable in-memory state;
// they communicate only through repository reads/writes plus the directed
// engine→broadcaster event channel (spec.md §5).
//
// Implementations must serialize writes per session and let readers proceed
// against a consistent snapshot. The reference implementation is
// [pkg/store/sqlite]; [pkg/store/mock] is a hand-written, call-recording
// double for tests.
package store

import (
	"context"
	"time"

	"github.com/jwulff/stenod/pkg/domain"
)

// Repository is the durable storage boundary shared by the recording engine
// and the summary coordinator. Every method is safe for concurrent use.
//
// Errors are reported via the sentinel kinds in [domain]: a method that can
// fail with a constraint violation wraps [domain.ErrConstraintViolation]; one
// that can fail because an id does not exist (where that is not defined as a
// silent no-op) wraps [domain.ErrNotFound].
type Repository interface {
	// CreateSession allocates a new [domain.Session] with a fresh id,
	// StartedAt set to now, and Status set to [domain.SessionActive].
	// Implementations are not required to enforce the "at most one active
	// session" invariant themselves — spec.md §3 places that responsibility
	// on the engine (C6), the interface's sole writer of sessions.
	CreateSession(ctx context.Context, locale string) (domain.Session, error)

	// EndSession sets EndedAt to now and Status to [domain.SessionCompleted].
	// It is idempotent: ending an already-completed session is a no-op, and
	// ending an unknown id is a no-op (neither case is an error).
	EndSession(ctx context.Context, id string) error

	// Session returns the session with the given id, or (nil, nil) if no
	// such session exists.
	Session(ctx context.Context, id string) (*domain.Session, error)

	// AllSessions returns every session ordered by StartedAt descending
	// (most recent first). Returns an empty, non-nil slice when there are
	// none.
	AllSessions(ctx context.Context) ([]domain.Session, error)

	// DeleteSession removes the session and cascade-deletes its segments,
	// summaries, and topics. Deleting an unknown id is a no-op.
	DeleteSession(ctx context.Context, id string) error

	// SaveSegment appends a new, immutable [domain.StoredSegment]. It fails
	// wrapping [domain.ErrConstraintViolation] when (SessionID,
	// SequenceNumber) already exists or Text is empty after trimming.
	SaveSegment(ctx context.Context, segment domain.StoredSegment) error

	// SegmentsBySession returns every segment of sessionID ordered by
	// SequenceNumber ascending. Returns an empty, non-nil slice when the
	// session has none.
	SegmentsBySession(ctx context.Context, sessionID string) ([]domain.StoredSegment, error)

	// SegmentsByRange returns every segment across all sessions whose
	// StartedAt falls in [from, to), ordered by StartedAt ascending.
	SegmentsByRange(ctx context.Context, from, to time.Time) ([]domain.StoredSegment, error)

	// SegmentCount returns the number of segments stored for sessionID.
	SegmentCount(ctx context.Context, sessionID string) (int, error)

	// SaveSummary appends a new [domain.Summary].
	SaveSummary(ctx context.Context, summary domain.Summary) error

	// Summaries returns every summary of sessionID ordered by CreatedAt
	// ascending. Returns an empty, non-nil slice when there are none.
	Summaries(ctx context.Context, sessionID string) ([]domain.Summary, error)

	// LatestSummary returns the most recently created summary for
	// sessionID, or (nil, nil) when none exists.
	LatestSummary(ctx context.Context, sessionID string) (*domain.Summary, error)

	// SaveTopic appends a new, immutable [domain.Topic]. Once saved a
	// topic's attributes must never be mutated or replaced by the caller.
	SaveTopic(ctx context.Context, topic domain.Topic) error

	// Topics returns every topic of sessionID ordered by SegmentRangeStart
	// ascending. Returns an empty, non-nil slice when there are none.
	Topics(ctx context.Context, sessionID string) ([]domain.Topic, error)
}
