// Package mock provides an in-memory, call-recording test double for
// [store.Repository].
//
// Repository is safe for concurrent use and enforces two of the constraints
// the reference SQLite implementation enforces (unique (sessionID,
// sequenceNumber), non-empty text), so coordinator and engine tests exercise
// real failure paths without a database.
package mock

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwulff/stenod/pkg/domain"
	"github.com/jwulff/stenod/pkg/store"
)

// Repository is an in-memory implementation of [store.Repository].
type Repository struct {
	mu sync.Mutex

	sessions map[string]domain.Session
	segments map[string][]domain.StoredSegment // sessionID -> segments, seqNo order
	summaries map[string][]domain.Summary       // sessionID -> summaries, CreatedAt order
	topics    map[string][]domain.Topic         // sessionID -> topics, insertion order

	// CreateSessionErr, if non-nil, is returned by every CreateSession call.
	CreateSessionErr error
	// SaveSegmentErr, if non-nil, is returned by every SaveSegment call
	// instead of the usual constraint checks.
	SaveSegmentErr error

	// Calls records the name of every method invoked, in order.
	Calls []string
}

// New creates an empty [Repository].
func New() *Repository {
	return &Repository{
		sessions:  make(map[string]domain.Session),
		segments:  make(map[string][]domain.StoredSegment),
		summaries: make(map[string][]domain.Summary),
		topics:    make(map[string][]domain.Topic),
	}
}

func (r *Repository) record(name string) {
	r.Calls = append(r.Calls, name)
}

// CreateSession implements [store.Repository].
func (r *Repository) CreateSession(ctx context.Context, locale string) (domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("CreateSession")

	if r.CreateSessionErr != nil {
		return domain.Session{}, r.CreateSessionErr
	}

	now := time.Now().UTC()
	s := domain.Session{
		ID:        uuid.NewString(),
		Locale:    locale,
		StartedAt: now,
		Status:    domain.SessionActive,
		CreatedAt: now,
	}
	r.sessions[s.ID] = s
	return s, nil
}

// EndSession implements [store.Repository].
func (r *Repository) EndSession(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("EndSession")

	s, ok := r.sessions[id]
	if !ok || s.Status == domain.SessionCompleted {
		return nil
	}
	now := time.Now().UTC()
	s.EndedAt = &now
	s.Status = domain.SessionCompleted
	r.sessions[id] = s
	return nil
}

// Session implements [store.Repository].
func (r *Repository) Session(ctx context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("Session")

	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// AllSessions implements [store.Repository].
func (r *Repository) AllSessions(ctx context.Context) ([]domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("AllSessions")

	out := make([]domain.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

// DeleteSession implements [store.Repository].
func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("DeleteSession")

	delete(r.sessions, id)
	delete(r.segments, id)
	delete(r.summaries, id)
	delete(r.topics, id)
	return nil
}

// SaveSegment implements [store.Repository].
func (r *Repository) SaveSegment(ctx context.Context, segment domain.StoredSegment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("SaveSegment")

	if r.SaveSegmentErr != nil {
		return r.SaveSegmentErr
	}
	if strings.TrimSpace(segment.Text) == "" {
		return fmt.Errorf("mock store: save segment: %w: empty text", domain.ErrConstraintViolation)
	}
	for _, existing := range r.segments[segment.SessionID] {
		if existing.SequenceNumber == segment.SequenceNumber {
			return fmt.Errorf("mock store: save segment: %w: duplicate sequence number %d for session %s",
				domain.ErrConstraintViolation, segment.SequenceNumber, segment.SessionID)
		}
	}
	if segment.ID == "" {
		segment.ID = uuid.NewString()
	}
	if segment.CreatedAt.IsZero() {
		segment.CreatedAt = time.Now().UTC()
	}
	r.segments[segment.SessionID] = append(r.segments[segment.SessionID], segment)
	return nil
}

// SegmentsBySession implements [store.Repository].
func (r *Repository) SegmentsBySession(ctx context.Context, sessionID string) ([]domain.StoredSegment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("SegmentsBySession")

	segs := append([]domain.StoredSegment(nil), r.segments[sessionID]...)
	sort.Slice(segs, func(i, j int) bool { return segs[i].SequenceNumber < segs[j].SequenceNumber })
	return segs, nil
}

// SegmentsByRange implements [store.Repository].
func (r *Repository) SegmentsByRange(ctx context.Context, from, to time.Time) ([]domain.StoredSegment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("SegmentsByRange")

	var out []domain.StoredSegment
	for _, segs := range r.segments {
		for _, s := range segs {
			if !s.StartedAt.Before(from) && s.StartedAt.Before(to) {
				out = append(out, s)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

// SegmentCount implements [store.Repository].
func (r *Repository) SegmentCount(ctx context.Context, sessionID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("SegmentCount")

	return len(r.segments[sessionID]), nil
}

// SaveSummary implements [store.Repository].
func (r *Repository) SaveSummary(ctx context.Context, summary domain.Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("SaveSummary")

	if summary.ID == "" {
		summary.ID = uuid.NewString()
	}
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now().UTC()
	}
	r.summaries[summary.SessionID] = append(r.summaries[summary.SessionID], summary)
	return nil
}

// Summaries implements [store.Repository].
func (r *Repository) Summaries(ctx context.Context, sessionID string) ([]domain.Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("Summaries")

	out := append([]domain.Summary(nil), r.summaries[sessionID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// LatestSummary implements [store.Repository].
func (r *Repository) LatestSummary(ctx context.Context, sessionID string) (*domain.Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("LatestSummary")

	summaries := r.summaries[sessionID]
	if len(summaries) == 0 {
		return nil, nil
	}
	latest := summaries[0]
	for _, s := range summaries[1:] {
		if s.CreatedAt.After(latest.CreatedAt) {
			latest = s
		}
	}
	return &latest, nil
}

// SaveTopic implements [store.Repository].
func (r *Repository) SaveTopic(ctx context.Context, topic domain.Topic) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("SaveTopic")

	if topic.ID == "" {
		topic.ID = uuid.NewString()
	}
	if topic.CreatedAt.IsZero() {
		topic.CreatedAt = time.Now().UTC()
	}
	r.topics[topic.SessionID] = append(r.topics[topic.SessionID], topic)
	return nil
}

// Topics implements [store.Repository].
func (r *Repository) Topics(ctx context.Context, sessionID string) ([]domain.Topic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("Topics")

	out := append([]domain.Topic(nil), r.topics[sessionID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].SegmentRangeStart < out[j].SegmentRangeStart })
	return out, nil
}

var _ store.Repository = (*Repository)(nil)
