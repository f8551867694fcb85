// Package coordinator implements the rolling summary / topic coordinator
// (C5): a debounced, per-session background worker that folds newly saved
// segments into a rolling summary and meeting notes, and extracts topics
// from the portion of the transcript no topic yet covers.
//
// It is grounded on the donor's session.Consolidator (periodic,
// per-session background work bounded by an interval, with a done/stopOnce
// shutdown) and session.Summariser (a narrow interface wrapping an injected
// LLM-backed collaborator), generalized from the donor's single "flush new
// messages" trigger to spec.md §4.4's count/time debounce policy and from
// one summarization call to three (summary, meeting notes, topics).
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jwulff/stenod/pkg/domain"
	"github.com/jwulff/stenod/pkg/store"
	"github.com/jwulff/stenod/pkg/summarizer"
)

const (
	defaultTriggerCount             = 10
	defaultTimeThreshold             = 30 * time.Second
	defaultMinSegmentsForTimeTrigger = 3
	defaultLLMTimeout                = 60 * time.Second

	placeholderSummary = "[summary unavailable: generation timed out or failed]"
)

// Config configures a [Coordinator]. Zero values fall back to spec.md
// §4.4's defaults.
type Config struct {
	Store      store.Repository
	Summarizer summarizer.Summarizer

	// TriggerCount fires a run once this many uncovered segments exist,
	// regardless of elapsed time. Default 10.
	TriggerCount int

	// TimeThreshold fires a run once at least MinSegmentsForTimeTrigger
	// segments are uncovered and this long has elapsed since the last run
	// (or none has run yet). Default 30s.
	TimeThreshold time.Duration

	// MinSegmentsForTimeTrigger is the minimum uncovered segment count for
	// TimeThreshold to apply. Default 3.
	MinSegmentsForTimeTrigger int

	// LLMTimeout bounds each individual summarize/meeting-notes/topic call.
	// Default 60s.
	LLMTimeout time.Duration
}

// Coordinator implements the C5 trigger policy and run body. A single
// instance serves every session; per-session state is guarded by a
// lazily-created actor lock so concurrent onSegmentSaved calls for the same
// session never overlap, while different sessions run independently.
type Coordinator struct {
	store      store.Repository
	summarizer summarizer.Summarizer

	// Trigger-policy thresholds are held as atomics, not plain fields, so
	// [Coordinator.SetThresholds] can apply a hot-reloaded config
	// (spec.md §8 scenario — coordinator thresholds and log level reload
	// without restarting an active recording session) without a lock
	// around every OnSegmentSaved call.
	triggerCount  atomic.Int64
	timeThreshold atomic.Int64
	minSegments   atomic.Int64
	llmTimeout    atomic.Int64

	mu       sync.Mutex
	sessions map[string]*sessionState
}

// sessionState is the per-session actor: its own lock plus the debounce
// timestamp spec.md §4.4 calls lastSummaryAt.
type sessionState struct {
	mu            sync.Mutex
	lastSummaryAt time.Time
	hasRun        bool
}

// New constructs a [Coordinator] from cfg.
func New(cfg Config) *Coordinator {
	c := &Coordinator{
		store:      cfg.Store,
		summarizer: cfg.Summarizer,
		sessions:   make(map[string]*sessionState),
	}
	c.SetThresholds(cfg.TriggerCount, cfg.TimeThreshold, cfg.MinSegmentsForTimeTrigger, cfg.LLMTimeout)
	return c
}

// SetThresholds applies the trigger policy's tunables, falling back to
// spec.md §4.4's defaults for any zero-or-negative value. Safe to call
// concurrently with [Coordinator.OnSegmentSaved]; a config-watcher reload
// picks these up for the next evaluation without interrupting one in
// progress.
func (c *Coordinator) SetThresholds(triggerCount int, timeThreshold time.Duration, minSegments int, llmTimeout time.Duration) {
	if triggerCount <= 0 {
		triggerCount = defaultTriggerCount
	}
	if timeThreshold <= 0 {
		timeThreshold = defaultTimeThreshold
	}
	if minSegments <= 0 {
		minSegments = defaultMinSegmentsForTimeTrigger
	}
	if llmTimeout <= 0 {
		llmTimeout = defaultLLMTimeout
	}
	c.triggerCount.Store(int64(triggerCount))
	c.timeThreshold.Store(int64(timeThreshold))
	c.minSegments.Store(int64(minSegments))
	c.llmTimeout.Store(int64(llmTimeout))
}

// OnSegmentSaved implements [engine.Coordinator]. It evaluates the trigger
// policy for sessionID and, if due, runs one full summarize/notes/topics
// pass. A nil, nil return means the call was a no-op (policy not met); a
// non-nil error is recorded for observability but must never be treated as
// fatal by the caller (spec.md §4.4's non-fatal invariant).
func (c *Coordinator) OnSegmentSaved(ctx context.Context, sessionID string) (*domain.SummaryResult, error) {
	state := c.stateFor(sessionID)
	state.mu.Lock()
	defer state.mu.Unlock()

	count, err := c.store.SegmentCount(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("coordinator: segment count: %w", err)
	}
	latest, err := c.store.LatestSummary(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("coordinator: latest summary: %w", err)
	}
	lastCovered := 0
	if latest != nil {
		lastCovered = latest.SegmentRangeEnd
	}
	newCount := count - lastCovered

	fire := int64(newCount) >= c.triggerCount.Load() ||
		(int64(newCount) >= c.minSegments.Load() && (!state.hasRun || time.Since(state.lastSummaryAt) >= time.Duration(c.timeThreshold.Load())))
	if !fire {
		return nil, nil
	}

	result, err := c.run(ctx, sessionID, lastCovered, latest)
	state.lastSummaryAt = time.Now()
	state.hasRun = true
	if err != nil {
		slog.Warn("coordinator run failed", "session_id", sessionID, "err", err)
		return nil, err
	}
	return result, nil
}

func (c *Coordinator) stateFor(sessionID string) *sessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[sessionID]
	if !ok {
		s = &sessionState{}
		c.sessions[sessionID] = s
	}
	return s
}

// run performs one summarize/meeting-notes/topic-extraction pass per
// spec.md §4.4's "Body". Individual sub-steps degrade to a placeholder or
// an empty result on timeout/error rather than aborting the whole run.
func (c *Coordinator) run(ctx context.Context, sessionID string, lastCovered int, latest *domain.Summary) (*domain.SummaryResult, error) {
	segments, err := c.store.SegmentsBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load segments: %w", err)
	}
	if len(segments) == 0 {
		return nil, nil
	}

	previousSummary := ""
	if latest != nil {
		previousSummary = latest.Content
	}

	brief := c.summarizeBounded(ctx, previousSummary, toSegments(segments))
	notes := c.meetingNotesBounded(ctx, toSegments(segments))

	existingTopics, err := c.store.Topics(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load topics: %w", err)
	}
	highestCovered := 0
	for _, t := range existingTopics {
		if t.SegmentRangeEnd > highestCovered {
			highestCovered = t.SegmentRangeEnd
		}
	}

	var uncovered []domain.StoredSegment
	for _, s := range segments {
		if s.SequenceNumber > highestCovered {
			uncovered = append(uncovered, s)
		}
	}

	var newTopics []domain.Topic
	if len(uncovered) > 0 {
		newTopics = c.extractTopicsBounded(ctx, toSegments(uncovered))
		for _, t := range newTopics {
			t.SessionID = sessionID
			if err := c.store.SaveTopic(ctx, t); err != nil {
				slog.Warn("coordinator: save topic failed", "session_id", sessionID, "title", t.Title, "err", err)
			}
		}
	}

	toSegment := segments[len(segments)-1].SequenceNumber
	summary := domain.Summary{
		SessionID:         sessionID,
		Content:           brief,
		Type:              domain.SummaryRolling,
		SegmentRangeStart: lastCovered + 1,
		SegmentRangeEnd:   toSegment,
	}
	if err := c.store.SaveSummary(ctx, summary); err != nil {
		return nil, fmt.Errorf("save summary: %w", err)
	}

	return &domain.SummaryResult{
		BriefSummary: brief,
		MeetingNotes: notes,
		Topics:       append(append([]domain.Topic(nil), existingTopics...), newTopics...),
	}, nil
}

func (c *Coordinator) summarizeBounded(ctx context.Context, previous string, segments []summarizer.Segment) string {
	cctx, cancel := context.WithTimeout(ctx, time.Duration(c.llmTimeout.Load()))
	defer cancel()
	brief, err := c.summarizer.Summarize(cctx, previous, segments)
	if err != nil {
		return placeholderSummary
	}
	return brief
}

func (c *Coordinator) meetingNotesBounded(ctx context.Context, segments []summarizer.Segment) string {
	cctx, cancel := context.WithTimeout(ctx, time.Duration(c.llmTimeout.Load()))
	defer cancel()
	notes, err := c.summarizer.GenerateMeetingNotes(cctx, segments)
	if err != nil {
		return placeholderSummary
	}
	return notes
}

func (c *Coordinator) extractTopicsBounded(ctx context.Context, segments []summarizer.Segment) []domain.Topic {
	cctx, cancel := context.WithTimeout(ctx, time.Duration(c.llmTimeout.Load()))
	defer cancel()
	topics, err := c.summarizer.ExtractTopics(cctx, segments)
	if err != nil {
		return nil
	}
	return topics
}

func toSegments(stored []domain.StoredSegment) []summarizer.Segment {
	out := make([]summarizer.Segment, len(stored))
	for i, s := range stored {
		out[i] = summarizer.Segment{Text: s.Text, SequenceNumber: s.SequenceNumber}
	}
	return out
}
