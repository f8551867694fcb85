// Package mock provides a test double for [summarizer.Summarizer].
package mock

import (
	"sync"

	"github.com/jwulff/stenod/pkg/domain"
	"github.com/jwulff/stenod/pkg/summarizer"

	"context"
)

// Summarizer is a mock [summarizer.Summarizer]. Set the *Result/*Err fields
// to script each call's outcome; Calls records invocation names for
// assertions on call count and ordering.
type Summarizer struct {
	mu sync.Mutex

	SummarizeResult string
	SummarizeErr    error

	MeetingNotesResult string
	MeetingNotesErr     error

	TopicsResult []domain.Topic
	TopicsErr    error

	Calls []string
}

func (m *Summarizer) record(name string) {
	m.Calls = append(m.Calls, name)
}

// Summarize implements [summarizer.Summarizer].
func (m *Summarizer) Summarize(ctx context.Context, previous string, segments []summarizer.Segment) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Summarize")
	if m.SummarizeErr != nil {
		return "", m.SummarizeErr
	}
	return m.SummarizeResult, nil
}

// GenerateMeetingNotes implements [summarizer.Summarizer].
func (m *Summarizer) GenerateMeetingNotes(ctx context.Context, segments []summarizer.Segment) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("GenerateMeetingNotes")
	if m.MeetingNotesErr != nil {
		return "", m.MeetingNotesErr
	}
	return m.MeetingNotesResult, nil
}

// ExtractTopics implements [summarizer.Summarizer].
func (m *Summarizer) ExtractTopics(ctx context.Context, segments []summarizer.Segment) ([]domain.Topic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ExtractTopics")
	if m.TopicsErr != nil {
		return nil, m.TopicsErr
	}
	return m.TopicsResult, nil
}

var _ summarizer.Summarizer = (*Summarizer)(nil)
