// Package summarizer defines the external summarization collaborator (C2)
// the rolling summary/topic coordinator drives: a rolling-summary updater, a
// meeting-notes generator, and a topic extractor.
//
// It is grounded on the donor's session.Summariser / session.LLMSummariser
// shape (a narrow interface wrapping an injected LLM provider), generalized
// from the donor's single Summarise call to the three calls spec.md §4.5
// names for the coordinator. No concrete LLM-backed implementation lives
// here; that backend is out of scope for this daemon (spec.md §1).
package summarizer

import (
	"context"

	"github.com/jwulff/stenod/pkg/domain"
)

// Segment is the minimal view of a transcript segment the summarizer needs:
// just the ordered text, not the full [domain.StoredSegment] persistence
// shape.
type Segment struct {
	Text           string
	SequenceNumber int
}

// Summarizer produces rolling summaries, meeting notes, and topic breakdowns
// from transcript segments. spec.md §4.5 calls this out as the coordinator's
// external collaborator; implementations must treat ctx cancellation as
// advisory cancellation (see [domain.IsCancellation]) rather than a hard
// failure the coordinator should alarm on.
type Summarizer interface {
	// Summarize folds new segments into the rolling summary, given the
	// previous rolling summary text (empty on the first call for a
	// session). It returns the updated summary text.
	Summarize(ctx context.Context, previous string, segments []Segment) (string, error)

	// GenerateMeetingNotes produces a structured end-of-session summary
	// from the full segment history.
	GenerateMeetingNotes(ctx context.Context, segments []Segment) (string, error)

	// ExtractTopics partitions segments into topic spans. The returned
	// topics' SegmentRangeStart/SegmentRangeEnd must reference sequence
	// numbers present in segments.
	ExtractTopics(ctx context.Context, segments []Segment) ([]domain.Topic, error)
}
