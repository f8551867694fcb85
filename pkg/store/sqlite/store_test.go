package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jwulff/stenod/pkg/domain"
	"github.com/jwulff/stenod/pkg/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(context.Background(), sqlite.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sess, err := s.CreateSession(ctx, "en-US")
	require.NoError(t, err)
	require.Equal(t, domain.SessionActive, sess.Status)
	require.Nil(t, sess.EndedAt)

	got, err := s.Session(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, sess.ID, got.ID)

	require.NoError(t, s.EndSession(ctx, sess.ID))
	got, err = s.Session(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SessionCompleted, got.Status)
	require.NotNil(t, got.EndedAt)

	// Idempotent: ending an already-completed session is a no-op.
	require.NoError(t, s.EndSession(ctx, sess.ID))

	// No-op on unknown id.
	require.NoError(t, s.EndSession(ctx, "does-not-exist"))
}

func TestSessionUnknownIDReturnsNilNotError(t *testing.T) {
	s := newTestStore(t)
	got, err := s.Session(context.Background(), "nonexistent")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestAllSessionsOrderedByStartedAtDesc(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, err := s.CreateSession(ctx, "en-US")
	require.NoError(t, err)
	second, err := s.CreateSession(ctx, "de-DE")
	require.NoError(t, err)

	all, err := s.AllSessions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	// Most recently created (or tied) comes first.
	ids := map[string]bool{first.ID: true, second.ID: true}
	require.True(t, ids[all[0].ID])
	require.False(t, all[0].StartedAt.Before(all[1].StartedAt))
}

func TestSaveSegmentDenseSequencing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sess, err := s.CreateSession(ctx, "en-US")
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		seg := domain.StoredSegment{
			SessionID:      sess.ID,
			Text:           "hello",
			StartedAt:      sess.StartedAt,
			EndedAt:        sess.StartedAt,
			SequenceNumber: i,
			Source:         domain.SourceMicrophone,
		}
		require.NoError(t, s.SaveSegment(ctx, seg))
	}

	segs, err := s.SegmentsBySession(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, segs, 3)
	for i, seg := range segs {
		require.Equal(t, i+1, seg.SequenceNumber)
	}

	count, err := s.SegmentCount(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, 3, count)
}

func TestSaveSegmentDuplicateSequenceNumberFails(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sess, err := s.CreateSession(ctx, "en-US")
	require.NoError(t, err)

	seg := domain.StoredSegment{
		SessionID: sess.ID, Text: "hello", StartedAt: sess.StartedAt, EndedAt: sess.StartedAt,
		SequenceNumber: 1, Source: domain.SourceMicrophone,
	}
	require.NoError(t, s.SaveSegment(ctx, seg))
	err = s.SaveSegment(ctx, seg)
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrConstraintViolation))
}

func TestSaveSegmentEmptyTextFails(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sess, err := s.CreateSession(ctx, "en-US")
	require.NoError(t, err)

	seg := domain.StoredSegment{
		SessionID: sess.ID, Text: "   ", StartedAt: sess.StartedAt, EndedAt: sess.StartedAt,
		SequenceNumber: 1, Source: domain.SourceMicrophone,
	}
	err = s.SaveSegment(ctx, seg)
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrConstraintViolation))
}

func TestDeleteSessionCascades(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sess, err := s.CreateSession(ctx, "en-US")
	require.NoError(t, err)
	require.NoError(t, s.SaveSegment(ctx, domain.StoredSegment{
		SessionID: sess.ID, Text: "hi", StartedAt: sess.StartedAt, EndedAt: sess.StartedAt,
		SequenceNumber: 1, Source: domain.SourceMicrophone,
	}))
	require.NoError(t, s.SaveSummary(ctx, domain.Summary{
		SessionID: sess.ID, Content: "brief", Type: domain.SummaryRolling,
		SegmentRangeStart: 1, SegmentRangeEnd: 1,
	}))
	require.NoError(t, s.SaveTopic(ctx, domain.Topic{
		SessionID: sess.ID, Title: "t", Summary: "s", SegmentRangeStart: 1, SegmentRangeEnd: 1,
	}))

	require.NoError(t, s.DeleteSession(ctx, sess.ID))

	segs, err := s.SegmentsBySession(ctx, sess.ID)
	require.NoError(t, err)
	require.Empty(t, segs)

	summaries, err := s.Summaries(ctx, sess.ID)
	require.NoError(t, err)
	require.Empty(t, summaries)

	topics, err := s.Topics(ctx, sess.ID)
	require.NoError(t, err)
	require.Empty(t, topics)
}

func TestSummaryAndTopicOrdering(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sess, err := s.CreateSession(ctx, "en-US")
	require.NoError(t, err)

	require.NoError(t, s.SaveTopic(ctx, domain.Topic{
		SessionID: sess.ID, Title: "B", Summary: "s", SegmentRangeStart: 6, SegmentRangeEnd: 12,
	}))
	require.NoError(t, s.SaveTopic(ctx, domain.Topic{
		SessionID: sess.ID, Title: "A", Summary: "s", SegmentRangeStart: 1, SegmentRangeEnd: 5,
	}))

	topics, err := s.Topics(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, topics, 2)
	require.Equal(t, "A", topics[0].Title)
	require.Equal(t, "B", topics[1].Title)

	require.NoError(t, s.SaveSummary(ctx, domain.Summary{
		SessionID: sess.ID, Content: "first", Type: domain.SummaryRolling, SegmentRangeStart: 1, SegmentRangeEnd: 5,
	}))
	latest, err := s.LatestSummary(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.Equal(t, "first", latest.Content)
}
