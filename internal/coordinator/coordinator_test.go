package coordinator_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jwulff/stenod/internal/coordinator"
	"github.com/jwulff/stenod/pkg/domain"
	storemock "github.com/jwulff/stenod/pkg/store/mock"
	summarizermock "github.com/jwulff/stenod/pkg/summarizer/mock"
)

func saveSegments(t *testing.T, repo *storemock.Repository, sessionID string, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		err := repo.SaveSegment(context.Background(), domain.StoredSegment{
			SessionID: sessionID, Text: "hello", SequenceNumber: i,
			StartedAt: time.Now(), EndedAt: time.Now(), Source: domain.SourceMicrophone,
		})
		require.NoError(t, err)
	}
}

func TestCountTriggerFiresAndPersistsSummary(t *testing.T) {
	t.Parallel()
	repo := storemock.New()
	sess, err := repo.CreateSession(context.Background(), "en-US")
	require.NoError(t, err)
	saveSegments(t, repo, sess.ID, 10)

	summ := &summarizermock.Summarizer{SummarizeResult: "brief", MeetingNotesResult: "notes"}
	c := coordinator.New(coordinator.Config{Store: repo, Summarizer: summ})

	result, err := c.OnSegmentSaved(context.Background(), sess.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Equal(t, "brief", result.BriefSummary)

	summaries, err := repo.Summaries(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Equal(t, 1, summaries[0].SegmentRangeStart)
	require.Equal(t, 10, summaries[0].SegmentRangeEnd)
}

func TestBelowThresholdIsNoOp(t *testing.T) {
	t.Parallel()
	repo := storemock.New()
	sess, err := repo.CreateSession(context.Background(), "en-US")
	require.NoError(t, err)
	saveSegments(t, repo, sess.ID, 2)

	summ := &summarizermock.Summarizer{}
	c := coordinator.New(coordinator.Config{Store: repo, Summarizer: summ})

	result, err := c.OnSegmentSaved(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Nil(t, result)
	require.Empty(t, summ.Calls)
}

func TestTimeTriggerFiresOnFirstRunWithMinSegments(t *testing.T) {
	t.Parallel()
	repo := storemock.New()
	sess, err := repo.CreateSession(context.Background(), "en-US")
	require.NoError(t, err)
	saveSegments(t, repo, sess.ID, 3)

	summ := &summarizermock.Summarizer{SummarizeResult: "brief"}
	c := coordinator.New(coordinator.Config{
		Store: repo, Summarizer: summ,
		TriggerCount: 10, MinSegmentsForTimeTrigger: 3, TimeThreshold: 0,
	})

	result, err := c.OnSegmentSaved(context.Background(), sess.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
}

func TestNoReExtractionOfCoveredSegments(t *testing.T) {
	t.Parallel()
	repo := storemock.New()
	sess, err := repo.CreateSession(context.Background(), "en-US")
	require.NoError(t, err)
	saveSegments(t, repo, sess.ID, 12)
	require.NoError(t, repo.SaveTopic(context.Background(), domain.Topic{
		SessionID: sess.ID, Title: "A", Summary: "s", SegmentRangeStart: 1, SegmentRangeEnd: 5,
	}))

	summ := &summarizermock.Summarizer{
		SummarizeResult: "brief",
		TopicsResult:    []domain.Topic{{Title: "B", Summary: "s", SegmentRangeStart: 6, SegmentRangeEnd: 12}},
	}
	c := coordinator.New(coordinator.Config{Store: repo, Summarizer: summ, TriggerCount: 7})

	result, err := c.OnSegmentSaved(context.Background(), sess.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Len(t, result.Topics, 2)

	topics, err := repo.Topics(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Len(t, topics, 2)
	require.Equal(t, "A", topics[0].Title)
	require.Equal(t, "B", topics[1].Title)
}

func TestIdempotentConcurrentTrigger(t *testing.T) {
	t.Parallel()
	repo := storemock.New()
	sess, err := repo.CreateSession(context.Background(), "en-US")
	require.NoError(t, err)
	saveSegments(t, repo, sess.ID, 10)

	summ := &summarizermock.Summarizer{SummarizeResult: "brief"}
	c := coordinator.New(coordinator.Config{Store: repo, Summarizer: summ})

	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := c.OnSegmentSaved(context.Background(), sess.ID)
			done <- err
		}()
	}
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	summaries, err := repo.Summaries(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
}

func TestSetThresholdsAppliesNewTriggerCount(t *testing.T) {
	t.Parallel()
	repo := storemock.New()
	sess, err := repo.CreateSession(context.Background(), "en-US")
	require.NoError(t, err)
	saveSegments(t, repo, sess.ID, 3)

	summ := &summarizermock.Summarizer{SummarizeResult: "brief", MeetingNotesResult: "notes"}
	c := coordinator.New(coordinator.Config{Store: repo, Summarizer: summ, TriggerCount: 10, MinSegmentsForTimeTrigger: 100})

	result, err := c.OnSegmentSaved(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Nil(t, result, "3 segments should not fire a count of 10")

	c.SetThresholds(2, 0, 0, 0)

	result, err = c.OnSegmentSaved(context.Background(), sess.ID)
	require.NoError(t, err)
	require.NotNil(t, result, "3 segments should fire after lowering the trigger count to 2")
}

func TestSetThresholdsFallsBackToDefaultsForNonPositiveValues(t *testing.T) {
	t.Parallel()
	repo := storemock.New()
	summ := &summarizermock.Summarizer{}
	c := coordinator.New(coordinator.Config{Store: repo, Summarizer: summ, TriggerCount: 7})

	c.SetThresholds(0, -1, 100, 0)

	sess, err := repo.CreateSession(context.Background(), "en-US")
	require.NoError(t, err)
	saveSegments(t, repo, sess.ID, 5)

	result, err := c.OnSegmentSaved(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Nil(t, result, "5 segments should not fire the default trigger count of 10")
}

func TestSummarizeTimeoutYieldsPlaceholderAndContinues(t *testing.T) {
	t.Parallel()
	repo := storemock.New()
	sess, err := repo.CreateSession(context.Background(), "en-US")
	require.NoError(t, err)
	saveSegments(t, repo, sess.ID, 10)

	summ := &summarizermock.Summarizer{SummarizeErr: context.DeadlineExceeded, MeetingNotesResult: "notes"}
	c := coordinator.New(coordinator.Config{Store: repo, Summarizer: summ, LLMTimeout: time.Millisecond})

	result, err := c.OnSegmentSaved(context.Background(), sess.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Contains(t, result.BriefSummary, "unavailable")

	summaries, err := repo.Summaries(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
}
