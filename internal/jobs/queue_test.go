package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okExec(_ context.Context, _ *Job) (string, error) { return "done", nil }

func TestQueue_Enqueue_DeduplicatesSameChapter(t *testing.T) {
	t.Parallel()

	q := NewQueue(2, nil)

	jobA, createdA := q.Enqueue(EnqueueRequest{
		Kind:    KindTranslateChapter,
		Source:  "api",
		Payload: JobPayload{ChapterID: 7},
	})
	jobB, createdB := q.Enqueue(EnqueueRequest{
		Kind:    KindTranslateChapter,
		Source:  "cli",
		Payload: JobPayload{ChapterID: 7, Override: true},
	})
	jobC, createdC := q.Enqueue(EnqueueRequest{
		Kind:    KindReviewChapter,
		Source:  "api",
		Payload: JobPayload{ChapterID: 7},
	})

	require.True(t, createdA)
	require.False(t, createdB)
	require.True(t, createdC)
	assert.Equal(t, jobA.ID, jobB.ID)
	assert.NotEqual(t, jobA.ID, jobC.ID)
	assert.Equal(t, "translate-chapter|chapter-7", jobA.DedupeKey)
	assert.Equal(t, KindTranslateChapter, jobA.Kind)
}

func TestDedupeKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "generate-glossary|corpus-3", DedupeKey(KindGenerateGlossary, JobPayload{CorpusID: 3, ChapterID: 9}))
	assert.Equal(t, "review-chapter|chapter-9", DedupeKey(KindReviewChapter, JobPayload{CorpusID: 3, ChapterID: 9}))
}

func TestKind_Valid(t *testing.T) {
	t.Parallel()

	assert.True(t, KindGenerateGlossary.Valid())
	assert.False(t, Kind("delete-everything").Valid())
}

func TestQueue_Enqueue_AllowsRetryAfterFailure(t *testing.T) {
	t.Parallel()

	q := NewQueue(1, nil)

	var attempts int32
	q.Start(func(_ context.Context, _ *Job) (string, error) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			return "", assert.AnError
		}
		return "ok", nil
	})
	defer q.Stop()

	first, created := q.Enqueue(EnqueueRequest{Kind: KindReviewChapter, Payload: JobPayload{ChapterID: 1}})
	require.True(t, created)

	require.Eventually(t, func() bool {
		got, ok := q.Get(first.ID)
		return ok && got.Status == StatusFailed
	}, time.Second, 10*time.Millisecond)

	got, _ := q.Get(first.ID)
	assert.Equal(t, assert.AnError.Error(), got.Error)

	second, created := q.Enqueue(EnqueueRequest{Kind: KindReviewChapter, Payload: JobPayload{ChapterID: 1}})
	require.True(t, created)
	assert.NotEqual(t, first.ID, second.ID)

	require.Eventually(t, func() bool {
		got, ok := q.Get(second.ID)
		return ok && got.Status == StatusSuccess && got.Result == "ok"
	}, time.Second, 10*time.Millisecond)
}

func TestQueue_Enqueue_AllowsRetryAfterSuccess(t *testing.T) {
	t.Parallel()

	q := NewQueue(1, nil)
	q.Start(okExec)
	defer q.Stop()

	first, created := q.Enqueue(EnqueueRequest{Kind: KindGenerateGlossary, Payload: JobPayload{CorpusID: 1}})
	require.True(t, created)

	require.Eventually(t, func() bool {
		got, ok := q.Get(first.ID)
		return ok && got.Status == StatusSuccess
	}, time.Second, 10*time.Millisecond)

	second, created := q.Enqueue(EnqueueRequest{Kind: KindGenerateGlossary, Payload: JobPayload{CorpusID: 1}})
	require.True(t, created)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestQueue_ListNewestFirst(t *testing.T) {
	t.Parallel()

	q := NewQueue(1, nil)
	for i := int64(1); i <= 3; i++ {
		q.Enqueue(EnqueueRequest{Kind: KindTranslateChapter, Payload: JobPayload{ChapterID: i}})
	}

	list := q.List()
	require.Len(t, list, 3)
	assert.Equal(t, "job-3", list[0].ID)
	assert.Equal(t, "job-1", list[2].ID)
}

func TestQueue_StopCancelsRunningJob(t *testing.T) {
	t.Parallel()

	q := NewQueue(1, nil)
	started := make(chan struct{})
	q.Start(func(ctx context.Context, _ *Job) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	})

	q.Enqueue(EnqueueRequest{Kind: KindTranslateChapter, Payload: JobPayload{ChapterID: 1}})
	<-started

	done := make(chan struct{})
	go func() {
		q.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}
