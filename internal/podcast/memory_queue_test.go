package podcast

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-medsearch-proxy/internal/apperrors"
	"go-medsearch-proxy/internal/models"
)

func testJob(id string, now time.Time) *models.PodcastJob {
	return &models.PodcastJob{
		ID:        id,
		Status:    models.JobStatusWaiting,
		Request:   models.PodcastRequest{Segments: []models.Segment{{Text: "hello"}}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMemoryQueue_FIFO(t *testing.T) {
	ctx := context.Background()
	mockClock := clock.NewMock()
	q := NewMemoryQueue(time.Hour, mockClock)

	require.NoError(t, q.Enqueue(ctx, testJob("a", mockClock.Now())))
	require.NoError(t, q.Enqueue(ctx, testJob("b", mockClock.Now())))

	first, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", first.ID)

	second, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", second.ID)

	empty, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestMemoryQueue_DuplicateEnqueue(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(time.Hour, clock.NewMock())

	require.NoError(t, q.Enqueue(ctx, testJob("a", time.Time{})))
	assert.Error(t, q.Enqueue(ctx, testJob("a", time.Time{})))
}

func TestMemoryQueue_UpdateGetAndAudio(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(time.Hour, clock.NewMock())

	job := testJob("a", time.Time{})
	require.NoError(t, q.Enqueue(ctx, job))

	job.Status = models.JobStatusCompleted
	require.NoError(t, q.Update(ctx, job))
	require.NoError(t, q.SaveAudio(ctx, "a", []byte("mp3")))

	got, err := q.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)

	audio, err := q.Audio(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3"), audio)

	// Returned jobs are copies
	got.Status = models.JobStatusFailed
	again, _ := q.Get(ctx, "a")
	assert.Equal(t, models.JobStatusCompleted, again.Status)
}

func TestMemoryQueue_NotFound(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(time.Hour, clock.NewMock())

	_, err := q.Get(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = q.Audio(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.ErrorIs(t, q.Update(ctx, testJob("missing", time.Time{})), apperrors.ErrNotFound)
	assert.ErrorIs(t, q.SaveAudio(ctx, "missing", nil), apperrors.ErrNotFound)
}

func TestMemoryQueue_SweepFinishedJobs(t *testing.T) {
	ctx := context.Background()
	mockClock := clock.NewMock()
	q := NewMemoryQueue(time.Hour, mockClock)

	done := testJob("done", mockClock.Now())
	require.NoError(t, q.Enqueue(ctx, done))
	waiting := testJob("waiting", mockClock.Now())
	require.NoError(t, q.Enqueue(ctx, waiting))

	done.Status = models.JobStatusCompleted
	require.NoError(t, q.Update(ctx, done))
	require.NoError(t, q.SaveAudio(ctx, "done", []byte("mp3")))

	mockClock.Add(59 * time.Minute)
	assert.Equal(t, 0, q.Sweep())

	mockClock.Add(time.Minute)
	assert.Equal(t, 1, q.Sweep())

	_, err := q.Get(ctx, "done")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = q.Audio(ctx, "done")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = q.Get(ctx, "waiting")
	assert.NoError(t, err, "unfinished jobs are kept")
}

func TestMemoryQueue_RequeueGoesFirst(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(time.Hour, clock.NewMock())

	require.NoError(t, q.Enqueue(ctx, testJob("a", time.Time{})))
	require.NoError(t, q.Enqueue(ctx, testJob("b", time.Time{})))

	taken, err := q.Dequeue(ctx)
	require.NoError(t, err)
	taken.Status = models.JobStatusProcessing
	require.NoError(t, q.Update(ctx, taken))

	taken.Status = models.JobStatusWaiting
	require.NoError(t, q.Requeue(ctx, taken))

	next, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", next.ID)
	assert.Equal(t, models.JobStatusWaiting, next.Status)

	assert.ErrorIs(t, q.Requeue(ctx, testJob("unknown", time.Time{})), apperrors.ErrNotFound)
}
