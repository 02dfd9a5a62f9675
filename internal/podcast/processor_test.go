package podcast

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"

	"go-medsearch-proxy/internal/apperrors"
	"go-medsearch-proxy/internal/interfaces/mock"
	"go-medsearch-proxy/internal/models"
)

func newTestProcessor(t *testing.T) (*Processor, *MemoryQueue, *mock.MockSynthesizer, *clock.Mock) {
	ctrl := gomock.NewController(t)
	synth := mock.NewMockSynthesizer(ctrl)
	mockClock := clock.NewMock()
	queue := NewMemoryQueue(time.Hour, mockClock)
	p := NewProcessor(queue, synth, mockClock, zaptest.NewLogger(t))
	return p, queue, synth, mockClock
}

func podcastRequest() *models.PodcastRequest {
	return &models.PodcastRequest{Title: "Episode 1", Segments: []models.Segment{{Text: "hello"}}}
}

func TestProcessor_Submit(t *testing.T) {
	p, _, _, mockClock := newTestProcessor(t)

	job, err := p.Submit(context.Background(), podcastRequest())

	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, models.JobStatusWaiting, job.Status)
	assert.True(t, job.CreatedAt.Equal(mockClock.Now()))

	stored, err := p.Job(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, "Episode 1", stored.Request.Title)
}

func TestProcessor_Submit_Invalid(t *testing.T) {
	p, _, _, _ := newTestProcessor(t)

	_, err := p.Submit(context.Background(), &models.PodcastRequest{})

	assert.Equal(t, apperrors.Validation, apperrors.CategoryOf(err))
}

func TestProcessor_ProcessNext_Completes(t *testing.T) {
	p, _, synth, mockClock := newTestProcessor(t)
	ctx := context.Background()

	job, err := p.Submit(ctx, podcastRequest())
	require.NoError(t, err)

	synth.EXPECT().Synthesize(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *models.PodcastRequest) (*models.AudioResult, error) {
			assert.Equal(t, "hello", req.Segments[0].Text)
			mockClock.Add(3 * time.Second)
			return &models.AudioResult{Audio: []byte("mp3-bytes"), CacheStatus: models.CacheMiss}, nil
		})

	processed, err := p.ProcessNext(ctx)
	require.NoError(t, err)
	assert.True(t, processed)

	stored, err := p.Job(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, stored.Status)
	assert.Equal(t, len("mp3-bytes"), stored.AudioSize)
	assert.Empty(t, stored.Error)

	audio, err := p.JobAudio(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3-bytes"), audio)
}

func TestProcessor_ProcessNext_Fails(t *testing.T) {
	p, _, synth, _ := newTestProcessor(t)
	ctx := context.Background()

	job, err := p.Submit(ctx, podcastRequest())
	require.NoError(t, err)

	synth.EXPECT().Synthesize(gomock.Any(), gomock.Any()).Return(nil, &apperrors.ExhaustedError{
		Attempts: 2,
		Last:     &apperrors.UpstreamError{Kind: apperrors.UpstreamFailure, Target: "fallback", StatusCode: 401, Message: "invalid key"},
	})

	processed, err := p.ProcessNext(ctx)
	require.NoError(t, err)
	assert.True(t, processed)

	stored, err := p.Job(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, stored.Status)
	assert.Equal(t, "The upstream service returned status 401", stored.Error)

	_, err = p.JobAudio(ctx, job.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProcessor_ProcessNext_Empty(t *testing.T) {
	p, _, _, _ := newTestProcessor(t)

	processed, err := p.ProcessNext(context.Background())

	assert.NoError(t, err)
	assert.False(t, processed)
}

func TestProcessor_TickTakesOneJob(t *testing.T) {
	p, _, synth, _ := newTestProcessor(t)
	ctx := context.Background()

	first, err := p.Submit(ctx, podcastRequest())
	require.NoError(t, err)
	second, err := p.Submit(ctx, podcastRequest())
	require.NoError(t, err)

	synth.EXPECT().Synthesize(gomock.Any(), gomock.Any()).Return(&models.AudioResult{Audio: []byte("a")}, nil).Times(1)

	p.Tick(ctx)

	j1, _ := p.Job(ctx, first.ID)
	j2, _ := p.Job(ctx, second.ID)
	assert.Equal(t, models.JobStatusCompleted, j1.Status)
	assert.Equal(t, models.JobStatusWaiting, j2.Status)
}

func TestProcessor_QueueError(t *testing.T) {
	ctrl := gomock.NewController(t)
	queue := mock.NewMockJobQueue(ctrl)
	p := NewProcessor(queue, mock.NewMockSynthesizer(ctrl), clock.NewMock(), zaptest.NewLogger(t))

	queue.EXPECT().Dequeue(gomock.Any()).Return(nil, errors.New("redis down"))

	processed, err := p.ProcessNext(context.Background())

	assert.Error(t, err)
	assert.False(t, processed)
}

func TestProcessor_ProcessNext_CancelledMidSynthesisRequeues(t *testing.T) {
	p, _, synth, _ := newTestProcessor(t)

	job, err := p.Submit(context.Background(), podcastRequest())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	synth.EXPECT().Synthesize(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ *models.PodcastRequest) (*models.AudioResult, error) {
			cancel()
			<-ctx.Done()
			return nil, ctx.Err()
		})

	processed, err := p.ProcessNext(ctx)
	require.NoError(t, err)
	assert.True(t, processed)

	stored, err := p.Job(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusWaiting, stored.Status)
	assert.Empty(t, stored.Error)

	// The next worker picks the job up again
	synth.EXPECT().Synthesize(gomock.Any(), gomock.Any()).Return(&models.AudioResult{Audio: []byte("a")}, nil)

	processed, err = p.ProcessNext(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)

	stored, err = p.Job(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, stored.Status)
}

func TestProcessor_ProcessNext_FinalWriteOutlivesCancellation(t *testing.T) {
	ctrl := gomock.NewController(t)
	queue := mock.NewMockJobQueue(ctrl)
	synth := mock.NewMockSynthesizer(ctrl)
	p := NewProcessor(queue, synth, clock.NewMock(), zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	job := &models.PodcastJob{ID: "job-1", Status: models.JobStatusWaiting, Request: *podcastRequest()}

	queue.EXPECT().Dequeue(gomock.Any()).Return(job, nil)
	queue.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)
	synth.EXPECT().Synthesize(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, *models.PodcastRequest) (*models.AudioResult, error) {
			cancel()
			return &models.AudioResult{Audio: []byte("mp3")}, nil
		})
	queue.EXPECT().SaveAudio(gomock.Any(), "job-1", []byte("mp3")).
		DoAndReturn(func(ctx context.Context, _ string, _ []byte) error {
			return ctx.Err()
		})
	queue.EXPECT().Update(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, j *models.PodcastJob) error {
			assert.Equal(t, models.JobStatusCompleted, j.Status)
			return ctx.Err()
		})

	processed, err := p.ProcessNext(ctx)

	require.NoError(t, err)
	assert.True(t, processed)
}
