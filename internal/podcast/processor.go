package podcast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"go-medsearch-proxy/internal/apperrors"
	"go-medsearch-proxy/internal/interfaces"
	"go-medsearch-proxy/internal/metrics"
	"go-medsearch-proxy/internal/models"
)

// finalWriteTimeout bounds the status write that ends a job. It runs even
// when the processing context is already cancelled.
const finalWriteTimeout = 5 * time.Second

// Ensure Processor implements interfaces.JobService
var _ interfaces.JobService = (*Processor)(nil)

// Processor accepts podcast jobs and renders them in the background, one
// waiting job per tick
type Processor struct {
	queue  interfaces.JobQueue
	synth  interfaces.Synthesizer
	clock  clock.Clock
	newID  func() string
	logger *zap.Logger
}

// NewProcessor creates a new Processor
func NewProcessor(queue interfaces.JobQueue, synth interfaces.Synthesizer, clk clock.Clock, logger *zap.Logger) *Processor {
	return &Processor{
		queue:  queue,
		synth:  synth,
		clock:  clk,
		newID:  func() string { return uuid.New().String() },
		logger: logger.With(zap.String("component", "podcast_processor")),
	}
}

// Submit validates req and queues it as a waiting job
func (p *Processor) Submit(ctx context.Context, req *models.PodcastRequest) (*models.PodcastJob, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	now := p.clock.Now()
	job := &models.PodcastJob{
		ID:        p.newID(),
		Status:    models.JobStatusWaiting,
		Request:   *req,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := p.queue.Enqueue(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to enqueue podcast job: %w", err)
	}

	metrics.RecordPodcastJob(string(models.JobStatusWaiting))
	p.logger.Info("Queued podcast job", zap.String("job_id", job.ID), zap.Int("segments", len(req.Segments)))
	return job, nil
}

// Job returns the current state of a job
func (p *Processor) Job(ctx context.Context, id string) (*models.PodcastJob, error) {
	return p.queue.Get(ctx, id)
}

// JobAudio returns the audio of a completed job
func (p *Processor) JobAudio(ctx context.Context, id string) ([]byte, error) {
	job, err := p.queue.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusCompleted {
		return nil, fmt.Errorf("job %s is %s: %w", id, job.Status, apperrors.ErrNotFound)
	}
	return p.queue.Audio(ctx, id)
}

// Tick processes at most one waiting job. It is the scheduler task.
func (p *Processor) Tick(ctx context.Context) {
	if _, err := p.ProcessNext(ctx); err != nil {
		p.logger.Error("Podcast job processing failed", zap.Error(err))
	}
}

// ProcessNext renders the oldest waiting job. It reports whether a job was
// taken. A synthesis failure marks the job failed and is not returned; only
// queue errors are. A job interrupted by cancellation of ctx goes back to
// the waiting list.
func (p *Processor) ProcessNext(ctx context.Context) (bool, error) {
	job, err := p.queue.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	log := p.logger.With(zap.String("job_id", job.ID))

	if err := p.setStatus(ctx, job, models.JobStatusProcessing, ""); err != nil {
		return true, err
	}

	result, err := p.synth.Synthesize(ctx, &job.Request)

	// Past this point the job must not be left in processing, so the
	// remaining writes outlive a shutdown of ctx
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalWriteTimeout)
	defer cancel()

	if err != nil {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			log.Info("Podcast synthesis interrupted, requeueing job", zap.Error(err))
			return true, p.requeue(writeCtx, job)
		}
		log.Warn("Podcast synthesis failed", zap.Error(err))
		return true, p.setStatus(writeCtx, job, models.JobStatusFailed, apperrors.PublicMessage(err))
	}

	if err := p.queue.SaveAudio(writeCtx, job.ID, result.Audio); err != nil {
		log.Error("Failed to store podcast audio", zap.Error(err))
		return true, p.setStatus(writeCtx, job, models.JobStatusFailed, "failed to store audio")
	}

	job.AudioSize = len(result.Audio)
	if err := p.setStatus(writeCtx, job, models.JobStatusCompleted, ""); err != nil {
		return true, err
	}

	log.Info("Podcast job completed",
		zap.Int("bytes", job.AudioSize),
		zap.String("cache", string(result.CacheStatus)),
		zap.Duration("queued_for", job.UpdatedAt.Sub(job.CreatedAt)))
	return true, nil
}

func (p *Processor) setStatus(ctx context.Context, job *models.PodcastJob, status models.JobStatus, message string) error {
	job.Status = status
	job.Error = message
	job.UpdatedAt = p.clock.Now()
	if err := p.queue.Update(ctx, job); err != nil {
		return fmt.Errorf("failed to mark job %s %s: %w", job.ID, status, err)
	}
	metrics.RecordPodcastJob(string(status))
	return nil
}

// requeue returns an interrupted job to the waiting list
func (p *Processor) requeue(ctx context.Context, job *models.PodcastJob) error {
	job.Status = models.JobStatusWaiting
	job.Error = ""
	job.UpdatedAt = p.clock.Now()
	if err := p.queue.Requeue(ctx, job); err != nil {
		return fmt.Errorf("failed to requeue job %s: %w", job.ID, err)
	}
	metrics.RecordPodcastJob(string(models.JobStatusWaiting))
	return nil
}
