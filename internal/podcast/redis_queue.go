package podcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"go-medsearch-proxy/internal/apperrors"
	"go-medsearch-proxy/internal/interfaces"
	"go-medsearch-proxy/internal/models"
)

// Ensure RedisQueue implements interfaces.JobQueue
var _ interfaces.JobQueue = (*RedisQueue)(nil)

// RedisQueue keeps jobs in Redis so any replica can serve their status.
// Waiting ids live in a list; job state and audio are separate keys that
// expire after the retention period.
type RedisQueue struct {
	client    interfaces.RedisClient
	prefix    string
	retention time.Duration
	logger    *zap.Logger
}

// NewRedisQueue creates a new RedisQueue. keyPrefix may be empty.
func NewRedisQueue(client interfaces.RedisClient, keyPrefix string, retention time.Duration, logger *zap.Logger) *RedisQueue {
	prefix := "podcast:"
	if keyPrefix != "" {
		prefix = keyPrefix + ":" + prefix
	}
	return &RedisQueue{
		client:    client,
		prefix:    prefix,
		retention: retention,
		logger:    logger,
	}
}

func (q *RedisQueue) queueKey() string          { return q.prefix + "queue" }
func (q *RedisQueue) jobKey(id string) string   { return q.prefix + "job:" + id }
func (q *RedisQueue) audioKey(id string) string { return q.prefix + "audio:" + id }

func (q *RedisQueue) Enqueue(ctx context.Context, job *models.PodcastJob) error {
	if err := q.Update(ctx, job); err != nil {
		return err
	}
	if err := q.client.RPush(ctx, q.queueKey(), job.ID).Err(); err != nil {
		return fmt.Errorf("failed to push job %s: %w", job.ID, err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (*models.PodcastJob, error) {
	id, err := q.client.LPop(ctx, q.queueKey()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop job: %w", err)
	}

	job, err := q.Get(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		q.logger.Warn("Dropping expired job from queue", zap.String("job_id", id))
		return nil, nil
	}
	return job, err
}

func (q *RedisQueue) Update(ctx context.Context, job *models.PodcastJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", job.ID, err)
	}
	if err := q.client.Set(ctx, q.jobKey(job.ID), data, q.retention).Err(); err != nil {
		return fmt.Errorf("failed to store job %s: %w", job.ID, err)
	}
	return nil
}

// Requeue appends the job to the waiting list again
func (q *RedisQueue) Requeue(ctx context.Context, job *models.PodcastJob) error {
	return q.Enqueue(ctx, job)
}

func (q *RedisQueue) Get(ctx context.Context, id string) (*models.PodcastJob, error) {
	data, err := q.client.Get(ctx, q.jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("job %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", id, err)
	}

	var job models.PodcastJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", id, err)
	}
	return &job, nil
}

func (q *RedisQueue) SaveAudio(ctx context.Context, id string, audio []byte) error {
	if err := q.client.Set(ctx, q.audioKey(id), audio, q.retention).Err(); err != nil {
		return fmt.Errorf("failed to store audio for job %s: %w", id, err)
	}
	return nil
}

func (q *RedisQueue) Audio(ctx context.Context, id string) ([]byte, error) {
	audio, err := q.client.Get(ctx, q.audioKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("audio for job %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load audio for job %s: %w", id, err)
	}
	return audio, nil
}
