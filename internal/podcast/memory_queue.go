package podcast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"go-medsearch-proxy/internal/apperrors"
	"go-medsearch-proxy/internal/interfaces"
	"go-medsearch-proxy/internal/models"
)

// Ensure MemoryQueue implements the queue interfaces
var (
	_ interfaces.JobQueue = (*MemoryQueue)(nil)
	_ interfaces.Sweeper  = (*MemoryQueue)(nil)
)

// MemoryQueue is a process-local JobQueue. Finished jobs and their audio
// are dropped by Sweep once older than the retention period.
type MemoryQueue struct {
	retention time.Duration
	clock     clock.Clock

	mu      sync.Mutex
	jobs    map[string]models.PodcastJob
	audio   map[string][]byte
	waiting []string
}

// NewMemoryQueue creates a new MemoryQueue
func NewMemoryQueue(retention time.Duration, clk clock.Clock) *MemoryQueue {
	return &MemoryQueue{
		retention: retention,
		clock:     clk,
		jobs:      make(map[string]models.PodcastJob),
		audio:     make(map[string][]byte),
	}
}

func (q *MemoryQueue) Enqueue(_ context.Context, job *models.PodcastJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already queued", job.ID)
	}
	q.jobs[job.ID] = *job
	q.waiting = append(q.waiting, job.ID)
	return nil
}

func (q *MemoryQueue) Dequeue(_ context.Context) (*models.PodcastJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.waiting) > 0 {
		id := q.waiting[0]
		q.waiting = q.waiting[1:]
		if job, ok := q.jobs[id]; ok {
			return &job, nil
		}
	}
	return nil, nil
}

func (q *MemoryQueue) Update(_ context.Context, job *models.PodcastJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.jobs[job.ID]; !ok {
		return fmt.Errorf("job %s: %w", job.ID, apperrors.ErrNotFound)
	}
	q.jobs[job.ID] = *job
	return nil
}

// Requeue puts the job at the head of the waiting list so it is taken next
func (q *MemoryQueue) Requeue(_ context.Context, job *models.PodcastJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.jobs[job.ID]; !ok {
		return fmt.Errorf("job %s: %w", job.ID, apperrors.ErrNotFound)
	}
	q.jobs[job.ID] = *job
	q.waiting = append([]string{job.ID}, q.waiting...)
	return nil
}

func (q *MemoryQueue) Get(_ context.Context, id string) (*models.PodcastJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, apperrors.ErrNotFound)
	}
	return &job, nil
}

func (q *MemoryQueue) SaveAudio(_ context.Context, id string, audio []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.jobs[id]; !ok {
		return fmt.Errorf("job %s: %w", id, apperrors.ErrNotFound)
	}
	q.audio[id] = append([]byte(nil), audio...)
	return nil
}

func (q *MemoryQueue) Audio(_ context.Context, id string) ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	audio, ok := q.audio[id]
	if !ok {
		return nil, fmt.Errorf("audio for job %s: %w", id, apperrors.ErrNotFound)
	}
	return audio, nil
}

// Sweep removes finished jobs last updated before the retention window and
// returns how many were removed
func (q *MemoryQueue) Sweep() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.clock.Now()
	removed := 0
	for id, job := range q.jobs {
		finished := job.Status == models.JobStatusCompleted || job.Status == models.JobStatusFailed
		if finished && now.Sub(job.UpdatedAt) >= q.retention {
			delete(q.jobs, id)
			delete(q.audio, id)
			removed++
		}
	}
	return removed
}
