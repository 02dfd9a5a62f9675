package interfaces

import (
	"context"

	"go-medsearch-proxy/internal/models"
)

//go:generate mockgen -package=mock -source=services.go -destination=mock/services.go

// Searcher serves one search endpoint
type Searcher interface {
	Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResult, error)
}

// Synthesizer turns a podcast script into audio
type Synthesizer interface {
	Synthesize(ctx context.Context, req *models.PodcastRequest) (*models.AudioResult, error)
}

// JobQueue stores queued podcast jobs and their audio
type JobQueue interface {
	// Enqueue stores the job and appends it to the waiting list
	Enqueue(ctx context.Context, job *models.PodcastJob) error
	// Dequeue pops the oldest waiting job, or returns nil when none is waiting
	Dequeue(ctx context.Context) (*models.PodcastJob, error)
	// Update overwrites the stored job state
	Update(ctx context.Context, job *models.PodcastJob) error
	// Requeue stores an already known job and puts it back on the waiting list
	Requeue(ctx context.Context, job *models.PodcastJob) error
	// Get returns a job by id or apperrors.ErrNotFound
	Get(ctx context.Context, id string) (*models.PodcastJob, error)
	// SaveAudio stores the finished audio of a job
	SaveAudio(ctx context.Context, id string, audio []byte) error
	// Audio returns the stored audio of a job or apperrors.ErrNotFound
	Audio(ctx context.Context, id string) ([]byte, error)
}

// JobService accepts podcast jobs and reports on them
type JobService interface {
	// Submit validates and queues a podcast request
	Submit(ctx context.Context, req *models.PodcastRequest) (*models.PodcastJob, error)
	// Job returns a job by id
	Job(ctx context.Context, id string) (*models.PodcastJob, error)
	// JobAudio returns the audio of a completed job
	JobAudio(ctx context.Context, id string) ([]byte, error)
}
