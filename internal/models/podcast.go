package models

import "time"

// PodcastRequest is a script to synthesize
type PodcastRequest struct {
	Title    string    `json:"title,omitempty" validate:"max=300"`
	Segments []Segment `json:"segments" validate:"required,min=1,max=100,dive"`
}

// Segment is one spoken block of the script
type Segment struct {
	Text    string `json:"text" validate:"required"`
	Speaker string `json:"speaker,omitempty" validate:"max=64"`
}

// AudioResult is a synthesized podcast
type AudioResult struct {
	Audio       []byte
	ContentType string
	Key         string
	CacheStatus CacheStatus
}

// JobStatus is the lifecycle state of a queued podcast job
type JobStatus string

const (
	JobStatusWaiting    JobStatus = "waiting"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// PodcastJob is a queued synthesis request
type PodcastJob struct {
	ID        string         `json:"id"`
	Status    JobStatus      `json:"status"`
	Request   PodcastRequest `json:"request"`
	Error     string         `json:"error,omitempty"`
	AudioSize int            `json:"audioSize,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}
