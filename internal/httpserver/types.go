package httpserver

import (
	"time"

	"go-medsearch-proxy/internal/models"
)

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// JobAccepted is the reply to a queued podcast job
type JobAccepted struct {
	ID     string           `json:"id"`
	Status models.JobStatus `json:"status"`
}

// HealthResponse reports service and cache state
type HealthResponse struct {
	Status string          `json:"status"`
	Time   time.Time       `json:"time"`
	Cache  HealthCache     `json:"cache"`
	Routes map[string]bool `json:"routes"`
}

// HealthCache describes the configured cache
type HealthCache struct {
	Backend models.CacheBackend `json:"backend"`
	Entries map[string]int      `json:"entries"`
}
