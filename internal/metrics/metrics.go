package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Core request/hit/miss counters
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Total number of cache lookups",
		},
		[]string{"endpoint"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"endpoint"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"endpoint"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of removed cache entries",
		},
		[]string{"cache", "reason"}, // reason: capacity, expired
	)

	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_errors_total",
			Help: "Total number of cache backend errors, treated as misses",
		},
		[]string{"level", "kind"},
	)

	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Number of entries held by an in-process cache",
		},
		[]string{"cache"},
	)

	// Get operation latency only
	CacheOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cache_operation_duration_seconds",
			Help:    "Duration of cache get operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "level"},
	)

	// approximate cardinality: 3 (endpoint) × 4 (target) × 4 (error_type) × 10 (status_code)
	UpstreamAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_attempts_total",
			Help: "Total number of outbound calls per target",
		},
		[]string{
			"endpoint",    // search or tts endpoint name
			"target",      // target name, never the credential
			"error_type",  // none, upstream_timeout, upstream_failure, unknown_error
			"status_code", // HTTP status or 0 when no response arrived
		},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Duration of outbound calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
		},
		[]string{"endpoint", "target"},
	)

	UpstreamExhausted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_exhausted_total",
			Help: "Total number of calls where every target failed",
		},
		[]string{"endpoint"},
	)

	HTTPResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_responses_total",
			Help: "Total number of HTTP responses by route and status",
		},
		[]string{"route", "method", "status"},
	)

	PodcastJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "podcast_jobs_total",
			Help: "Total number of podcast job state transitions",
		},
		[]string{"status"},
	)
)

// RecordCacheRequest records a cache lookup
func RecordCacheRequest(endpoint string) {
	CacheRequests.WithLabelValues(endpoint).Inc()
}

// RecordCacheHit records a cache hit
func RecordCacheHit(endpoint string) {
	CacheHits.WithLabelValues(endpoint).Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss(endpoint string) {
	CacheMisses.WithLabelValues(endpoint).Inc()
}

// RecordCacheEviction records removed entries
func RecordCacheEviction(cache, reason string, count int) {
	if count <= 0 {
		return
	}
	CacheEvictions.WithLabelValues(cache, reason).Add(float64(count))
}

// RecordCacheError records a cache backend error
func RecordCacheError(level, kind string) {
	CacheErrors.WithLabelValues(level, kind).Inc()
}

// UpdateCacheEntries updates the number of entries in an in-process cache
func UpdateCacheEntries(cache string, count int) {
	CacheEntries.WithLabelValues(cache).Set(float64(count))
}

// TimeCacheGetOperation returns a timer function for measuring cache get operation duration
func TimeCacheGetOperation(level string) func() {
	timer := prometheus.NewTimer(CacheOperationDuration.WithLabelValues("get", level))
	return func() {
		timer.ObserveDuration()
	}
}

// UpstreamAttempt contains the parameters recorded for one outbound call
type UpstreamAttempt struct {
	Endpoint   string
	Target     string
	ErrorType  string
	StatusCode int
	Duration   time.Duration
}

// RecordUpstreamAttempt records a single outbound call
func RecordUpstreamAttempt(a UpstreamAttempt) {
	UpstreamAttempts.With(prometheus.Labels{
		"endpoint":    a.Endpoint,
		"target":      a.Target,
		"error_type":  a.ErrorType,
		"status_code": strconv.Itoa(a.StatusCode),
	}).Inc()
	UpstreamDuration.WithLabelValues(a.Endpoint, a.Target).Observe(a.Duration.Seconds())
}

// RecordUpstreamExhausted records a call where the whole target list failed
func RecordUpstreamExhausted(endpoint string) {
	UpstreamExhausted.WithLabelValues(endpoint).Inc()
}

// RecordHTTPResponse records a response written by the HTTP server
func RecordHTTPResponse(route, method string, status int) {
	HTTPResponses.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
}

// RecordPodcastJob records a job reaching a status
func RecordPodcastJob(status string) {
	PodcastJobs.WithLabelValues(status).Inc()
}
