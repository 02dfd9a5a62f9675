package apperrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Category represents a categorized error type, used for HTTP statuses and
// metric labels
type Category string

const (
	// NoError indicates success
	NoError Category = "none"

	// Validation indicates malformed or missing input
	Validation Category = "validation_error"

	// UpstreamTimeout indicates an outbound call that exceeded its budget
	UpstreamTimeout Category = "upstream_timeout"

	// UpstreamFailure indicates a non-2xx status, a transport error or an
	// unreadable upstream body
	UpstreamFailure Category = "upstream_failure"

	// NotFound indicates an unknown resource
	NotFound Category = "not_found"

	// MethodNotAllowed indicates a verb the route does not accept
	MethodNotAllowed Category = "method_not_allowed"

	// ClientClosed indicates the caller went away before a reply was ready
	ClientClosed Category = "client_closed_request"

	// CacheFailure indicates a failure inside a cache backend. It is never
	// returned to clients.
	CacheFailure Category = "cache_failure"

	// Unknown indicates unclassified errors
	Unknown Category = "unknown_error"
)

// StatusClientClosedRequest is the non-standard status recorded when the
// client disconnects before the reply
const StatusClientClosedRequest = 499

var (
	// ErrNotFound is returned when a job or resource does not exist
	ErrNotFound = errors.New("not found")

	// ErrNoTargets is returned when a fallback call is made with an empty target list
	ErrNoTargets = errors.New("no upstream targets configured")
)

// ValidationError reports bad client input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// UpstreamError reports a single failed attempt against one target
type UpstreamError struct {
	Kind       Category // UpstreamTimeout or UpstreamFailure
	Target     string
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s returned status %d: %s", e.Target, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream %s: %s", e.Target, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// ExhaustedError is returned once every target in a fallback list failed.
// It carries the last attempt's error.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d upstream targets failed, last error: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// CategoryOf maps any error to its category
func CategoryOf(err error) Category {
	if err == nil {
		return NoError
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return Validation
	}

	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		return upstreamErr.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return UpstreamTimeout
	}

	if errors.Is(err, context.Canceled) {
		return ClientClosed
	}

	if errors.Is(err, ErrNotFound) {
		return NotFound
	}

	return Unknown
}

// HTTPStatus returns the status code sent to clients for a category
func HTTPStatus(category Category) int {
	switch category {
	case NoError:
		return http.StatusOK
	case Validation:
		return http.StatusBadRequest
	case UpstreamTimeout:
		return http.StatusGatewayTimeout
	case UpstreamFailure:
		return http.StatusBadGateway
	case NotFound:
		return http.StatusNotFound
	case MethodNotAllowed:
		return http.StatusMethodNotAllowed
	case ClientClosed:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message shown to clients. Unknown errors never
// leak their detail.
func PublicMessage(err error) string {
	category := CategoryOf(err)
	switch category {
	case Validation:
		return err.Error()
	case UpstreamTimeout:
		return "The upstream service did not respond in time"
	case UpstreamFailure:
		var upstreamErr *UpstreamError
		if errors.As(err, &upstreamErr) && upstreamErr.StatusCode != 0 {
			return fmt.Sprintf("The upstream service returned status %d", upstreamErr.StatusCode)
		}
		return "The upstream service is unavailable"
	case NotFound:
		return "The requested resource was not found"
	case ClientClosed:
		return "The request was cancelled"
	default:
		return "An unexpected error occurred"
	}
}
