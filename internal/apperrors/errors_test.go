package apperrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryOf(t *testing.T) {
	timeout := &UpstreamError{Kind: UpstreamTimeout, Target: "primary", Message: "deadline exceeded"}
	failure := &UpstreamError{Kind: UpstreamFailure, Target: "fallback", StatusCode: 503, Message: "unavailable"}

	tests := []struct {
		name string
		err  error
		want Category
	}{
		{name: "nil", err: nil, want: NoError},
		{name: "validation", err: NewValidationError("query", "is required"), want: Validation},
		{name: "wrapped validation", err: fmt.Errorf("decode: %w", NewValidationError("", "bad body")), want: Validation},
		{name: "timeout", err: timeout, want: UpstreamTimeout},
		{name: "failure", err: failure, want: UpstreamFailure},
		{name: "exhausted takes last", err: &ExhaustedError{Attempts: 2, Last: failure}, want: UpstreamFailure},
		{name: "exhausted timeout", err: &ExhaustedError{Attempts: 1, Last: timeout}, want: UpstreamTimeout},
		{name: "context deadline", err: fmt.Errorf("wait: %w", context.DeadlineExceeded), want: UpstreamTimeout},
		{name: "client cancelled", err: fmt.Errorf("search: %w", context.Canceled), want: ClientClosed},
		{name: "not found", err: fmt.Errorf("job x: %w", ErrNotFound), want: NotFound},
		{name: "unknown", err: errors.New("boom"), want: Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CategoryOf(tt.err))
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(Validation))
	assert.Equal(t, http.StatusGatewayTimeout, HTTPStatus(UpstreamTimeout))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(UpstreamFailure))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NotFound))
	assert.Equal(t, http.StatusMethodNotAllowed, HTTPStatus(MethodNotAllowed))
	assert.Equal(t, StatusClientClosedRequest, HTTPStatus(ClientClosed))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(Unknown))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(CacheFailure))
}

func TestPublicMessage_DoesNotLeakUnknownDetail(t *testing.T) {
	msg := PublicMessage(errors.New("dial tcp 10.0.0.3:5432: secret internals"))
	assert.Equal(t, "An unexpected error occurred", msg)
	assert.NotContains(t, msg, "10.0.0.3")
}

func TestPublicMessage_UpstreamStatus(t *testing.T) {
	err := &ExhaustedError{Attempts: 2, Last: &UpstreamError{Kind: UpstreamFailure, Target: "b", StatusCode: 429, Message: "rate limited"}}
	assert.Equal(t, "The upstream service returned status 429", PublicMessage(err))
}

func TestExhaustedError_Unwrap(t *testing.T) {
	last := &UpstreamError{Kind: UpstreamFailure, Target: "b", StatusCode: 500}
	err := &ExhaustedError{Attempts: 2, Last: last}

	var got *UpstreamError
	assert.True(t, errors.As(err, &got))
	assert.Equal(t, 500, got.StatusCode)
	assert.Contains(t, err.Error(), "all 2 upstream targets failed")
}
