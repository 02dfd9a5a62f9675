package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"go-medsearch-proxy/internal/apperrors"
	"go-medsearch-proxy/internal/interfaces"
	"go-medsearch-proxy/internal/models"
	"go-medsearch-proxy/internal/utils"
)

// Ensure Client implements interfaces.Caller
var _ interfaces.Caller = (*Client)(nil)

const (
	// VoiceIDPlaceholder is replaced with the target's voice id in payload paths
	VoiceIDPlaceholder = "{voice_id}"

	defaultMaxResponseBytes = 32 << 20 // 32 MB, enough for a long audio segment
	errorSnippetBytes       = 512
)

// Client performs single outbound calls with an explicit timeout
type Client struct {
	httpClient       *http.Client
	timeout          time.Duration
	maxResponseBytes int64
	logger           *zap.Logger
}

// NewClient creates a new Client. A nil httpClient uses a default client.
func NewClient(httpClient *http.Client, timeout time.Duration, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		httpClient:       httpClient,
		timeout:          timeout,
		maxResponseBytes: defaultMaxResponseBytes,
		logger:           logger,
	}
}

// Call sends payload to target. Any non-2xx status is a failure.
func (c *Client) Call(ctx context.Context, target models.Target, payload models.Payload) (*models.UpstreamResponse, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(ctx, target, payload)
	if err != nil {
		return nil, &apperrors.UpstreamError{
			Kind:    apperrors.UpstreamFailure,
			Target:  target.Name,
			Message: "failed to create request",
			Err:     err,
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes+1))
	if err != nil {
		return nil, c.transportError(ctx, target, err)
	}
	if int64(len(body)) > c.maxResponseBytes {
		return nil, &apperrors.UpstreamError{
			Kind:       apperrors.UpstreamFailure,
			Target:     target.Name,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("response exceeds %d bytes", c.maxResponseBytes),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &apperrors.UpstreamError{
			Kind:       apperrors.UpstreamFailure,
			Target:     target.Name,
			StatusCode: resp.StatusCode,
			Message:    utils.Snippet(body, errorSnippetBytes),
		}
	}

	return &models.UpstreamResponse{
		Target:      target.Name,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		Elapsed:     time.Since(start),
	}, nil
}

func (c *Client) buildRequest(ctx context.Context, target models.Target, payload models.Payload) (*http.Request, error) {
	path := strings.ReplaceAll(payload.Path, VoiceIDPlaceholder, url.PathEscape(target.VoiceID))

	u, err := url.Parse(strings.TrimRight(target.BaseURL, "/") + path)
	if err != nil {
		return nil, err
	}

	query := u.Query()
	for k, values := range payload.Query {
		for _, v := range values {
			query.Add(k, v)
		}
	}
	if target.AuthType == models.QueryAuth {
		query.Set(target.AuthName, target.Credential)
	}
	u.RawQuery = query.Encode()

	method := payload.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if payload.Body != nil {
		body = bytes.NewReader(payload.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}

	for k, values := range payload.Header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	if payload.Body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if target.AuthType == models.HeaderAuth {
		req.Header.Set(target.AuthName, target.Credential)
	}

	return req, nil
}

// transportError classifies a failed round trip. A call that ran out of time
// is a timeout; anything else is a failure.
func (c *Client) transportError(ctx context.Context, target models.Target, err error) error {
	kind := apperrors.UpstreamFailure
	message := "request failed"
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || isTimeout(err) {
		kind = apperrors.UpstreamTimeout
		message = fmt.Sprintf("no response within %s", c.timeout)
	}

	// Strip the URL from *url.Error so query credentials never reach logs
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	return &apperrors.UpstreamError{
		Kind:    kind,
		Target:  target.Name,
		Message: message,
		Err:     err,
	}
}

func isTimeout(err error) bool {
	var timeoutErr interface{ Timeout() bool }
	return errors.As(err, &timeoutErr) && timeoutErr.Timeout()
}
