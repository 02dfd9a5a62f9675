package upstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"go-medsearch-proxy/internal/apperrors"
	"go-medsearch-proxy/internal/interfaces"
	"go-medsearch-proxy/internal/metrics"
	"go-medsearch-proxy/internal/models"
	"go-medsearch-proxy/internal/utils"
)

// Ensure Fallback implements interfaces.FallbackCaller
var _ interfaces.FallbackCaller = (*Fallback)(nil)

// Fallback tries an ordered list of targets until one succeeds
type Fallback struct {
	endpoint string
	caller   interfaces.Caller
	logger   *zap.Logger
}

// NewFallback creates a Fallback for one endpoint. The endpoint name labels
// logs and metrics.
func NewFallback(endpoint string, caller interfaces.Caller, logger *zap.Logger) *Fallback {
	return &Fallback{
		endpoint: endpoint,
		caller:   caller,
		logger:   logger,
	}
}

// CallWithFallback calls targets in order and returns the first success.
// When every target fails it returns *apperrors.ExhaustedError after exactly
// len(targets) attempts. Iteration stops early if ctx is done.
func (f *Fallback) CallWithFallback(ctx context.Context, targets []models.Target, payload models.Payload) (*models.UpstreamResponse, error) {
	if len(targets) == 0 {
		return nil, apperrors.ErrNoTargets
	}

	var lastErr error
	for i, target := range targets {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("upstream call abandoned after %d attempts: %w", i, err)
		}

		start := time.Now()
		resp, err := f.caller.Call(ctx, target, payload)
		elapsed := time.Since(start)

		f.recordAttempt(target, i+1, len(targets), resp, err, elapsed)

		if err == nil {
			resp.Attempts = i + 1
			return resp, nil
		}
		lastErr = err
	}

	metrics.RecordUpstreamExhausted(f.endpoint)
	f.logger.Error("All upstream targets failed",
		zap.String("endpoint", f.endpoint),
		zap.Int("attempts", len(targets)),
		zap.Error(lastErr))

	return nil, &apperrors.ExhaustedError{
		Attempts: len(targets),
		Last:     lastErr,
	}
}

func (f *Fallback) recordAttempt(target models.Target, attempt, total int, resp *models.UpstreamResponse, err error, elapsed time.Duration) {
	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}
	var upstreamErr *apperrors.UpstreamError
	if errors.As(err, &upstreamErr) {
		statusCode = upstreamErr.StatusCode
	}

	metrics.RecordUpstreamAttempt(metrics.UpstreamAttempt{
		Endpoint:   f.endpoint,
		Target:     target.Name,
		ErrorType:  string(apperrors.CategoryOf(err)),
		StatusCode: statusCode,
		Duration:   elapsed,
	})

	fields := []zap.Field{
		zap.String("endpoint", f.endpoint),
		zap.String("target", target.Name),
		zap.Int("attempt", attempt),
		zap.Int("of", total),
		zap.Int("status", statusCode),
		zap.Duration("duration", elapsed),
	}
	if target.AuthType != models.NoAuth {
		fields = append(fields, zap.String("credential", utils.MaskSecret(target.Credential)))
	}

	if err != nil {
		f.logger.Warn("Upstream attempt failed", append(fields, zap.Error(err))...)
		return
	}
	f.logger.Debug("Upstream attempt succeeded", fields...)
}
