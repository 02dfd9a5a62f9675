package interfaces

import (
	"context"

	"go-medsearch-proxy/internal/models"
)

//go:generate mockgen -package=mock -source=upstream.go -destination=mock/upstream.go

// Caller performs one outbound call against one target
type Caller interface {
	Call(ctx context.Context, target models.Target, payload models.Payload) (*models.UpstreamResponse, error)
}

// FallbackCaller tries targets in order until one succeeds
type FallbackCaller interface {
	CallWithFallback(ctx context.Context, targets []models.Target, payload models.Payload) (*models.UpstreamResponse, error)
}
