package interfaces

import "go-medsearch-proxy/internal/models"

// FingerprintBuilder canonizes requests into deterministic cache keys
type FingerprintBuilder interface {
	// Normalize applies defaults and canonical ordering to a request
	Normalize(req *models.SearchRequest) models.SearchRequest
	// Build returns the cache key; equal logical requests yield equal keys
	Build(req *models.SearchRequest) string
}
