package search

import (
	"go-medsearch-proxy/internal/cache"
	"go-medsearch-proxy/internal/models"
)

// Provider adapts one upstream search API to the shared search flow
type Provider interface {
	// Name labels logs, metrics and cache keys
	Name() string
	// AllowedFilters lists the filter keys clients may send
	AllowedFilters() []string
	// Paging reports which pagination field the API uses
	Paging() cache.PagingMode
	// Validate applies API-specific request limits
	Validate(req *models.SearchRequest) error
	// BuildPayload turns a normalized request into the outbound call.
	// filters already include the endpoint defaults.
	BuildPayload(req models.SearchRequest, filters map[string][]string) models.Payload
	// Transform reshapes the upstream body and serializes the result
	Transform(body []byte, query string) ([]byte, error)
}

// mergeFilters overlays request filters on the configured defaults
func mergeFilters(defaults map[string][]string, filters map[string]models.FilterValue) map[string][]string {
	merged := make(map[string][]string, len(defaults)+len(filters))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range filters {
		merged[k] = v
	}
	return merged
}
