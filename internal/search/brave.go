package search

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go-medsearch-proxy/internal/apperrors"
	"go-medsearch-proxy/internal/cache"
	"go-medsearch-proxy/internal/models"
	"go-medsearch-proxy/internal/transform"
)

// BraveEndpoint is the endpoint label for web search
const BraveEndpoint = "brave"

const (
	braveSearchPath = "/res/v1/web/search"
	braveMaxOffset  = 9
)

// Ensure Brave implements Provider
var _ Provider = (*Brave)(nil)

// braveParams maps request filters to Brave query parameters
var braveParams = map[string]string{
	"country":    "country",
	"searchLang": "search_lang",
	"safesearch": "safesearch",
	"freshness":  "freshness",
}

// Brave searches the Brave web search API
type Brave struct{}

// NewBrave creates the Brave provider
func NewBrave() *Brave {
	return &Brave{}
}

func (p *Brave) Name() string { return BraveEndpoint }

func (p *Brave) AllowedFilters() []string {
	return []string{"country", "searchLang", "safesearch", "freshness"}
}

func (p *Brave) Paging() cache.PagingMode { return cache.PageByOffset }

func (p *Brave) Validate(req *models.SearchRequest) error {
	if req.Offset > braveMaxOffset {
		return apperrors.NewValidationError("offset", fmt.Sprintf("must be at most %d", braveMaxOffset))
	}
	if req.PageToken != "" {
		return apperrors.NewValidationError("pageToken", "not supported, use offset")
	}
	for key, values := range req.Filters {
		if len(values) > 1 {
			return apperrors.NewValidationError("filters."+key, "accepts a single value")
		}
	}
	return nil
}

func (p *Brave) BuildPayload(req models.SearchRequest, filters map[string][]string) models.Payload {
	q := url.Values{}
	q.Set("q", req.Query)
	q.Set("count", strconv.Itoa(req.PageSize))
	if req.Offset > 0 {
		q.Set("offset", strconv.Itoa(req.Offset))
	}
	for key, param := range braveParams {
		if values := filters[key]; len(values) > 0 {
			q.Set(param, values[0])
		}
	}

	return models.Payload{
		Method: http.MethodGet,
		Path:   braveSearchPath,
		Query:  q,
		Header: http.Header{"Accept": []string{"application/json"}},
	}
}

func (p *Brave) Transform(body []byte, query string) ([]byte, error) {
	resp, err := transform.Brave(body, query)
	if err != nil {
		return nil, err
	}
	return json.Marshal(resp)
}
