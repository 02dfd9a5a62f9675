package search

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go-medsearch-proxy/internal/apperrors"
	"go-medsearch-proxy/internal/cache"
	"go-medsearch-proxy/internal/models"
	"go-medsearch-proxy/internal/transform"
)

// ClinicalTrialsEndpoint is the endpoint label for study search
const ClinicalTrialsEndpoint = "clinicaltrials"

const studiesPath = "/api/v2/studies"

// Ensure ClinicalTrials implements Provider
var _ Provider = (*ClinicalTrials)(nil)

// ClinicalTrials searches the ClinicalTrials.gov v2 API
type ClinicalTrials struct{}

// NewClinicalTrials creates the ClinicalTrials.gov provider
func NewClinicalTrials() *ClinicalTrials {
	return &ClinicalTrials{}
}

func (p *ClinicalTrials) Name() string { return ClinicalTrialsEndpoint }

func (p *ClinicalTrials) AllowedFilters() []string {
	return []string{"status", "phase", "location", "studyType", "sort"}
}

func (p *ClinicalTrials) Paging() cache.PagingMode { return cache.PageByToken }

func (p *ClinicalTrials) Validate(req *models.SearchRequest) error {
	if req.Offset != 0 {
		return apperrors.NewValidationError("offset", "not supported, use pageToken")
	}
	return nil
}

func (p *ClinicalTrials) BuildPayload(req models.SearchRequest, filters map[string][]string) models.Payload {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("countTotal", "true")
	q.Set("query.term", req.Query)
	q.Set("pageSize", strconv.Itoa(req.PageSize))
	if req.PageToken != "" {
		q.Set("pageToken", req.PageToken)
	}

	if status := filters["status"]; len(status) > 0 {
		q.Set("filter.overallStatus", strings.ToUpper(strings.Join(status, ",")))
	}
	if location := filters["location"]; len(location) > 0 {
		q.Set("query.locn", strings.Join(location, " OR "))
	}

	var advanced []string
	if phases := filters["phase"]; len(phases) > 0 {
		advanced = append(advanced, "AREA[Phase]("+strings.ToUpper(strings.Join(phases, " OR "))+")")
	}
	if types := filters["studyType"]; len(types) > 0 {
		advanced = append(advanced, "AREA[StudyType]("+strings.ToUpper(strings.Join(types, " OR "))+")")
	}
	if len(advanced) > 0 {
		q.Set("filter.advanced", strings.Join(advanced, " AND "))
	}

	if sort := filters["sort"]; len(sort) > 0 {
		switch sort[0] {
		case "relevance":
			// API default ordering
		case "date":
			q.Set("sort", "LastUpdatePostDate:desc")
		default:
			q.Set("sort", sort[0])
		}
	}

	return models.Payload{
		Method: http.MethodGet,
		Path:   studiesPath,
		Query:  q,
		Header: http.Header{"Accept": []string{"application/json"}},
	}
}

func (p *ClinicalTrials) Transform(body []byte, query string) ([]byte, error) {
	resp, err := transform.ClinicalTrials(body, query)
	if err != nil {
		return nil, err
	}
	return json.Marshal(resp)
}
