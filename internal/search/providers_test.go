package search

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-medsearch-proxy/internal/models"
)

func TestClinicalTrials_BuildPayload(t *testing.T) {
	p := NewClinicalTrials()

	payload := p.BuildPayload(models.SearchRequest{
		Query:     "diabetes",
		PageSize:  20,
		PageToken: "tok",
	}, map[string][]string{
		"status":    {"recruiting", "completed"},
		"phase":     {"PHASE2", "PHASE3"},
		"studyType": {"interventional"},
		"location":  {"Boston"},
		"sort":      {"date"},
	})

	assert.Equal(t, http.MethodGet, payload.Method)
	assert.Equal(t, "/api/v2/studies", payload.Path)
	assert.Equal(t, "diabetes", payload.Query.Get("query.term"))
	assert.Equal(t, "20", payload.Query.Get("pageSize"))
	assert.Equal(t, "tok", payload.Query.Get("pageToken"))
	assert.Equal(t, "RECRUITING,COMPLETED", payload.Query.Get("filter.overallStatus"))
	assert.Equal(t, "Boston", payload.Query.Get("query.locn"))
	assert.Equal(t, "AREA[Phase](PHASE2 OR PHASE3) AND AREA[StudyType](INTERVENTIONAL)", payload.Query.Get("filter.advanced"))
	assert.Equal(t, "LastUpdatePostDate:desc", payload.Query.Get("sort"))
	assert.Equal(t, "true", payload.Query.Get("countTotal"))
}

func TestClinicalTrials_BuildPayload_Defaults(t *testing.T) {
	p := NewClinicalTrials()

	payload := p.BuildPayload(models.SearchRequest{Query: "asthma", PageSize: 20}, map[string][]string{"sort": {"relevance"}})

	assert.Empty(t, payload.Query.Get("sort"))
	assert.Empty(t, payload.Query.Get("pageToken"))
	assert.Empty(t, payload.Query.Get("filter.advanced"))
}

func TestClinicalTrials_Validate(t *testing.T) {
	p := NewClinicalTrials()

	assert.NoError(t, p.Validate(&models.SearchRequest{Query: "x"}))
	assert.Error(t, p.Validate(&models.SearchRequest{Query: "x", Offset: 2}))
}

func TestClinicalTrials_Transform(t *testing.T) {
	p := NewClinicalTrials()

	body, err := p.Transform([]byte(`{"studies":[],"totalCount":0}`), "diabetes")
	require.NoError(t, err)

	var resp models.SearchResponse[models.Trial]
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "clinicaltrials.gov", resp.Provider)
	assert.Equal(t, "diabetes", resp.Query)
}

func TestBrave_BuildPayload(t *testing.T) {
	p := NewBrave()

	payload := p.BuildPayload(models.SearchRequest{Query: "metformin", PageSize: 10, Offset: 2}, map[string][]string{
		"country":    {"US"},
		"searchLang": {"en"},
		"safesearch": {"strict"},
	})

	assert.Equal(t, "/res/v1/web/search", payload.Path)
	assert.Equal(t, "metformin", payload.Query.Get("q"))
	assert.Equal(t, "10", payload.Query.Get("count"))
	assert.Equal(t, "2", payload.Query.Get("offset"))
	assert.Equal(t, "US", payload.Query.Get("country"))
	assert.Equal(t, "en", payload.Query.Get("search_lang"))
	assert.Equal(t, "strict", payload.Query.Get("safesearch"))
	assert.Empty(t, payload.Query.Get("freshness"))
	assert.Equal(t, "application/json", payload.Header.Get("Accept"))
}

func TestBrave_Validate(t *testing.T) {
	p := NewBrave()

	assert.NoError(t, p.Validate(&models.SearchRequest{Query: "x", Offset: 9}))
	assert.Error(t, p.Validate(&models.SearchRequest{Query: "x", Offset: 10}))
	assert.Error(t, p.Validate(&models.SearchRequest{Query: "x", PageToken: "abc"}))
	assert.Error(t, p.Validate(&models.SearchRequest{
		Query:   "x",
		Filters: map[string]models.FilterValue{"country": {"US", "GB"}},
	}))
}

func TestMergeFilters(t *testing.T) {
	merged := mergeFilters(
		map[string][]string{"sort": {"relevance"}, "status": {"RECRUITING"}},
		map[string]models.FilterValue{"status": {"COMPLETED"}},
	)

	assert.Equal(t, map[string][]string{"sort": {"relevance"}, "status": {"COMPLETED"}}, merged)
}
