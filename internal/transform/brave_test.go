package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const braveResponse = `{
  "query": {"original": "metformin", "more_results_available": true},
  "web": {
    "results": [
      {
        "title": "Metformin - StatPearls",
        "url": "https://www.ncbi.nlm.nih.gov/books/NBK518983/",
        "description": "Metformin is a first-line agent.",
        "age": "2 days ago",
        "profile": {"name": "NCBI"},
        "meta_url": {"hostname": "www.ncbi.nlm.nih.gov"},
        "extra_snippets": ["Mechanism of action"]
      },
      {"title": "No URL"},
      {"title": "Bare", "url": "https://example.org/page"}
    ]
  }
}`

func TestBrave_Results(t *testing.T) {
	resp, err := Brave([]byte(braveResponse), "metformin")
	require.NoError(t, err)

	assert.Equal(t, BraveProvider, resp.Provider)
	assert.Equal(t, "metformin", resp.Query)
	assert.True(t, resp.MoreResultsAvailable)
	assert.Equal(t, 2, resp.TotalCount)
	require.Len(t, resp.Results, 2)

	first := resp.Results[0]
	assert.Equal(t, "Metformin - StatPearls", first.Title)
	assert.Equal(t, "ncbi.nlm.nih.gov", first.Domain)
	assert.Equal(t, "NCBI", first.Source)
	assert.Equal(t, "2 days ago", first.Age)
	assert.Equal(t, []string{"Mechanism of action"}, first.ExtraSnippets)

	second := resp.Results[1]
	assert.Equal(t, "example.org", second.Domain)
	assert.Empty(t, second.Source)
}

func TestBrave_NoWebSection(t *testing.T) {
	resp, err := Brave([]byte(`{"query":{"original":"x"}}`), "x")
	require.NoError(t, err)

	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
	assert.False(t, resp.MoreResultsAvailable)
}

func TestBrave_MalformedJSON(t *testing.T) {
	_, err := Brave([]byte(`{"web":`), "x")
	assert.Error(t, err)
}
