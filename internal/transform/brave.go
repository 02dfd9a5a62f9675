package transform

import (
	"encoding/json"
	"fmt"

	"go-medsearch-proxy/internal/models"
)

// BraveProvider is the provider name reported in responses
const BraveProvider = "brave"

// Raw Brave web search response
type braveSearchResponse struct {
	Query *struct {
		Original             *string `json:"original"`
		MoreResultsAvailable *bool   `json:"more_results_available"`
	} `json:"query"`
	Web *struct {
		Results []braveWebResult `json:"results"`
	} `json:"web"`
}

type braveWebResult struct {
	Title         *string  `json:"title"`
	URL           *string  `json:"url"`
	Description   *string  `json:"description"`
	Age           *string  `json:"age"`
	ExtraSnippets []string `json:"extra_snippets"`
	Profile       *struct {
		Name *string `json:"name"`
	} `json:"profile"`
	MetaURL *struct {
		Hostname *string `json:"hostname"`
	} `json:"meta_url"`
}

// Brave reshapes a Brave web search response. Results without a URL are
// dropped.
func Brave(body []byte, query string) (*models.SearchResponse[models.WebResult], error) {
	var raw braveSearchResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode Brave response: %w", err)
	}

	results := []models.WebResult{}
	if raw.Web != nil {
		for _, r := range raw.Web.Results {
			link := str(r.URL)
			if link == "" {
				continue
			}
			result := models.WebResult{
				Title:         str(r.Title),
				URL:           link,
				Description:   str(r.Description),
				Age:           str(r.Age),
				ExtraSnippets: r.ExtraSnippets,
				Domain:        Domain(link),
			}
			if r.MetaURL != nil && r.MetaURL.Hostname != nil && *r.MetaURL.Hostname != "" {
				result.Domain = Domain("//" + *r.MetaURL.Hostname)
			}
			if r.Profile != nil {
				result.Source = str(r.Profile.Name)
			}
			results = append(results, result)
		}
	}

	more := false
	if raw.Query != nil && raw.Query.MoreResultsAvailable != nil {
		more = *raw.Query.MoreResultsAvailable
	}

	return &models.SearchResponse[models.WebResult]{
		Results:              results,
		TotalCount:           len(results),
		Query:                query,
		Provider:             BraveProvider,
		MoreResultsAvailable: more,
	}, nil
}
