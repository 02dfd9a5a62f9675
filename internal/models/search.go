package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// SearchRequest is the inbound body of every search endpoint. Fields that do
// not affect the result (timestamps, request ids) are not modelled and are
// dropped while decoding.
type SearchRequest struct {
	Query     string                 `json:"query" validate:"required,max=500"`
	Filters   map[string]FilterValue `json:"filters,omitempty"`
	PageSize  int                    `json:"pageSize,omitempty" validate:"gte=0"`
	PageToken string                 `json:"pageToken,omitempty" validate:"max=256"`
	Offset    int                    `json:"offset,omitempty" validate:"gte=0"`
}

// FilterValue accepts a string, a number, a bool or an array of those.
type FilterValue []string

// UnmarshalJSON implements custom JSON unmarshaling for FilterValue
func (f *FilterValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = nil
		return nil
	}

	if len(data) > 0 && data[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		values := make([]string, 0, len(raw))
		for _, item := range raw {
			v, err := scalarString(item)
			if err != nil {
				return err
			}
			values = append(values, v)
		}
		*f = values
		return nil
	}

	v, err := scalarString(data)
	if err != nil {
		return err
	}
	*f = FilterValue{v}
	return nil
}

func scalarString(data json.RawMessage) (string, error) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return "", err
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return "", fmt.Errorf("unsupported filter value %s", string(data))
	}
}

// SearchResponse is the normalized envelope returned by every search endpoint
type SearchResponse[T any] struct {
	Results              []T    `json:"results"`
	TotalCount           int    `json:"totalCount"`
	Query                string `json:"query"`
	Provider             string `json:"provider"`
	NextPageToken        string `json:"nextPageToken,omitempty"`
	MoreResultsAvailable bool   `json:"moreResultsAvailable"`
}

// Trial is a normalized ClinicalTrials.gov study
type Trial struct {
	NCTID              string     `json:"nctId"`
	Title              string     `json:"title"`
	OfficialTitle      string     `json:"officialTitle,omitempty"`
	Status             string     `json:"status,omitempty"`
	StudyType          string     `json:"studyType,omitempty"`
	Phases             []string   `json:"phases"`
	Conditions         []string   `json:"conditions"`
	Sponsor            string     `json:"sponsor,omitempty"`
	Summary            string     `json:"summary,omitempty"`
	Enrollment         *int       `json:"enrollment"`
	EnrollmentCategory *string    `json:"enrollmentCategory"`
	StartDate          string     `json:"startDate,omitempty"`
	CompletionDate     string     `json:"completionDate,omitempty"`
	Duration           *string    `json:"duration"`
	Locations          []Location `json:"locations"`
	URL                string     `json:"url"`
}

// Location is a trial site
type Location struct {
	Facility string `json:"facility,omitempty"`
	City     string `json:"city,omitempty"`
	Country  string `json:"country,omitempty"`
}

// WebResult is a normalized Brave web search hit
type WebResult struct {
	Title         string   `json:"title"`
	URL           string   `json:"url"`
	Description   string   `json:"description,omitempty"`
	Domain        string   `json:"domain,omitempty"`
	Source        string   `json:"source,omitempty"`
	Age           string   `json:"age,omitempty"`
	ExtraSnippets []string `json:"extraSnippets,omitempty"`
}

// SearchResult is what a search service hands to the HTTP layer. Body is
// the serialized SearchResponse, byte-identical between a miss and the hits
// that follow it.
type SearchResult struct {
	Body        []byte
	Key         string
	CacheStatus CacheStatus
}
