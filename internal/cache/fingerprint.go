package cache

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"go-medsearch-proxy/internal/interfaces"
	"go-medsearch-proxy/internal/models"
)

// Ensure Fingerprinter implements interfaces.FingerprintBuilder
var _ interfaces.FingerprintBuilder = (*Fingerprinter)(nil)

const defaultFiltersToken = "default-filters"

// PagingMode selects which pagination field contributes to the key
type PagingMode int

const (
	// PageByToken keys on SearchRequest.PageToken
	PageByToken PagingMode = iota
	// PageByOffset keys on SearchRequest.Offset
	PageByOffset
)

// FingerprintOptions holds the per-endpoint defaults a request is
// normalized against
type FingerprintOptions struct {
	DefaultPageSize int
	DefaultFilters  map[string][]string
	Paging          PagingMode
}

// Fingerprinter builds cache keys of the form
// <query>|<filters>|pageSize=<n>[|page=<token-or-offset>]
type Fingerprinter struct {
	defaultPageSize int
	defaultFilters  map[string][]string
	paging          PagingMode
}

// NewFingerprinter creates a new Fingerprinter instance
func NewFingerprinter(opts FingerprintOptions) *Fingerprinter {
	defaults := make(map[string][]string, len(opts.DefaultFilters))
	for k, v := range opts.DefaultFilters {
		if values := canonicalValues(v); len(values) > 0 {
			defaults[strings.TrimSpace(k)] = values
		}
	}
	return &Fingerprinter{
		defaultPageSize: opts.DefaultPageSize,
		defaultFilters:  defaults,
		paging:          opts.Paging,
	}
}

// Normalize returns a copy of req with the query folded, page size
// defaulted and filters canonicalized. Filters that are empty or equal to
// their default are dropped.
func (f *Fingerprinter) Normalize(req *models.SearchRequest) models.SearchRequest {
	out := models.SearchRequest{
		Query:     NormalizeQuery(req.Query),
		PageSize:  req.PageSize,
		PageToken: strings.TrimSpace(req.PageToken),
		Offset:    req.Offset,
	}
	if out.PageSize <= 0 {
		out.PageSize = f.defaultPageSize
	}
	if f.paging == PageByToken {
		out.Offset = 0
	} else {
		out.PageToken = ""
	}

	for k, v := range req.Filters {
		key := strings.TrimSpace(k)
		values := canonicalValues(v)
		if key == "" || len(values) == 0 {
			continue
		}
		if def, ok := f.defaultFilters[key]; ok && equalValues(def, values) {
			continue
		}
		if out.Filters == nil {
			out.Filters = make(map[string]models.FilterValue)
		}
		out.Filters[key] = values
	}

	return out
}

// Build returns the cache key for req. Every component is query-escaped so
// the separators only ever appear between components.
func (f *Fingerprinter) Build(req *models.SearchRequest) string {
	n := f.Normalize(req)

	filters := defaultFiltersToken
	if len(n.Filters) > 0 {
		keys := make([]string, 0, len(n.Filters))
		for k := range n.Filters {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			values := make([]string, 0, len(n.Filters[k]))
			for _, v := range n.Filters[k] {
				values = append(values, url.QueryEscape(v))
			}
			pairs = append(pairs, url.QueryEscape(k)+"="+strings.Join(values, ","))
		}
		filters = strings.Join(pairs, "&")
	}

	var sb strings.Builder
	sb.WriteString(url.QueryEscape(n.Query))
	sb.WriteByte('|')
	sb.WriteString(filters)
	sb.WriteString("|pageSize=")
	sb.WriteString(strconv.Itoa(n.PageSize))

	switch {
	case f.paging == PageByToken && n.PageToken != "":
		sb.WriteString("|page=")
		sb.WriteString(url.QueryEscape(n.PageToken))
	case f.paging == PageByOffset && n.Offset > 0:
		sb.WriteString("|page=")
		sb.WriteString(strconv.Itoa(n.Offset))
	}

	return sb.String()
}

// NormalizeQuery lowercases q and collapses runs of whitespace
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// canonicalValues trims, dedupes and sorts filter values
func canonicalValues(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func equalValues(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
