package domain

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// SearchMode selects how candidates are retrieved.
type SearchMode string

// Search modes.
const (
	// SearchModeText uses lexical scoring only.
	SearchModeText SearchMode = "text"

	// SearchModeSemantic uses kNN over chunk embeddings only.
	SearchModeSemantic SearchMode = "semantic"

	// SearchModeHybrid fuses text and semantic results with RRF.
	SearchModeHybrid SearchMode = "hybrid"
)

// IsValid returns true if the search mode is recognised.
func (m SearchMode) IsValid() bool {
	switch m {
	case SearchModeText, SearchModeSemantic, SearchModeHybrid:
		return true
	default:
		return false
	}
}

// RequiresEmbedding returns true if this mode needs a query embedding.
func (m SearchMode) RequiresEmbedding() bool {
	return m == SearchModeSemantic || m == SearchModeHybrid
}

// String returns the string representation.
func (m SearchMode) String() string {
	return string(m)
}

// Ordering is the sort order of search results.
type Ordering string

// Orderings.
const (
	OrderingScore    Ordering = "-score"
	OrderingDate     Ordering = "date"
	OrderingDateDesc Ordering = "-date"
)

// IsValid returns true if the ordering is recognised.
func (o Ordering) IsValid() bool {
	return o == OrderingScore || o == OrderingDate || o == OrderingDateDesc
}

// PageSize is the fixed number of results per page.
const PageSize = 10

// MaxPage is the last page a search may request.
const MaxPage = 10

// QuoteWordCount is the word count at which a query is classified as a quote.
const QuoteWordCount = 40

// FacetFields are applied as post-filters and aggregated with self-exclusion.
var FacetFields = []string{
	"doc_type", "authors", "jurisdiction", "locality", "matter_type", "year",
	"nature", "language", "court", "judges", "registry", "attorneys", "outcome",
	"labels", "case_action",
}

// TermFilterFields are applied as pre-filter term queries.
var TermFilterFields = []string{"topics", "work_frbr_uri", "kind"}

// RangeFields accept __gte, __lte and __range filters.
var RangeFields = []string{"date", "created_at"}

// AdvancedFields may be searched individually with search__<field>.
var AdvancedFields = []string{
	"title", "title_expanded", "citation", "alternative_names", "content",
	"case_number", "case_name", "judges_text", "all",
}

// IsFacetField returns true if field is a facet.
func IsFacetField(field string) bool {
	return contains(FacetFields, field)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// DateRange bounds a date field. Either end may be nil.
type DateRange struct {
	Gte *time.Time
	Lte *time.Time
}

// IsZero returns true when neither bound is set.
func (r DateRange) IsZero() bool {
	return r.Gte == nil && r.Lte == nil
}

// SearchRequest is a validated search form.
type SearchRequest struct {
	Query        string
	FieldQueries map[string]string
	Filters      map[string][]string
	Ranges       map[string]DateRange

	Page     int
	Ordering Ordering
	Mode     SearchMode

	// IsAlert marks saved-search alert runs, which are not traced.
	IsAlert bool

	PreviousTraceID string
	UserAgent       string
	IPAddress       string

	// Debug asks for can_debug on the response when the caller is allowed.
	Debug bool
}

// IsAdvanced returns true if any per-field query is present.
func (r *SearchRequest) IsAdvanced() bool {
	for _, v := range r.FieldQueries {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// From returns the offset of the first hit on the requested page.
func (r *SearchRequest) From() int {
	return (r.Page - 1) * PageSize
}

// FacetFilters returns the user filters on facet fields.
func (r *SearchRequest) FacetFilters() map[string][]string {
	out := make(map[string][]string)
	for k, v := range r.Filters {
		if IsFacetField(k) && len(v) > 0 {
			out[k] = v
		}
	}
	return out
}

// TermFilters returns the user filters on non-facet fields.
func (r *SearchRequest) TermFilters() map[string][]string {
	out := make(map[string][]string)
	for k, v := range r.Filters {
		if !IsFacetField(k) && len(v) > 0 {
			out[k] = v
		}
	}
	return out
}

// ParseSearchForm validates query parameters into a SearchRequest.
// Field-level problems are returned as FieldErrors.
func ParseSearchForm(values url.Values) (SearchRequest, error) {
	req := SearchRequest{
		Query:        strings.TrimSpace(values.Get("q")),
		FieldQueries: make(map[string]string),
		Filters:      make(map[string][]string),
		Ranges:       make(map[string]DateRange),
		Page:         1,
		Ordering:     OrderingScore,
		Mode:         SearchModeText,
	}
	errs := FieldErrors{}

	if p := values.Get("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > MaxPage {
			errs.Add("page", fmt.Sprintf("must be between 1 and %d", MaxPage))
		} else {
			req.Page = n
		}
	}
	if o := values.Get("ordering"); o != "" {
		req.Ordering = Ordering(o)
		if !req.Ordering.IsValid() {
			errs.Add("ordering", "must be one of -score, date, -date")
		}
	}
	if m := values.Get("mode"); m != "" {
		req.Mode = SearchMode(m)
		if !req.Mode.IsValid() {
			errs.Add("mode", "must be one of text, semantic, hybrid")
		}
	}

	for _, f := range AdvancedFields {
		if v := strings.TrimSpace(values.Get("search__" + f)); v != "" {
			req.FieldQueries[f] = v
		}
	}
	if req.FieldQueries["all"] != "" && req.FieldQueries["content"] != "" {
		errs.Add("search__content", "cannot be combined with search__all")
	}

	for _, f := range append(append([]string{}, FacetFields...), TermFilterFields...) {
		if vs := nonEmpty(values[f]); len(vs) > 0 {
			req.Filters[f] = vs
		}
	}

	for _, f := range RangeFields {
		r, ok := parseRange(values, f, errs)
		if ok && !r.IsZero() {
			req.Ranges[f] = r
		}
	}

	req.IsAlert = values.Get("is_alert") == "true"
	req.PreviousTraceID = values.Get("previous_trace_id")
	req.Debug = values.Get("debug") == "true"

	if req.Query == "" && !req.IsAdvanced() {
		errs.Add("q", "a search query is required")
	}

	if len(errs) > 0 {
		return req, errs
	}
	return req, nil
}

func nonEmpty(vs []string) []string {
	var out []string
	for _, v := range vs {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseRange(values url.Values, field string, errs FieldErrors) (DateRange, bool) {
	var r DateRange
	ok := true
	parse := func(key, s string) *time.Time {
		t, err := ParseISODate(s)
		if err != nil {
			errs.Add(key, "must be an ISO date")
			ok = false
			return nil
		}
		return &t
	}
	if v := values.Get(field + "__range"); v != "" {
		lo, hi, found := strings.Cut(v, "__")
		if !found {
			errs.Add(field+"__range", "must be <date>__<date>")
			return r, false
		}
		if lo != "" {
			r.Gte = parse(field+"__range", lo)
		}
		if hi != "" {
			r.Lte = parse(field+"__range", hi)
		}
	}
	if v := values.Get(field + "__gte"); v != "" {
		r.Gte = parse(field+"__gte", v)
	}
	if v := values.Get(field + "__lte"); v != "" {
		r.Lte = parse(field+"__lte", v)
	}
	return r, ok
}

// ParseISODate parses YYYY-MM-DD or a full RFC 3339 timestamp.
func ParseISODate(s string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// FiltersString returns a canonical encoding of the request's filters.
// It is invariant under reordering of keys and of values within a key.
func (r *SearchRequest) FiltersString() string {
	v := url.Values{}
	for k, vals := range r.Filters {
		sorted := append([]string(nil), vals...)
		sort.Strings(sorted)
		v[k] = sorted
	}
	for k, rng := range r.Ranges {
		if rng.Gte != nil {
			v.Set(k+"__gte", rng.Gte.Format(DateLayout))
		}
		if rng.Lte != nil {
			v.Set(k+"__lte", rng.Lte.Format(DateLayout))
		}
	}
	// Encode sorts by key
	return v.Encode()
}

// QueryClass labels the shape of a free-text query.
type QueryClass string

// Query classes.
const (
	QueryClassQuote    QueryClass = "QUOTE"
	QueryClassCitation QueryClass = "CITATION"
	QueryClassKeywords QueryClass = "KEYWORDS"
)

var citationQueryRe = regexp.MustCompile(`^\[\d{4}\]\s+[A-Za-z]+\s+\d+$|^/akn/`)

// ClassifyQuery labels a query. Empty queries have no class.
func ClassifyQuery(q string) QueryClass {
	q = strings.TrimSpace(q)
	switch {
	case q == "":
		return ""
	case len(strings.Fields(q)) >= QuoteWordCount:
		return QueryClassQuote
	case citationQueryRe.MatchString(q):
		return QueryClassCitation
	default:
		return QueryClassKeywords
	}
}

// SearchResponse is the result of a search.
type SearchResponse struct {
	Count    int                    `json:"count"`
	Results  []SearchHit            `json:"results"`
	Facets   map[string]FacetResult `json:"facets"`
	TraceID  *string                `json:"trace_id"`
	CanDebug bool                   `json:"can_debug"`
}

// SearchHit is a single matched document.
type SearchHit struct {
	ID         string              `json:"id"`
	Score      float64             `json:"score"`
	Highlight  map[string][]string `json:"highlight"`
	Pages      []PageHit           `json:"pages"`
	Provisions []ProvisionHit      `json:"provisions"`
	Document   map[string]any      `json:"document"`
	BestMatch  bool                `json:"best_match,omitempty"`
}

// PageHit is a matching page of a paged document.
type PageHit struct {
	PageNum   int                 `json:"page_num"`
	Score     float64             `json:"score"`
	Highlight map[string][]string `json:"highlight"`
}

// ProvisionHit is a matching provision of a marked-up document.
type ProvisionHit struct {
	ID        string              `json:"id"`
	Type      string              `json:"type"`
	Title     string              `json:"title"`
	ParentIDs []string            `json:"parent_ids"`
	Score     float64             `json:"score"`
	Highlight map[string][]string `json:"highlight"`
}

// FacetResult holds a facet's buckets.
type FacetResult struct {
	Buckets []FacetBucket `json:"buckets"`
}

// FacetBucket is a single facet value and its count.
type FacetBucket struct {
	Key      string `json:"key"`
	DocCount int    `json:"doc_count"`
}

// BestMatchRatio is the score ratio of the first two hits above which the first is a best match.
const BestMatchRatio = 1.2

// Suggestion is an auto-complete entry.
type Suggestion struct {
	Text string `json:"text"`
}

// MaxSuggestions caps the number of completions returned.
const MaxSuggestions = 5
