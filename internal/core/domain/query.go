package domain

import "time"

// Query is a node of a backend-neutral query plan. The search index adapter
// compiles it to its own query language.
type Query interface {
	isQuery()
}

// Operator joins the terms of a query string.
type Operator string

// Operators.
const (
	OperatorOr  Operator = "or"
	OperatorAnd Operator = "and"
)

// FieldBoost is a searched field with its boost. A zero boost means 1.
type FieldBoost struct {
	Field string
	Boost float64
}

// BoolQuery combines clauses. Filter clauses restrict without scoring.
type BoolQuery struct {
	Must    []Query
	Should  []Query
	Filter  []Query
	MustNot []Query

	// MinimumShouldMatch is the number of Should clauses that must match.
	// Zero means none are required when Must or Filter are present, else one.
	MinimumShouldMatch int
}

// SimpleQueryString matches free text across several fields.
// Quoted phrases match as phrases and a leading '-' negates a term.
type SimpleQueryString struct {
	Query    string
	Fields   []FieldBoost
	Operator Operator

	// MinimumShouldMatch uses the "N<P%" form: all terms when there are at
	// most N, otherwise P percent of them rounded down.
	MinimumShouldMatch string

	Boost float64
}

// MatchPhrase matches an exact phrase in one field.
type MatchPhrase struct {
	Field string
	Query string
	Slop  int
	Boost float64
}

// Match matches analysed text in one field.
type Match struct {
	Field    string
	Query    string
	Operator Operator
	Boost    float64
}

// Nested scores parents by their best matching child.
type Nested struct {
	// Path is "pages" or "provisions".
	Path  string
	Query Query

	// InnerHits, when set, returns the best children with highlights.
	InnerHits *InnerHits
}

// InnerHits configures child hits returned with a parent.
type InnerHits struct {
	Size            int
	HighlightFields []string
}

// Terms matches any of the values exactly.
type Terms struct {
	Field  string
	Values []string
}

// BoolTerm matches a boolean field.
type BoolTerm struct {
	Field string
	Value bool
}

// Range bounds a date field.
type Range struct {
	Field string
	Gte   *time.Time
	Lte   *time.Time
}

// RankFeature adds a saturated boost: Boost * v / (v + Pivot).
type RankFeature struct {
	Field string
	Pivot float64
	Boost float64
}

// DocScores matches exactly the given documents with the given scores.
// It carries the output of a vector retriever into the lexical plan.
type DocScores struct {
	Scores map[string]float64
	Boost  float64
}

// MatchAll matches every document.
type MatchAll struct{}

func (BoolQuery) isQuery()         {}
func (SimpleQueryString) isQuery() {}
func (MatchPhrase) isQuery()       {}
func (Match) isQuery()             {}
func (Nested) isQuery()            {}
func (Terms) isQuery()             {}
func (BoolTerm) isQuery()          {}
func (Range) isQuery()             {}
func (RankFeature) isQuery()       {}
func (DocScores) isQuery()         {}
func (MatchAll) isQuery()          {}

// SortField orders hits by a stored field.
type SortField struct {
	Field string
	Desc  bool
}

// HighlightField configures highlighting of one field.
// NumberOfFragments of 0 marks the whole value.
type HighlightField struct {
	FragmentSize      int
	NumberOfFragments int
}

// Aggregation counts terms of Field over hits matching Filter.
type Aggregation struct {
	Field  string
	Filter Query
	Size   int
}

// IndexSearch is a compiled search against one or more indexes.
type IndexSearch struct {
	Indexes []string

	Query Query

	// PostFilter restricts hits but not aggregations.
	PostFilter Query

	Aggregations map[string]Aggregation

	// Sort is empty for relevance order.
	Sort []SortField

	From int
	Size int

	Highlight map[string]HighlightField

	SourceExcludes []string
}

// IndexResult is the raw result of an IndexSearch.
type IndexResult struct {
	Total        int
	Hits         []IndexHit
	Aggregations map[string][]FacetBucket

	// FailedIndexes lists indexes that errored in non-strict mode.
	FailedIndexes []string
}

// IndexHit is a parent document hit.
type IndexHit struct {
	ID        string
	Index     string
	Score     float64
	Source    map[string]any
	Highlight map[string][]string
	InnerHits map[string][]InnerHit
}

// InnerHit is a child hit of a nested query.
type InnerHit struct {
	ID        string
	Score     float64
	Source    map[string]any
	Highlight map[string][]string
}
