package domain

import (
	"sort"
	"time"
)

// Work is the stable identity of a piece of legal content across languages
// and points in time.
type Work struct {
	ID int64

	// FrbrURI is the work-level identifier, e.g. /akn/za/act/2009/1.
	FrbrURI string

	Title string

	// Languages lists the 3-letter codes of expressions that exist for this work.
	Languages []string

	// Stub works are placeholders created for relationship targets.
	Stub bool

	// Ranking fields, written by the authority ranker.
	Pagerank               float64
	PagerankNormalized     float64
	NCitingWorksNormalized float64
	AuthorityScore         float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Predicate names a typed relationship between two works.
type Predicate string

// Relationship predicates.
const (
	PredicateAmendedBy   Predicate = "amended-by"
	PredicateAmends      Predicate = "amends"
	PredicateRepealedBy  Predicate = "repealed-by"
	PredicateRepeals     Predicate = "repeals"
	PredicateCommencedBy Predicate = "commenced-by"
	PredicateCommences   Predicate = "commences"
	PredicateParentOf    Predicate = "parent-of"
	PredicateChildOf     Predicate = "child-of"
)

// Relationship links two works. It is metadata, distinct from a Citation.
type Relationship struct {
	SubjectWorkURI string
	ObjectWorkURI  string
	Predicate      Predicate
}

// Topic is a taxonomy node stamped on documents. Slugs are path-like,
// e.g. "subject-areas-land-tenure".
type Topic struct {
	Slug string
	Name string
}

// SortedLanguages returns the unique language codes in stable order.
func SortedLanguages(langs []string) []string {
	seen := make(map[string]bool, len(langs))
	out := make([]string, 0, len(langs))
	for _, l := range langs {
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
