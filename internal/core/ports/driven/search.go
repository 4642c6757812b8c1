package driven

import (
	"context"

	"github.com/laws-africa/peachjam/internal/core/domain"
)

// SearchIndex provides full-text indexing and search over named indexes.
// Backed by bleve, one index per analyzer language.
type SearchIndex interface {
	// EnsureIndex opens or creates the named index with the given analyzer.
	// It fails with ErrSchemaMismatch when an existing index has a different mapping.
	EnsureIndex(ctx context.Context, name, analyzer string) error

	// IndexDocuments adds or replaces documents, with their pages and provisions.
	IndexDocuments(ctx context.Context, index string, docs []IndexDocument) error

	// DeleteDocument removes a document and its children from an index.
	DeleteDocument(ctx context.Context, index, id string) error

	// UpdateRanking sets the ranking field of the given documents.
	UpdateRanking(ctx context.Context, index string, ranking map[string]float64) error

	// Search executes a compiled search across req.Indexes.
	Search(ctx context.Context, req domain.IndexSearch) (*domain.IndexResult, error)

	// Suggest returns up to size unique completions for prefix.
	Suggest(ctx context.Context, indexes []string, prefix string, size int) ([]string, error)

	// Close releases resources.
	Close() error
}

// IndexDocument is the flattened form of a document in the search index.
type IndexDocument struct {
	ID string

	// Fields holds the top-level searchable and facet fields.
	Fields map[string]any

	Pages      []IndexPage
	Provisions []IndexProvision

	// Suggest holds completion inputs, e.g. title and citation.
	Suggest []string
}

// IndexPage is a page child of an indexed document.
type IndexPage struct {
	PageNum int
	Body    string
}

// IndexProvision is a provision child of an indexed document.
type IndexProvision struct {
	ID           string
	Type         string
	Title        string
	Body         string
	ParentIDs    []string
	ParentTitles []string
}
