package driving

import "context"

// IndexService maintains the search indexes.
type IndexService interface {
	// EnsureIndexes creates every language index, failing on mapping mismatch.
	EnsureIndexes(ctx context.Context) error

	// ReindexDocument writes one document to its language index, or removes it
	// when it is no longer searchable.
	ReindexDocument(ctx context.Context, documentID int64) error

	// UnindexDocument removes a deleted document from its language index and
	// rewrites the remaining expressions of its work in that language.
	UnindexDocument(ctx context.Context, documentID, workID int64, language string) error

	// ReindexAll rewrites every document and returns how many were indexed.
	ReindexAll(ctx context.Context) (int, error)
}

// EmbeddingsService maintains chunks and embeddings.
type EmbeddingsService interface {
	// RefreshDocument re-chunks and re-embeds a document when its content changed.
	RefreshDocument(ctx context.Context, documentID int64) error
}

// CitationService extracts citation edges.
type CitationService interface {
	// ExtractCitations replaces a document's citations and returns how many were found.
	ExtractCitations(ctx context.Context, documentID int64) (int, error)
}
