package driving

import (
	"context"

	"github.com/laws-africa/peachjam/internal/core/domain"
)

// DocumentService manages canonical documents.
type DocumentService interface {
	// Get retrieves a document by ID.
	Get(ctx context.Context, id int64) (*domain.Document, error)

	// GetByExpressionURI retrieves a document by its expression FRBR URI.
	GetByExpressionURI(ctx context.Context, uri string) (*domain.Document, error)

	// SaveDocument derives identifiers, persists the document and emits DocumentSaved.
	// Returns the stored document.
	SaveDocument(ctx context.Context, doc *domain.Document) (*domain.Document, error)

	// DeleteDocument removes a document and emits DocumentDeleted.
	DeleteDocument(ctx context.Context, id int64) error
}

// RelatedService finds semantically related documents.
type RelatedService interface {
	// Related returns up to n documents related to the sources, best first.
	Related(ctx context.Context, documentIDs []int64, n int) ([]RelatedDocument, error)
}

// RelatedDocument is a related-documents result.
type RelatedDocument struct {
	Document   domain.Document
	Similarity float64
	Score      float64
}
