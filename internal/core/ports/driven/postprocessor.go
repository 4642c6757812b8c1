package driven

import (
	"context"

	"github.com/laws-africa/peachjam/internal/core/domain"
)

// PostProcessor turns a document into content chunks.
// PostProcessors are chained in a pipeline: the first creates chunks from
// the document, later ones split or rewrite them.
type PostProcessor interface {
	// Name returns the processor name for logging and configuration.
	Name() string

	// Process receives the chunks produced so far (nil for the first
	// processor) and returns the new set.
	Process(ctx context.Context, doc *domain.Document, chunks []domain.ContentChunk) ([]domain.ContentChunk, error)
}

// PostProcessorPipeline chains multiple PostProcessors.
type PostProcessorPipeline interface {
	// Process runs the document through all processors in order.
	Process(ctx context.Context, doc *domain.Document) ([]domain.ContentChunk, error)
}
