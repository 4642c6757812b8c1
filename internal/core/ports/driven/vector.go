package driven

import "context"

// VectorIndex provides nearest-neighbour search over chunk embeddings.
type VectorIndex interface {
	// Upsert replaces the vectors of a document.
	Upsert(ctx context.Context, documentID int64, vectors []ChunkVector) error

	// DeleteDocument removes a document's vectors.
	DeleteDocument(ctx context.Context, documentID int64) error

	// Search returns the best chunk of up to k distinct documents, among
	// chunks with inner product >= minSimilarity. k is capped at numCandidates.
	Search(ctx context.Context, query []float32, k, numCandidates int, minSimilarity float64) ([]VectorHit, error)

	// Len returns the number of indexed vectors.
	Len() int

	// Close releases resources.
	Close() error
}

// ChunkVector is one embedded chunk.
type ChunkVector struct {
	ChunkID   int64
	Embedding []float32
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// DocumentID owns the matched chunk.
	DocumentID int64

	// ChunkID is the matched chunk.
	ChunkID int64

	// Similarity is the inner product of unit vectors.
	Similarity float64
}
