package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
	"github.com/laws-africa/peachjam/internal/core/ports/driving"
)

// Ensure RelatedService implements the interface.
var _ driving.RelatedService = (*RelatedService)(nil)

// Related-document retrieval parameters.
const (
	RelatedMinSimilarity = 0.8
	RelatedCandidates    = 100
	RelatedSimWeight     = 0.9
	RelatedAuthWeight    = 0.1
	DefaultRelatedCount  = 10
)

// RelatedService finds documents similar to a set of source documents.
type RelatedService struct {
	documents driven.DocumentStore
	chunks    driven.ChunkStore
}

// NewRelatedService creates a related-documents service.
func NewRelatedService(documents driven.DocumentStore, chunks driven.ChunkStore) *RelatedService {
	return &RelatedService{documents: documents, chunks: chunks}
}

// Related averages the sources' aggregates, keeps the most similar
// most-recent documents of other works and reranks them by authority.
func (s *RelatedService) Related(ctx context.Context, documentIDs []int64, n int) ([]driving.RelatedDocument, error) {
	if n <= 0 {
		n = DefaultRelatedCount
	}

	sourceWorks := make(map[int64]bool)
	var vecs [][]float32
	for _, id := range documentIDs {
		doc, err := s.documents.GetDocument(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading document %d: %w", id, err)
		}
		sourceWorks[doc.WorkID] = true
		e, err := s.chunks.GetDocumentEmbedding(ctx, id)
		if isNotFound(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("loading embedding of %d: %w", id, err)
		}
		if len(e.Embedding) > 0 {
			vecs = append(vecs, e.Embedding)
		}
	}
	query := domain.MeanUnitVector(vecs)
	if query == nil {
		return []driving.RelatedDocument{}, nil
	}

	all, err := s.chunks.ListDocumentEmbeddings(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing embeddings: %w", err)
	}
	type candidate struct {
		id  int64
		sim float64
	}
	var candidates []candidate
	for _, e := range all {
		if sim := domain.Dot(query, e.Embedding); sim > RelatedMinSimilarity {
			candidates = append(candidates, candidate{e.DocumentID, sim})
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].sim > candidates[j].sim })

	works := make(map[int64]*domain.Work)
	out := []driving.RelatedDocument{}
	for _, c := range candidates {
		if len(out) == RelatedCandidates {
			break
		}
		doc, err := s.documents.GetDocument(ctx, c.id)
		if isNotFound(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("loading document %d: %w", c.id, err)
		}
		if sourceWorks[doc.WorkID] || !doc.MostRecent {
			continue
		}
		work, ok := works[doc.WorkID]
		if !ok {
			if work, err = s.documents.GetWork(ctx, doc.WorkID); err != nil {
				return nil, fmt.Errorf("loading work %d: %w", doc.WorkID, err)
			}
			works[doc.WorkID] = work
		}
		out = append(out, driving.RelatedDocument{
			Document:   *doc,
			Similarity: c.sim,
			Score:      RelatedSimWeight*c.sim + RelatedAuthWeight*work.AuthorityScore,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}
