package services

import (
	"context"
	"fmt"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
	"github.com/laws-africa/peachjam/internal/core/ports/driving"
	"github.com/laws-africa/peachjam/internal/logger"
	"github.com/laws-africa/peachjam/internal/telemetry"
)

// Ensure EmbeddingsService implements the interface.
var _ driving.EmbeddingsService = (*EmbeddingsService)(nil)

// EmbeddingsService maintains content chunks, their embeddings and the
// per-document aggregate.
type EmbeddingsService struct {
	documents driven.DocumentStore
	chunks    driven.ChunkStore
	pipeline  driven.PostProcessorPipeline
	embedder  driven.EmbeddingService
	vectors   driven.VectorIndex
	events    *EventBus
	metrics   *telemetry.Metrics
	excluded  map[string]bool
}

// EmbeddingsConfig groups the collaborators of an EmbeddingsService.
// Embedder may be nil, which disables embedding; chunks of ineligible
// documents are still removed.
type EmbeddingsConfig struct {
	Documents driven.DocumentStore
	Chunks    driven.ChunkStore
	Pipeline  driven.PostProcessorPipeline
	Embedder  driven.EmbeddingService
	Vectors   driven.VectorIndex
	Events    *EventBus
	Metrics   *telemetry.Metrics
	Settings  domain.EmbeddingSettings
}

// NewEmbeddingsService creates an embeddings service.
func NewEmbeddingsService(cfg EmbeddingsConfig) *EmbeddingsService {
	excluded := make(map[string]bool, len(cfg.Settings.ExcludeDoctypes))
	for _, d := range cfg.Settings.ExcludeDoctypes {
		excluded[d] = true
	}
	return &EmbeddingsService{
		documents: cfg.Documents,
		chunks:    cfg.Chunks,
		pipeline:  cfg.Pipeline,
		embedder:  cfg.Embedder,
		vectors:   cfg.Vectors,
		events:    cfg.Events,
		metrics:   cfg.Metrics,
		excluded:  excluded,
	}
}

// RefreshDocument re-chunks and re-embeds a document when its content or
// summary changed. Ineligible documents and stale siblings lose their chunks.
func (s *EmbeddingsService) RefreshDocument(ctx context.Context, documentID int64) error {
	doc, err := s.documents.GetDocument(ctx, documentID)
	if isNotFound(err) {
		return s.clear(ctx, documentID)
	}
	if err != nil {
		return fmt.Errorf("loading document %d: %w", documentID, err)
	}

	if err := s.clearStaleSiblings(ctx, doc); err != nil {
		return err
	}
	if !s.Eligible(doc) {
		logger.Debug("%s is not eligible for embeddings", doc.ExpressionFrbrURI)
		return s.clear(ctx, doc.ID)
	}

	contentMD5 := domain.TextMD5(doc.ContentText)
	summaryMD5 := domain.TextMD5(doc.SummaryText())
	existing, err := s.chunks.GetDocumentEmbedding(ctx, doc.ID)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("loading embedding of %d: %w", doc.ID, err)
	}
	if existing != nil && existing.ContentTextMD5 == contentMD5 && existing.SummaryTextMD5 == summaryMD5 {
		logger.Debug("%s is unchanged, skipping embeddings", doc.ExpressionFrbrURI)
		return nil
	}
	if s.embedder == nil {
		logger.Debug("no embedding service configured, skipping %s", doc.ExpressionFrbrURI)
		return nil
	}

	chunks, err := s.pipeline.Process(ctx, doc)
	if err != nil {
		return fmt.Errorf("chunking %d: %w", doc.ID, err)
	}
	if err := s.embed(ctx, chunks); err != nil {
		return err
	}
	if err := s.chunks.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
		return fmt.Errorf("saving chunks of %d: %w", doc.ID, err)
	}

	err = s.chunks.SaveDocumentEmbedding(ctx, &domain.DocumentEmbedding{
		DocumentID:     doc.ID,
		Embedding:      AggregateEmbedding(doc, chunks),
		ContentTextMD5: contentMD5,
		SummaryTextMD5: summaryMD5,
	})
	if err != nil {
		return fmt.Errorf("saving embedding of %d: %w", doc.ID, err)
	}

	if s.vectors != nil {
		vecs := make([]driven.ChunkVector, 0, len(chunks))
		for _, c := range chunks {
			vecs = append(vecs, driven.ChunkVector{ChunkID: c.ID, Embedding: c.Embedding})
		}
		if err := s.vectors.Upsert(ctx, doc.ID, vecs); err != nil {
			return fmt.Errorf("indexing vectors of %d: %w", doc.ID, err)
		}
	}
	logger.Debug("%s: embedded %d chunks", doc.ExpressionFrbrURI, len(chunks))

	if s.events != nil {
		return s.events.Emit(ctx, domain.Event{
			Kind:       domain.EventEmbeddingsRefreshed,
			DocumentID: doc.ID,
			WorkID:     doc.WorkID,
			Language:   doc.Language,
		})
	}
	return nil
}

// Eligible reports whether a document should carry embeddings.
func (s *EmbeddingsService) Eligible(doc *domain.Document) bool {
	switch {
	case s.excluded[doc.Doctype]:
		return false
	case !doc.MostRecent:
		return false
	case doc.ContentText == "" && doc.SummaryText() == "":
		return false
	default:
		return true
	}
}

func (s *EmbeddingsService) embed(ctx context.Context, chunks []domain.ContentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vecs, err := s.embedder.EmbedBatch(ctx, texts)
	s.metrics.EmbeddingCall(len(texts), err)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrEmbeddingFailure, err)
	}
	if len(vecs) != len(chunks) {
		return fmt.Errorf("%w: got %d vectors for %d chunks", domain.ErrEmbeddingFailure, len(vecs), len(chunks))
	}
	for i := range chunks {
		v := vecs[i]
		if !domain.Normalize(v) {
			v = nil
		}
		chunks[i].Embedding = v
	}
	return nil
}

func (s *EmbeddingsService) clear(ctx context.Context, documentID int64) error {
	if err := s.chunks.DeleteChunks(ctx, documentID); err != nil {
		return fmt.Errorf("deleting chunks of %d: %w", documentID, err)
	}
	if s.vectors != nil {
		if err := s.vectors.DeleteDocument(ctx, documentID); err != nil {
			return fmt.Errorf("deleting vectors of %d: %w", documentID, err)
		}
	}
	return nil
}

// clearStaleSiblings drops the chunks of siblings that are no longer most recent.
func (s *EmbeddingsService) clearStaleSiblings(ctx context.Context, doc *domain.Document) error {
	siblings, err := s.documents.SiblingDocuments(ctx, doc.WorkID, doc.Language)
	if err != nil {
		return fmt.Errorf("loading siblings of %d: %w", doc.ID, err)
	}
	for _, sib := range siblings {
		if sib.ID == doc.ID || sib.MostRecent {
			continue
		}
		if err := s.clear(ctx, sib.ID); err != nil {
			return err
		}
	}
	return nil
}

// AggregateEmbedding is the unit mean of a document's top-level provision and
// summary chunks, or of all chunks for documents without provisions. It is nil
// when there is nothing to average or the mean is zero.
func AggregateEmbedding(doc *domain.Document, chunks []domain.ContentChunk) []float32 {
	var topLevel map[string]bool
	if doc.HasProvisions() {
		topLevel = make(map[string]bool, len(doc.TOC))
		for _, e := range doc.TOC {
			topLevel[e.ID] = true
		}
	}

	var vecs [][]float32
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			continue
		}
		if topLevel != nil && c.Type != domain.ChunkTypeSummary && !topLevel[c.Portion] {
			continue
		}
		vecs = append(vecs, c.Embedding)
	}
	return domain.MeanUnitVector(vecs)
}
