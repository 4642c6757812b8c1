package services

import (
	"context"
	"fmt"

	"github.com/laws-africa/peachjam/internal/citations"
	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
	"github.com/laws-africa/peachjam/internal/core/ports/driving"
	"github.com/laws-africa/peachjam/internal/logger"
	"github.com/laws-africa/peachjam/internal/normalisers/html"
)

// Ensure CitationService implements the interface.
var _ driving.CitationService = (*CitationService)(nil)

// CitationService turns matcher output into citation edges between works.
type CitationService struct {
	documents driven.DocumentStore
	citations driven.CitationStore
	extractor *citations.Extractor
	events    *EventBus
}

// NewCitationService creates a citation service. events may be nil.
func NewCitationService(
	documents driven.DocumentStore,
	store driven.CitationStore,
	extractor *citations.Extractor,
	events *EventBus,
) *CitationService {
	return &CitationService{documents: documents, citations: store, extractor: extractor, events: events}
}

// ExtractCitations replaces a document's citations wholesale. Matches whose
// target work is not stored locally are dropped.
func (s *CitationService) ExtractCitations(ctx context.Context, documentID int64) (int, error) {
	doc, err := s.documents.GetDocument(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("loading document %d: %w", documentID, err)
	}

	spans, err := provisionSpans(doc)
	if err != nil {
		return 0, err
	}

	targets := make(map[string]*domain.Work)
	var edges []domain.Citation
	for _, m := range s.extractor.Extract(doc) {
		work, ok := targets[m.WorkURI]
		if !ok {
			work, err = s.documents.GetWorkByURI(ctx, m.WorkURI)
			if err != nil && !isNotFound(err) {
				return 0, fmt.Errorf("resolving %s: %w", m.WorkURI, err)
			}
			targets[m.WorkURI] = work
		}
		if work == nil {
			continue
		}
		edges = append(edges, domain.Citation{
			CitingWorkID:      doc.WorkID,
			CitingWorkURI:     doc.WorkFrbrURI,
			TargetWorkID:      work.ID,
			TargetWorkURI:     work.FrbrURI,
			CitingDocumentID:  doc.ID,
			CitingProvisionID: citations.InnermostProvision(spans, m.Start, m.End),
			TargetProvisionID: m.TargetProvisionID,
			Start:             m.Start,
			End:               m.End,
			Text:              m.Text,
			URL:               m.URL,
		})
	}

	if err := s.citations.ReplaceCitations(ctx, doc.ID, edges); err != nil {
		return 0, fmt.Errorf("saving citations of %d: %w", doc.ID, err)
	}
	logger.Debug("%s: %d citations", doc.ExpressionFrbrURI, len(edges))

	if s.events != nil {
		err := s.events.Emit(ctx, domain.Event{
			Kind:       domain.EventCitationsExtracted,
			DocumentID: doc.ID,
			WorkID:     doc.WorkID,
			Language:   doc.Language,
		})
		if err != nil {
			return len(edges), err
		}
	}
	return len(edges), nil
}

// provisionSpans locates each TOC provision's text within the document text.
func provisionSpans(doc *domain.Document) ([]citations.Span, error) {
	if doc.ContentHTML == "" || len(doc.TOC) == 0 {
		return nil, nil
	}
	flat := domain.FlattenTOC(doc.TOC)
	ids := make([]string, 0, len(flat))
	for _, e := range flat {
		ids = append(ids, e.ID)
	}
	bodies, err := html.ProvisionTexts(doc.ContentHTML, ids)
	if err != nil {
		return nil, fmt.Errorf("extracting provisions of %d: %w", doc.ID, err)
	}
	return citations.ProvisionSpans(doc.ContentText, doc.TOC, bodies), nil
}
