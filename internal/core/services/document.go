package services

import (
	"context"
	"fmt"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
	"github.com/laws-africa/peachjam/internal/core/ports/driving"
	"github.com/laws-africa/peachjam/internal/logger"
	"github.com/laws-africa/peachjam/internal/normalisers/html"
)

// Ensure DocumentService implements the interfaces.
var (
	_ driving.DocumentService = (*DocumentService)(nil)
	_ driven.DocumentWriter   = (*DocumentService)(nil)
)

// DocumentService manages canonical documents and emits lifecycle events.
type DocumentService struct {
	store  driven.DocumentStore
	events *EventBus
}

// NewDocumentService creates a new document service. events may be nil.
func NewDocumentService(store driven.DocumentStore, events *EventBus) *DocumentService {
	return &DocumentService{store: store, events: events}
}

// Get retrieves a document by ID.
func (s *DocumentService) Get(ctx context.Context, id int64) (*domain.Document, error) {
	return s.store.GetDocument(ctx, id)
}

// GetByExpressionURI retrieves a document by its expression FRBR URI.
func (s *DocumentService) GetByExpressionURI(ctx context.Context, uri string) (*domain.Document, error) {
	return s.store.GetDocumentByExpressionURI(ctx, uri)
}

// GetDocumentByExpressionURI is the DocumentWriter spelling of GetByExpressionURI.
func (s *DocumentService) GetDocumentByExpressionURI(ctx context.Context, uri string) (*domain.Document, error) {
	return s.GetByExpressionURI(ctx, uri)
}

// SaveDocument derives identifiers and text, persists the document and emits DocumentSaved.
func (s *DocumentService) SaveDocument(ctx context.Context, doc *domain.Document) (*domain.Document, error) {
	if doc == nil {
		return nil, domain.ErrInvalidInput
	}
	prev, err := s.store.SaveDocument(ctx, doc, PrepareDocument)
	if err != nil {
		return nil, fmt.Errorf("saving document: %w", err)
	}
	logger.Debug("saved %s (id=%d most_recent=%v)", doc.ExpressionFrbrURI, doc.ID, doc.MostRecent)

	if err := s.emit(ctx, domain.Event{
		Kind:                  domain.EventDocumentSaved,
		DocumentID:            doc.ID,
		WorkID:                doc.WorkID,
		Language:              doc.Language,
		CitationInputsChanged: doc.CitationInputsChanged(prev),
	}); err != nil {
		return nil, err
	}
	return doc, nil
}

// DeleteDocument removes a document and emits DocumentDeleted. The Work is kept.
func (s *DocumentService) DeleteDocument(ctx context.Context, id int64) error {
	doc, err := s.store.DeleteDocument(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting document %d: %w", id, err)
	}
	return s.emit(ctx, domain.Event{
		Kind:       domain.EventDocumentDeleted,
		DocumentID: doc.ID,
		WorkID:     doc.WorkID,
		Language:   doc.Language,
	})
}

// UpdateWorkLanguages recomputes the languages of a work.
func (s *DocumentService) UpdateWorkLanguages(ctx context.Context, workID int64) ([]string, error) {
	return s.store.UpdateWorkLanguages(ctx, workID)
}

// ListExpressionURIs returns the expression URIs of all local documents.
func (s *DocumentService) ListExpressionURIs(ctx context.Context) ([]string, error) {
	return s.store.ListExpressionURIs(ctx)
}

// EnsureWork returns the work for uri, creating a stub when missing.
func (s *DocumentService) EnsureWork(ctx context.Context, uri, title string) (*domain.Work, error) {
	return s.store.EnsureWork(ctx, uri, title)
}

// ReplaceRelationships replaces the relationships whose subject is subjectURI.
func (s *DocumentService) ReplaceRelationships(ctx context.Context, subjectURI string, rels []domain.Relationship) error {
	return s.store.ReplaceRelationships(ctx, subjectURI, rels)
}

// SaveRatification stores a ratification.
func (s *DocumentService) SaveRatification(ctx context.Context, r *domain.Ratification) error {
	return s.store.SaveRatification(ctx, r)
}

// SaveTopics upserts taxonomy topics.
func (s *DocumentService) SaveTopics(ctx context.Context, topics []domain.Topic) error {
	return s.store.SaveTopics(ctx, topics)
}

func (s *DocumentService) emit(ctx context.Context, ev domain.Event) error {
	if s.events == nil {
		return nil
	}
	if err := s.events.Emit(ctx, ev); err != nil {
		return fmt.Errorf("emitting %s for document %d: %w", ev.Kind, ev.DocumentID, err)
	}
	return nil
}

// PrepareDocument applies kind defaults, refreshes the text content and derives
// identifiers. It runs inside the store's save transaction.
func PrepareDocument(doc *domain.Document, next driven.SerialAllocator) error {
	if doc.Kind == "" {
		doc.Kind = domain.KindGeneric
	}
	if !doc.Kind.IsValid() {
		return fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidInput, doc.Kind)
	}
	if doc.Doctype == "" {
		doc.Doctype = doc.Kind.DefaultDoctype()
	}

	if doc.Kind == domain.KindJudgment {
		err := domain.AssignJudgmentFrbrURI(doc, func() (int, error) {
			return next(doc.Judgment.Court.Code, doc.Date.Year())
		})
		if err != nil {
			return err
		}
	}

	if err := UpdateTextContent(doc); err != nil {
		return err
	}
	if err := doc.ValidateTOC(); err != nil {
		return err
	}
	return doc.DeriveIdentifiers()
}

// UpdateTextContent caches the plain text of marked-up content on the document.
// Paged plaintext is left as is, page breaks included.
func UpdateTextContent(doc *domain.Document) error {
	if doc.ContentHTML == "" {
		return nil
	}
	text, err := html.Text(doc.ContentHTML)
	if err != nil {
		return fmt.Errorf("extracting text: %w", err)
	}
	doc.ContentText = text
	return nil
}
