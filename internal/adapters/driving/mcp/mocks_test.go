package mcp

import (
	"context"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driving"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	response    *domain.SearchResponse
	suggestions []string
	err         error
	lastRequest domain.SearchRequest
}

func (m *mockSearchService) Search(_ context.Context, req domain.SearchRequest) (*domain.SearchResponse, error) {
	m.lastRequest = req
	if m.err != nil {
		return nil, m.err
	}
	if m.response == nil {
		return &domain.SearchResponse{}, nil
	}
	return m.response, nil
}

func (m *mockSearchService) Suggest(_ context.Context, _ string) ([]string, error) {
	return m.suggestions, m.err
}

// mockRelatedService is a mock implementation of driving.RelatedService.
type mockRelatedService struct {
	results []driving.RelatedDocument
	err     error
	lastIDs []int64
	lastN   int
}

func (m *mockRelatedService) Related(_ context.Context, ids []int64, n int) ([]driving.RelatedDocument, error) {
	m.lastIDs, m.lastN = ids, n
	return m.results, m.err
}

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	document *domain.Document
	err      error
}

func (m *mockDocumentService) Get(_ context.Context, _ int64) (*domain.Document, error) {
	return m.document, m.err
}

func (m *mockDocumentService) GetByExpressionURI(_ context.Context, _ string) (*domain.Document, error) {
	return m.document, m.err
}

func (m *mockDocumentService) SaveDocument(_ context.Context, doc *domain.Document) (*domain.Document, error) {
	return doc, m.err
}

func (m *mockDocumentService) DeleteDocument(_ context.Context, _ int64) error {
	return m.err
}

// mockIngestionService is a mock implementation of driving.IngestionService.
type mockIngestionService struct {
	ingestors []domain.Ingestor
	err       error
}

func (m *mockIngestionService) ListIngestors(context.Context) ([]domain.Ingestor, error) {
	return m.ingestors, m.err
}

func (m *mockIngestionService) SaveIngestor(context.Context, *domain.Ingestor) error { return m.err }

func (m *mockIngestionService) CheckForUpdates(context.Context, int64) (int, int, error) {
	return 0, 0, m.err
}

func (m *mockIngestionService) UpdateDocument(context.Context, int64, string) error { return m.err }

func (m *mockIngestionService) DeleteDocument(context.Context, int64, string) error { return m.err }

func (m *mockIngestionService) HandleWebhook(context.Context, string, []byte) error { return m.err }

func (m *mockIngestionService) WatchAll(context.Context, func(int)) error { return m.err }
