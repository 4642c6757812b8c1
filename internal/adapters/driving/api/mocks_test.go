package api

import (
	"context"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driving"
)

type mockSearch struct {
	response    *domain.SearchResponse
	suggestions []string
	err         error
	lastRequest domain.SearchRequest
	lastPrefix  string
}

func (m *mockSearch) Search(_ context.Context, req domain.SearchRequest) (*domain.SearchResponse, error) {
	m.lastRequest = req
	if m.err != nil {
		return nil, m.err
	}
	if m.response == nil {
		return &domain.SearchResponse{Results: []domain.SearchHit{}, Facets: map[string]domain.FacetResult{}}, nil
	}
	return m.response, nil
}

func (m *mockSearch) Suggest(_ context.Context, prefix string) ([]string, error) {
	m.lastPrefix = prefix
	return m.suggestions, m.err
}

type mockTraces struct {
	traces    []domain.SearchTrace
	lastLimit int
}

func (m *mockTraces) GetTrace(_ context.Context, id string) (*domain.SearchTrace, error) {
	for i := range m.traces {
		if m.traces[i].ID == id {
			return &m.traces[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockTraces) ListTraces(_ context.Context, limit int) ([]domain.SearchTrace, error) {
	m.lastLimit = limit
	return m.traces, nil
}

type mockRelated struct {
	results []driving.RelatedDocument
	err     error
	lastIDs []int64
	lastN   int
}

func (m *mockRelated) Related(_ context.Context, ids []int64, n int) ([]driving.RelatedDocument, error) {
	m.lastIDs, m.lastN = ids, n
	return m.results, m.err
}

type webhookCall struct {
	name    string
	payload string
}

type mockIngestion struct {
	calls []webhookCall
	err   error
}

func (m *mockIngestion) ListIngestors(context.Context) ([]domain.Ingestor, error) { return nil, nil }

func (m *mockIngestion) SaveIngestor(context.Context, *domain.Ingestor) error { return nil }

func (m *mockIngestion) CheckForUpdates(context.Context, int64) (int, int, error) { return 0, 0, nil }

func (m *mockIngestion) UpdateDocument(context.Context, int64, string) error { return nil }

func (m *mockIngestion) DeleteDocument(context.Context, int64, string) error { return nil }

func (m *mockIngestion) HandleWebhook(_ context.Context, name string, payload []byte) error {
	m.calls = append(m.calls, webhookCall{name: name, payload: string(payload)})
	return m.err
}

func (m *mockIngestion) WatchAll(context.Context, func(int)) error { return nil }
