package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driving"
)

func newTestServer(t *testing.T, ports Ports, cfg Config) http.Handler {
	t.Helper()
	if ports.Search == nil {
		ports.Search = &mockSearch{}
	}
	s, err := NewServer(ports, cfg)
	require.NoError(t, err)
	return s.Handler()
}

func do(t *testing.T, h http.Handler, method, target string, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestNewServer_RequiresSearch(t *testing.T) {
	_, err := NewServer(Ports{}, Config{})
	assert.ErrorIs(t, err, ErrMissingSearchService)
}

func TestHealthAndMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	h := newTestServer(t, Ports{}, Config{Metrics: metrics})

	rec := do(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = do(t, h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics", rec.Body.String())
}

func TestSearch(t *testing.T) {
	search := &mockSearch{response: &domain.SearchResponse{
		Count:   1,
		Results: []domain.SearchHit{{ID: "3", Score: 2, Document: map[string]any{"title": "Contract Act"}}},
		Facets:  map[string]domain.FacetResult{"court": {Buckets: []domain.FacetBucket{{Key: "ZACC", DocCount: 1}}}},
	}}
	h := newTestServer(t, Ports{Search: search}, Config{})

	rec := do(t, h, http.MethodGet, "/api/search?q=contract&page=2&court=ZACC&ordering=-date", "",
		map[string]string{"User-Agent": "test-agent", "X-Real-IP": "10.0.0.1"})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, float64(1), body["count"])
	results := body["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "3", results[0].(map[string]any)["id"])
	assert.Contains(t, body["facets"], "court")

	req := search.lastRequest
	assert.Equal(t, "contract", req.Query)
	assert.Equal(t, 2, req.Page)
	assert.Equal(t, domain.OrderingDateDesc, req.Ordering)
	assert.Equal(t, []string{"ZACC"}, req.Filters["court"])
	assert.Equal(t, "test-agent", req.UserAgent)
	assert.Equal(t, "10.0.0.1", req.IPAddress)
}

func TestSearch_InvalidForm(t *testing.T) {
	search := &mockSearch{}
	h := newTestServer(t, Ports{Search: search}, Config{})

	rec := do(t, h, http.MethodGet, "/api/search", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errs := decode(t, rec)["errors"].(map[string]any)
	assert.Contains(t, errs, "q")

	rec = do(t, h, http.MethodGet, "/api/search?q=x&page=11&mode=fuzzy", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errs = decode(t, rec)["errors"].(map[string]any)
	assert.Contains(t, errs, "page")
	assert.Contains(t, errs, "mode")

	assert.Empty(t, search.lastRequest.Query)
}

func TestSearch_Errors(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("index za: %w", domain.ErrSearchShardFailure), http.StatusBadGateway},
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			h := newTestServer(t, Ports{Search: &mockSearch{err: tt.err}}, Config{})
			rec := do(t, h, http.MethodGet, "/api/search?q=x", "", nil)
			assert.Equal(t, tt.code, rec.Code)
			assert.Contains(t, decode(t, rec)["error"], tt.err.Error())
		})
	}
}

func TestSuggest(t *testing.T) {
	search := &mockSearch{suggestions: []string{"Constitution"}}
	h := newTestServer(t, Ports{Search: search}, Config{})

	rec := do(t, h, http.MethodGet, "/api/search/suggest?q=con", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"suggestions":["Constitution"]}`, rec.Body.String())
	assert.Equal(t, "con", search.lastPrefix)

	search.suggestions = nil
	rec = do(t, h, http.MethodGet, "/api/search/suggest?q=zz", "", nil)
	assert.JSONEq(t, `{"suggestions":[]}`, rec.Body.String())
}

func TestTraces(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	traces := &mockTraces{traces: []domain.SearchTrace{{
		ID:         "abc",
		Query:      "contract",
		Mode:       domain.SearchModeText,
		QueryClass: domain.QueryClassKeywords,
		NResults:   4,
		Took:       25 * time.Millisecond,
		CreatedAt:  created,
	}}}
	h := newTestServer(t, Ports{Traces: traces}, Config{})

	rec := do(t, h, http.MethodGet, "/api/search/traces?limit=10", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, traces.lastLimit)
	results := decode(t, rec)["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "contract", results[0].(map[string]any)["search"])

	rec = do(t, h, http.MethodGet, "/api/search/traces", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultTraceLimit, traces.lastLimit)

	rec = do(t, h, http.MethodGet, "/api/search/traces?limit=nope", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/search/traces/abc", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "abc", body["id"])
	assert.Equal(t, "KEYWORDS", body["query_class"])
	assert.Equal(t, float64(25), body["took_ms"])
}

func TestTraces_NotFoundRedirects(t *testing.T) {
	h := newTestServer(t, Ports{Traces: &mockTraces{}}, Config{})

	rec := do(t, h, http.MethodGet, "/api/search/traces/missing", "", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/api/search/traces?warning=trace-not-found", rec.Header().Get("Location"))

	rec = do(t, h, http.MethodGet, "/api/search/traces?warning=trace-not-found", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "trace-not-found", decode(t, rec)["warning"])
}

func TestTraces_NotConfigured(t *testing.T) {
	h := newTestServer(t, Ports{}, Config{})
	rec := do(t, h, http.MethodGet, "/api/search/traces", "", nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestRelated(t *testing.T) {
	related := &mockRelated{results: []driving.RelatedDocument{{
		Document:   domain.Document{ID: 8, Title: "Sale Act", ExpressionFrbrURI: "/akn/za/act/2010/4/eng@2010-01-01"},
		Similarity: 0.7,
		Score:      0.75,
	}}}
	h := newTestServer(t, Ports{Related: related}, Config{})

	rec := do(t, h, http.MethodGet, "/api/documents/5/related?n=3", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{5}, related.lastIDs)
	assert.Equal(t, 3, related.lastN)
	results := decode(t, rec)["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "Sale Act", results[0].(map[string]any)["title"])

	rec = do(t, h, http.MethodGet, "/api/documents/5/related", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultRelated, related.lastN)

	for _, target := range []string{"/api/documents/x/related", "/api/documents/5/related?n=0", "/api/documents/5/related?n=99"} {
		rec = do(t, h, http.MethodGet, target, "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}

	related.err = fmt.Errorf("document 5: %w", domain.ErrNotFound)
	rec = do(t, h, http.MethodGet, "/api/documents/5/related", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebhook(t *testing.T) {
	ingestion := &mockIngestion{}
	h := newTestServer(t, Ports{Ingestion: ingestion}, Config{WebhookToken: "s3cret"})
	payload := `{"action":"published","data":{"expression_frbr_uri":"/akn/za/act/2009/1/eng@2009-01-01"}}`

	rec := do(t, h, http.MethodPost, "/api/ingestors/za-laws/webhook", payload, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/ingestors/za-laws/webhook", payload,
		map[string]string{"Authorization": "Token wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, ingestion.calls)

	rec = do(t, h, http.MethodPost, "/api/ingestors/za-laws/webhook", payload,
		map[string]string{"Authorization": "Token s3cret"})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, ingestion.calls, 1)
	assert.Equal(t, webhookCall{name: "za-laws", payload: payload}, ingestion.calls[0])
}

func TestWebhook_Errors(t *testing.T) {
	ingestion := &mockIngestion{err: fmt.Errorf("markdown: webhooks: %w", domain.ErrNotImplemented)}
	h := newTestServer(t, Ports{Ingestion: ingestion}, Config{})

	rec := do(t, h, http.MethodPost, "/api/ingestors/books/webhook", "{}", nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	ingestion.err = domain.ErrNotFound
	rec = do(t, h, http.MethodPost, "/api/ingestors/nope/webhook", "{}", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	big := strings.Repeat("x", maxWebhookBody+1)
	ingestion.err = nil
	rec = do(t, h, http.MethodPost, "/api/ingestors/za-laws/webhook", big, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
