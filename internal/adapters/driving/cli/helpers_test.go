package cli

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/laws-africa/peachjam/internal/adapters/driven/config/memory"
	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driving"
	"github.com/laws-africa/peachjam/internal/core/services"
)

type mockSearch struct {
	lastReq domain.SearchRequest
	resp    *domain.SearchResponse
	err     error
}

func (m *mockSearch) Search(_ context.Context, req domain.SearchRequest) (*domain.SearchResponse, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	if m.resp != nil {
		return m.resp, nil
	}
	trace := "trace-1"
	return &domain.SearchResponse{
		Count: 1,
		Results: []domain.SearchHit{{
			ID:        "17",
			Score:     3.25,
			BestMatch: true,
			Highlight: map[string][]string{"content": {"the <mark>contract</mark> was void"}},
			Document: map[string]any{
				"title":               "Smith v Jones",
				"citation":            "[2021] ZASCA 12",
				"expression_frbr_uri": "/akn/za/judgment/zasca/2021/12/eng@2021-02-01",
			},
		}},
		TraceID: &trace,
	}, nil
}

func (m *mockSearch) Suggest(_ context.Context, prefix string) ([]string, error) {
	return []string{prefix + " Act", prefix + " Regulations"}, nil
}

type mockTraces struct{}

func (mockTraces) GetTrace(_ context.Context, id string) (*domain.SearchTrace, error) {
	if id != "t1" {
		return nil, domain.ErrNotFound
	}
	return &domain.SearchTrace{ID: "t1", Query: "contract", Mode: domain.SearchModeText}, nil
}

func (mockTraces) ListTraces(_ context.Context, limit int) ([]domain.SearchTrace, error) {
	return []domain.SearchTrace{
		{ID: "t1", Query: "contract", Mode: domain.SearchModeText, NResults: 4, Took: 12 * time.Millisecond},
		{ID: "t2", FieldQueries: map[string]string{"title": "labour"}, Mode: domain.SearchModeHybrid},
	}[:min(limit, 2)], nil
}

type mockRelated struct{}

func (mockRelated) Related(_ context.Context, ids []int64, n int) ([]driving.RelatedDocument, error) {
	return []driving.RelatedDocument{{
		Document:   domain.Document{ID: ids[0] + 1, Title: "Related Judgment", ExpressionFrbrURI: "/akn/za/judgment/zacc/2020/3/eng@2020-01-01"},
		Similarity: 0.912,
	}}, nil
}

type mockDocuments struct {
	docs    map[int64]*domain.Document
	deleted []int64
}

func newMockDocuments() *mockDocuments {
	return &mockDocuments{docs: map[int64]*domain.Document{
		7: {
			ID:                7,
			Title:             "Labour Relations Act",
			Kind:              domain.KindLegislation,
			WorkFrbrURI:       "/akn/za/act/1995/66",
			ExpressionFrbrURI: "/akn/za/act/1995/66/eng@1995-12-13",
			Language:          "eng",
			Published:         true,
			Topics:            []string{"labour"},
			ContentText:       "To change the law governing labour relations.",
		},
	}}
}

func (m *mockDocuments) Get(_ context.Context, id int64) (*domain.Document, error) {
	if d, ok := m.docs[id]; ok {
		return d, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockDocuments) GetByExpressionURI(_ context.Context, uri string) (*domain.Document, error) {
	for _, d := range m.docs {
		if d.ExpressionFrbrURI == uri {
			return d, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockDocuments) SaveDocument(_ context.Context, doc *domain.Document) (*domain.Document, error) {
	return doc, nil
}

func (m *mockDocuments) DeleteDocument(_ context.Context, id int64) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type mockIngestion struct {
	mu        sync.Mutex
	ingestors []domain.Ingestor
	checked   []int64
	updated   []string
	removed   []string
	webhooks  map[string]string
	checkErr  map[int64]error
	watching  chan struct{}
}

func newMockIngestion() *mockIngestion {
	return &mockIngestion{
		ingestors: []domain.Ingestor{
			{ID: 1, Name: "laws-africa-za", Adapter: "indigo", Enabled: true},
			{ID: 2, Name: "books", Adapter: "markdown", Enabled: false},
		},
		webhooks: make(map[string]string),
		checkErr: make(map[int64]error),
	}
}

func (m *mockIngestion) ListIngestors(context.Context) ([]domain.Ingestor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Ingestor(nil), m.ingestors...), nil
}

func (m *mockIngestion) SaveIngestor(_ context.Context, ing *domain.Ingestor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.ingestors {
		if m.ingestors[i].ID == ing.ID && ing.ID != 0 {
			m.ingestors[i] = *ing
			return nil
		}
	}
	ing.ID = int64(len(m.ingestors) + 1)
	m.ingestors = append(m.ingestors, *ing)
	return nil
}

func (m *mockIngestion) CheckForUpdates(_ context.Context, id int64) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checked = append(m.checked, id)
	if err := m.checkErr[id]; err != nil {
		return 0, 0, err
	}
	return 3, 1, nil
}

func (m *mockIngestion) UpdateDocument(_ context.Context, id int64, upstreamID string) error {
	m.updated = append(m.updated, fmt.Sprintf("%d:%s", id, upstreamID))
	return nil
}

func (m *mockIngestion) DeleteDocument(_ context.Context, id int64, upstreamID string) error {
	m.removed = append(m.removed, fmt.Sprintf("%d:%s", id, upstreamID))
	return nil
}

func (m *mockIngestion) HandleWebhook(_ context.Context, name string, payload []byte) error {
	m.webhooks[name] = string(payload)
	return nil
}

func (m *mockIngestion) WatchAll(ctx context.Context, started func(int)) error {
	started(1)
	if m.watching != nil {
		close(m.watching)
	}
	<-ctx.Done()
	return ctx.Err()
}

type mockIndex struct {
	ensured   int
	reindexed []int64
}

func (m *mockIndex) EnsureIndexes(context.Context) error { m.ensured++; return nil }
func (m *mockIndex) ReindexDocument(_ context.Context, id int64) error {
	m.reindexed = append(m.reindexed, id)
	return nil
}
func (m *mockIndex) UnindexDocument(context.Context, int64, int64, string) error { return nil }
func (m *mockIndex) ReindexAll(context.Context) (int, error)                     { return 42, nil }

type mockEmbeddings struct{ refreshed []int64 }

func (m *mockEmbeddings) RefreshDocument(_ context.Context, id int64) error {
	m.refreshed = append(m.refreshed, id)
	return nil
}

type mockCitations struct{}

func (mockCitations) ExtractCitations(_ context.Context, id int64) (int, error) {
	return int(id) * 2, nil
}

type mockRanking struct{}

func (mockRanking) RankWorks(context.Context) (*driving.RankReport, error) {
	return &driving.RankReport{Nodes: 10, Edges: 25, Pivot: 0.0125, UpdatedWorkCount: 4, ReindexedDocs: 6}, nil
}

type mockRunner struct {
	mu      sync.Mutex
	workers int
	running chan struct{}
}

func (m *mockRunner) Enqueue(context.Context, string, any, domain.TaskOptions) (string, error) {
	return "1", nil
}

func (m *mockRunner) Run(ctx context.Context, workers int) error {
	m.mu.Lock()
	m.workers = workers
	m.mu.Unlock()
	if m.running != nil {
		close(m.running)
	}
	<-ctx.Done()
	return nil
}

func (m *mockRunner) RunOnce(context.Context) (int, error) { return 5, nil }

type mockScheduler struct {
	mu      sync.Mutex
	started bool
	stopped bool
}

func (m *mockScheduler) Start(ctx context.Context) error {
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockScheduler) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return nil
}

type mockMigrator struct {
	direction string
	steps     int
}

func (m *mockMigrator) Migrate(direction string, steps int) error {
	m.direction, m.steps = direction, steps
	return nil
}

type testServices struct {
	search     *mockSearch
	documents  *mockDocuments
	ingestion  *mockIngestion
	index      *mockIndex
	embeddings *mockEmbeddings
	runner     *mockRunner
	scheduler  *mockScheduler
	migrator   *mockMigrator
	config     *memory.ConfigStore
}

var testSvc *testServices

// setupTestServices installs fakes for every service and returns a cleanup func.
func setupTestServices() func() {
	testSvc = &testServices{
		search:     &mockSearch{},
		documents:  newMockDocuments(),
		ingestion:  newMockIngestion(),
		index:      &mockIndex{},
		embeddings: &mockEmbeddings{},
		runner:     &mockRunner{},
		scheduler:  &mockScheduler{},
		migrator:   &mockMigrator{},
		config:     memory.NewConfigStore(),
	}
	SetServices(&Services{
		Search:      testSvc.search,
		Traces:      mockTraces{},
		Related:     mockRelated{},
		Documents:   testSvc.documents,
		Ingestion:   testSvc.ingestion,
		Index:       testSvc.index,
		Embeddings:  testSvc.embeddings,
		Citations:   mockCitations{},
		Ranking:     mockRanking{},
		Tasks:       testSvc.runner,
		Scheduler:   testSvc.scheduler,
		Settings:    services.NewSettingsService(testSvc.config),
		Migrator:    testSvc.migrator,
		AppSettings: domain.DefaultAppSettings(),
	})
	return func() {
		SetServices(&Services{AppSettings: domain.DefaultAppSettings()})
		testSvc = nil
	}
}

// resetFlags restores every flag to its default so runs don't leak into each other.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execute runs the root command with args and returns everything it printed.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	return executeContext(t, context.Background(), stdin, args...)
}

func executeContext(t *testing.T, ctx context.Context, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.ExecuteContext(ctx)
	return buf.String(), err
}
