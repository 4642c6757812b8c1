package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laws-africa/peachjam/internal/adapters/driving/tui"
	"github.com/laws-africa/peachjam/internal/core/domain"
)

func TestRootCmd_HasCommands(t *testing.T) {
	names := make([]string, 0, len(rootCmd.Commands()))
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{
		"search", "suggest", "traces", "document", "ingestor", "index", "embed",
		"citations", "rank", "worker", "serve", "mcp", "migrate", "settings", "version", "tui",
	} {
		assert.Contains(t, names, want)
	}
}

func TestRoot_Bootstrap(t *testing.T) {
	var got Options
	released := false
	SetBootstrap(func(_ context.Context, opts Options) (*Services, func() error, error) {
		got = opts
		return &Services{Ranking: mockRanking{}, AppSettings: domain.DefaultAppSettings()}, func() error {
			released = true
			return nil
		}, nil
	})
	defer func() {
		SetBootstrap(nil)
		SetServices(&Services{AppSettings: domain.DefaultAppSettings()})
	}()

	out, err := execute(t, "", "--data-dir", "/tmp/pj", "rank")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/pj", got.DataDir)
	assert.True(t, released)
	assert.Contains(t, out, "Ranked 10 works")
}

func TestRoot_BootstrapError(t *testing.T) {
	SetBootstrap(func(context.Context, Options) (*Services, func() error, error) {
		return nil, nil, errors.New("database locked")
	})
	defer SetBootstrap(nil)

	_, err := execute(t, "", "rank")
	assert.ErrorContains(t, err, "database locked")
}

func TestRoot_VersionSkipsBootstrap(t *testing.T) {
	SetBootstrap(func(context.Context, Options) (*Services, func() error, error) {
		t.Fatal("bootstrap called")
		return nil, nil, nil
	})
	defer SetBootstrap(nil)

	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "peachjam version")
}

func TestSearchCmd(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "", "search", "contract", "-m", "hybrid", "-p", "2", "-f", "doc_type=Judgment", "-f", "year=2021")
	require.NoError(t, err)

	req := testSvc.search.lastReq
	assert.Equal(t, "contract", req.Query)
	assert.Equal(t, domain.SearchModeHybrid, req.Mode)
	assert.Equal(t, 2, req.Page)
	assert.Equal(t, []string{"Judgment"}, req.Filters["doc_type"])
	assert.Equal(t, []string{"2021"}, req.Filters["year"])

	assert.Contains(t, out, "[1] Smith v Jones (3.25) *")
	assert.Contains(t, out, "[2021] ZASCA 12")
	assert.Contains(t, out, "<mark>contract</mark>")
	assert.Contains(t, out, "trace: trace-1")
}

func TestSearchCmd_JSON(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "", "search", "contract", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"count": 1`)
	assert.Contains(t, out, `"best_match": true`)
}

func TestSearchCmd_Validation(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "", "search", "contract", "-m", "fuzzy")
	var fe domain.FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe, "mode")

	_, err = execute(t, "", "search", "contract", "-f", "nonsense")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = execute(t, "", "search")
	assert.ErrorContains(t, err, "accepts 1 arg(s)")
}

func TestSearchCmd_NoResults(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	testSvc.search.resp = &domain.SearchResponse{}

	out, err := execute(t, "", "search", "nothing")
	require.NoError(t, err)
	assert.Contains(t, out, "No results found.")
}

func TestSearchCmd_NotConfigured(t *testing.T) {
	_, err := execute(t, "", "search", "contract")
	assert.ErrorContains(t, err, "search service not configured")
}

func TestSuggestCmd(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "", "suggest", "Labour")
	require.NoError(t, err)
	assert.Contains(t, out, "Labour Act\nLabour Regulations\n")
}

func TestTracesCmd(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "", "traces")
	require.NoError(t, err)
	assert.Contains(t, out, "t1")
	assert.Contains(t, out, "12ms  contract")
	assert.Contains(t, out, "title=labour")

	out, err = execute(t, "", "traces", "show", "t1")
	require.NoError(t, err)
	assert.Contains(t, out, `"Query": "contract"`)

	_, err = execute(t, "", "traces", "show", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentCmds(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "", "document", "get", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "Labour Relations Act")
	assert.Contains(t, out, "/akn/za/act/1995/66/eng@1995-12-13")
	assert.Contains(t, out, "Topics:     labour")

	out, err = execute(t, "", "document", "content", "/akn/za/act/1995/66/eng@1995-12-13")
	require.NoError(t, err)
	assert.Contains(t, out, "governing labour relations")

	out, err = execute(t, "", "document", "related", "7", "-n", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Related Judgment (0.912)")

	_, err = execute(t, "", "document", "get", "abc")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = execute(t, "", "document", "get", "99")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	out, err = execute(t, "", "document", "delete", "7")
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, testSvc.documents.deleted)
	assert.Contains(t, out, "Deleted /akn/za/act/1995/66/eng@1995-12-13")
}

func TestIngestorList(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "", "ingestor", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "laws-africa-za")
	assert.Contains(t, out, "indigo")
	assert.Contains(t, out, "disabled")
	assert.Contains(t, out, "last refreshed never")
}

func TestIngestorAdd(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "", "ingestor", "add", "gazettes-za", "gazettes", "--set", "api_url=https://example.org/", "-s", "places=za za-gp")
	require.NoError(t, err)
	assert.Contains(t, out, "Created ingestor gazettes-za")

	all := testSvc.ingestion.ingestors
	require.Len(t, all, 3)
	assert.Equal(t, "gazettes", all[2].Adapter)
	assert.Equal(t, "za za-gp", all[2].Settings["places"])
	assert.True(t, all[2].Enabled)

	out, err = execute(t, "", "ingestor", "add", "books", "markdown", "--set", "path=/srv/books", "--disabled")
	require.NoError(t, err)
	assert.Contains(t, out, "Updated ingestor books")
	assert.Len(t, testSvc.ingestion.ingestors, 3)
	assert.Equal(t, "/srv/books", testSvc.ingestion.ingestors[1].Settings["path"])
	assert.False(t, testSvc.ingestion.ingestors[1].Enabled)

	_, err = execute(t, "", "ingestor", "add", "x", "indigo", "--set", "novalue")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIngestorCheck(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "", "ingestor", "check", "laws-africa-za")
	require.NoError(t, err)
	assert.Contains(t, out, "laws-africa-za: 3 updated, 1 deleted")
	assert.Equal(t, []int64{1}, testSvc.ingestion.checked)

	_, err = execute(t, "", "ingestor", "check", "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = execute(t, "", "ingestor", "check")
	assert.ErrorContains(t, err, "--all")
}

func TestIngestorCheck_AllSkipsDisabledAndCollectsErrors(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	testSvc.ingestion.checkErr[1] = domain.ErrUpstreamUnavailable

	out, err := execute(t, "", "ingestor", "check", "--all")
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.Contains(t, out, "laws-africa-za:")
	assert.Equal(t, []int64{1}, testSvc.ingestion.checked)
}

func TestIngestorUpdateRemoveWebhook(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "", "ingestor", "update", "laws-africa-za", "/akn/za/act/1995/66/eng@1995-12-13")
	require.NoError(t, err)
	assert.Equal(t, []string{"1:/akn/za/act/1995/66/eng@1995-12-13"}, testSvc.ingestion.updated)

	_, err = execute(t, "", "ingestor", "remove", "books", "/akn/za/doc/book/2021/x/eng@2021-01-01")
	require.NoError(t, err)
	assert.Equal(t, []string{"2:/akn/za/doc/book/2021/x/eng@2021-01-01"}, testSvc.ingestion.removed)

	out, err := execute(t, `{"action":"published"}`, "ingestor", "webhook", "laws-africa-za")
	require.NoError(t, err)
	assert.Contains(t, out, "Webhook accepted.")
	assert.Equal(t, `{"action":"published"}`, testSvc.ingestion.webhooks["laws-africa-za"])

	payload := filepath.Join(t.TempDir(), "hook.json")
	require.NoError(t, os.WriteFile(payload, []byte(`{"action":"deleted"}`), 0o644))
	_, err = execute(t, "", "ingestor", "webhook", "gazettes", payload)
	require.NoError(t, err)
	assert.Equal(t, `{"action":"deleted"}`, testSvc.ingestion.webhooks["gazettes"])
}

func TestIndexCmds(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "", "index", "ensure")
	require.NoError(t, err)
	assert.Contains(t, out, "Indexes ready.")

	out, err = execute(t, "", "index", "rebuild")
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 42 documents.")
	assert.Equal(t, 2, testSvc.index.ensured)

	_, err = execute(t, "", "index", "document", "3", "4")
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4}, testSvc.index.reindexed)

	_, err = execute(t, "", "index", "document", "x")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestEmbedCitationsRank(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "", "embed", "5")
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, testSvc.embeddings.refreshed)

	out, err := execute(t, "", "citations", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "4: 8 citations")

	out, err = execute(t, "", "rank")
	require.NoError(t, err)
	assert.Contains(t, out, "Ranked 10 works over 25 citations.")
	assert.Contains(t, out, "4 works changed, 6 documents reindexed")
}

func TestWorkerCmd_Once(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "", "worker", "--once")
	require.NoError(t, err)
	assert.Contains(t, out, "Ran 5 tasks.")
}

func TestWorkerCmd_RunsUntilCancelled(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	testSvc.runner.running = make(chan struct{})
	testSvc.ingestion.watching = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := executeContext(t, ctx, "", "worker", "--watch", "-w", "3")
		done <- err
	}()

	<-testSvc.runner.running
	<-testSvc.ingestion.watching
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Equal(t, 3, testSvc.runner.workers)
	assert.True(t, testSvc.scheduler.started)
	assert.True(t, testSvc.scheduler.stopped)
}

func TestMigrateCmd(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Migrated up.")
	assert.Equal(t, "up", testSvc.migrator.direction)

	_, err = execute(t, "", "migrate", "down")
	assert.ErrorContains(t, err, "--steps")

	_, err = execute(t, "", "migrate", "down", "-n", "1")
	require.NoError(t, err)
	assert.Equal(t, "down", testSvc.migrator.direction)
	assert.Equal(t, 1, testSvc.migrator.steps)

	_, err = execute(t, "", "migrate", "sideways")
	assert.Error(t, err)
}

func TestTUICmd_RequiresServices(t *testing.T) {
	_, err := execute(t, "", "tui")
	assert.ErrorIs(t, err, tui.ErrMissingSearchService)
}

func TestServeCmd_BuildsServer(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	server, err := newAPIServer()
	require.NoError(t, err)
	assert.NotNil(t, server.Handler())
}
