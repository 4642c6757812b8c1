// Package cli implements the peachjam command line.
package cli

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driving"
	"github.com/laws-africa/peachjam/internal/logger"
)

// version is set at build time with -ldflags "-X .../cli.version=...".
var version = "dev"

// skipBootstrap marks commands that run without the application services.
const skipBootstrap = "skip-bootstrap"

// Options are the global flags handed to the bootstrap hook.
type Options struct {
	ConfigDir string
	DataDir   string
}

// Migrator applies database schema migrations.
type Migrator interface {
	Migrate(direction string, steps int) error
}

// Services are the driving ports the commands call.
type Services struct {
	Search     driving.SearchService
	Traces     driving.TraceService
	Related    driving.RelatedService
	Documents  driving.DocumentService
	Ingestion  driving.IngestionService
	Index      driving.IndexService
	Embeddings driving.EmbeddingsService
	Citations  driving.CitationService
	Ranking    driving.RankingService
	Tasks      driving.TaskRunner
	Scheduler  driving.Scheduler
	Settings   driving.SettingsService
	Migrator   Migrator

	// AppSettings are the settings the services were built from.
	AppSettings domain.AppSettings

	// Metrics serves the Prometheus exposition format.
	Metrics http.Handler
}

// BootstrapFunc builds the services. The returned func releases them.
type BootstrapFunc func(ctx context.Context, opts Options) (*Services, func() error, error)

var (
	bootstrap BootstrapFunc
	release   func() error

	verbose   bool
	configDir string
	dataDir   string
)

// Service handles used by commands. Tests replace them with fakes.
var (
	searchService     driving.SearchService
	traceService      driving.TraceService
	relatedService    driving.RelatedService
	documentService   driving.DocumentService
	ingestionService  driving.IngestionService
	indexService      driving.IndexService
	embeddingsService driving.EmbeddingsService
	citationService   driving.CitationService
	rankingService    driving.RankingService
	taskRunner        driving.TaskRunner
	scheduler         driving.Scheduler
	settingsService   driving.SettingsService
	migrator          Migrator
	appSettings       = domain.DefaultAppSettings()
	metricsHandler    http.Handler
)

var rootCmd = &cobra.Command{
	Use:   "peachjam",
	Short: "Legal document ingestion and search",
	Long: `peachjam ingests legislation, judgments and other legal documents from
upstream sources, indexes them for text and semantic search, and serves
search over HTTP and MCP.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
		return teardown()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.peachjam)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default ~/.peachjam/data)")
}

// SetBootstrap installs the hook that builds the services before a command runs.
func SetBootstrap(fn BootstrapFunc) {
	bootstrap = fn
}

// SetServices replaces the service handles.
func SetServices(s *Services) {
	searchService = s.Search
	traceService = s.Traces
	relatedService = s.Related
	documentService = s.Documents
	ingestionService = s.Ingestion
	indexService = s.Index
	embeddingsService = s.Embeddings
	citationService = s.Citations
	rankingService = s.Ranking
	taskRunner = s.Tasks
	scheduler = s.Scheduler
	settingsService = s.Settings
	migrator = s.Migrator
	appSettings = s.AppSettings
	metricsHandler = s.Metrics
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	loadEnv()

	if bootstrap == nil || cmd.Annotations[skipBootstrap] == "true" {
		return nil
	}
	svc, cleanup, err := bootstrap(cmd.Context(), Options{ConfigDir: configDir, DataDir: dataDir})
	if err != nil {
		return err
	}
	SetServices(svc)
	release = cleanup
	return nil
}

func teardown() error {
	if release == nil {
		return nil
	}
	err := release()
	release = nil
	return err
}

// loadEnv reads .env from the working directory and the config directory.
// Variables already set in the environment win.
func loadEnv() {
	files := []string{".env"}
	if configDir != "" {
		files = append(files, filepath.Join(configDir, ".env"))
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("reading %s: %v", f, err)
		}
	}
}
