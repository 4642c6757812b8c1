// Package app assembles the services of a peachjam process from settings.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/laws-africa/peachjam/internal/adapters/driven/ai"
	"github.com/laws-africa/peachjam/internal/adapters/driven/blob"
	memcache "github.com/laws-africa/peachjam/internal/adapters/driven/cache/memory"
	rediscache "github.com/laws-africa/peachjam/internal/adapters/driven/cache/redis"
	"github.com/laws-africa/peachjam/internal/adapters/driven/converter/soffice"
	memqueue "github.com/laws-africa/peachjam/internal/adapters/driven/queue/memory"
	redisqueue "github.com/laws-africa/peachjam/internal/adapters/driven/queue/redis"
	"github.com/laws-africa/peachjam/internal/adapters/driven/searchindex/bleve"
	memstore "github.com/laws-africa/peachjam/internal/adapters/driven/storage/memory"
	"github.com/laws-africa/peachjam/internal/adapters/driven/storage/sqlite"
	"github.com/laws-africa/peachjam/internal/adapters/driven/vector/memory"
	"github.com/laws-africa/peachjam/internal/citations"
	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
	"github.com/laws-africa/peachjam/internal/core/services"
	"github.com/laws-africa/peachjam/internal/ingestors"
	"github.com/laws-africa/peachjam/internal/logger"
	"github.com/laws-africa/peachjam/internal/normalisers"
	"github.com/laws-africa/peachjam/internal/postprocessors"
	"github.com/laws-africa/peachjam/internal/telemetry"
)

// searchCacheEntries bounds the in-process search cache.
const searchCacheEntries = 512

// redisPrefix namespaces every key peachjam writes to redis.
const redisPrefix = "peachjam"

// Options control how an App is assembled.
type Options struct {
	// DataDir holds the database, the default blob root and the default index directory.
	DataDir string

	// InMemory replaces the database and indexes with in-memory versions.
	InMemory bool

	// Redis overrides the client built from Queue.RedisAddr.
	Redis *redis.Client
}

// Stores are the persistence views shared by the sqlite and memory backends.
type Stores interface {
	DocumentStore() driven.DocumentStore
	CitationStore() driven.CitationStore
	RankingStore() driven.RankingStore
	ChunkStore() driven.ChunkStore
	IngestorStore() driven.IngestorStore
	TraceStore() driven.TraceStore
	SchedulerStore() driven.SchedulerStore
}

// App holds every service of a running process.
type App struct {
	Settings domain.AppSettings
	Stores   Stores
	Database *sqlite.Store
	Metrics  *telemetry.Metrics

	Documents  *services.DocumentService
	Search     *services.SearchService
	Traces     *services.TraceService
	Related    *services.RelatedService
	Ingestion  *services.IngestionService
	Indexer    *services.Indexer
	Embeddings *services.EmbeddingsService
	Citations  *services.CitationService
	Ranking    *services.RankingService
	Tasks      *services.TaskRunner
	Scheduler  *services.Scheduler

	closers []func() error
}

// New builds an App. Close must be called to release the database, queue and indexes.
func New(ctx context.Context, settings domain.AppSettings, opts Options) (_ *App, err error) {
	a := &App{Settings: settings, Metrics: telemetry.New()}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if opts.DataDir == "" && !opts.InMemory {
		if opts.DataDir, err = DefaultDataDir(); err != nil {
			return nil, err
		}
	}

	if err := a.openStores(opts); err != nil {
		return nil, err
	}

	rdb := opts.Redis
	if rdb == nil && settings.Queue.Backend == "redis" {
		rdb = redis.NewClient(&redis.Options{Addr: settings.Queue.RedisAddr})
		a.closers = append(a.closers, rdb.Close)
	}

	queue, cache, err := a.openQueue(ctx, rdb)
	if err != nil {
		return nil, err
	}

	index, err := a.openIndex(opts)
	if err != nil {
		return nil, err
	}
	manager := services.NewIndexManager(index)

	blobs, prefix, dir, err := openBlobs(settings.Storage, opts.DataDir)
	if err != nil {
		return nil, err
	}

	embedder, err := ai.CreateEmbeddingService(&settings.Embedding)
	if err != nil {
		return nil, err
	}
	if embedder != nil {
		a.closers = append(a.closers, embedder.Close)
	}

	vectors, err := memory.Load(ctx, a.Stores.ChunkStore(), settings.Embedding.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("loading vectors: %w", err)
	}
	a.closers = append(a.closers, vectors.Close)

	pipeline, err := postprocessors.DefaultPipeline(nil)
	if err != nil {
		return nil, err
	}

	a.Tasks = services.NewTaskRunner(queue,
		services.WithTaskHistory(a.Stores.SchedulerStore()),
		services.WithTaskMetrics(a.Metrics),
	)
	bus := services.NewEventBus()
	services.RegisterDefaultHandlers(bus, a.Tasks)

	a.Documents = services.NewDocumentService(a.Stores.DocumentStore(), bus)
	a.Indexer = services.NewIndexer(a.Stores.DocumentStore(), index, manager)
	a.Citations = services.NewCitationService(
		a.Stores.DocumentStore(),
		a.Stores.CitationStore(),
		citations.NewExtractor(citations.DefaultMatchers(nil)...),
		bus,
	)
	a.Embeddings = services.NewEmbeddingsService(services.EmbeddingsConfig{
		Documents: a.Stores.DocumentStore(),
		Chunks:    a.Stores.ChunkStore(),
		Pipeline:  pipeline,
		Embedder:  embedder,
		Vectors:   vectors,
		Events:    bus,
		Metrics:   a.Metrics,
		Settings:  settings.Embedding,
	})
	a.Ranking = services.NewRankingService(
		a.Stores.DocumentStore(),
		a.Stores.CitationStore(),
		a.Stores.RankingStore(),
		index,
		manager,
		settings.Ranking,
	)

	searchOpts := []services.SearchOption{
		services.WithSearchCache(cache),
		services.WithTraces(a.Stores.TraceStore()),
		services.WithSearchMetrics(a.Metrics),
	}
	if embedder != nil {
		searchOpts = append(searchOpts, services.WithSemantic(vectors, embedder))
	}
	a.Search = services.NewSearchService(index, manager, a.Stores.RankingStore(), settings.Search, searchOpts...)
	a.Traces = services.NewTraceService(a.Stores.TraceStore())
	a.Related = services.NewRelatedService(a.Stores.DocumentStore(), a.Stores.ChunkStore())

	registry := services.NewAdapterRegistry()
	if err := ingestors.Register(registry); err != nil {
		return nil, err
	}
	registry.Freeze()
	a.Ingestion = services.NewIngestionService(a.Stores.IngestorStore(), registry, driven.AdapterDeps{
		Documents:   a.Documents,
		Blobs:       blobs,
		Converter:   soffice.New(settings.Converter),
		Normalisers: normalisers.NewDefaultRegistry(),
		Tasks:       a.Tasks,
		BlobPrefix:  prefix,
		BlobDir:     dir,
	}, services.WithIngestionMetrics(a.Metrics))

	services.RegisterTaskHandlers(a.Tasks, services.TaskServices{
		Ingestion:  a.Ingestion,
		Works:      a.Documents,
		Citations:  a.Citations,
		Embeddings: a.Embeddings,
		Index:      a.Indexer,
		Ranking:    a.Ranking,
	})
	a.Scheduler = services.NewScheduler(settings.Scheduler, a.Stores.SchedulerStore(), a.Tasks, a.Stores.IngestorStore())

	return a, nil
}

// DefaultDataDir is ~/.peachjam/data.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".peachjam", "data"), nil
}

func (a *App) openStores(opts Options) error {
	if opts.InMemory {
		a.Stores = memstore.NewStore()
		return nil
	}
	db, err := sqlite.NewStore(opts.DataDir)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	a.Database = db
	a.Stores = db
	a.closers = append(a.closers, db.Close)
	return nil
}

func (a *App) openQueue(ctx context.Context, rdb *redis.Client) (driven.TaskQueue, driven.Cache, error) {
	if rdb == nil {
		q := memqueue.New()
		a.closers = append(a.closers, q.Close)
		return q, memcache.New(searchCacheEntries), nil
	}
	q, err := redisqueue.New(ctx, rdb, redisqueue.WithPrefix(redisPrefix+":tasks"))
	if err != nil {
		return nil, nil, fmt.Errorf("opening task queue: %w", err)
	}
	a.closers = append(a.closers, q.Close)
	return q, rediscache.New(rdb, redisPrefix+":search"), nil
}

func (a *App) openIndex(opts Options) (*bleve.Index, error) {
	var index *bleve.Index
	if opts.InMemory {
		index = bleve.NewMemOnly()
	} else {
		dir := a.Settings.IndexDir
		if dir == "" {
			dir = filepath.Join(opts.DataDir, "index")
		}
		var err error
		if index, err = bleve.New(dir); err != nil {
			return nil, fmt.Errorf("opening search index: %w", err)
		}
	}
	a.closers = append(a.closers, index.Close)
	return index, nil
}

// openBlobs builds the blob store. Without a configured file root, files go
// under the data directory. New attachments prefer S3 when it is configured.
func openBlobs(s domain.StorageSettings, dataDir string) (store *blob.Store, prefix, dir string, err error) {
	if s.FileRoot == "" && dataDir != "" {
		s.FileRoot = filepath.Join(dataDir, "blobs")
	}
	if store, err = blob.FromSettings(s); err != nil {
		return nil, "", "", fmt.Errorf("opening blob store: %w", err)
	}
	if s.S3Endpoint != "" && s.S3Bucket != "" {
		return store, blob.PrefixS3, s.S3Bucket, nil
	}
	return store, blob.PrefixFile, "", nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if len(errs) > 0 {
		logger.Debug("app: close errors: %v", errs)
	}
	return errors.Join(errs...)
}
