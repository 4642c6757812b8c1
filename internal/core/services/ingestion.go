package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
	"github.com/laws-africa/peachjam/internal/core/ports/driving"
	"github.com/laws-africa/peachjam/internal/logger"
	"github.com/laws-africa/peachjam/internal/telemetry"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// IngestionService runs ingestors through their registered adapters.
type IngestionService struct {
	store    driven.IngestorStore
	registry *AdapterRegistry
	deps     driven.AdapterDeps
	metrics  *telemetry.Metrics
	now      func() time.Time
}

// IngestionOption configures an IngestionService.
type IngestionOption func(*IngestionService)

// WithIngestionMetrics records adapter actions.
func WithIngestionMetrics(m *telemetry.Metrics) IngestionOption {
	return func(s *IngestionService) { s.metrics = m }
}

// WithClock overrides the clock used for refresh times.
func WithClock(now func() time.Time) IngestionOption {
	return func(s *IngestionService) { s.now = now }
}

// NewIngestionService creates an ingestion service. deps.Tasks receives the
// per-document tasks produced by CheckForUpdates.
func NewIngestionService(
	store driven.IngestorStore,
	registry *AdapterRegistry,
	deps driven.AdapterDeps,
	opts ...IngestionOption,
) *IngestionService {
	s := &IngestionService{
		store:    store,
		registry: registry,
		deps:     deps,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListIngestors returns all configured ingestors.
func (s *IngestionService) ListIngestors(ctx context.Context) ([]domain.Ingestor, error) {
	return s.store.ListIngestors(ctx)
}

// SaveIngestor validates the adapter name and stores the ingestor.
func (s *IngestionService) SaveIngestor(ctx context.Context, ing *domain.Ingestor) error {
	if ing == nil || ing.Name == "" {
		return fmt.Errorf("%w: ingestor name is required", domain.ErrInvalidInput)
	}
	if _, err := s.registry.Lookup(TopicIngestorAdapter, ing.Adapter); err != nil {
		return err
	}
	return s.store.SaveIngestor(ctx, ing)
}

// CheckForUpdates asks the adapter for changes and enqueues one task per id.
// The refresh time recorded is the time the check started, so changes made
// upstream while it ran are picked up next time.
func (s *IngestionService) CheckForUpdates(ctx context.Context, ingestorID int64) (int, int, error) {
	ing, adapter, err := s.adapter(ctx, ingestorID)
	if err != nil || adapter == nil {
		return 0, 0, err
	}

	started := s.now()
	logger.Info("checking %s for updates since %v", ing.Name, ing.LastRefreshedAt)
	updated, deleted, err := adapter.CheckForUpdates(ctx, ing.LastRefreshedAt)
	if err != nil {
		return 0, 0, fmt.Errorf("checking %s for updates: %w", ing.Name, err)
	}

	replace := domain.TaskOptions{RemoveExisting: true}
	for _, id := range updated {
		args := domain.IngestorTaskArgs{IngestorID: ing.ID, UpstreamID: id}
		if _, err := s.deps.Tasks.Enqueue(ctx, domain.TaskIngestorUpdateDocument, args, replace); err != nil {
			return 0, 0, fmt.Errorf("enqueueing update of %s: %w", id, err)
		}
	}
	for _, id := range deleted {
		args := domain.IngestorTaskArgs{IngestorID: ing.ID, UpstreamID: id}
		if _, err := s.deps.Tasks.Enqueue(ctx, domain.TaskIngestorDeleteDocument, args, replace); err != nil {
			return 0, 0, fmt.Errorf("enqueueing delete of %s: %w", id, err)
		}
	}

	if err := s.store.SetLastRefreshed(ctx, ing.ID, started); err != nil {
		return 0, 0, fmt.Errorf("recording refresh of %s: %w", ing.Name, err)
	}
	logger.Info("%s: %d updated, %d deleted", ing.Name, len(updated), len(deleted))
	return len(updated), len(deleted), nil
}

// UpdateDocument fetches one upstream document. A document gone upstream is
// deleted locally; an identifier mismatch is logged and skipped. Other errors
// are returned so the task runner can retry them.
func (s *IngestionService) UpdateDocument(ctx context.Context, ingestorID int64, upstreamID string) error {
	ing, adapter, err := s.adapter(ctx, ingestorID)
	if err != nil || adapter == nil {
		return err
	}

	err = adapter.UpdateDocument(ctx, upstreamID)
	switch {
	case err == nil:
		s.metrics.IngestAction(ing.Adapter, "update")
		return nil
	case errors.Is(err, domain.ErrNotFoundUpstream):
		logger.Info("%s: %s is gone upstream, deleting local copy", ing.Name, upstreamID)
		s.metrics.IngestAction(ing.Adapter, "delete")
		return adapter.DeleteDocument(ctx, upstreamID)
	case errors.Is(err, domain.ErrIdentifierMismatch):
		logger.Warn("%s: skipping %s: %v", ing.Name, upstreamID, err)
		s.metrics.IngestAction(ing.Adapter, "skip")
		return nil
	default:
		return fmt.Errorf("%s: updating %s: %w", ing.Name, upstreamID, err)
	}
}

// DeleteDocument removes one document through the ingestor's adapter.
func (s *IngestionService) DeleteDocument(ctx context.Context, ingestorID int64, upstreamID string) error {
	ing, adapter, err := s.adapter(ctx, ingestorID)
	if err != nil || adapter == nil {
		return err
	}
	if err := adapter.DeleteDocument(ctx, upstreamID); err != nil {
		return fmt.Errorf("%s: deleting %s: %w", ing.Name, upstreamID, err)
	}
	s.metrics.IngestAction(ing.Adapter, "delete")
	return nil
}

// HandleWebhook passes a push notification to the named ingestor.
func (s *IngestionService) HandleWebhook(ctx context.Context, name string, payload []byte) error {
	ing, err := s.store.GetIngestorByName(ctx, name)
	if err != nil {
		return err
	}
	_, adapter, err := s.adapter(ctx, ing.ID)
	if err != nil {
		return err
	}
	if adapter == nil {
		return fmt.Errorf("%w: ingestor %s is disabled", domain.ErrInvalidInput, name)
	}
	return adapter.HandleWebhook(ctx, payload)
}

// WatchAll starts Watch on every enabled ingestor whose adapter implements
// driven.Watcher and blocks until ctx is done or one of them fails. started,
// when set, is called with the number of watchers before blocking.
func (s *IngestionService) WatchAll(ctx context.Context, started func(n int)) error {
	ingestors, err := s.store.ListIngestors(ctx)
	if err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	n := 0
	for i := range ingestors {
		ing, adapter, err := s.adapter(ctx, ingestors[i].ID)
		if err != nil {
			logger.Warn("not watching %s: %v", ingestors[i].Name, err)
			continue
		}
		w, ok := adapter.(driven.Watcher)
		if !ok {
			continue
		}
		n++
		name := ing.Name
		g.Go(func() error {
			if err := w.Watch(gctx); err != nil {
				return fmt.Errorf("watching %s: %w", name, err)
			}
			return nil
		})
	}
	if started != nil {
		started(n)
	}
	return g.Wait()
}

// adapter loads an ingestor and builds its adapter. A disabled ingestor
// yields a nil adapter and no error.
func (s *IngestionService) adapter(ctx context.Context, ingestorID int64) (*domain.Ingestor, driven.IngestionAdapter, error) {
	ing, err := s.store.GetIngestor(ctx, ingestorID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading ingestor %d: %w", ingestorID, err)
	}
	if !ing.Enabled {
		logger.Debug("ingestor %s is disabled, skipping", ing.Name)
		return ing, nil, nil
	}
	build, err := s.registry.Lookup(TopicIngestorAdapter, ing.Adapter)
	if err != nil {
		return nil, nil, err
	}
	adapter, err := build(*ing, ing.FrozenSettings(), s.deps)
	if err != nil {
		return nil, nil, fmt.Errorf("building %s adapter for %s: %w", ing.Adapter, ing.Name, err)
	}
	return ing, adapter, nil
}
