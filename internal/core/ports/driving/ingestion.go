package driving

import (
	"context"

	"github.com/laws-africa/peachjam/internal/core/domain"
)

// IngestionService runs ingestors.
type IngestionService interface {
	// ListIngestors returns all configured ingestors.
	ListIngestors(ctx context.Context) ([]domain.Ingestor, error)

	// SaveIngestor creates or updates an ingestor.
	SaveIngestor(ctx context.Context, ing *domain.Ingestor) error

	// CheckForUpdates asks the ingestor's adapter for changes, enqueues one
	// task per changed id and records the refresh time.
	CheckForUpdates(ctx context.Context, ingestorID int64) (updated, deleted int, err error)

	// UpdateDocument fetches one upstream document through the ingestor.
	UpdateDocument(ctx context.Context, ingestorID int64, upstreamID string) error

	// DeleteDocument removes one document through the ingestor.
	DeleteDocument(ctx context.Context, ingestorID int64, upstreamID string) error

	// HandleWebhook passes a push notification to the named ingestor.
	HandleWebhook(ctx context.Context, name string, payload []byte) error

	// WatchAll runs every enabled ingestor whose adapter can watch for
	// changes, until ctx is done. started receives the number of watchers.
	WatchAll(ctx context.Context, started func(n int)) error
}
