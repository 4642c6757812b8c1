package driven

import (
	"context"
	"time"

	"github.com/laws-africa/peachjam/internal/core/domain"
)

// IngestionAdapter pulls documents from one upstream source.
type IngestionAdapter interface {
	// CheckForUpdates lists upstream ids changed since lastRefreshed (nil means
	// everything) and local ids the adapter owns that are gone upstream.
	CheckForUpdates(ctx context.Context, lastRefreshed *time.Time) (updated, deleted []string, err error)

	// UpdateDocument fetches and upserts one upstream document.
	UpdateDocument(ctx context.Context, id string) error

	// DeleteDocument removes a local document if it exists.
	DeleteDocument(ctx context.Context, id string) error

	// HandleWebhook processes a push notification. Returns ErrNotImplemented
	// when the adapter has no webhook support.
	HandleWebhook(ctx context.Context, payload []byte) error

	// EditURL returns a back-link to the upstream editor, or "".
	EditURL(doc *domain.Document) string
}

// AdapterDeps are the shared resources handed to adapters at construction.
type AdapterDeps struct {
	Documents   DocumentWriter
	Blobs       BlobStore
	Converter   Converter
	Normalisers NormaliserRegistry
	Tasks       TaskEnqueuer

	// BlobPrefix is the backend new attachments are written to, e.g. "file".
	BlobPrefix string

	// BlobDir is prepended to new attachment paths. For S3 it is the bucket.
	BlobDir string
}

// AdapterBuilder creates an adapter for an ingestor. settings is a frozen copy.
type AdapterBuilder func(ing domain.Ingestor, settings map[string]string, deps AdapterDeps) (IngestionAdapter, error)

// DocumentWriter is the slice of the document service adapters write through.
type DocumentWriter interface {
	SaveDocument(ctx context.Context, doc *domain.Document) (*domain.Document, error)
	DeleteDocument(ctx context.Context, id int64) error
	GetDocumentByExpressionURI(ctx context.Context, uri string) (*domain.Document, error)
	ListExpressionURIs(ctx context.Context) ([]string, error)
	EnsureWork(ctx context.Context, uri, title string) (*domain.Work, error)
	ReplaceRelationships(ctx context.Context, subjectURI string, rels []domain.Relationship) error
	SaveRatification(ctx context.Context, r *domain.Ratification) error
	SaveTopics(ctx context.Context, topics []domain.Topic) error
}

// TaskEnqueuer enqueues background tasks.
type TaskEnqueuer interface {
	Enqueue(ctx context.Context, name string, args any, opts domain.TaskOptions) (string, error)
}

// Watcher is implemented by adapters that can push changes as they happen.
// Watch blocks until ctx is done.
type Watcher interface {
	Watch(ctx context.Context) error
}
