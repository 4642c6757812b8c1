package upstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
)

// DeleteByExpressionURI deletes the local document for uri. A missing
// document is not an error.
func DeleteByExpressionURI(ctx context.Context, docs driven.DocumentWriter, uri string) error {
	doc, err := docs.GetDocumentByExpressionURI(ctx, uri)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("looking up %s: %w", uri, err)
	}
	if err := docs.DeleteDocument(ctx, doc.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return nil
}

// Missing returns the local expression URIs accepted by owns that are not in present.
func Missing(ctx context.Context, docs driven.DocumentWriter, owns func(uri string) bool, present map[string]bool) ([]string, error) {
	local, err := docs.ListExpressionURIs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing local documents: %w", err)
	}
	var out []string
	for _, uri := range local {
		if owns(uri) && !present[uri] {
			out = append(out, uri)
		}
	}
	return out, nil
}

// ParseTime parses an ISO 8601 timestamp as sent by upstream APIs.
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q", domain.ErrInvalidInput, s)
	}
	return t, nil
}

// Newer reports whether updatedAt is strictly after lastRefreshed. Everything
// is newer than a nil lastRefreshed, and unparseable timestamps count as newer.
func Newer(updatedAt string, lastRefreshed *time.Time) bool {
	if lastRefreshed == nil {
		return true
	}
	t, err := ParseTime(updatedAt)
	if err != nil || t.IsZero() {
		return true
	}
	return t.After(*lastRefreshed)
}

// ParseDate parses a YYYY-MM-DD date. An empty string is the zero time.
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", domain.ErrInvalidInput, s)
	}
	return t, nil
}

// EnqueueUpdate enqueues an update of one upstream id, superseding any queued one.
func EnqueueUpdate(ctx context.Context, tasks driven.TaskEnqueuer, ingestorID int64, id string) error {
	return enqueue(ctx, tasks, domain.TaskIngestorUpdateDocument, ingestorID, id)
}

// EnqueueDelete enqueues a delete of one upstream id, superseding any queued one.
func EnqueueDelete(ctx context.Context, tasks driven.TaskEnqueuer, ingestorID int64, id string) error {
	return enqueue(ctx, tasks, domain.TaskIngestorDeleteDocument, ingestorID, id)
}

func enqueue(ctx context.Context, tasks driven.TaskEnqueuer, name string, ingestorID int64, id string) error {
	if tasks == nil {
		return fmt.Errorf("%w: no task queue", domain.ErrNotImplemented)
	}
	args := domain.IngestorTaskArgs{IngestorID: ingestorID, UpstreamID: id}
	if _, err := tasks.Enqueue(ctx, name, args, domain.TaskOptions{RemoveExisting: true}); err != nil {
		return fmt.Errorf("enqueueing %s for %s: %w", name, id, err)
	}
	return nil
}
