package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
	"github.com/laws-africa/peachjam/internal/logger"
)

// EventHandler reacts to a lifecycle event. Handlers only enqueue tasks; they
// never call other handlers or do the work inline.
type EventHandler func(ctx context.Context, ev domain.Event) error

// EventBus dispatches lifecycle events to a fixed handler table.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[domain.EventKind][]EventHandler
}

// NewEventBus creates an event bus with no handlers.
func NewEventBus() *EventBus {
	return &EventBus{handlers: make(map[domain.EventKind][]EventHandler)}
}

// Subscribe registers a handler for an event kind.
func (b *EventBus) Subscribe(kind domain.EventKind, h EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], h)
}

// Emit stamps the event and runs every handler for its kind. All handlers run
// even when one fails; their errors are joined.
func (b *EventBus) Emit(ctx context.Context, ev domain.Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.handlers[ev.Kind]...)
	b.mu.RUnlock()

	logger.Debug("event %s document=%d handlers=%d", ev.Kind, ev.DocumentID, len(handlers))
	var errs []error
	for _, h := range handlers {
		if err := h(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("%s handler: %w", ev.Kind, err))
		}
	}
	return errors.Join(errs...)
}

// RegisterDefaultHandlers wires the standard handler table onto the bus.
//
//   - DocumentSaved: extract citations (when inputs changed), update work
//     languages, refresh embeddings and reindex.
//   - DocumentDeleted: update work languages and unindex.
func RegisterDefaultHandlers(b *EventBus, tasks driven.TaskEnqueuer) {
	replace := domain.TaskOptions{RemoveExisting: true}

	b.Subscribe(domain.EventDocumentSaved, func(ctx context.Context, ev domain.Event) error {
		doc := domain.DocumentTaskArgs{DocumentID: ev.DocumentID}
		if ev.CitationInputsChanged {
			if _, err := tasks.Enqueue(ctx, domain.TaskExtractCitations, doc, replace); err != nil {
				return err
			}
		}
		if _, err := tasks.Enqueue(ctx, domain.TaskUpdateWorkLanguages, domain.WorkTaskArgs{WorkID: ev.WorkID}, replace); err != nil {
			return err
		}
		if _, err := tasks.Enqueue(ctx, domain.TaskRefreshEmbeddings, doc, replace); err != nil {
			return err
		}
		_, err := tasks.Enqueue(ctx, domain.TaskReindexDocument, doc, replace)
		return err
	})

	b.Subscribe(domain.EventDocumentDeleted, func(ctx context.Context, ev domain.Event) error {
		if _, err := tasks.Enqueue(ctx, domain.TaskUpdateWorkLanguages, domain.WorkTaskArgs{WorkID: ev.WorkID}, replace); err != nil {
			return err
		}
		args := domain.UnindexTaskArgs{DocumentID: ev.DocumentID, WorkID: ev.WorkID, Language: ev.Language}
		_, err := tasks.Enqueue(ctx, domain.TaskUnindexDocument, args, replace)
		return err
	})
}
