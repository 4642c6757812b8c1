package driven

import (
	"context"
	"time"

	"github.com/laws-africa/peachjam/internal/core/domain"
)

// TaskQueue is a durable, at-least-once background task queue.
type TaskQueue interface {
	// Enqueue adds a task and returns its ID. With RemoveExisting, a pending
	// task with the same signature is superseded.
	Enqueue(ctx context.Context, task domain.Task, opts domain.TaskOptions) (string, error)

	// Dequeue blocks up to wait for a due task. It returns nil when none arrived.
	// A wait of zero polls without blocking. Superseded tasks are never returned.
	Dequeue(ctx context.Context, wait time.Duration) (*domain.Task, error)

	// Ack marks a dequeued task as done.
	Ack(ctx context.Context, task *domain.Task) error

	// Retry re-schedules a dequeued task after delay with its attempt incremented.
	Retry(ctx context.Context, task *domain.Task, delay time.Duration) error

	// Pending returns the number of tasks not yet acknowledged.
	Pending(ctx context.Context) (int, error)

	// Close releases resources.
	Close() error
}

// Cache is a small byte cache with expiry.
type Cache interface {
	// Get returns the cached value and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A zero ttl never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
