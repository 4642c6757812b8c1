package driving

import (
	"context"

	"github.com/laws-africa/peachjam/internal/core/domain"
)

// Scheduler enqueues periodic work.
type Scheduler interface {
	// Start begins running scheduled tasks.
	// Blocks until context is cancelled or an error occurs.
	Start(ctx context.Context) error

	// Stop gracefully stops all running tasks.
	Stop() error
}

// TaskRunner executes queued background tasks.
type TaskRunner interface {
	// Enqueue adds a task by name and arguments.
	Enqueue(ctx context.Context, name string, args any, opts domain.TaskOptions) (string, error)

	// Run processes tasks with a pool of workers until ctx is cancelled.
	Run(ctx context.Context, workers int) error

	// RunOnce processes due tasks until the queue is empty and returns how many ran.
	RunOnce(ctx context.Context) (int, error)
}
