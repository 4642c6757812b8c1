// Package memory implements driven.TaskQueue in process memory, for tests
// and single-process runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
)

// Ensure Queue implements the interface.
var _ driven.TaskQueue = (*Queue)(nil)

// Queue holds tasks ordered by RunAt.
type Queue struct {
	mu       sync.Mutex
	pending  []*domain.Task
	inflight map[string]*domain.Task
	latest   map[string]string // signature -> newest task id
	notify   chan struct{}
	now      func() time.Time
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{
		inflight: make(map[string]*domain.Task),
		latest:   make(map[string]string),
		notify:   make(chan struct{}, 1),
		now:      time.Now,
	}
}

// Enqueue adds a task.
func (q *Queue) Enqueue(_ context.Context, task domain.Task, opts domain.TaskOptions) (string, error) {
	q.mu.Lock()
	now := q.now().UTC()
	task.ID = uuid.NewString()
	task.CreatedAt = now
	task.RunAt = now.Add(opts.Delay)
	if opts.RemoveExisting {
		q.latest[task.Signature] = task.ID
	}
	q.insert(&task)
	q.mu.Unlock()

	q.wake()
	return task.ID, nil
}

func (q *Queue) insert(task *domain.Task) {
	i := sort.Search(len(q.pending), func(i int) bool { return q.pending[i].RunAt.After(task.RunAt) })
	q.pending = append(q.pending, nil)
	copy(q.pending[i+1:], q.pending[i:])
	q.pending[i] = task
}

func (q *Queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Dequeue returns the next due task, waiting up to wait for one.
func (q *Queue) Dequeue(ctx context.Context, wait time.Duration) (*domain.Task, error) {
	deadline := q.now().Add(wait)
	for {
		task, next := q.take()
		if task != nil {
			return task, nil
		}
		remaining := deadline.Sub(q.now())
		if remaining <= 0 {
			return nil, nil
		}
		if !next.IsZero() {
			remaining = min(remaining, next.Sub(q.now()))
		}
		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-q.notify:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// take pops the first due task that is not superseded. It also returns the
// RunAt of the earliest task not yet due.
func (q *Queue) take() (*domain.Task, time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	for len(q.pending) > 0 {
		task := q.pending[0]
		if task.RunAt.After(now) {
			return nil, task.RunAt
		}
		q.pending = q.pending[1:]
		if id, ok := q.latest[task.Signature]; ok && id != task.ID {
			continue
		}
		q.inflight[task.ID] = task
		return task, time.Time{}
	}
	return nil, time.Time{}
}

// Ack marks a dequeued task as done.
func (q *Queue) Ack(_ context.Context, task *domain.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.inflight[task.ID]; !ok {
		return fmt.Errorf("task %s: %w", task.ID, domain.ErrNotFound)
	}
	delete(q.inflight, task.ID)
	if q.latest[task.Signature] == task.ID {
		delete(q.latest, task.Signature)
	}
	return nil
}

// Retry re-schedules a dequeued task after delay.
func (q *Queue) Retry(_ context.Context, task *domain.Task, delay time.Duration) error {
	q.mu.Lock()
	if _, ok := q.inflight[task.ID]; !ok {
		q.mu.Unlock()
		return fmt.Errorf("task %s: %w", task.ID, domain.ErrNotFound)
	}
	delete(q.inflight, task.ID)
	task.Attempt++
	task.RunAt = q.now().UTC().Add(delay)
	q.insert(task)
	q.mu.Unlock()

	q.wake()
	return nil
}

// Pending returns the number of queued and in-flight tasks.
func (q *Queue) Pending(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) + len(q.inflight), nil
}

// Close drops every task.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = nil
	q.inflight = make(map[string]*domain.Task)
	return nil
}
