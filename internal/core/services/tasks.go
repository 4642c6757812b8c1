package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
	"github.com/laws-africa/peachjam/internal/core/ports/driving"
	"github.com/laws-africa/peachjam/internal/logger"
	"github.com/laws-africa/peachjam/internal/telemetry"
)

// Ensure TaskRunner implements the interfaces.
var (
	_ driving.TaskRunner  = (*TaskRunner)(nil)
	_ driven.TaskEnqueuer = (*TaskRunner)(nil)
)

// DefaultPollInterval is how long a worker waits for a task before polling again.
const DefaultPollInterval = 5 * time.Second

// historyKeep is the number of results kept per task name.
const historyKeep = 100

// TaskHandler executes one task.
type TaskHandler func(ctx context.Context, task domain.Task) error

// TaskRunner dispatches queued tasks to handlers by name.
type TaskRunner struct {
	queue    driven.TaskQueue
	history  driven.SchedulerStore
	metrics  *telemetry.Metrics
	poll     time.Duration
	now      func() time.Time
	handlers map[string]TaskHandler
	mu       sync.RWMutex
}

// TaskRunnerOption configures a TaskRunner.
type TaskRunnerOption func(*TaskRunner)

// WithTaskHistory records every execution in the scheduler store.
func WithTaskHistory(store driven.SchedulerStore) TaskRunnerOption {
	return func(r *TaskRunner) { r.history = store }
}

// WithTaskMetrics records task outcomes.
func WithTaskMetrics(m *telemetry.Metrics) TaskRunnerOption {
	return func(r *TaskRunner) { r.metrics = m }
}

// WithPollInterval sets how long Dequeue blocks per poll.
func WithPollInterval(d time.Duration) TaskRunnerOption {
	return func(r *TaskRunner) { r.poll = d }
}

// NewTaskRunner creates a runner over a queue.
func NewTaskRunner(queue driven.TaskQueue, opts ...TaskRunnerOption) *TaskRunner {
	r := &TaskRunner{
		queue:    queue,
		poll:     DefaultPollInterval,
		now:      time.Now,
		handlers: make(map[string]TaskHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle registers the handler for a task name, replacing any previous one.
func (r *TaskRunner) Handle(name string, h TaskHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// Enqueue adds a task by name and arguments.
func (r *TaskRunner) Enqueue(ctx context.Context, name string, args any, opts domain.TaskOptions) (string, error) {
	task, err := domain.NewTask(name, args)
	if err != nil {
		return "", err
	}
	if opts.MaxAttempts > 0 {
		task.MaxAttempts = opts.MaxAttempts
	}
	id, err := r.queue.Enqueue(ctx, task, opts)
	if err != nil {
		return "", fmt.Errorf("enqueueing %s: %w", name, err)
	}
	logger.Debug("enqueued %s %s", name, task.Args)
	return id, nil
}

// Run processes tasks with a pool of workers until ctx is cancelled.
func (r *TaskRunner) Run(ctx context.Context, workers int) error {
	if workers < 1 {
		workers = 1
	}
	logger.Info("task runner: starting %d workers", workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			r.work(ctx, n)
		}(i)
	}
	wg.Wait()
	logger.Info("task runner: stopped")
	return nil
}

func (r *TaskRunner) work(ctx context.Context, n int) {
	for ctx.Err() == nil {
		task, err := r.queue.Dequeue(ctx, r.poll)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("worker %d: dequeue failed: %v", n, err)
			select {
			case <-ctx.Done():
			case <-time.After(r.poll):
			}
			continue
		}
		if task != nil {
			r.process(ctx, task)
		}
	}
}

// RunOnce processes due tasks until the queue is empty and returns how many ran.
func (r *TaskRunner) RunOnce(ctx context.Context) (int, error) {
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		task, err := r.queue.Dequeue(ctx, 0)
		if err != nil {
			return n, fmt.Errorf("dequeueing: %w", err)
		}
		if task == nil {
			return n, nil
		}
		r.process(ctx, task)
		n++
	}
}

// process runs a task and acks, retries or drops it by outcome.
func (r *TaskRunner) process(ctx context.Context, task *domain.Task) {
	r.mu.RLock()
	h := r.handlers[task.Name]
	r.mu.RUnlock()

	started := r.now()
	if h == nil {
		logger.Warn("no handler for task %s, skipping", task.Name)
		r.ack(ctx, task)
		r.finish(ctx, task, started, telemetry.OutcomeFailed, errors.New("no handler"))
		return
	}

	err := safeRun(ctx, h, *task)
	switch {
	case err == nil:
		r.ack(ctx, task)
		r.finish(ctx, task, started, telemetry.OutcomeSuccess, nil)
	case errors.Is(err, domain.ErrSuperseded):
		logger.Debug("task %s superseded", task.Signature)
		r.ack(ctx, task)
		r.finish(ctx, task, started, telemetry.OutcomeSuperseded, nil)
	case !Retryable(err) || !task.CanRetry():
		logger.Error("task %s failed after %d attempts: %v", task.Signature, task.Attempt+1, err)
		r.ack(ctx, task)
		r.finish(ctx, task, started, telemetry.OutcomeFailed, err)
	default:
		delay := domain.Backoff(task.Attempt + 1)
		logger.Warn("task %s failed, retrying in %v: %v", task.Signature, delay, err)
		if rerr := r.queue.Retry(ctx, task, delay); rerr != nil {
			logger.Error("retrying task %s: %v", task.ID, rerr)
		}
		r.finish(ctx, task, started, telemetry.OutcomeRetry, err)
	}
}

func (r *TaskRunner) ack(ctx context.Context, task *domain.Task) {
	if err := r.queue.Ack(ctx, task); err != nil {
		logger.Error("acking task %s: %v", task.ID, err)
	}
}

func (r *TaskRunner) finish(ctx context.Context, task *domain.Task, started time.Time, outcome string, err error) {
	ended := r.now()
	r.metrics.ObserveTask(task.Name, outcome, ended.Sub(started))
	if r.history == nil {
		return
	}

	result := &domain.TaskResult{
		TaskID:    task.ID,
		Name:      task.Name,
		StartedAt: started,
		EndedAt:   ended,
		Success:   err == nil,
		Attempt:   task.Attempt,
	}
	if err != nil {
		result.Error = err.Error()
	}
	if rerr := r.history.RecordResult(ctx, result); rerr != nil {
		logger.Warn("recording result of %s: %v", task.ID, rerr)
	}
}

func safeRun(ctx context.Context, h TaskHandler, task domain.Task) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task %s panicked: %v", task.Name, p)
		}
	}()
	return h(ctx, task)
}

// Retryable reports whether a failed task should be attempted again.
func Retryable(err error) bool {
	for _, permanent := range []error{
		domain.ErrNotFoundUpstream,
		domain.ErrNotFound,
		domain.ErrInvalidInput,
		domain.ErrInvalidIdentifier,
		domain.ErrIdentifierMismatch,
		domain.ErrUnsupportedType,
	} {
		if errors.Is(err, permanent) {
			return false
		}
	}
	return true
}

// PruneTaskHistory trims stored results to the most recent per task name.
func (r *TaskRunner) PruneTaskHistory(ctx context.Context) error {
	if r.history == nil {
		return nil
	}
	return r.history.PruneHistory(ctx, historyKeep)
}

// WorkLanguageUpdater recomputes the languages of a work.
type WorkLanguageUpdater interface {
	UpdateWorkLanguages(ctx context.Context, workID int64) ([]string, error)
}

// TaskServices are the services background tasks dispatch to. Nil
// services leave their tasks unhandled.
type TaskServices struct {
	Ingestion  driving.IngestionService
	Works      WorkLanguageUpdater
	Citations  driving.CitationService
	Embeddings driving.EmbeddingsService
	Index      driving.IndexService
	Ranking    driving.RankingService
}

// RegisterTaskHandlers binds every task name to its service call.
func RegisterTaskHandlers(r *TaskRunner, svc TaskServices) {
	if svc.Ingestion != nil {
		r.Handle(domain.TaskIngestorCheckForUpdates, func(ctx context.Context, t domain.Task) error {
			var args domain.IngestorTaskArgs
			if err := t.DecodeArgs(&args); err != nil {
				return err
			}
			_, _, err := svc.Ingestion.CheckForUpdates(ctx, args.IngestorID)
			return err
		})
		r.Handle(domain.TaskIngestorUpdateDocument, func(ctx context.Context, t domain.Task) error {
			var args domain.IngestorTaskArgs
			if err := t.DecodeArgs(&args); err != nil {
				return err
			}
			return svc.Ingestion.UpdateDocument(ctx, args.IngestorID, args.UpstreamID)
		})
		r.Handle(domain.TaskIngestorDeleteDocument, func(ctx context.Context, t domain.Task) error {
			var args domain.IngestorTaskArgs
			if err := t.DecodeArgs(&args); err != nil {
				return err
			}
			return svc.Ingestion.DeleteDocument(ctx, args.IngestorID, args.UpstreamID)
		})
	}
	if svc.Works != nil {
		r.Handle(domain.TaskUpdateWorkLanguages, func(ctx context.Context, t domain.Task) error {
			var args domain.WorkTaskArgs
			if err := t.DecodeArgs(&args); err != nil {
				return err
			}
			_, err := svc.Works.UpdateWorkLanguages(ctx, args.WorkID)
			return err
		})
	}
	if svc.Citations != nil {
		r.Handle(domain.TaskExtractCitations, documentTask(func(ctx context.Context, id int64) error {
			_, err := svc.Citations.ExtractCitations(ctx, id)
			return err
		}))
	}
	if svc.Embeddings != nil {
		r.Handle(domain.TaskRefreshEmbeddings, documentTask(svc.Embeddings.RefreshDocument))
	}
	if svc.Index != nil {
		r.Handle(domain.TaskReindexDocument, documentTask(svc.Index.ReindexDocument))
		r.Handle(domain.TaskUnindexDocument, func(ctx context.Context, t domain.Task) error {
			var args domain.UnindexTaskArgs
			if err := t.DecodeArgs(&args); err != nil {
				return err
			}
			return svc.Index.UnindexDocument(ctx, args.DocumentID, args.WorkID, args.Language)
		})
	}
	if svc.Ranking != nil {
		r.Handle(domain.TaskRankWorks, func(ctx context.Context, _ domain.Task) error {
			report, err := svc.Ranking.RankWorks(ctx)
			if err != nil {
				return err
			}
			logger.Info("ranked %d works over %d edges, reindexed %d documents",
				report.Nodes, report.Edges, report.ReindexedDocs)
			return nil
		})
	}
}

func documentTask(fn func(ctx context.Context, documentID int64) error) TaskHandler {
	return func(ctx context.Context, t domain.Task) error {
		var args domain.DocumentTaskArgs
		if err := t.DecodeArgs(&args); err != nil {
			return err
		}
		return fn(ctx, args.DocumentID)
	}
}
