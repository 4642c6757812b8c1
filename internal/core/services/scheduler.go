package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
	"github.com/laws-africa/peachjam/internal/core/ports/driving"
	"github.com/laws-africa/peachjam/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// SchedulerTick is how often due entries are checked.
const SchedulerTick = time.Minute

// DefaultIngestorRepeat is the check schedule of an ingestor without a repeat setting.
const DefaultIngestorRepeat = domain.RepeatHourly

// Scheduler enqueues tasks for due schedule entries.
// It is a pure core service with no external control API.
type Scheduler struct {
	config    domain.SchedulerConfig
	store     driven.SchedulerStore
	tasks     driven.TaskEnqueuer
	ingestors driven.IngestorStore
	now       func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// NewScheduler creates a scheduler with configuration. ingestors may be nil.
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	tasks driven.TaskEnqueuer,
	ingestors driven.IngestorStore,
) *Scheduler {
	return &Scheduler{
		config:    config,
		store:     store,
		tasks:     tasks,
		ingestors: ingestors,
		now:       time.Now,
	}
}

// Start begins the scheduler loop. This method blocks until Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	if !s.config.Enabled {
		logger.Info("scheduler: disabled")
	} else if err := s.InitialiseTasks(ctx); err != nil {
		logger.Warn("scheduler: failed to initialise tasks: %v", err)
	}

	return s.run(ctx)
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()
	return nil
}

// InitialiseTasks ensures the built-in and per-ingestor entries exist.
func (s *Scheduler) InitialiseTasks(ctx context.Context) error {
	entries := []domain.ScheduledTask{
		{ID: domain.ScheduleIDRanking, TaskName: domain.TaskRankWorks, Cron: s.config.RankingCron, Enabled: true},
		{ID: domain.ScheduleIDTimelineRefresh, TaskName: domain.TaskRefreshTimelines, Repeat: s.config.TimelineRefresh, Enabled: true},
		{ID: domain.ScheduleIDTimelineAlerts, TaskName: domain.TaskSendTimelineAlerts, Repeat: s.config.TimelineAlerts, Enabled: true},
	}

	if s.ingestors != nil {
		ingestors, err := s.ingestors.ListIngestors(ctx)
		if err != nil {
			return fmt.Errorf("listing ingestors: %w", err)
		}
		for i := range ingestors {
			entry, err := IngestorSchedule(&ingestors[i])
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}
	}

	for i := range entries {
		e := &entries[i]
		if e.Cron == "" && e.Repeat.Interval() == 0 {
			logger.Debug("scheduler: %s has no schedule, skipping", e.ID)
			continue
		}
		if err := s.ensureTask(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// IngestorSchedule is the periodic check entry of an ingestor.
func IngestorSchedule(ing *domain.Ingestor) (domain.ScheduledTask, error) {
	args, err := json.Marshal(domain.IngestorTaskArgs{IngestorID: ing.ID})
	if err != nil {
		return domain.ScheduledTask{}, err
	}
	repeat := domain.Repeat(ing.Setting(domain.SettingRepeat))
	if repeat.Interval() == 0 {
		repeat = DefaultIngestorRepeat
	}
	return domain.ScheduledTask{
		ID:       fmt.Sprintf("ingestor-%d", ing.ID),
		TaskName: domain.TaskIngestorCheckForUpdates,
		Args:     args,
		Repeat:   repeat,
		Enabled:  ing.Enabled,
	}, nil
}

// ensureTask creates or updates an entry in the store.
func (s *Scheduler) ensureTask(ctx context.Context, want *domain.ScheduledTask) error {
	task, err := s.store.GetTask(ctx, want.ID)
	if err != nil {
		return err
	}

	now := s.now()
	if task == nil {
		task = want
		next, err := NextRun(task, now)
		if err != nil {
			return err
		}
		task.NextRun = next
	} else {
		// recompute the next run only when the schedule changed
		changed := task.Cron != want.Cron || task.Repeat != want.Repeat
		task.TaskName, task.Args, task.Cron, task.Repeat = want.TaskName, want.Args, want.Cron, want.Repeat
		task.Enabled = want.Enabled
		if changed {
			next, err := NextRun(task, now)
			if err != nil {
				return err
			}
			task.NextRun = next
		}
	}

	return s.store.SaveTask(ctx, task)
}

// NextRun returns when an entry fires after from. Cron takes precedence over Repeat.
func NextRun(task *domain.ScheduledTask, from time.Time) (time.Time, error) {
	if task.Cron != "" {
		expr, err := cronexpr.Parse(task.Cron)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: schedule %s cron %q: %v", domain.ErrInvalidInput, task.ID, task.Cron, err)
		}
		return expr.Next(from), nil
	}
	if d := task.Repeat.Interval(); d > 0 {
		return from.Add(d), nil
	}
	return time.Time{}, nil
}

// run is the main scheduler loop.
func (s *Scheduler) run(ctx context.Context) error {
	if s.config.Enabled {
		s.CheckAndRunDueTasks(ctx)
	}

	ticker := time.NewTicker(SchedulerTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			if s.config.Enabled {
				s.CheckAndRunDueTasks(ctx)
			}
		}
	}
}

// CheckAndRunDueTasks enqueues every enabled entry whose next run has passed.
func (s *Scheduler) CheckAndRunDueTasks(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Warn("scheduler: failed to list tasks: %v", err)
		return
	}

	now := s.now()
	for i := range tasks {
		task := &tasks[i]
		if !task.Enabled {
			continue
		}
		if task.NextRun.IsZero() || !task.NextRun.After(now) {
			s.fire(ctx, task, now)
		}
	}

	if pruner, ok := s.tasks.(interface{ PruneTaskHistory(context.Context) error }); ok {
		if err := pruner.PruneTaskHistory(ctx); err != nil {
			logger.Warn("scheduler: failed to prune history: %v", err)
		}
	}
}

// fire enqueues the entry's task and advances its schedule.
func (s *Scheduler) fire(ctx context.Context, task *domain.ScheduledTask, now time.Time) {
	var args any
	if len(task.Args) > 0 {
		args = json.RawMessage(task.Args)
	}

	_, err := s.tasks.Enqueue(ctx, task.TaskName, args, domain.TaskOptions{RemoveExisting: true})
	if err != nil {
		logger.Error("scheduler: failed to enqueue %s: %v", task.ID, err)
		task.LastError = err.Error()
	} else {
		logger.Debug("scheduler: enqueued %s (%s)", task.ID, task.TaskName)
		task.LastError = ""
	}

	task.LastRun = now
	next, nerr := NextRun(task, now)
	if nerr != nil {
		logger.Error("scheduler: %v", nerr)
		task.Enabled = false
	}
	task.NextRun = next

	if err := s.store.SaveTask(ctx, task); err != nil {
		logger.Warn("scheduler: failed to save task %s: %v", task.ID, err)
	}
}
