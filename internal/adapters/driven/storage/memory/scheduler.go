package memory

import (
	"context"
	"sort"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
)

var _ driven.SchedulerStore = (*SchedulerStore)(nil)

// SchedulerStore is an in-memory implementation of driven.SchedulerStore.
type SchedulerStore struct {
	s *Store
}

// GetTask retrieves a scheduled task by ID, or nil when missing.
func (st *SchedulerStore) GetTask(_ context.Context, taskID string) (*domain.ScheduledTask, error) {
	st.s.mu.RLock()
	defer st.s.mu.RUnlock()
	task, ok := st.s.tasks[taskID]
	if !ok {
		return nil, nil
	}
	return &task, nil
}

// ListTasks returns all scheduled tasks ordered by ID.
func (st *SchedulerStore) ListTasks(_ context.Context) ([]domain.ScheduledTask, error) {
	st.s.mu.RLock()
	defer st.s.mu.RUnlock()
	out := make([]domain.ScheduledTask, 0, len(st.s.tasks))
	for _, task := range st.s.tasks {
		out = append(out, task)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveTask creates or updates a task.
func (st *SchedulerStore) SaveTask(_ context.Context, task *domain.ScheduledTask) error {
	if task == nil {
		return domain.ErrInvalidInput
	}
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	st.s.tasks[task.ID] = *task
	return nil
}

// DeleteTask removes a task.
func (st *SchedulerStore) DeleteTask(_ context.Context, taskID string) error {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	delete(st.s.tasks, taskID)
	return nil
}

// RecordResult logs a task execution result.
func (st *SchedulerStore) RecordResult(_ context.Context, result *domain.TaskResult) error {
	if result == nil {
		return domain.ErrInvalidInput
	}
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	st.s.results = append(st.s.results, *result)
	return nil
}

// GetTaskHistory returns results for a task ID or name, most recent first.
func (st *SchedulerStore) GetTaskHistory(_ context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	st.s.mu.RLock()
	defer st.s.mu.RUnlock()
	var out []domain.TaskResult
	for i := len(st.s.results) - 1; i >= 0; i-- {
		r := st.s.results[i]
		if r.TaskID == taskID || r.Name == taskID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PruneHistory keeps the most recent keep results per task name.
func (st *SchedulerStore) PruneHistory(_ context.Context, keep int) error {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	sort.SliceStable(st.s.results, func(i, j int) bool {
		return st.s.results[i].StartedAt.Before(st.s.results[j].StartedAt)
	})
	counts := make(map[string]int)
	kept := make([]domain.TaskResult, 0, len(st.s.results))
	for i := len(st.s.results) - 1; i >= 0; i-- {
		r := st.s.results[i]
		if counts[r.Name] < keep {
			counts[r.Name]++
			kept = append(kept, r)
		}
	}
	// restore chronological order
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	st.s.results = kept
	return nil
}
