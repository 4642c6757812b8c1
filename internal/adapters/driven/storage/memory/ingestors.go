package memory

import (
	"context"
	"sort"
	"time"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
)

var (
	_ driven.IngestorStore = (*IngestorStore)(nil)
	_ driven.TraceStore    = (*TraceStore)(nil)
)

// IngestorStore is an in-memory implementation of driven.IngestorStore.
type IngestorStore struct {
	s *Store
}

// SaveIngestor creates or updates an ingestor by name.
func (i *IngestorStore) SaveIngestor(_ context.Context, ing *domain.Ingestor) error {
	if ing == nil || ing.Name == "" {
		return domain.ErrInvalidInput
	}
	i.s.mu.Lock()
	defer i.s.mu.Unlock()
	for id, existing := range i.s.ingestors {
		if existing.Name == ing.Name {
			ing.ID = id
		}
	}
	if ing.ID == 0 {
		i.s.nextIngestorID++
		ing.ID = i.s.nextIngestorID
	}
	cp := *ing
	cp.Settings = ing.FrozenSettings()
	i.s.ingestors[ing.ID] = cp
	return nil
}

// GetIngestor retrieves an ingestor by ID.
func (i *IngestorStore) GetIngestor(_ context.Context, id int64) (*domain.Ingestor, error) {
	i.s.mu.RLock()
	defer i.s.mu.RUnlock()
	ing, ok := i.s.ingestors[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &ing, nil
}

// GetIngestorByName retrieves an ingestor by name.
func (i *IngestorStore) GetIngestorByName(_ context.Context, name string) (*domain.Ingestor, error) {
	i.s.mu.RLock()
	defer i.s.mu.RUnlock()
	for _, ing := range i.s.ingestors {
		if ing.Name == name {
			return &ing, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ListIngestors returns all ingestors ordered by ID.
func (i *IngestorStore) ListIngestors(_ context.Context) ([]domain.Ingestor, error) {
	i.s.mu.RLock()
	defer i.s.mu.RUnlock()
	out := make([]domain.Ingestor, 0, len(i.s.ingestors))
	for _, ing := range i.s.ingestors {
		out = append(out, ing)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

// SetLastRefreshed records the time of the last successful check.
func (i *IngestorStore) SetLastRefreshed(_ context.Context, id int64, at time.Time) error {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()
	ing, ok := i.s.ingestors[id]
	if !ok {
		return domain.ErrNotFound
	}
	at = at.UTC()
	ing.LastRefreshedAt = &at
	i.s.ingestors[id] = ing
	return nil
}

// TraceStore is an in-memory implementation of driven.TraceStore.
type TraceStore struct {
	s *Store
}

// SaveTrace appends a trace.
func (t *TraceStore) SaveTrace(_ context.Context, trace *domain.SearchTrace) error {
	if trace == nil || trace.ID == "" {
		return domain.ErrInvalidInput
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.traces = append(t.s.traces, *trace)
	return nil
}

// GetTrace retrieves a trace by ID.
func (t *TraceStore) GetTrace(_ context.Context, id string) (*domain.SearchTrace, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	for _, trace := range t.s.traces {
		if trace.ID == id {
			return &trace, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ListTraces returns the most recent traces first. A limit of 0 means 50.
func (t *TraceStore) ListTraces(_ context.Context, limit int) ([]domain.SearchTrace, error) {
	if limit <= 0 {
		limit = 50
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	var out []domain.SearchTrace
	for i := len(t.s.traces) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, t.s.traces[i])
	}
	return out, nil
}
