package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
)

// traceStore implements driven.TraceStore.
type traceStore struct {
	store *Store
}

var _ driven.TraceStore = (*traceStore)(nil)

const traceColumns = `id, config_version, query, field_queries, filters, filters_string, ordering, page, mode,
	query_class, n_results, previous_trace_id, user_agent, ip_address, took_ms, created_at`

// SaveTrace stores a search trace.
func (s *traceStore) SaveTrace(ctx context.Context, t *domain.SearchTrace) error {
	fieldQueries, err := marshalJSON(t.FieldQueries)
	if err != nil {
		return err
	}
	filters, err := marshalJSON(t.Filters)
	if err != nil {
		return err
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO search_traces (`+traceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.ConfigVersion, t.Query, fieldQueries, filters, t.FiltersString, string(t.Ordering), t.Page,
		string(t.Mode), string(t.QueryClass), t.NResults, t.PreviousTraceID, t.UserAgent, t.IPAddress,
		t.Took.Milliseconds(), formatTime(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("saving trace: %w", err)
	}
	return nil
}

// GetTrace returns a trace by ID, or ErrNotFound.
func (s *traceStore) GetTrace(ctx context.Context, id string) (*domain.SearchTrace, error) {
	return scanTrace(s.store.db.QueryRowContext(ctx, "SELECT "+traceColumns+" FROM search_traces WHERE id = ?", id))
}

// ListTraces returns the most recent traces.
func (s *traceStore) ListTraces(ctx context.Context, limit int) ([]domain.SearchTrace, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+traceColumns+" FROM search_traces ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("querying traces: %w", err)
	}
	defer rows.Close()

	var out []domain.SearchTrace
	for rows.Next() {
		t, err := scanTrace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func scanTrace(row rowScanner) (*domain.SearchTrace, error) {
	var t domain.SearchTrace
	var fieldQueries, filters, ordering, mode, class, created string
	var tookMS int64
	err := row.Scan(&t.ID, &t.ConfigVersion, &t.Query, &fieldQueries, &filters, &t.FiltersString, &ordering,
		&t.Page, &mode, &class, &t.NResults, &t.PreviousTraceID, &t.UserAgent, &t.IPAddress, &tookMS, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning trace: %w", err)
	}
	_ = json.Unmarshal([]byte(fieldQueries), &t.FieldQueries)
	_ = json.Unmarshal([]byte(filters), &t.Filters)
	t.Ordering = domain.Ordering(ordering)
	t.Mode = domain.SearchMode(mode)
	t.QueryClass = domain.QueryClass(class)
	t.Took = time.Duration(tookMS) * time.Millisecond
	t.CreatedAt = parseTime(created)
	return &t, nil
}
