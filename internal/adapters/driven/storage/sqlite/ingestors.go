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

// ingestorStore implements driven.IngestorStore.
type ingestorStore struct {
	store *Store
}

var _ driven.IngestorStore = (*ingestorStore)(nil)

// SaveIngestor creates or updates an ingestor by name.
func (s *ingestorStore) SaveIngestor(ctx context.Context, ing *domain.Ingestor) error {
	if ing == nil || ing.Name == "" || ing.Adapter == "" {
		return fmt.Errorf("%w: ingestor needs a name and an adapter", domain.ErrInvalidInput)
	}
	settings, err := marshalJSON(ing.Settings)
	if err != nil {
		return fmt.Errorf("marshalling settings: %w", err)
	}

	var refreshed any
	if ing.LastRefreshedAt != nil {
		refreshed = formatTime(*ing.LastRefreshedAt)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO ingestors (name, adapter, settings, last_refreshed_at, enabled)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			adapter = excluded.adapter,
			settings = excluded.settings,
			enabled = excluded.enabled
	`, ing.Name, ing.Adapter, settings, refreshed, boolToInt(ing.Enabled))
	if err != nil {
		return fmt.Errorf("saving ingestor: %w", err)
	}

	return s.store.db.QueryRowContext(ctx, "SELECT id FROM ingestors WHERE name = ?", ing.Name).Scan(&ing.ID)
}

// GetIngestor retrieves an ingestor by ID.
func (s *ingestorStore) GetIngestor(ctx context.Context, id int64) (*domain.Ingestor, error) {
	return scanIngestor(s.store.db.QueryRowContext(ctx, "SELECT "+ingestorColumns+" FROM ingestors WHERE id = ?", id))
}

// GetIngestorByName retrieves an ingestor by name.
func (s *ingestorStore) GetIngestorByName(ctx context.Context, name string) (*domain.Ingestor, error) {
	return scanIngestor(s.store.db.QueryRowContext(ctx, "SELECT "+ingestorColumns+" FROM ingestors WHERE name = ?", name))
}

// ListIngestors returns all ingestors.
func (s *ingestorStore) ListIngestors(ctx context.Context) ([]domain.Ingestor, error) {
	rows, err := s.store.db.QueryContext(ctx, "SELECT "+ingestorColumns+" FROM ingestors ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("querying ingestors: %w", err)
	}
	defer rows.Close()

	var out []domain.Ingestor
	for rows.Next() {
		ing, err := scanIngestor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ing)
	}
	return out, rows.Err()
}

// SetLastRefreshed records the time of the last successful check.
func (s *ingestorStore) SetLastRefreshed(ctx context.Context, id int64, at time.Time) error {
	res, err := s.store.db.ExecContext(ctx, "UPDATE ingestors SET last_refreshed_at = ? WHERE id = ?", formatTime(at), id)
	if err != nil {
		return fmt.Errorf("updating last refreshed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const ingestorColumns = "id, name, adapter, settings, last_refreshed_at, enabled"

func scanIngestor(row rowScanner) (*domain.Ingestor, error) {
	var ing domain.Ingestor
	var settings string
	var refreshed sql.NullString
	var enabled int
	err := row.Scan(&ing.ID, &ing.Name, &ing.Adapter, &settings, &refreshed, &enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning ingestor: %w", err)
	}
	if err := json.Unmarshal([]byte(settings), &ing.Settings); err != nil {
		return nil, fmt.Errorf("unmarshalling settings: %w", err)
	}
	if t := parseNullableTime(refreshed); !t.IsZero() {
		ing.LastRefreshedAt = &t
	}
	ing.Enabled = enabled == 1
	return &ing, nil
}
