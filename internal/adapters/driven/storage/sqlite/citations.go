package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
)

// citationStore implements driven.CitationStore.
type citationStore struct {
	store *Store
}

var _ driven.CitationStore = (*citationStore)(nil)

// ReplaceCitations replaces every citation extracted from a document.
func (s *citationStore) ReplaceCitations(ctx context.Context, documentID int64, citations []domain.Citation) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM citations WHERE citing_document_id = ?", documentID); err != nil {
		return fmt.Errorf("clearing citations: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO citations (citing_document_id, citing_work_id, citing_work_uri, target_work_id,
			target_work_uri, citing_provision_id, target_provision_id, start_pos, end_pos, text, url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i := range citations {
		c := &citations[i]
		res, err := stmt.ExecContext(ctx, documentID, c.CitingWorkID, c.CitingWorkURI, c.TargetWorkID,
			c.TargetWorkURI, c.CitingProvisionID, c.TargetProvisionID, c.Start, c.End, c.Text, c.URL)
		if err != nil {
			return fmt.Errorf("saving citation: %w", err)
		}
		c.CitingDocumentID = documentID
		c.ID, _ = res.LastInsertId()
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ListCitationsFrom returns citations extracted from a document.
func (s *citationStore) ListCitationsFrom(ctx context.Context, documentID int64) ([]domain.Citation, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, citing_document_id, citing_work_id, citing_work_uri, target_work_id, target_work_uri,
			citing_provision_id, target_provision_id, start_pos, end_pos, text, url
		FROM citations WHERE citing_document_id = ? ORDER BY start_pos, id
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying citations: %w", err)
	}
	defer rows.Close()

	var out []domain.Citation
	for rows.Next() {
		var c domain.Citation
		if err := rows.Scan(&c.ID, &c.CitingDocumentID, &c.CitingWorkID, &c.CitingWorkURI, &c.TargetWorkID,
			&c.TargetWorkURI, &c.CitingProvisionID, &c.TargetProvisionID, &c.Start, &c.End, &c.Text, &c.URL); err != nil {
			return nil, fmt.Errorf("scanning citation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListEdges returns every distinct (citing work, target work) pair.
func (s *citationStore) ListEdges(ctx context.Context) ([]driven.CitationEdge, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT DISTINCT citing_work_id, target_work_id FROM citations
		WHERE citing_work_id != target_work_id
		ORDER BY citing_work_id, target_work_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying edges: %w", err)
	}
	defer rows.Close()

	var edges []driven.CitationEdge
	for rows.Next() {
		var e driven.CitationEdge
		if err := rows.Scan(&e.CitingWorkID, &e.TargetWorkID); err != nil {
			return nil, fmt.Errorf("scanning edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// rankingStore implements driven.RankingStore.
type rankingStore struct {
	store *Store
}

var _ driven.RankingStore = (*rankingStore)(nil)

const pivotKey = "pagerank_pivot_value"

// SaveWorkRanks writes every rank and the pivot in one transaction.
func (s *rankingStore) SaveWorkRanks(ctx context.Context, ranks []driven.WorkRank, pivot float64) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE works SET pagerank = ?, pagerank_normalized = ?, n_citing_works_normalized = ?,
			authority_score = ?, updated_at = ?
		WHERE id = ?
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	now := formatTime(time.Now())
	for _, r := range ranks {
		if _, err := stmt.ExecContext(ctx, r.Pagerank, r.PagerankNormalized, r.NCitingWorksNormalized,
			r.AuthorityScore, now, r.WorkID); err != nil {
			return fmt.Errorf("saving rank of work %d: %w", r.WorkID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ranking_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, pivotKey, pivot); err != nil {
		return fmt.Errorf("saving pivot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetPagerankPivot returns the stored pivot, or false when none was stored.
func (s *rankingStore) GetPagerankPivot(ctx context.Context) (float64, bool, error) {
	var v float64
	err := s.store.db.QueryRowContext(ctx, "SELECT value FROM ranking_state WHERE key = ?", pivotKey).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("reading pivot: %w", err)
	}
	return v, true, nil
}
