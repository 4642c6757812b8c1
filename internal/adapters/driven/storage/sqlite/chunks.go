package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
)

// chunkStore implements driven.ChunkStore.
type chunkStore struct {
	store *Store
}

var _ driven.ChunkStore = (*chunkStore)(nil)

const chunkColumns = `id, document_id, type, portion, chunk_n, n_chunks, text, provision_type, provision_id,
	provision_title, parent_ids, parent_titles, embedding`

// ReplaceChunks replaces every chunk of a document. Chunk IDs are assigned in place.
func (s *chunkStore) ReplaceChunks(ctx context.Context, documentID int64, chunks []domain.ContentChunk) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM content_chunks WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO content_chunks (document_id, type, portion, chunk_n, n_chunks, text, provision_type,
			provision_id, provision_title, parent_ids, parent_titles, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i := range chunks {
		c := &chunks[i]
		parentIDs, err := marshalJSON(c.ParentIDs)
		if err != nil {
			return err
		}
		parentTitles, err := marshalJSON(c.ParentTitles)
		if err != nil {
			return err
		}
		res, err := stmt.ExecContext(ctx, documentID, string(c.Type), c.Portion, c.ChunkN, c.NChunks, c.Text,
			c.ProvisionType, c.ProvisionID, c.ProvisionTitle, parentIDs, parentTitles,
			float32SliceToBytes(c.Embedding))
		if err != nil {
			return fmt.Errorf("saving chunk: %w", err)
		}
		c.DocumentID = documentID
		if c.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("reading chunk id: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetChunks returns a document's chunks ordered by type, portion and chunk_n.
func (s *chunkStore) GetChunks(ctx context.Context, documentID int64) ([]domain.ContentChunk, error) {
	rows, err := s.store.db.QueryContext(ctx, "SELECT "+chunkColumns+
		" FROM content_chunks WHERE document_id = ? ORDER BY type, portion, chunk_n, id", documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var out []domain.ContentChunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// DeleteChunks removes a document's chunks and aggregate embedding.
func (s *chunkStore) DeleteChunks(ctx context.Context, documentID int64) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM content_chunks WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM document_embeddings WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("deleting document embedding: %w", err)
	}
	return tx.Commit()
}

// SaveDocumentEmbedding upserts a document's aggregate embedding.
func (s *chunkStore) SaveDocumentEmbedding(ctx context.Context, e *domain.DocumentEmbedding) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO document_embeddings (document_id, embedding, content_text_md5, summary_text_md5)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			embedding = excluded.embedding,
			content_text_md5 = excluded.content_text_md5,
			summary_text_md5 = excluded.summary_text_md5
	`, e.DocumentID, float32SliceToBytes(e.Embedding), e.ContentTextMD5, e.SummaryTextMD5)
	if err != nil {
		return fmt.Errorf("saving document embedding: %w", err)
	}
	return nil
}

// GetDocumentEmbedding returns a document's aggregate, or ErrNotFound.
func (s *chunkStore) GetDocumentEmbedding(ctx context.Context, documentID int64) (*domain.DocumentEmbedding, error) {
	var e domain.DocumentEmbedding
	var blob []byte
	err := s.store.db.QueryRowContext(ctx, `
		SELECT document_id, embedding, content_text_md5, summary_text_md5
		FROM document_embeddings WHERE document_id = ?
	`, documentID).Scan(&e.DocumentID, &blob, &e.ContentTextMD5, &e.SummaryTextMD5)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning document embedding: %w", err)
	}
	e.Embedding = bytesToFloat32Slice(blob)
	return &e, nil
}

// ListDocumentEmbeddings returns the non-null aggregates of most-recent documents.
func (s *chunkStore) ListDocumentEmbeddings(ctx context.Context) ([]domain.DocumentEmbedding, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT e.document_id, e.embedding, e.content_text_md5, e.summary_text_md5
		FROM document_embeddings e JOIN documents d ON d.id = e.document_id
		WHERE d.most_recent = 1 AND e.embedding IS NOT NULL
		ORDER BY e.document_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying document embeddings: %w", err)
	}
	defer rows.Close()

	var out []domain.DocumentEmbedding
	for rows.Next() {
		var e domain.DocumentEmbedding
		var blob []byte
		if err := rows.Scan(&e.DocumentID, &blob, &e.ContentTextMD5, &e.SummaryTextMD5); err != nil {
			return nil, fmt.Errorf("scanning document embedding: %w", err)
		}
		e.Embedding = bytesToFloat32Slice(blob)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListChunkVectors streams every embedded chunk to fn.
func (s *chunkStore) ListChunkVectors(ctx context.Context, fn func(c domain.ContentChunk) error) error {
	rows, err := s.store.db.QueryContext(ctx, "SELECT "+chunkColumns+
		" FROM content_chunks WHERE embedding IS NOT NULL ORDER BY document_id, id")
	if err != nil {
		return fmt.Errorf("querying chunk vectors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return err
		}
		if err := fn(*c); err != nil {
			return err
		}
	}
	return rows.Err()
}

func scanChunk(row rowScanner) (*domain.ContentChunk, error) {
	var c domain.ContentChunk
	var typ, parentIDs, parentTitles string
	var blob []byte
	if err := row.Scan(&c.ID, &c.DocumentID, &typ, &c.Portion, &c.ChunkN, &c.NChunks, &c.Text, &c.ProvisionType,
		&c.ProvisionID, &c.ProvisionTitle, &parentIDs, &parentTitles, &blob); err != nil {
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}
	c.Type = domain.ChunkType(typ)
	c.ParentIDs = unmarshalStrings(parentIDs)
	c.ParentTitles = unmarshalStrings(parentTitles)
	c.Embedding = bytesToFloat32Slice(blob)
	return &c, nil
}
