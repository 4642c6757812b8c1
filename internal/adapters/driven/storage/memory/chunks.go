package memory

import (
	"context"
	"sort"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
)

var _ driven.ChunkStore = (*ChunkStore)(nil)

// ChunkStore is an in-memory implementation of driven.ChunkStore.
type ChunkStore struct {
	s *Store
}

// ReplaceChunks replaces every chunk of a document, assigning IDs in place.
func (c *ChunkStore) ReplaceChunks(_ context.Context, documentID int64, chunks []domain.ContentChunk) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	out := make([]domain.ContentChunk, len(chunks))
	for i := range chunks {
		c.s.nextChunkID++
		chunks[i].ID = c.s.nextChunkID
		chunks[i].DocumentID = documentID
		out[i] = chunks[i]
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Portion != b.Portion {
			return a.Portion < b.Portion
		}
		return a.ChunkN < b.ChunkN
	})
	c.s.chunks[documentID] = out
	return nil
}

// GetChunks returns a document's chunks ordered by type, portion and chunk_n.
func (c *ChunkStore) GetChunks(_ context.Context, documentID int64) ([]domain.ContentChunk, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	return append([]domain.ContentChunk(nil), c.s.chunks[documentID]...), nil
}

// DeleteChunks removes a document's chunks and aggregate embedding.
func (c *ChunkStore) DeleteChunks(_ context.Context, documentID int64) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	delete(c.s.chunks, documentID)
	delete(c.s.embeds, documentID)
	return nil
}

// SaveDocumentEmbedding upserts a document's aggregate embedding.
func (c *ChunkStore) SaveDocumentEmbedding(_ context.Context, e *domain.DocumentEmbedding) error {
	if e == nil {
		return domain.ErrInvalidInput
	}
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.embeds[e.DocumentID] = *e
	return nil
}

// GetDocumentEmbedding returns a document's aggregate, or ErrNotFound.
func (c *ChunkStore) GetDocumentEmbedding(_ context.Context, documentID int64) (*domain.DocumentEmbedding, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	e, ok := c.s.embeds[documentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &e, nil
}

// ListDocumentEmbeddings returns the aggregates of most-recent documents.
func (c *ChunkStore) ListDocumentEmbeddings(_ context.Context) ([]domain.DocumentEmbedding, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	var out []domain.DocumentEmbedding
	for id, e := range c.s.embeds {
		if doc, ok := c.s.documents[id]; ok && doc.MostRecent && len(e.Embedding) > 0 {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentID < out[j].DocumentID })
	return out, nil
}

// ListChunkVectors streams every embedded chunk to fn.
func (c *ChunkStore) ListChunkVectors(_ context.Context, fn func(c domain.ContentChunk) error) error {
	c.s.mu.RLock()
	var all []domain.ContentChunk
	for _, list := range c.s.chunks {
		for _, chunk := range list {
			if len(chunk.Embedding) > 0 {
				all = append(all, chunk)
			}
		}
	}
	c.s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	for _, chunk := range all {
		if err := fn(chunk); err != nil {
			return err
		}
	}
	return nil
}
