package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storage "github.com/laws-africa/peachjam/internal/adapters/driven/storage/memory"
	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
)

func TestIndex_Search(t *testing.T) {
	ctx := context.Background()
	x := New(2)

	require.NoError(t, x.Upsert(ctx, 1, []driven.ChunkVector{
		{ChunkID: 10, Embedding: []float32{1, 0}},
		{ChunkID: 11, Embedding: []float32{0, 1}},
	}))
	require.NoError(t, x.Upsert(ctx, 2, []driven.ChunkVector{
		{ChunkID: 20, Embedding: []float32{0.8, 0.6}},
	}))
	assert.Equal(t, 3, x.Len())

	hits, err := x.Search(ctx, []float32{1, 0}, 2, 100, 0.5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, int64(10), hits[0].ChunkID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
	assert.Equal(t, int64(20), hits[1].ChunkID)
	assert.Equal(t, int64(2), hits[1].DocumentID)

	// the similarity floor drops the orthogonal chunk
	hits, err = x.Search(ctx, []float32{1, 0}, 10, 100, 0.5)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	// numCandidates caps k
	hits, err = x.Search(ctx, []float32{1, 0}, 10, 1, 0)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	_, err = x.Search(ctx, []float32{1, 0, 0}, 1, 1, 0)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestIndex_SearchDistinctDocuments(t *testing.T) {
	ctx := context.Background()
	x := New(2)

	require.NoError(t, x.Upsert(ctx, 1, []driven.ChunkVector{
		{ChunkID: 10, Embedding: []float32{1, 0}},
		{ChunkID: 11, Embedding: []float32{0.99, 0.141}},
		{ChunkID: 12, Embedding: []float32{0.98, 0.199}},
	}))
	require.NoError(t, x.Upsert(ctx, 2, []driven.ChunkVector{
		{ChunkID: 20, Embedding: []float32{0.6, 0.8}},
	}))
	require.NoError(t, x.Upsert(ctx, 3, []driven.ChunkVector{
		{ChunkID: 30, Embedding: []float32{0.8, 0.6}},
	}))

	hits, err := x.Search(ctx, []float32{1, 0}, 2, 100, 0)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, int64(1), hits[0].DocumentID)
	assert.Equal(t, int64(10), hits[0].ChunkID, "a document is represented by its best chunk")
	assert.Equal(t, int64(3), hits[1].DocumentID)
}

func TestIndex_UpsertReplacesAndDeletes(t *testing.T) {
	ctx := context.Background()
	x := New(0)

	require.NoError(t, x.Upsert(ctx, 1, []driven.ChunkVector{{ChunkID: 1, Embedding: []float32{1, 0}}, {ChunkID: 2, Embedding: []float32{0, 1}}}))
	require.NoError(t, x.Upsert(ctx, 1, []driven.ChunkVector{{ChunkID: 3, Embedding: []float32{1, 0}}}))
	assert.Equal(t, 1, x.Len())

	err := x.Upsert(ctx, 2, []driven.ChunkVector{{ChunkID: 4, Embedding: []float32{1}}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	require.NoError(t, x.DeleteDocument(ctx, 1))
	assert.Zero(t, x.Len())

	hits, err := x.Search(ctx, []float32{1, 0}, 5, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	store := storage.NewStore()
	require.NoError(t, store.ChunkStore().ReplaceChunks(ctx, 7, []domain.ContentChunk{
		{Type: domain.ChunkTypeText, Text: "a", Embedding: []float32{1, 0}},
		{Type: domain.ChunkTypeText, Text: "b"},
	}))

	x, err := Load(ctx, store.ChunkStore(), 2)
	require.NoError(t, err)
	assert.Equal(t, 1, x.Len())

	hits, err := x.Search(ctx, []float32{1, 0}, 1, 1, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(7), hits[0].DocumentID)
}
