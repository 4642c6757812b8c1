package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
)

func TestRelated_RerankByAuthority(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	docs := store.DocumentStore()
	chunks := store.ChunkStore()

	source := saveDoc(t, docs, act("2001", "1", "eng", "2001-01-01"))
	translation := saveDoc(t, docs, act("2001", "1", "fra", "2001-01-01"))
	authoritative := saveDoc(t, docs, act("2002", "2", "eng", "2002-01-01"))
	similar := saveDoc(t, docs, act("2003", "3", "eng", "2003-01-01"))
	unrelated := saveDoc(t, docs, act("2004", "4", "eng", "2004-01-01"))

	embed := func(doc *domain.Document, v ...float32) {
		require.NoError(t, chunks.SaveDocumentEmbedding(ctx, &domain.DocumentEmbedding{DocumentID: doc.ID, Embedding: v}))
	}
	embed(source, 1, 0, 0)
	embed(translation, 1, 0, 0)
	embed(authoritative, 0.9, 0.43589, 0)
	embed(similar, 0.95, 0.31225, 0)
	embed(unrelated, 0, 1, 0)

	require.NoError(t, store.RankingStore().SaveWorkRanks(ctx, []driven.WorkRank{
		{WorkID: authoritative.WorkID, AuthorityScore: 1},
	}, 0.1))

	related, err := NewRelatedService(docs, chunks).Related(ctx, []int64{source.ID}, 5)
	require.NoError(t, err)

	require.Len(t, related, 2)
	assert.Equal(t, authoritative.ID, related[0].Document.ID)
	assert.InDelta(t, 0.9, related[0].Similarity, 1e-3)
	assert.InDelta(t, 0.91, related[0].Score, 1e-3)
	assert.Equal(t, similar.ID, related[1].Document.ID)
	assert.InDelta(t, 0.855, related[1].Score, 1e-3)
}

func TestRelated_LimitAndMissingEmbeddings(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	docs := store.DocumentStore()
	chunks := store.ChunkStore()

	source := saveDoc(t, docs, act("2001", "1", "eng", "2001-01-01"))
	svc := NewRelatedService(docs, chunks)

	// nothing to compare against yet
	related, err := svc.Related(ctx, []int64{source.ID}, 5)
	require.NoError(t, err)
	assert.NotNil(t, related)
	assert.Empty(t, related)

	require.NoError(t, chunks.SaveDocumentEmbedding(ctx, &domain.DocumentEmbedding{DocumentID: source.ID, Embedding: []float32{1, 0}}))
	for i, year := range []string{"2002", "2003", "2004"} {
		doc := saveDoc(t, docs, act(year, "9", "eng", year+"-01-01"))
		require.NoError(t, chunks.SaveDocumentEmbedding(ctx, &domain.DocumentEmbedding{
			DocumentID: doc.ID,
			Embedding:  []float32{1 - float32(i)*0.01, 0},
		}))
	}

	related, err = svc.Related(ctx, []int64{source.ID}, 2)
	require.NoError(t, err)
	assert.Len(t, related, 2)

	// candidates exist but none clear the similarity floor
	require.NoError(t, chunks.SaveDocumentEmbedding(ctx, &domain.DocumentEmbedding{DocumentID: source.ID, Embedding: []float32{0, 1}}))
	related, err = svc.Related(ctx, []int64{source.ID}, 2)
	require.NoError(t, err)
	raw, err := json.Marshal(related)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))

	_, err = svc.Related(ctx, []int64{999}, 2)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
