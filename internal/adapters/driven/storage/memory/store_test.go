package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
)

func expression(lang string, year int) *domain.Document {
	return &domain.Document{
		Kind:     domain.KindLegislation,
		Country:  "za",
		Doctype:  "act",
		FrbrDate: "2009",
		Number:   "1",
		Language: lang,
		Date:     time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC),
		Title:    "Land Act",
	}
}

func derive(doc *domain.Document, _ driven.SerialAllocator) error {
	return doc.DeriveIdentifiers()
}

func TestDocumentStore_MostRecent(t *testing.T) {
	ctx := context.Background()
	docs := NewStore().DocumentStore()

	older := expression("eng", 2009)
	_, err := docs.SaveDocument(ctx, older, derive)
	require.NoError(t, err)
	assert.True(t, older.MostRecent)

	newer := expression("eng", 2012)
	_, err = docs.SaveDocument(ctx, newer, derive)
	require.NoError(t, err)

	got, err := docs.GetDocument(ctx, older.ID)
	require.NoError(t, err)
	assert.False(t, got.MostRecent)

	_, err = docs.DeleteDocument(ctx, newer.ID)
	require.NoError(t, err)
	got, err = docs.GetDocument(ctx, older.ID)
	require.NoError(t, err)
	assert.True(t, got.MostRecent)
}

func TestDocumentStore_UpdateByExpressionURI(t *testing.T) {
	ctx := context.Background()
	docs := NewStore().DocumentStore()

	first := expression("eng", 2009)
	prev, err := docs.SaveDocument(ctx, first, derive)
	require.NoError(t, err)
	assert.Nil(t, prev)

	second := expression("eng", 2009)
	second.Title = "Renamed"
	prev, err = docs.SaveDocument(ctx, second, derive)
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Land Act", prev.Title)
}

func TestDocumentStore_SerialAllocator(t *testing.T) {
	ctx := context.Background()
	docs := NewStore().DocumentStore()

	var got []int
	prepare := func(doc *domain.Document, next driven.SerialAllocator) error {
		err := domain.AssignJudgmentFrbrURI(doc, func() (int, error) { return next("EACJ", doc.Date.Year()) })
		if err != nil {
			return err
		}
		got = append(got, doc.Judgment.SerialNumber)
		return doc.DeriveIdentifiers()
	}
	for i := 0; i < 3; i++ {
		doc := &domain.Document{
			Kind:     domain.KindJudgment,
			Language: "eng",
			Date:     time.Date(2019, 1, i+1, 0, 0, 0, 0, time.UTC),
			Judgment: &domain.JudgmentDetails{Court: domain.Court{Code: "EACJ", Country: "aa"}},
		}
		_, err := docs.SaveDocument(ctx, doc, prepare)
		require.NoError(t, err)
	}
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestCitationStore_Edges(t *testing.T) {
	ctx := context.Background()
	cites := NewStore().CitationStore()

	require.NoError(t, cites.ReplaceCitations(ctx, 1, []domain.Citation{
		{CitingWorkID: 1, TargetWorkID: 2},
		{CitingWorkID: 1, TargetWorkID: 2},
		{CitingWorkID: 1, TargetWorkID: 1},
	}))
	require.NoError(t, cites.ReplaceCitations(ctx, 2, []domain.Citation{{CitingWorkID: 3, TargetWorkID: 2}}))

	edges, err := cites.ListEdges(ctx)
	require.NoError(t, err)
	assert.Equal(t, []driven.CitationEdge{{CitingWorkID: 1, TargetWorkID: 2}, {CitingWorkID: 3, TargetWorkID: 2}}, edges)
}

func TestSchedulerStore_PruneHistory(t *testing.T) {
	ctx := context.Background()
	st := NewStore().SchedulerStore()

	base := time.Now()
	for i := 0; i < 4; i++ {
		require.NoError(t, st.RecordResult(ctx, &domain.TaskResult{
			Name:      "a",
			StartedAt: base.Add(time.Duration(i) * time.Second),
			Attempt:   i,
		}))
	}
	require.NoError(t, st.RecordResult(ctx, &domain.TaskResult{Name: "b", StartedAt: base}))
	require.NoError(t, st.PruneHistory(ctx, 2))

	a, err := st.GetTaskHistory(ctx, "a", 10)
	require.NoError(t, err)
	require.Len(t, a, 2)
	assert.Equal(t, 3, a[0].Attempt)
	assert.Equal(t, 2, a[1].Attempt)

	b, err := st.GetTaskHistory(ctx, "b", 10)
	require.NoError(t, err)
	assert.Len(t, b, 1)
}

func TestIngestorStore_UpsertByName(t *testing.T) {
	ctx := context.Background()
	ings := NewStore().IngestorStore()

	first := &domain.Ingestor{Name: "za", Adapter: "indigo", Enabled: true}
	require.NoError(t, ings.SaveIngestor(ctx, first))
	second := &domain.Ingestor{Name: "za", Adapter: "indigo"}
	require.NoError(t, ings.SaveIngestor(ctx, second))
	assert.Equal(t, first.ID, second.ID)

	all, err := ings.ListIngestors(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].Enabled)
}
