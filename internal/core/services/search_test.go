package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laws-africa/peachjam/internal/adapters/driven/storage/memory"
	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
)

type searchFixture struct {
	store    *memory.Store
	index    *fakeIndex
	vectors  *fakeVectors
	embedder *fakeEmbedder
	cache    *mapCache
}

func newSearchFixture() *searchFixture {
	return &searchFixture{
		store:    newMemoryStore(),
		index:    newFakeIndex(),
		vectors:  newFakeVectors(),
		embedder: &fakeEmbedder{},
		cache:    newMapCache(),
	}
}

func (f *searchFixture) service(settings domain.SearchSettings, opts ...SearchOption) *SearchService {
	opts = append([]SearchOption{WithTraces(f.store.TraceStore()), WithSearchCache(f.cache)}, opts...)
	return NewSearchService(f.index, NewIndexManager(f.index), f.store.RankingStore(), settings, opts...)
}

func hits(scores ...float64) []domain.IndexHit {
	out := make([]domain.IndexHit, len(scores))
	for i, s := range scores {
		out[i] = domain.IndexHit{ID: string(rune('a' + i)), Score: s}
	}
	return out
}

func TestSearch_Validation(t *testing.T) {
	svc := newSearchFixture().service(domain.SearchSettings{})
	ctx := context.Background()

	_, err := svc.Search(ctx, domain.SearchRequest{Query: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Search(ctx, domain.SearchRequest{Query: "land", Page: domain.MaxPage + 1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Search(ctx, domain.SearchRequest{Query: "land", Page: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSearch_TextPlan(t *testing.T) {
	f := newSearchFixture()
	svc := f.service(domain.SearchSettings{})

	_, err := svc.Search(context.Background(), domain.SearchRequest{
		Query:   "land reform",
		Page:    2,
		Filters: map[string][]string{"doc_type": {"act"}, "court": {"EACJ"}, "kind": {"legislation"}},
	})
	require.NoError(t, err)
	require.Len(t, f.index.searches, 1)

	req := f.index.searches[0]
	assert.Equal(t, NewIndexManager(f.index).AllIndexNames(), req.Indexes)
	assert.Equal(t, domain.PageSize, req.From)
	assert.Equal(t, domain.PageSize, req.Size)
	assert.Nil(t, req.Sort)
	assert.Contains(t, req.SourceExcludes, "content")
	assert.Contains(t, req.Highlight, "content.exact")

	// no pivot stored, so no rank feature
	scored, ok := req.Query.(domain.BoolQuery)
	require.True(t, ok)
	assert.Empty(t, scored.Should)
	assert.Equal(t, []domain.Query{
		domain.BoolTerm{Field: "is_most_recent", Value: true},
		domain.Terms{Field: "kind", Values: []string{"legislation"}},
	}, scored.Filter)

	// facets post-filter the hits
	assert.Equal(t, domain.BoolQuery{Filter: []domain.Query{
		domain.Terms{Field: "court", Values: []string{"EACJ"}},
		domain.Terms{Field: "doc_type", Values: []string{"act"}},
	}}, req.PostFilter)

	// each facet aggregation ignores its own filter
	assert.Equal(t, domain.BoolQuery{Filter: []domain.Query{
		domain.Terms{Field: "court", Values: []string{"EACJ"}},
	}}, req.Aggregations["doc_type"].Filter)
	assert.Equal(t, FacetSize, req.Aggregations["doc_type"].Size)
	assert.Len(t, req.Aggregations, len(domain.FacetFields))
}

func TestSearch_RankFeatureWithPivot(t *testing.T) {
	f := newSearchFixture()
	require.NoError(t, f.store.RankingStore().SaveWorkRanks(context.Background(), nil, 0.02))
	svc := f.service(domain.SearchSettings{PagerankBoost: true})

	_, err := svc.Search(context.Background(), domain.SearchRequest{Query: "land"})
	require.NoError(t, err)

	scored := f.index.searches[0].Query.(domain.BoolQuery)
	assert.Equal(t, []domain.Query{domain.RankFeature{Field: "ranking", Pivot: 0.02, Boost: 1}}, scored.Should)
}

func TestSearch_DateOrdering(t *testing.T) {
	f := newSearchFixture()
	svc := f.service(domain.SearchSettings{})

	_, err := svc.Search(context.Background(), domain.SearchRequest{Query: "land", Ordering: domain.OrderingDateDesc})
	require.NoError(t, err)
	assert.Equal(t, []domain.SortField{{Field: "date", Desc: true}}, f.index.searches[0].Sort)
}

func TestSearch_BestMatch(t *testing.T) {
	tests := []struct {
		name   string
		page   int
		scores []float64
		want   bool
	}{
		{"clear winner", 1, []float64{12.4, 8.0}, true},
		{"close scores", 1, []float64{9.0, 8.5}, false},
		{"later page", 2, []float64{12.4, 8.0}, false},
		{"single hit", 1, []float64{12.4}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSearchFixture()
			f.index.results = []*domain.IndexResult{{Total: len(tt.scores), Hits: hits(tt.scores...)}}

			resp, err := f.service(domain.SearchSettings{}).Search(context.Background(),
				domain.SearchRequest{Query: "land", Page: tt.page})
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.Results[0].BestMatch)
			for _, r := range resp.Results[1:] {
				assert.False(t, r.BestMatch)
			}
		})
	}
}

func TestSearch_FailedIndexes(t *testing.T) {
	partial := func() *domain.IndexResult {
		return &domain.IndexResult{Total: 1, Hits: hits(1), FailedIndexes: []string{"peachjam_fra"}}
	}

	f := newSearchFixture()
	f.index.results = []*domain.IndexResult{partial()}
	resp, err := f.service(domain.SearchSettings{}).Search(context.Background(), domain.SearchRequest{Query: "land"})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Count)

	f = newSearchFixture()
	f.index.results = []*domain.IndexResult{partial()}
	_, err = f.service(domain.SearchSettings{Strict: true}).Search(context.Background(), domain.SearchRequest{Query: "land"})
	assert.ErrorIs(t, err, domain.ErrSearchShardFailure)
}

func TestSearch_Traces(t *testing.T) {
	ctx := context.Background()
	f := newSearchFixture()
	svc := f.service(domain.SearchSettings{ConfigVersion: "v3"})

	resp, err := svc.Search(ctx, domain.SearchRequest{Query: "land", Debug: true})
	require.NoError(t, err)
	require.NotNil(t, resp.TraceID)
	assert.True(t, resp.CanDebug)

	trace, err := NewTraceService(f.store.TraceStore()).GetTrace(ctx, *resp.TraceID)
	require.NoError(t, err)
	assert.Equal(t, "land", trace.Query)
	assert.Equal(t, "v3", trace.ConfigVersion)
	assert.Equal(t, domain.SearchModeText, trace.Mode)

	resp, err = svc.Search(ctx, domain.SearchRequest{Query: "land", IsAlert: true})
	require.NoError(t, err)
	assert.Nil(t, resp.TraceID)
	assert.False(t, resp.CanDebug)

	traces, err := NewTraceService(f.store.TraceStore()).ListTraces(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, traces, 1)
}

func TestTraceService_NotFound(t *testing.T) {
	svc := NewTraceService(newMemoryStore().TraceStore())

	_, err := svc.GetTrace(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.GetTrace(context.Background(), "1b4e28ba-2fa1-11d2-883f-0016d3cca427")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSearch_SemanticFallsBackToText(t *testing.T) {
	f := newSearchFixture()
	svc := f.service(domain.SearchSettings{})

	resp, err := svc.Search(context.Background(), domain.SearchRequest{Query: "land", Mode: domain.SearchModeHybrid})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Len(t, f.index.searches, 1)
	assert.Zero(t, f.embedder.queries)
}

func TestSearch_Semantic(t *testing.T) {
	f := newSearchFixture()
	f.vectors.hits = []driven.VectorHit{
		{DocumentID: 4, ChunkID: 1, Similarity: 0.7},
		{DocumentID: 4, ChunkID: 2, Similarity: 0.9},
		{DocumentID: 5, ChunkID: 3, Similarity: 0.6},
	}
	svc := f.service(domain.SearchSettings{KNNK: 10}, WithSemantic(f.vectors, f.embedder))

	_, err := svc.Search(context.Background(), domain.SearchRequest{Query: "land", Mode: domain.SearchModeSemantic})
	require.NoError(t, err)

	scored := f.index.searches[0].Query.(domain.BoolQuery)
	assert.Equal(t, []domain.Query{domain.DocScores{Scores: map[string]float64{"4": 0.9, "5": 0.6}}}, scored.Must)

	// the query embedding is cached
	_, err = svc.Search(context.Background(), domain.SearchRequest{Query: "land", Mode: domain.SearchModeSemantic})
	require.NoError(t, err)
	assert.Equal(t, 1, f.embedder.queries)
	assert.Equal(t, 2, f.vectors.calls)
}

func TestSearch_Hybrid(t *testing.T) {
	f := newSearchFixture()
	f.vectors.hits = []driven.VectorHit{{DocumentID: 2, Similarity: 0.9}}
	lexical := &domain.IndexResult{Hits: []domain.IndexHit{
		{ID: "1", Score: 5, Highlight: map[string][]string{"title": {"<mark>land</mark>"}}},
		{ID: "2", Score: 4},
	}}
	semantic := &domain.IndexResult{Hits: []domain.IndexHit{{ID: "2", Score: 0.9}, {ID: "3", Score: 0.5}}}
	counts := &domain.IndexResult{Total: 3, Aggregations: map[string][]domain.FacetBucket{
		"doc_type": {{Key: "act", DocCount: 3}},
	}}
	f.index.results = []*domain.IndexResult{lexical, semantic, counts}
	svc := f.service(domain.SearchSettings{KNNK: 50, RRFRankConstant: 60}, WithSemantic(f.vectors, f.embedder))

	resp, err := svc.Search(context.Background(), domain.SearchRequest{Query: "land", Mode: domain.SearchModeHybrid})
	require.NoError(t, err)

	require.Len(t, f.index.searches, 3)
	assert.Equal(t, 50, f.index.searches[0].Size)
	assert.Nil(t, f.index.searches[0].Aggregations)
	assert.Equal(t, 0, f.index.searches[2].Size)
	assert.NotNil(t, f.index.searches[2].Aggregations)

	assert.Equal(t, 3, resp.Count)
	assert.Equal(t, []domain.FacetBucket{{Key: "act", DocCount: 3}}, resp.Facets["doc_type"].Buckets)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "2", resp.Results[0].ID)
	assert.Equal(t, "1", resp.Results[1].ID)
	assert.Equal(t, "3", resp.Results[2].ID)
	assert.Equal(t, []string{"<mark>land</mark>"}, resp.Results[1].Highlight["title"])
}

func TestReciprocalRankFusion(t *testing.T) {
	a := []domain.IndexHit{{ID: "x", Index: "lexical"}, {ID: "y"}}
	b := []domain.IndexHit{{ID: "y"}, {ID: "x", Index: "semantic"}, {ID: "z"}}

	fused := ReciprocalRankFusion(60, a, b)

	require.Len(t, fused, 3)
	assert.InDelta(t, 1.0/61+1.0/62, fused[0].Score, 1e-12)
	assert.Equal(t, "x", fused[0].ID)
	assert.Equal(t, "lexical", fused[0].Index)
	assert.Equal(t, "y", fused[1].ID)
	assert.Equal(t, "z", fused[2].ID)
	assert.InDelta(t, 1.0/63, fused[2].Score, 1e-12)
}

func TestMergeExactHighlights(t *testing.T) {
	got := MergeExactHighlights(map[string][]string{
		"content":       {"a <mark>land</mark>", "b"},
		"content.exact": {"b", "c" + domain.ProvisionSentinel + "d"},
		"title.exact":   {"<mark>Land</mark> Act"},
	})

	assert.Equal(t, map[string][]string{
		"content": {"b", "d", "a <mark>land</mark>"},
		"title":   {"<mark>Land</mark> Act"},
	}, got)
}

func TestDedupeProvisions(t *testing.T) {
	got := DedupeProvisions([]domain.ProvisionHit{
		{ID: "chp_1"},
		{ID: "chp_1__sec_2", ParentIDs: []string{"chp_1"}},
		{ID: "sec_9"},
	})

	require.Len(t, got, 2)
	assert.Equal(t, "chp_1__sec_2", got[0].ID)
	assert.Equal(t, "sec_9", got[1].ID)
}

func TestSearch_InnerHits(t *testing.T) {
	f := newSearchFixture()
	f.index.results = []*domain.IndexResult{{Total: 1, Hits: []domain.IndexHit{{
		ID:    "1",
		Score: 2,
		InnerHits: map[string][]domain.InnerHit{
			"pages": {{Score: 1, Source: map[string]any{"page_num": float64(3)}}},
			"provisions": {
				{Source: map[string]any{"id": "chp_1", "title": "Chapter 1"}},
				{Source: map[string]any{"id": "chp_1__sec_1", "type": "section", "parent_ids": []any{"chp_1"}}},
			},
		},
	}}}}

	resp, err := f.service(domain.SearchSettings{}).Search(context.Background(), domain.SearchRequest{Query: "land"})
	require.NoError(t, err)

	hit := resp.Results[0]
	require.Len(t, hit.Pages, 1)
	assert.Equal(t, 3, hit.Pages[0].PageNum)
	require.Len(t, hit.Provisions, 1)
	assert.Equal(t, "chp_1__sec_1", hit.Provisions[0].ID)
	assert.Equal(t, []string{"chp_1"}, hit.Provisions[0].ParentIDs)
}

func TestLexicalQuery_Advanced(t *testing.T) {
	q := LexicalQuery(domain.SearchRequest{
		Query:        "land",
		FieldQueries: map[string]string{"title": "reform", "judges": " "},
	})

	b, ok := q.(domain.BoolQuery)
	require.True(t, ok)
	require.Len(t, b.Must, 2)

	all, ok := b.Must[0].(domain.BoolQuery)
	require.True(t, ok)
	assert.Equal(t, 1, all.MinimumShouldMatch)
	assert.Len(t, all.Should, 3)

	assert.Equal(t, domain.SimpleQueryString{
		Query:    "reform",
		Fields:   []domain.FieldBoost{{Field: "title"}},
		Operator: domain.OperatorAnd,
	}, b.Must[1])
}

func TestLexicalQuery_BasicPhrases(t *testing.T) {
	single := LexicalQuery(domain.SearchRequest{Query: "land"}).(domain.BoolQuery)
	multi := LexicalQuery(domain.SearchRequest{Query: "land reform"}).(domain.BoolQuery)

	// sqs + pages + provisions, plus one phrase clause per basic field
	assert.Len(t, single.Should, 3)
	assert.Len(t, multi.Should, 3+len(basicFields))
	assert.Contains(t, multi.Should, domain.Query(domain.MatchPhrase{Field: "content.exact", Query: "land reform", Boost: PhraseContentBoost}))
}

func TestSuggest(t *testing.T) {
	ctx := context.Background()
	f := newSearchFixture()
	f.index.suggest = []string{"Land Act", "Land Act", "Land Bank", "Landlord", "Lands", "Landing", "Landscape"}
	svc := f.service(domain.SearchSettings{})

	got, err := svc.Suggest(ctx, "  Land ")
	require.NoError(t, err)
	assert.Equal(t, []string{"Land Act", "Land Bank", "Landlord", "Lands", "Landing"}, got)

	// served from the cache, case-insensitively
	got, err = svc.Suggest(ctx, "land")
	require.NoError(t, err)
	assert.Len(t, got, domain.MaxSuggestions)
	assert.Equal(t, 1, f.index.suggested)

	got, err = svc.Suggest(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{}, got)
}
