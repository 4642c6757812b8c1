package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
	"github.com/laws-africa/peachjam/internal/core/ports/driving"
	"github.com/laws-africa/peachjam/internal/logger"
	"github.com/laws-africa/peachjam/internal/telemetry"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// Search planning constants.
const (
	// FacetSize caps the buckets returned per facet.
	FacetSize = 100

	// PageInnerHits and ProvisionInnerHits cap the children returned per hit.
	PageInnerHits      = 2
	ProvisionInnerHits = 5

	// TextMinimumShouldMatch requires all of up to 4 terms, else 80% of them.
	TextMinimumShouldMatch = "4<80%"

	// PhraseContentBoost boosts exact content phrases.
	PhraseContentBoost = 4

	// SemanticRankBoost is the authority boost of the kNN leg.
	SemanticRankBoost = 0.1

	// SuggestCacheTTL and QueryEmbeddingCacheTTL control cache expiry.
	SuggestCacheTTL        = time.Hour
	QueryEmbeddingCacheTTL = 24 * time.Hour
)

// exactSuffix names the unstemmed sub-field of a text field.
const exactSuffix = ".exact"

// basicFields are searched by a plain query, with their boosts.
var basicFields = []domain.FieldBoost{
	{Field: "title", Boost: 8},
	{Field: "title_expanded", Boost: 3},
	{Field: "citation", Boost: 2},
	{Field: "alternative_names", Boost: 4},
	{Field: "content", Boost: 1},
}

// sourceExcludes are bulk fields never returned with hits.
var sourceExcludes = []string{
	"pages", "content", "content_chunks", "flynote", "case_summary", "provisions", "suggest",
}

// SearchService plans and executes searches over the language indexes.
type SearchService struct {
	index    driven.SearchIndex
	manager  *IndexManager
	ranks    driven.RankingStore
	vectors  driven.VectorIndex
	embedder driven.EmbeddingService
	cache    driven.Cache
	traces   driven.TraceStore
	metrics  *telemetry.Metrics
	settings domain.SearchSettings
	now      func() time.Time
}

// SearchOption configures a SearchService.
type SearchOption func(*SearchService)

// WithSemantic enables semantic and hybrid modes.
func WithSemantic(vectors driven.VectorIndex, embedder driven.EmbeddingService) SearchOption {
	return func(s *SearchService) {
		s.vectors = vectors
		s.embedder = embedder
	}
}

// WithSearchCache caches suggestions and query embeddings.
func WithSearchCache(cache driven.Cache) SearchOption {
	return func(s *SearchService) { s.cache = cache }
}

// WithTraces records a trace for every non-alert search.
func WithTraces(traces driven.TraceStore) SearchOption {
	return func(s *SearchService) { s.traces = traces }
}

// WithSearchMetrics records search metrics.
func WithSearchMetrics(m *telemetry.Metrics) SearchOption {
	return func(s *SearchService) { s.metrics = m }
}

// NewSearchService creates a search service.
func NewSearchService(
	index driven.SearchIndex,
	manager *IndexManager,
	ranks driven.RankingStore,
	settings domain.SearchSettings,
	opts ...SearchOption,
) *SearchService {
	s := &SearchService{
		index:    index,
		manager:  manager,
		ranks:    ranks,
		settings: settings,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// plan holds the parts of a search shared by every mode.
type plan struct {
	req        domain.SearchRequest
	indexes    []string
	filters    []domain.Query
	postFilter domain.Query
	aggs       map[string]domain.Aggregation
	lexical    domain.Query
	pivot      float64
	hasPivot   bool
}

// Search plans and executes a validated search request.
func (s *SearchService) Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResponse, error) {
	logger.Section("Search Execution")
	started := s.now()

	if strings.TrimSpace(req.Query) == "" && !req.IsAdvanced() {
		return nil, fmt.Errorf("%w: a search query is required", domain.ErrInvalidInput)
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.Page < 1 || req.Page > domain.MaxPage {
		return nil, fmt.Errorf("%w: page must be between 1 and %d", domain.ErrInvalidInput, domain.MaxPage)
	}
	if req.Ordering == "" {
		req.Ordering = domain.OrderingScore
	}
	req.Mode = s.effectiveMode(req)
	logger.Debug("Query: %q mode=%s page=%d ordering=%s", req.Query, req.Mode, req.Page, req.Ordering)

	p, err := s.plan(ctx, req)
	if err != nil {
		return nil, err
	}

	var result *domain.IndexResult
	switch req.Mode {
	case domain.SearchModeSemantic:
		result, err = s.semanticSearch(ctx, p)
	case domain.SearchModeHybrid:
		result, err = s.hybridSearch(ctx, p)
	default:
		result, err = s.textSearch(ctx, p)
	}
	if err != nil {
		return nil, err
	}

	resp := buildResponse(req, result)
	took := s.now().Sub(started)
	class := domain.ClassifyQuery(req.Query)
	s.metrics.ObserveSearch(string(req.Mode), string(class), took)

	if !req.IsAlert && s.traces != nil {
		trace := &domain.SearchTrace{
			ID:              uuid.New().String(),
			ConfigVersion:   s.settings.ConfigVersion,
			Query:           req.Query,
			FieldQueries:    req.FieldQueries,
			Filters:         req.Filters,
			FiltersString:   req.FiltersString(),
			Ordering:        req.Ordering,
			Page:            req.Page,
			Mode:            req.Mode,
			QueryClass:      class,
			NResults:        resp.Count,
			PreviousTraceID: req.PreviousTraceID,
			UserAgent:       req.UserAgent,
			IPAddress:       req.IPAddress,
			Took:            took,
			CreatedAt:       started,
		}
		if err := s.traces.SaveTrace(ctx, trace); err != nil {
			logger.Warn("saving search trace: %v", err)
		} else {
			resp.TraceID = &trace.ID
		}
	}
	resp.CanDebug = req.Debug

	logger.Debug("Search returned %d of %d results in %v", len(resp.Results), resp.Count, took)
	return resp, nil
}

// effectiveMode falls back to text when semantic retrieval is unavailable
// or there is no free-text query to embed.
func (s *SearchService) effectiveMode(req domain.SearchRequest) domain.SearchMode {
	mode := req.Mode
	if !mode.IsValid() {
		mode = domain.SearchModeText
	}
	if !mode.RequiresEmbedding() {
		return mode
	}
	if s.embedder == nil || s.vectors == nil {
		logger.Warn("%s search unavailable without an embedding service, using text", mode)
		return domain.SearchModeText
	}
	if strings.TrimSpace(req.Query) == "" {
		logger.Debug("%s search needs a query, using text", mode)
		return domain.SearchModeText
	}
	return mode
}

func (s *SearchService) plan(ctx context.Context, req domain.SearchRequest) (*plan, error) {
	p := &plan{
		req:     req,
		indexes: s.manager.AllIndexNames(),
		filters: PreFilters(req),
		lexical: LexicalQuery(req),
	}

	facets := req.FacetFilters()
	p.postFilter = facetFilter(facets, "")
	p.aggs = make(map[string]domain.Aggregation, len(domain.FacetFields))
	for _, f := range domain.FacetFields {
		p.aggs[f] = domain.Aggregation{Field: f, Filter: facetFilter(facets, f), Size: FacetSize}
	}

	if s.settings.PagerankBoost && s.ranks != nil {
		pivot, ok, err := s.ranks.GetPagerankPivot(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading pagerank pivot: %w", err)
		}
		p.pivot, p.hasPivot = pivot, ok && pivot > 0
	}
	return p, nil
}

// PreFilters are the scoring-neutral restrictions applied before aggregation.
func PreFilters(req domain.SearchRequest) []domain.Query {
	filters := []domain.Query{domain.BoolTerm{Field: "is_most_recent", Value: true}}

	terms := req.TermFilters()
	for _, f := range sortedKeys(terms) {
		filters = append(filters, domain.Terms{Field: f, Values: terms[f]})
	}
	for _, f := range domain.RangeFields {
		if r, ok := req.Ranges[f]; ok && !r.IsZero() {
			filters = append(filters, domain.Range{Field: f, Gte: r.Gte, Lte: r.Lte})
		}
	}
	return filters
}

// facetFilter combines the facet filters except the one on skip. It is nil
// when nothing remains.
func facetFilter(facets map[string][]string, skip string) domain.Query {
	var clauses []domain.Query
	for _, f := range sortedKeys(facets) {
		if f == skip {
			continue
		}
		clauses = append(clauses, domain.Terms{Field: f, Values: facets[f]})
	}
	if len(clauses) == 0 {
		return nil
	}
	return domain.BoolQuery{Filter: clauses}
}

// LexicalQuery builds the text-mode query of a request.
func LexicalQuery(req domain.SearchRequest) domain.Query {
	if req.IsAdvanced() {
		return advancedQuery(req)
	}
	return basicQuery(strings.TrimSpace(req.Query))
}

func basicQuery(q string) domain.Query {
	should := []domain.Query{
		domain.SimpleQueryString{
			Query:              q,
			Fields:             basicFields,
			Operator:           domain.OperatorOr,
			MinimumShouldMatch: TextMinimumShouldMatch,
		},
	}

	multiWord := len(strings.Fields(q)) > 1
	if multiWord {
		for _, f := range basicFields {
			boost := f.Boost
			if f.Field == "content" {
				boost = PhraseContentBoost
			}
			should = append(should, domain.MatchPhrase{Field: f.Field + exactSuffix, Query: q, Boost: boost})
		}
	}

	pageClauses := []domain.Query{domain.Match{Field: "pages.body", Query: q, Operator: domain.OperatorOr}}
	if multiWord {
		pageClauses = append(pageClauses, domain.MatchPhrase{Field: "pages.body", Query: q, Boost: PhraseContentBoost})
	}
	should = append(should,
		domain.Nested{
			Path:      "pages",
			Query:     domain.BoolQuery{Should: pageClauses},
			InnerHits: &domain.InnerHits{Size: PageInnerHits, HighlightFields: []string{"pages.body"}},
		},
		domain.Nested{
			Path: "provisions",
			Query: domain.SimpleQueryString{
				Query:              q,
				Fields:             []domain.FieldBoost{{Field: "provisions.title", Boost: 4}, {Field: "provisions.body"}},
				Operator:           domain.OperatorOr,
				MinimumShouldMatch: TextMinimumShouldMatch,
			},
			InnerHits: &domain.InnerHits{
				Size:            ProvisionInnerHits,
				HighlightFields: []string{"provisions.body", "provisions.title"},
			},
		},
	)
	return domain.BoolQuery{Should: should, MinimumShouldMatch: 1}
}

// advancedQuery requires every per-field query. A plain query alongside
// field queries is treated as search__all unless that is also given.
func advancedQuery(req domain.SearchRequest) domain.Query {
	fieldQueries := make(map[string]string, len(req.FieldQueries)+1)
	for k, v := range req.FieldQueries {
		if v = strings.TrimSpace(v); v != "" {
			fieldQueries[k] = v
		}
	}
	if q := strings.TrimSpace(req.Query); q != "" && fieldQueries["all"] == "" {
		fieldQueries["all"] = q
	}

	var must []domain.Query
	for _, f := range sortedKeys(fieldQueries) {
		q := fieldQueries[f]
		switch f {
		case "all":
			must = append(must, allFieldsQuery(q))
		case "content":
			must = append(must, contentQuery(q))
		default:
			must = append(must, andQuery(q, f))
		}
	}
	return domain.BoolQuery{Must: must}
}

func andQuery(q string, fields ...string) domain.SimpleQueryString {
	fb := make([]domain.FieldBoost, len(fields))
	for i, f := range fields {
		fb[i] = domain.FieldBoost{Field: f}
	}
	return domain.SimpleQueryString{Query: q, Fields: fb, Operator: domain.OperatorAnd}
}

func nestedChildren(q string) []domain.Query {
	return []domain.Query{
		domain.Nested{
			Path:      "pages",
			Query:     andQuery(q, "pages.body"),
			InnerHits: &domain.InnerHits{Size: PageInnerHits, HighlightFields: []string{"pages.body"}},
		},
		domain.Nested{
			Path:  "provisions",
			Query: andQuery(q, "provisions.title", "provisions.body"),
			InnerHits: &domain.InnerHits{
				Size:            ProvisionInnerHits,
				HighlightFields: []string{"provisions.body", "provisions.title"},
			},
		},
	}
}

func allFieldsQuery(q string) domain.Query {
	sqs := andQuery(q)
	sqs.Fields = basicFields
	should := append([]domain.Query{sqs}, nestedChildren(q)...)
	return domain.BoolQuery{Should: should, MinimumShouldMatch: 1}
}

func contentQuery(q string) domain.Query {
	should := append([]domain.Query{andQuery(q, "content")}, nestedChildren(q)...)
	return domain.BoolQuery{Should: should, MinimumShouldMatch: 1}
}

// scored wraps a retrieval query with the pre-filters and authority boost.
func (p *plan) scored(q domain.Query, rankBoost float64) domain.Query {
	b := domain.BoolQuery{Must: []domain.Query{q}, Filter: p.filters}
	if p.hasPivot {
		b.Should = []domain.Query{domain.RankFeature{Field: "ranking", Pivot: p.pivot, Boost: rankBoost}}
	}
	return b
}

// page builds a paged, sorted, highlighted search.
func (p *plan) page(q domain.Query) domain.IndexSearch {
	return domain.IndexSearch{
		Indexes:        p.indexes,
		Query:          q,
		PostFilter:     p.postFilter,
		Aggregations:   p.aggs,
		Sort:           sortFor(p.req.Ordering),
		From:           p.req.From(),
		Size:           domain.PageSize,
		Highlight:      highlights(),
		SourceExcludes: sourceExcludes,
	}
}

func sortFor(o domain.Ordering) []domain.SortField {
	switch o {
	case domain.OrderingDate:
		return []domain.SortField{{Field: "date"}}
	case domain.OrderingDateDesc:
		return []domain.SortField{{Field: "date", Desc: true}}
	default:
		return nil
	}
}

func highlights() map[string]domain.HighlightField {
	h := map[string]domain.HighlightField{
		"content": {FragmentSize: 80, NumberOfFragments: 2},
	}
	for _, f := range []string{"title", "alternative_names", "citation"} {
		h[f] = domain.HighlightField{}
		h[f+exactSuffix] = domain.HighlightField{}
	}
	h["content"+exactSuffix] = h["content"]
	return h
}

func (s *SearchService) textSearch(ctx context.Context, p *plan) (*domain.IndexResult, error) {
	return s.execute(ctx, p.page(p.scored(p.lexical, 1)))
}

func (s *SearchService) semanticSearch(ctx context.Context, p *plan) (*domain.IndexResult, error) {
	scores, err := s.knn(ctx, p.req.Query)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, p.page(p.scored(domain.DocScores{Scores: scores}, SemanticRankBoost)))
}

// hybridSearch fuses a lexical and a semantic window with reciprocal rank
// fusion. Count and facets come from the union of both legs.
func (s *SearchService) hybridSearch(ctx context.Context, p *plan) (*domain.IndexResult, error) {
	scores, err := s.knn(ctx, p.req.Query)
	if err != nil {
		return nil, err
	}
	window := s.settings.KNNK

	lexicalLeg := p.page(p.scored(p.lexical, 1))
	lexicalLeg.Sort, lexicalLeg.From, lexicalLeg.Size, lexicalLeg.Aggregations = nil, 0, window, nil
	lexical, err := s.execute(ctx, lexicalLeg)
	if err != nil {
		return nil, err
	}

	semanticLeg := p.page(p.scored(domain.DocScores{Scores: scores}, SemanticRankBoost))
	semanticLeg.Sort, semanticLeg.From, semanticLeg.Size, semanticLeg.Aggregations = nil, 0, window, nil
	semantic, err := s.execute(ctx, semanticLeg)
	if err != nil {
		return nil, err
	}

	union := p.page(domain.BoolQuery{
		Should:             []domain.Query{p.lexical, domain.DocScores{Scores: scores}},
		MinimumShouldMatch: 1,
		Filter:             p.filters,
	})
	union.Size, union.From, union.Sort, union.Highlight = 0, 0, nil, nil
	counts, err := s.execute(ctx, union)
	if err != nil {
		return nil, err
	}

	fused := ReciprocalRankFusion(s.settings.RRFRankConstant, lexical.Hits, semantic.Hits)
	from := p.req.From()
	if from > len(fused) {
		from = len(fused)
	}
	end := from + domain.PageSize
	if end > len(fused) {
		end = len(fused)
	}
	logger.Debug("Hybrid search: fused %d lexical + %d semantic hits into %d",
		len(lexical.Hits), len(semantic.Hits), len(fused))

	return &domain.IndexResult{
		Total:         counts.Total,
		Hits:          fused[from:end],
		Aggregations:  counts.Aggregations,
		FailedIndexes: unique(lexical.FailedIndexes, semantic.FailedIndexes, counts.FailedIndexes),
	}, nil
}

// ReciprocalRankFusion merges ranked hit lists by summing 1/(k + rank) with
// 1-based ranks. The first list's copy of a hit is kept, so lexical
// highlights win over semantic ones.
func ReciprocalRankFusion(k int, lists ...[]domain.IndexHit) []domain.IndexHit {
	scores := make(map[string]float64)
	hits := make(map[string]domain.IndexHit)
	var order []string
	for _, list := range lists {
		for rank, hit := range list {
			scores[hit.ID] += 1.0 / float64(k+rank+1)
			if _, ok := hits[hit.ID]; !ok {
				hits[hit.ID] = hit
				order = append(order, hit.ID)
			}
		}
	}

	out := make([]domain.IndexHit, 0, len(order))
	for _, id := range order {
		h := hits[id]
		h.Score = scores[id]
		out = append(out, h)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// knn embeds the query and returns the best chunk similarity per document.
func (s *SearchService) knn(ctx context.Context, query string) (map[string]float64, error) {
	vec, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	hits, err := s.vectors.Search(ctx, vec, s.settings.KNNK, s.settings.KNNNumCandidates, s.settings.KNNSimilarity)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	scores := make(map[string]float64)
	for _, h := range hits {
		id := fmt.Sprint(h.DocumentID)
		if h.Similarity > scores[id] {
			scores[id] = h.Similarity
		}
	}
	logger.Debug("kNN: %d chunks across %d documents", len(hits), len(scores))
	return scores, nil
}

func (s *SearchService) embedQuery(ctx context.Context, query string) ([]float32, error) {
	key := "qemb:" + s.embedder.ModelName() + ":" + domain.TextMD5(query)
	if s.cache != nil {
		if raw, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var vec []float32
			if json.Unmarshal(raw, &vec) == nil {
				return vec, nil
			}
		}
	}

	vec, err := s.embedder.Embed(ctx, query)
	s.metrics.EmbeddingCall(1, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingFailure, err)
	}
	domain.Normalize(vec)

	if s.cache != nil {
		if raw, err := json.Marshal(vec); err == nil {
			if err := s.cache.Set(ctx, key, raw, QueryEmbeddingCacheTTL); err != nil {
				logger.Debug("caching query embedding: %v", err)
			}
		}
	}
	return vec, nil
}

// execute runs a search and applies the strictness policy to failed indexes.
func (s *SearchService) execute(ctx context.Context, req domain.IndexSearch) (*domain.IndexResult, error) {
	result, err := s.index.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	if len(result.FailedIndexes) == 0 {
		return result, nil
	}
	for _, idx := range result.FailedIndexes {
		s.metrics.SearchIndexFailed(idx)
	}
	if s.settings.Strict {
		return nil, fmt.Errorf("%w: %s", domain.ErrSearchShardFailure, strings.Join(result.FailedIndexes, ", "))
	}
	logger.Warn("search: partial results, failed indexes: %s", strings.Join(result.FailedIndexes, ", "))
	return result, nil
}

func buildResponse(req domain.SearchRequest, result *domain.IndexResult) *domain.SearchResponse {
	resp := &domain.SearchResponse{
		Count:   result.Total,
		Results: make([]domain.SearchHit, 0, len(result.Hits)),
		Facets:  make(map[string]domain.FacetResult, len(result.Aggregations)),
	}
	for name, buckets := range result.Aggregations {
		if buckets == nil {
			buckets = []domain.FacetBucket{}
		}
		resp.Facets[name] = domain.FacetResult{Buckets: buckets}
	}

	for _, h := range result.Hits {
		resp.Results = append(resp.Results, domain.SearchHit{
			ID:         h.ID,
			Score:      h.Score,
			Highlight:  MergeExactHighlights(h.Highlight),
			Pages:      pageHits(h.InnerHits["pages"]),
			Provisions: DedupeProvisions(provisionHits(h.InnerHits["provisions"])),
			Document:   h.Source,
		})
	}

	if req.Page == 1 && len(resp.Results) > 1 {
		s0, s1 := resp.Results[0].Score, resp.Results[1].Score
		if s1 > 0 && s0/s1 >= domain.BestMatchRatio {
			resp.Results[0].BestMatch = true
		}
	}
	return resp
}

// MergeExactHighlights folds ".exact" fragments into their base field,
// exact fragments first, without duplicates. Sentinels are stripped.
func MergeExactHighlights(h map[string][]string) map[string][]string {
	out := make(map[string][]string, len(h))
	for field, frags := range h {
		if strings.HasSuffix(field, exactSuffix) {
			continue
		}
		out[field] = stripFragments(frags)
	}
	for field, frags := range h {
		base, ok := strings.CutSuffix(field, exactSuffix)
		if !ok {
			continue
		}
		merged := stripFragments(frags)
		for _, f := range out[base] {
			if !containsString(merged, f) {
				merged = append(merged, f)
			}
		}
		out[base] = merged
	}
	return out
}

func stripFragments(frags []string) []string {
	out := make([]string, 0, len(frags))
	for _, f := range frags {
		out = append(out, domain.StripSentinel(f))
	}
	return out
}

func pageHits(inner []domain.InnerHit) []domain.PageHit {
	out := make([]domain.PageHit, 0, len(inner))
	for _, ih := range inner {
		out = append(out, domain.PageHit{
			PageNum:   intField(ih.Source, "page_num"),
			Score:     ih.Score,
			Highlight: MergeExactHighlights(ih.Highlight),
		})
	}
	return out
}

func provisionHits(inner []domain.InnerHit) []domain.ProvisionHit {
	out := make([]domain.ProvisionHit, 0, len(inner))
	for _, ih := range inner {
		out = append(out, domain.ProvisionHit{
			ID:        stringField(ih.Source, "id"),
			Type:      stringField(ih.Source, "type"),
			Title:     stringField(ih.Source, "title"),
			ParentIDs: stringsField(ih.Source, "parent_ids"),
			Score:     ih.Score,
			Highlight: MergeExactHighlights(ih.Highlight),
		})
	}
	return out
}

// DedupeProvisions drops provisions that are ancestors of another matched provision.
func DedupeProvisions(hits []domain.ProvisionHit) []domain.ProvisionHit {
	ancestors := make(map[string]bool)
	for _, h := range hits {
		for _, id := range h.ParentIDs {
			ancestors[id] = true
		}
	}
	out := make([]domain.ProvisionHit, 0, len(hits))
	for _, h := range hits {
		if !ancestors[h.ID] {
			out = append(out, h)
		}
	}
	return out
}

// Suggest returns up to domain.MaxSuggestions completions for prefix.
func (s *SearchService) Suggest(ctx context.Context, prefix string) ([]string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return []string{}, nil
	}
	key := "suggest:" + strings.ToLower(prefix)
	if s.cache != nil {
		if raw, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var cached []string
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		}
	}

	out, err := s.index.Suggest(ctx, s.manager.AllIndexNames(), prefix, domain.MaxSuggestions)
	if err != nil {
		return nil, fmt.Errorf("suggesting: %w", err)
	}
	out = unique(out)
	if out == nil {
		out = []string{}
	}
	if len(out) > domain.MaxSuggestions {
		out = out[:domain.MaxSuggestions]
	}

	if s.cache != nil {
		if raw, err := json.Marshal(out); err == nil {
			if err := s.cache.Set(ctx, key, raw, SuggestCacheTTL); err != nil {
				logger.Debug("caching suggestions: %v", err)
			}
		}
	}
	return out, nil
}

// TraceService exposes recorded search traces.
type TraceService struct {
	traces driven.TraceStore
}

// Ensure TraceService implements the interface.
var _ driving.TraceService = (*TraceService)(nil)

// NewTraceService creates a trace service.
func NewTraceService(traces driven.TraceStore) *TraceService {
	return &TraceService{traces: traces}
}

// GetTrace returns a trace by ID, or ErrNotFound.
func (s *TraceService) GetTrace(ctx context.Context, id string) (*domain.SearchTrace, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("trace %q: %w", id, domain.ErrNotFound)
	}
	t, err := s.traces.GetTrace(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("loading trace %s: %w", id, err)
	}
	return t, nil
}

// ListTraces returns the most recent traces.
func (s *TraceService) ListTraces(ctx context.Context, limit int) ([]domain.SearchTrace, error) {
	return s.traces.ListTraces(ctx, limit)
}
