package bleve

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/blevesearch/bleve"
	"github.com/blevesearch/bleve/search"
	"github.com/blevesearch/bleve/search/query"

	"github.com/laws-africa/peachjam/internal/core/domain"
)

// rescoreWindow is the minimum number of hits re-ordered by rank features.
const rescoreWindow = 100

// Search executes a compiled search. Indexes that are not open or that fail
// are reported in FailedIndexes.
func (x *Index) Search(ctx context.Context, req domain.IndexSearch) (*domain.IndexResult, error) {
	alias, missing := x.alias(req.Indexes)
	result := &domain.IndexResult{
		Hits:          []domain.IndexHit{},
		Aggregations:  make(map[string][]domain.FacetBucket),
		FailedIndexes: missing,
	}
	if alias == nil {
		return result, nil
	}

	c := newCompiler(ctx, alias)
	base, err := c.compile(req.Query)
	if err != nil {
		return nil, err
	}
	kindQ := bleve.NewTermQuery(kindDocument)
	kindQ.SetField(fieldDocKind)
	parents := []query.Query{kindQ}
	if base != nil {
		parents = append(parents, base)
	}

	var hitsQuery query.Query = bleve.NewConjunctionQuery(parents...)
	if req.PostFilter != nil {
		pf, err := c.compile(req.PostFilter)
		if err != nil {
			return nil, err
		}
		if pf != nil {
			hitsQuery = bleve.NewBooleanQuery(parents, nil, []query.Query{complement(pf)})
		}
	}

	rescore := len(c.features) > 0 && len(req.Sort) == 0
	from, size := req.From, req.Size
	if rescore {
		from, size = 0, max(req.From+req.Size, rescoreWindow)
	}

	sr := bleve.NewSearchRequestOptions(hitsQuery, size, from, false)
	sr.Fields = []string{"*"}
	sr.IncludeLocations = len(req.Highlight) > 0
	if len(req.Sort) > 0 {
		sr.SortBy(sortOrder(req.Sort))
	}
	hls := newHighlighters(req.Highlight)

	res, err := alias.SearchInContext(ctx, sr)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		result.FailedIndexes = append(result.FailedIndexes, openNames(req.Indexes, missing)...)
		return result, nil
	}
	result.FailedIndexes = append(result.FailedIndexes, failedNames(res)...)
	result.Total = int(res.Total)

	excluded := make(map[string]bool, len(req.SourceExcludes))
	for _, f := range req.SourceExcludes {
		excluded[f] = true
	}
	for _, hit := range res.Hits {
		highlight, err := x.highlight(hit, hls)
		if err != nil {
			return nil, err
		}
		result.Hits = append(result.Hits, domain.IndexHit{
			ID:        hit.ID,
			Index:     hit.Index,
			Score:     hit.Score,
			Source:    parentSource(hit.Fields, excluded),
			Highlight: highlight,
			InnerHits: c.innerHits(hit.ID),
		})
	}
	if rescore {
		result.Hits = applyFeatures(result.Hits, c.features, req.From, req.Size)
	}

	for name, agg := range req.Aggregations {
		buckets, err := x.aggregate(ctx, c, alias, parents, agg)
		if err != nil {
			return nil, fmt.Errorf("bleve: aggregating %s: %w", name, err)
		}
		result.Aggregations[name] = buckets
	}
	return result, nil
}

// aggregate counts terms of agg.Field over parents matching agg.Filter.
func (x *Index) aggregate(ctx context.Context, c *compiler, alias bleve.IndexAlias, parents []query.Query, agg domain.Aggregation) ([]domain.FacetBucket, error) {
	clauses := parents
	if agg.Filter != nil {
		f, err := c.compile(agg.Filter)
		if err != nil {
			return nil, err
		}
		if f != nil {
			clauses = append(append([]query.Query{}, parents...), f)
		}
	}
	size := agg.Size
	if size <= 0 {
		size = 10
	}
	sr := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(clauses...), 0, 0, false)
	sr.AddFacet(agg.Field, bleve.NewFacetRequest(agg.Field, size))
	res, err := alias.SearchInContext(ctx, sr)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return []domain.FacetBucket{}, nil
	}
	buckets := []domain.FacetBucket{}
	facet, ok := res.Facets[agg.Field]
	if !ok || facet == nil {
		return buckets, nil
	}
	for _, t := range facet.Terms {
		buckets = append(buckets, domain.FacetBucket{Key: t.Term, DocCount: t.Count})
	}
	return buckets, nil
}

func (c *compiler) innerHits(id string) map[string][]domain.InnerHit {
	var out map[string][]domain.InnerHit
	for path, byParent := range c.inner {
		if hits := byParent[id]; len(hits) > 0 {
			if out == nil {
				out = make(map[string][]domain.InnerHit)
			}
			out[path] = hits
		}
	}
	return out
}

// applyFeatures adds Boost * v / (v + Pivot) per feature, re-sorts and pages.
func applyFeatures(hits []domain.IndexHit, features []domain.RankFeature, from, size int) []domain.IndexHit {
	for i := range hits {
		for _, f := range features {
			v, _ := hits[i].Source[f.Field].(float64)
			if v <= 0 || f.Pivot <= 0 {
				continue
			}
			boost := f.Boost
			if boost == 0 {
				boost = 1
			}
			hits[i].Score += boost * v / (v + f.Pivot)
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if from >= len(hits) {
		return []domain.IndexHit{}
	}
	return hits[from:min(from+size, len(hits))]
}

func parentSource(fields map[string]interface{}, excluded map[string]bool) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if excluded[k] || k == fieldDocKind || strings.HasSuffix(k, exactSuffix) {
			continue
		}
		out[k] = v
	}
	return out
}

// highlight marks a hit using the index it came from.
func (x *Index) highlight(hit *search.DocumentMatch, hls []fieldHighlighter) (map[string][]string, error) {
	if len(hls) == 0 {
		return nil, nil
	}
	idx, err := x.get(hit.Index)
	if err != nil {
		return nil, nil
	}
	h, err := highlightHit(idx, hit, hls)
	if err != nil {
		return nil, fmt.Errorf("bleve: highlighting %s: %w", hit.ID, err)
	}
	return h, nil
}

func sortOrder(fields []domain.SortField) []string {
	out := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		if f.Desc {
			out = append(out, "-"+f.Field)
		} else {
			out = append(out, f.Field)
		}
	}
	return append(out, "-_score")
}

func sortedFields(m map[string]domain.HighlightField) []string {
	out := make([]string, 0, len(m))
	for f := range m {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func failedNames(res *bleve.SearchResult) []string {
	if res.Status == nil || len(res.Status.Errors) == 0 {
		return nil
	}
	out := make([]string, 0, len(res.Status.Errors))
	for name := range res.Status.Errors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func openNames(names, missing []string) []string {
	skip := make(map[string]bool, len(missing))
	for _, m := range missing {
		skip[m] = true
	}
	var out []string
	for _, n := range names {
		if !skip[n] {
			out = append(out, n)
		}
	}
	return out
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
