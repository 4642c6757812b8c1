package bleve

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve"
	"github.com/blevesearch/bleve/search/query"

	"github.com/laws-africa/peachjam/internal/core/domain"
)

// nestedCandidates caps the child hits considered when resolving a nested query.
const nestedCandidates = 1000

// compiler translates a domain query plan into bleve queries for one search.
// Nested queries run against alias as they are met; rank features are
// collected and applied to the hits afterwards.
type compiler struct {
	ctx      context.Context
	alias    bleve.IndexAlias
	features []domain.RankFeature
	inner    map[string]map[string][]domain.InnerHit
}

func newCompiler(ctx context.Context, alias bleve.IndexAlias) *compiler {
	return &compiler{ctx: ctx, alias: alias, inner: make(map[string]map[string][]domain.InnerHit)}
}

// compile returns nil for clauses that do not restrict matches.
func (c *compiler) compile(q domain.Query) (query.Query, error) {
	switch q := q.(type) {
	case nil:
		return nil, nil
	case domain.MatchAll:
		return bleve.NewMatchAllQuery(), nil
	case domain.BoolQuery:
		return c.compileBool(q)
	case domain.SimpleQueryString:
		return compileSimple(q), nil
	case domain.Match:
		m := bleve.NewMatchQuery(q.Query)
		m.SetField(q.Field)
		if q.Operator == domain.OperatorAnd {
			m.SetOperator(query.MatchQueryOperatorAnd)
		}
		setBoost(m, q.Boost)
		return m, nil
	case domain.MatchPhrase:
		m := bleve.NewMatchPhraseQuery(q.Query)
		m.SetField(q.Field)
		setBoost(m, q.Boost)
		return m, nil
	case domain.Terms:
		if len(q.Values) == 0 {
			return bleve.NewMatchNoneQuery(), nil
		}
		terms := make([]query.Query, 0, len(q.Values))
		for _, v := range q.Values {
			t := bleve.NewTermQuery(v)
			t.SetField(q.Field)
			terms = append(terms, t)
		}
		return disjunction(terms, 1), nil
	case domain.BoolTerm:
		b := bleve.NewBoolFieldQuery(q.Value)
		b.SetField(q.Field)
		return b, nil
	case domain.Range:
		if q.Gte == nil && q.Lte == nil {
			return nil, nil
		}
		inclusive := true
		r := bleve.NewDateRangeInclusiveQuery(deref(q.Gte), deref(q.Lte), &inclusive, &inclusive)
		r.SetField(q.Field)
		return r, nil
	case domain.RankFeature:
		c.features = append(c.features, q)
		return nil, nil
	case domain.DocScores:
		return docScores(q.Scores, q.Boost), nil
	case domain.Nested:
		return c.compileNested(q)
	default:
		return nil, fmt.Errorf("bleve: unsupported query %T", q)
	}
}

func (c *compiler) compileAll(qs []domain.Query) ([]query.Query, error) {
	out := make([]query.Query, 0, len(qs))
	for _, q := range qs {
		bq, err := c.compile(q)
		if err != nil {
			return nil, err
		}
		if bq != nil {
			out = append(out, bq)
		}
	}
	return out, nil
}

// compileBool excludes the complement of each filter clause, so filters
// restrict matches without adding to the score.
func (c *compiler) compileBool(q domain.BoolQuery) (query.Query, error) {
	must, err := c.compileAll(q.Must)
	if err != nil {
		return nil, err
	}
	filters, err := c.compileAll(q.Filter)
	if err != nil {
		return nil, err
	}
	should, err := c.compileAll(q.Should)
	if err != nil {
		return nil, err
	}
	mustNot, err := c.compileAll(q.MustNot)
	if err != nil {
		return nil, err
	}
	for _, f := range filters {
		mustNot = append(mustNot, complement(f))
	}

	min := q.MinimumShouldMatch
	if min == 0 && len(q.Must) == 0 && len(q.Filter) == 0 {
		min = 1
	}
	if len(should) == 0 {
		if min > 0 && len(q.Should) > 0 {
			// every should clause was a rank feature
			min = 0
		}
		if len(must) == 0 && len(mustNot) == 0 {
			return nil, nil
		}
	}
	if len(must) == 0 && (len(should) == 0 || min == 0) {
		must = []query.Query{bleve.NewMatchAllQuery()}
	}

	bq := bleve.NewBooleanQuery(nil, nil, nil)
	if len(must) > 0 {
		bq.AddMust(must...)
	}
	if len(should) > 0 {
		bq.AddShould(should...)
		bq.SetMinShould(float64(min))
	}
	if len(mustNot) > 0 {
		bq.AddMustNot(mustNot...)
	}
	return bq, nil
}

// compileNested runs the child query and scores parents by their best child.
func (c *compiler) compileNested(q domain.Nested) (query.Query, error) {
	child, err := c.compile(q.Query)
	if err != nil {
		return nil, err
	}
	kind := kindPage
	if q.Path == "provisions" {
		kind = kindProvision
	}
	kindQ := bleve.NewTermQuery(kind)
	kindQ.SetField(fieldDocKind)
	clauses := []query.Query{kindQ}
	if child != nil {
		clauses = append(clauses, child)
	}

	req := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(clauses...), nestedCandidates, 0, false)
	req.Fields = []string{"*"}
	if q.InnerHits != nil && len(q.InnerHits.HighlightFields) > 0 {
		req.Highlight = bleve.NewHighlightWithStyle("html")
		for _, f := range q.InnerHits.HighlightFields {
			req.Highlight.AddField(f)
		}
	}
	res, err := c.alias.SearchInContext(c.ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve: nested %s: %w", q.Path, err)
	}

	best := make(map[string]float64)
	for _, hit := range res.Hits {
		parent, _ := hit.Fields[fieldParentID].(string)
		if parent == "" {
			continue
		}
		if hit.Score > best[parent] {
			best[parent] = hit.Score
		}
		if q.InnerHits == nil {
			continue
		}
		byParent := c.inner[q.Path]
		if byParent == nil {
			byParent = make(map[string][]domain.InnerHit)
			c.inner[q.Path] = byParent
		}
		if len(byParent[parent]) < q.InnerHits.Size {
			byParent[parent] = append(byParent[parent], domain.InnerHit{
				ID:        hit.ID,
				Score:     hit.Score,
				Source:    childSource(q.Path, hit.Fields),
				Highlight: map[string][]string(hit.Fragments),
			})
		}
	}
	return docScores(best, 0), nil
}

// childSource strips the path prefix from a child's stored fields.
func childSource(path string, fields map[string]interface{}) map[string]any {
	out := make(map[string]any)
	prefix := path + "."
	for k, v := range fields {
		name, ok := strings.CutPrefix(k, prefix)
		if !ok || name == "body" {
			continue
		}
		switch name {
		case "parent_ids", "parent_titles":
			out[name] = stringValues(v)
		case "page_num":
			if f, ok := v.(float64); ok {
				out[name] = int(f)
				continue
			}
			out[name] = v
		default:
			out[name] = v
		}
	}
	return out
}

// docScores matches exactly the given documents, boosted by their scores.
func docScores(scores map[string]float64, boost float64) query.Query {
	if len(scores) == 0 {
		return bleve.NewMatchNoneQuery()
	}
	if boost == 0 {
		boost = 1
	}
	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	clauses := make([]query.Query, 0, len(ids))
	for _, id := range ids {
		d := bleve.NewDocIDQuery([]string{id})
		d.SetBoost(math.Max(scores[id]*boost, 1e-6))
		clauses = append(clauses, d)
	}
	return disjunction(clauses, 1)
}

// complement matches every document that q does not.
func complement(q query.Query) query.Query {
	return bleve.NewBooleanQuery([]query.Query{bleve.NewMatchAllQuery()}, nil, []query.Query{q})
}

func disjunction(qs []query.Query, min int) query.Query {
	d := bleve.NewDisjunctionQuery(qs...)
	d.SetMin(float64(min))
	return d
}

type boostable interface {
	SetBoost(b float64)
}

func setBoost(q boostable, b float64) {
	if b > 0 {
		q.SetBoost(b)
	}
}

// compileSimple expands a simple query string across its fields.
// Quoted text matches as a phrase; a leading '-' excludes a term.
func compileSimple(q domain.SimpleQueryString) query.Query {
	terms := parseSimpleQuery(q.Query)

	var positive, negative []query.Query
	for _, t := range terms {
		across := make([]query.Query, 0, len(q.Fields))
		for _, f := range q.Fields {
			var fq query.Query
			if t.phrase {
				m := bleve.NewMatchPhraseQuery(t.text)
				m.SetField(f.Field)
				setBoost(m, f.Boost)
				fq = m
			} else {
				m := bleve.NewMatchQuery(t.text)
				m.SetField(f.Field)
				setBoost(m, f.Boost)
				fq = m
			}
			across = append(across, fq)
		}
		if len(across) == 0 {
			continue
		}
		if t.negate {
			negative = append(negative, disjunction(across, 1))
		} else {
			positive = append(positive, disjunction(across, 1))
		}
	}

	if len(positive) == 0 {
		if len(negative) == 0 {
			return bleve.NewMatchNoneQuery()
		}
		positive = []query.Query{bleve.NewMatchAllQuery()}
	}

	var matched query.Query
	switch {
	case q.Operator == domain.OperatorAnd:
		matched = bleve.NewConjunctionQuery(positive...)
	default:
		min := minimumShouldMatch(q.MinimumShouldMatch, len(positive))
		matched = disjunction(positive, max(min, 1))
	}

	bq := bleve.NewBooleanQuery([]query.Query{matched}, nil, negative)
	setBoost(bq, q.Boost)
	return bq
}

type simpleTerm struct {
	text   string
	phrase bool
	negate bool
}

// parseSimpleQuery splits a query into terms and quoted phrases.
func parseSimpleQuery(s string) []simpleTerm {
	var out []simpleTerm
	rest := strings.TrimSpace(s)
	for rest != "" {
		negate := false
		if rest[0] == '-' && len(rest) > 1 {
			negate = true
			rest = rest[1:]
		}
		if rest[0] == '"' {
			end := strings.IndexByte(rest[1:], '"')
			var text string
			if end < 0 {
				text, rest = rest[1:], ""
			} else {
				text, rest = rest[1:end+1], rest[end+2:]
			}
			if text = strings.TrimSpace(text); text != "" {
				out = append(out, simpleTerm{text: text, phrase: true, negate: negate})
			}
		} else {
			end := strings.IndexAny(rest, " \t\n")
			var word string
			if end < 0 {
				word, rest = rest, ""
			} else {
				word, rest = rest[:end], rest[end:]
			}
			word = strings.Trim(word, "+|")
			if word != "" {
				out = append(out, simpleTerm{text: word, negate: negate})
			}
		}
		rest = strings.TrimSpace(rest)
	}
	return out
}

// minimumShouldMatch evaluates "N<P%": all of up to N clauses, else P percent
// rounded down. Plain "P%" and integers are accepted too.
func minimumShouldMatch(expr string, n int) int {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return 1
	}
	if lt := strings.IndexByte(expr, '<'); lt >= 0 {
		limit, err := strconv.Atoi(expr[:lt])
		if err == nil && n <= limit {
			return n
		}
		expr = expr[lt+1:]
	}
	if pct, ok := strings.CutSuffix(expr, "%"); ok {
		p, err := strconv.Atoi(pct)
		if err != nil {
			return 1
		}
		return n * p / 100
	}
	if v, err := strconv.Atoi(expr); err == nil {
		return min(v, n)
	}
	return 1
}
