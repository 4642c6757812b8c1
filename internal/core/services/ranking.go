package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
	"github.com/laws-africa/peachjam/internal/core/ports/driving"
	"github.com/laws-africa/peachjam/internal/logger"
)

// Ensure RankingService implements the interface.
var _ driving.RankingService = (*RankingService)(nil)

// PageRank parameters.
const (
	PagerankMaxIterations = 100
	PagerankTolerance     = 1e-6
	PagerankPercentile    = 0.99
)

// RankingUpdateTimeout bounds the bulk update of index ranking fields.
const RankingUpdateTimeout = 30 * time.Minute

// RankingService computes work authority from the citation graph.
type RankingService struct {
	documents driven.DocumentStore
	citations driven.CitationStore
	ranks     driven.RankingStore
	index     driven.SearchIndex
	manager   *IndexManager
	settings  domain.RankingSettings
}

// NewRankingService creates a ranking service. index may be nil, in which case
// index ranking fields are not updated.
func NewRankingService(
	documents driven.DocumentStore,
	citations driven.CitationStore,
	ranks driven.RankingStore,
	index driven.SearchIndex,
	manager *IndexManager,
	settings domain.RankingSettings,
) *RankingService {
	return &RankingService{
		documents: documents,
		citations: citations,
		ranks:     ranks,
		index:     index,
		manager:   manager,
		settings:  settings,
	}
}

// RankWorks rebuilds the citation graph, persists the scores of every work in
// it together with the pagerank pivot, and pushes changed pageranks to the index.
func (s *RankingService) RankWorks(ctx context.Context) (*driving.RankReport, error) {
	edges, err := s.citations.ListEdges(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading citation graph: %w", err)
	}
	report := &driving.RankReport{Edges: len(edges)}
	if len(edges) == 0 {
		logger.Info("citation graph is empty, nothing to rank")
		return report, nil
	}

	nodes, links := graphOf(edges)
	report.Nodes = len(nodes)

	damping := s.settings.Damping
	if damping <= 0 {
		damping = 0.85
	}
	pr := PageRank(len(nodes), links, damping, PagerankMaxIterations, PagerankTolerance)

	inDegree := make([]float64, len(nodes))
	for _, targets := range links {
		for _, t := range targets {
			inDegree[t]++
		}
	}
	logDegree := make([]float64, len(nodes))
	for i, d := range inDegree {
		logDegree[i] = math.Log1p(d)
	}
	prNorm := MinMaxNormalize(pr)
	citeNorm := MinMaxNormalize(logDegree)

	previous, err := s.previousPageranks(ctx)
	if err != nil {
		return nil, err
	}

	ranks := make([]driven.WorkRank, len(nodes))
	changed := make(map[int64]float64)
	for i, workID := range nodes {
		ranks[i] = driven.WorkRank{
			WorkID:                 workID,
			Pagerank:               pr[i],
			PagerankNormalized:     prNorm[i],
			NCitingWorksNormalized: citeNorm[i],
			AuthorityScore:         s.settings.PagerankWeight*prNorm[i] + s.settings.CitationWeight*citeNorm[i],
		}
		if old, ok := previous[workID]; !ok || old != pr[i] {
			changed[workID] = pr[i]
		}
	}

	pivot := NearestRankPercentile(nonZero(pr), PagerankPercentile)
	if err := s.ranks.SaveWorkRanks(ctx, ranks, pivot); err != nil {
		return nil, fmt.Errorf("saving ranks: %w", err)
	}
	report.Pivot = pivot
	report.UpdatedWorkCount = len(changed)

	n, err := s.updateIndex(ctx, changed)
	if err != nil {
		return nil, err
	}
	report.ReindexedDocs = n

	logger.Info("ranked %d works over %d edges (pivot %.6f, %d changed)", report.Nodes, report.Edges, pivot, len(changed))
	return report, nil
}

func (s *RankingService) previousPageranks(ctx context.Context) (map[int64]float64, error) {
	works, err := s.documents.ListWorks(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing works: %w", err)
	}
	out := make(map[int64]float64, len(works))
	for _, w := range works {
		out[w.ID] = w.Pagerank
	}
	return out, nil
}

// updateIndex sets the ranking field of every document of the changed works.
func (s *RankingService) updateIndex(ctx context.Context, changed map[int64]float64) (int, error) {
	if s.index == nil || len(changed) == 0 {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, RankingUpdateTimeout)
	defer cancel()

	workIDs := make([]int64, 0, len(changed))
	for id := range changed {
		workIDs = append(workIDs, id)
	}
	docs, err := s.documents.ListDocuments(ctx, driven.DocumentFilter{WorkIDs: workIDs})
	if err != nil {
		return 0, fmt.Errorf("listing ranked documents: %w", err)
	}

	byIndex := make(map[string]map[string]float64)
	for _, d := range docs {
		name := s.manager.IndexForLanguage(d.Language)
		if byIndex[name] == nil {
			byIndex[name] = make(map[string]float64)
		}
		byIndex[name][strconv.FormatInt(d.ID, 10)] = changed[d.WorkID]
	}
	for name, ranking := range byIndex {
		if err := s.index.UpdateRanking(ctx, name, ranking); err != nil {
			return 0, fmt.Errorf("updating ranking in %s: %w", name, err)
		}
	}
	return len(docs), nil
}

// graphOf maps work ids to dense node indexes, sorted by work id.
func graphOf(edges []driven.CitationEdge) ([]int64, [][]int) {
	index := make(map[int64]int)
	var nodes []int64
	add := func(id int64) {
		if _, ok := index[id]; !ok {
			index[id] = 0
			nodes = append(nodes, id)
		}
	}
	for _, e := range edges {
		add(e.CitingWorkID)
		add(e.TargetWorkID)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
	for i, id := range nodes {
		index[id] = i
	}

	links := make([][]int, len(nodes))
	seen := make(map[[2]int]bool)
	for _, e := range edges {
		from, to := index[e.CitingWorkID], index[e.TargetWorkID]
		if from == to || seen[[2]int{from, to}] {
			continue
		}
		seen[[2]int{from, to}] = true
		links[from] = append(links[from], to)
	}
	return nodes, links
}

// PageRank runs the power iteration over n nodes with out-links per node.
// The mass of dangling nodes is spread uniformly. Iteration stops when the
// L1 change falls below n*tol or after maxIter rounds.
func PageRank(n int, links [][]int, damping float64, maxIter int, tol float64) []float64 {
	if n == 0 {
		return nil
	}
	pr := make([]float64, n)
	for i := range pr {
		pr[i] = 1 / float64(n)
	}
	next := make([]float64, n)

	for iter := 0; iter < maxIter; iter++ {
		dangling := 0.0
		for i := 0; i < n; i++ {
			if len(links[i]) == 0 {
				dangling += pr[i]
			}
		}
		base := (1-damping)/float64(n) + damping*dangling/float64(n)
		for i := range next {
			next[i] = base
		}
		for from, targets := range links {
			if len(targets) == 0 {
				continue
			}
			share := damping * pr[from] / float64(len(targets))
			for _, to := range targets {
				next[to] += share
			}
		}

		diff := 0.0
		for i := range pr {
			diff += math.Abs(next[i] - pr[i])
		}
		pr, next = next, pr
		if diff < float64(n)*tol {
			break
		}
	}
	return pr
}

// MinMaxNormalize scales values to [0, 1]. When every value is equal the
// result is 0.5 throughout.
func MinMaxNormalize(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	for i, v := range values {
		if hi == lo {
			out[i] = 0.5
			continue
		}
		out[i] = (v - lo) / (hi - lo)
	}
	return out
}

// NearestRankPercentile returns the p-th percentile (0 < p <= 1) using the
// nearest-rank method, or 0 for no values.
func NearestRankPercentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	rank := int(math.Ceil(p * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

func nonZero(values []float64) []float64 {
	var out []float64
	for _, v := range values {
		if v != 0 {
			out = append(out, v)
		}
	}
	return out
}
