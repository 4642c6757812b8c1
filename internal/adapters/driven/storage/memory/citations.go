package memory

import (
	"context"
	"sort"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
)

var (
	_ driven.CitationStore = (*CitationStore)(nil)
	_ driven.RankingStore  = (*RankingStore)(nil)
)

// CitationStore is an in-memory implementation of driven.CitationStore.
type CitationStore struct {
	s *Store
}

// ReplaceCitations replaces every citation extracted from a document.
func (c *CitationStore) ReplaceCitations(_ context.Context, documentID int64, citations []domain.Citation) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	out := make([]domain.Citation, len(citations))
	for i := range citations {
		c.s.nextCitationID++
		citations[i].ID = c.s.nextCitationID
		citations[i].CitingDocumentID = documentID
		out[i] = citations[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	if len(out) == 0 {
		delete(c.s.citations, documentID)
		return nil
	}
	c.s.citations[documentID] = out
	return nil
}

// ListCitationsFrom returns citations extracted from a document.
func (c *CitationStore) ListCitationsFrom(_ context.Context, documentID int64) ([]domain.Citation, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	return append([]domain.Citation(nil), c.s.citations[documentID]...), nil
}

// ListEdges returns every distinct (citing work, target work) pair, without self-citations.
func (c *CitationStore) ListEdges(_ context.Context) ([]driven.CitationEdge, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	seen := make(map[driven.CitationEdge]bool)
	var edges []driven.CitationEdge
	for _, list := range c.s.citations {
		for _, cite := range list {
			e := driven.CitationEdge{CitingWorkID: cite.CitingWorkID, TargetWorkID: cite.TargetWorkID}
			if e.CitingWorkID == e.TargetWorkID || seen[e] {
				continue
			}
			seen[e] = true
			edges = append(edges, e)
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].CitingWorkID != edges[j].CitingWorkID {
			return edges[i].CitingWorkID < edges[j].CitingWorkID
		}
		return edges[i].TargetWorkID < edges[j].TargetWorkID
	})
	return edges, nil
}

// RankingStore is an in-memory implementation of driven.RankingStore.
type RankingStore struct {
	s *Store
}

// SaveWorkRanks writes the ranks of every listed work and the pivot.
func (r *RankingStore) SaveWorkRanks(_ context.Context, ranks []driven.WorkRank, pivot float64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rank := range ranks {
		w, ok := r.s.works[rank.WorkID]
		if !ok {
			continue
		}
		w.Pagerank = rank.Pagerank
		w.PagerankNormalized = rank.PagerankNormalized
		w.NCitingWorksNormalized = rank.NCitingWorksNormalized
		w.AuthorityScore = rank.AuthorityScore
	}
	r.s.pivot = &pivot
	return nil
}

// GetPagerankPivot returns the stored pivot, or false when none was stored.
func (r *RankingStore) GetPagerankPivot(_ context.Context) (float64, bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.pivot == nil {
		return 0, false, nil
	}
	return *r.s.pivot, true, nil
}
