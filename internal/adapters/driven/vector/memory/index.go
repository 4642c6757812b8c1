// Package memory implements driven.VectorIndex as an exact in-memory scan.
package memory

import (
	"container/heap"
	"context"
	"errors"
	"sync"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// ErrDimensionMismatch is returned when a vector has the wrong size.
var ErrDimensionMismatch = errors.New("vector: dimension mismatch")

type entry struct {
	documentID int64
	chunkID    int64
	vec        []float32
}

// Index holds unit vectors and answers inner-product queries exactly.
type Index struct {
	mu        sync.RWMutex
	dimension int
	docs      map[int64][]entry
	n         int
}

// New creates an empty index. A dimension of zero is taken from the first vector.
func New(dimension int) *Index {
	return &Index{dimension: dimension, docs: make(map[int64][]entry)}
}

// Load fills the index from the embedded chunks of a chunk store.
func Load(ctx context.Context, chunks driven.ChunkStore, dimension int) (*Index, error) {
	x := New(dimension)
	byDoc := make(map[int64][]driven.ChunkVector)
	err := chunks.ListChunkVectors(ctx, func(c domain.ContentChunk) error {
		byDoc[c.DocumentID] = append(byDoc[c.DocumentID], driven.ChunkVector{ChunkID: c.ID, Embedding: c.Embedding})
		return nil
	})
	if err != nil {
		return nil, err
	}
	for id, vecs := range byDoc {
		if err := x.Upsert(ctx, id, vecs); err != nil {
			return nil, err
		}
	}
	return x, nil
}

// Upsert replaces the vectors of a document.
func (x *Index) Upsert(_ context.Context, documentID int64, vectors []driven.ChunkVector) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	entries := make([]entry, 0, len(vectors))
	for _, v := range vectors {
		if len(v.Embedding) == 0 {
			continue
		}
		if x.dimension == 0 {
			x.dimension = len(v.Embedding)
		}
		if len(v.Embedding) != x.dimension {
			return ErrDimensionMismatch
		}
		entries = append(entries, entry{documentID: documentID, chunkID: v.ChunkID, vec: v.Embedding})
	}
	x.n -= len(x.docs[documentID])
	if len(entries) == 0 {
		delete(x.docs, documentID)
		return nil
	}
	x.docs[documentID] = entries
	x.n += len(entries)
	return nil
}

// DeleteDocument removes a document's vectors.
func (x *Index) DeleteDocument(_ context.Context, documentID int64) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.n -= len(x.docs[documentID])
	delete(x.docs, documentID)
	return nil
}

// Search returns the best chunk of each of the k most similar documents,
// ignoring chunks below minSimilarity. The scan is exact, so numCandidates
// only caps k.
func (x *Index) Search(ctx context.Context, query []float32, k, numCandidates int, minSimilarity float64) ([]driven.VectorHit, error) {
	if numCandidates > 0 && k > numCandidates {
		k = numCandidates
	}
	if k <= 0 {
		return nil, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.dimension != 0 && len(query) != x.dimension {
		return nil, ErrDimensionMismatch
	}

	h := &hitHeap{}
	for _, entries := range x.docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var best *driven.VectorHit
		for _, e := range entries {
			sim := domain.Dot(query, e.vec)
			if sim < minSimilarity {
				continue
			}
			hit := driven.VectorHit{DocumentID: e.documentID, ChunkID: e.chunkID, Similarity: sim}
			if best == nil || better(hit, *best) {
				best = &hit
			}
		}
		if best == nil {
			continue
		}
		if h.Len() < k {
			heap.Push(h, *best)
		} else if better(*best, (*h)[0]) {
			(*h)[0] = *best
			heap.Fix(h, 0)
		}
	}

	out := make([]driven.VectorHit, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(driven.VectorHit)
	}
	return out, nil
}

// Len returns the number of indexed vectors.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.n
}

// Close releases resources.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.docs = make(map[int64][]entry)
	x.n = 0
	return nil
}

// better orders hits by similarity, then by chunk id for stable results.
func better(a, b driven.VectorHit) bool {
	if a.Similarity != b.Similarity {
		return a.Similarity > b.Similarity
	}
	return a.ChunkID < b.ChunkID
}

// hitHeap is a min-heap on the worst kept hit.
type hitHeap []driven.VectorHit

func (h hitHeap) Len() int            { return len(h) }
func (h hitHeap) Less(i, j int) bool  { return better(h[j], h[i]) }
func (h hitHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *hitHeap) Push(x interface{}) { *h = append(*h, x.(driven.VectorHit)) }
func (h *hitHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
