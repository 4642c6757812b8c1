package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/laws-africa/peachjam/internal/adapters/driven/storage/memory"
	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
)

// --- Shared fixtures and hand-written mocks for service tests ---

func day(s string) time.Time {
	d, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

// act builds an expression of /akn/za/act/<year>/<number>.
func act(year, number, lang, date string) *domain.Document {
	return &domain.Document{
		Kind:        domain.KindLegislation,
		Country:     "za",
		Doctype:     "act",
		FrbrDate:    year,
		Number:      number,
		Language:    lang,
		Date:        day(date),
		Title:       "Act " + number + " of " + year,
		ContentText: "The text of act " + number + ".",
		Published:   true,
	}
}

// saveDoc stores a document directly, bypassing events.
func saveDoc(t *testing.T, store driven.DocumentStore, doc *domain.Document) *domain.Document {
	t.Helper()
	_, err := store.SaveDocument(context.Background(), doc, PrepareDocument)
	require.NoError(t, err)
	return doc
}

type enqueued struct {
	Name string
	Args any
	Opts domain.TaskOptions
}

// recordingEnqueuer implements driven.TaskEnqueuer.
type recordingEnqueuer struct {
	mu    sync.Mutex
	calls []enqueued
	err   error
}

func (r *recordingEnqueuer) Enqueue(_ context.Context, name string, args any, opts domain.TaskOptions) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return "", r.err
	}
	r.calls = append(r.calls, enqueued{Name: name, Args: args, Opts: opts})
	return fmt.Sprintf("task-%d", len(r.calls)), nil
}

func (r *recordingEnqueuer) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = c.Name
	}
	return out
}

func (r *recordingEnqueuer) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// fakeQueue implements driven.TaskQueue in memory, ignoring RunAt.
type fakeQueue struct {
	mu      sync.Mutex
	pending []*domain.Task
	acked   []string
	delays  []time.Duration
	nextID  int
}

func (q *fakeQueue) Enqueue(_ context.Context, task domain.Task, opts domain.TaskOptions) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if opts.RemoveExisting {
		kept := q.pending[:0]
		for _, p := range q.pending {
			if p.Signature != task.Signature {
				kept = append(kept, p)
			}
		}
		q.pending = kept
	}
	q.nextID++
	task.ID = fmt.Sprintf("t%d", q.nextID)
	q.pending = append(q.pending, &task)
	return task.ID, nil
}

func (q *fakeQueue) Dequeue(_ context.Context, _ time.Duration) (*domain.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil, nil
	}
	t := q.pending[0]
	q.pending = q.pending[1:]
	return t, nil
}

func (q *fakeQueue) Ack(_ context.Context, task *domain.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked = append(q.acked, task.ID)
	return nil
}

func (q *fakeQueue) Retry(_ context.Context, task *domain.Task, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.delays = append(q.delays, delay)
	task.Attempt++
	q.pending = append(q.pending, task)
	return nil
}

func (q *fakeQueue) Pending(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending), nil
}

func (q *fakeQueue) Close() error { return nil }

// fakeIndex implements driven.SearchIndex, recording calls and returning
// queued results.
type fakeIndex struct {
	mu        sync.Mutex
	ensured   map[string]string
	indexed   map[string][]driven.IndexDocument
	deleted   []string
	rankings  map[string]map[string]float64
	searches  []domain.IndexSearch
	results   []*domain.IndexResult
	suggest   []string
	suggested int
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		ensured:  make(map[string]string),
		indexed:  make(map[string][]driven.IndexDocument),
		rankings: make(map[string]map[string]float64),
	}
}

func (f *fakeIndex) EnsureIndex(_ context.Context, name, analyzer string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured[name] = analyzer
	return nil
}

func (f *fakeIndex) IndexDocuments(_ context.Context, index string, docs []driven.IndexDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed[index] = append(f.indexed[index], docs...)
	return nil
}

func (f *fakeIndex) DeleteDocument(_ context.Context, index, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, index+"/"+id)
	return nil
}

func (f *fakeIndex) UpdateRanking(_ context.Context, index string, ranking map[string]float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rankings[index] == nil {
		f.rankings[index] = make(map[string]float64)
	}
	for id, v := range ranking {
		f.rankings[index][id] = v
	}
	return nil
}

func (f *fakeIndex) Search(_ context.Context, req domain.IndexSearch) (*domain.IndexResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, req)
	if len(f.results) == 0 {
		return &domain.IndexResult{}, nil
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r, nil
}

func (f *fakeIndex) Suggest(_ context.Context, _ []string, _ string, _ int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suggested++
	return f.suggest, nil
}

func (f *fakeIndex) Close() error { return nil }

// fakeEmbedder implements driven.EmbeddingService. Unknown texts embed to (1, 0, 0).
type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	batches int
	queries int
	err     error
}

func (f *fakeEmbedder) vector(text string) []float32 {
	if v, ok := f.vectors[text]; ok {
		return append([]float32(nil), v...)
	}
	return []float32{1, 0, 0}
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector(text), nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vector(t)
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int              { return 3 }
func (f *fakeEmbedder) ModelName() string            { return "fake" }
func (f *fakeEmbedder) Ping(_ context.Context) error { return nil }
func (f *fakeEmbedder) Close() error                 { return nil }

// fakeVectors implements driven.VectorIndex.
type fakeVectors struct {
	mu      sync.Mutex
	docs    map[int64][]driven.ChunkVector
	deleted []int64
	hits    []driven.VectorHit
	calls   int
}

func newFakeVectors() *fakeVectors {
	return &fakeVectors{docs: make(map[int64][]driven.ChunkVector)}
}

func (f *fakeVectors) Upsert(_ context.Context, documentID int64, vectors []driven.ChunkVector) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[documentID] = vectors
	return nil
}

func (f *fakeVectors) DeleteDocument(_ context.Context, documentID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, documentID)
	f.deleted = append(f.deleted, documentID)
	return nil
}

func (f *fakeVectors) Search(_ context.Context, _ []float32, _, _ int, _ float64) ([]driven.VectorHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.hits, nil
}

func (f *fakeVectors) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, v := range f.docs {
		n += len(v)
	}
	return n
}

func (f *fakeVectors) Close() error { return nil }

// mapCache implements driven.Cache without expiry.
type mapCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMapCache() *mapCache {
	return &mapCache{m: make(map[string][]byte)}
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
	return nil
}

// newMemoryStore returns an empty in-memory store.
func newMemoryStore() *memory.Store {
	return memory.NewStore()
}
