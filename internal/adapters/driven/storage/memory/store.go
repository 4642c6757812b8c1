// Package memory provides in-memory implementations of the storage ports.
// They back tests and the single-process development mode.
package memory

import (
	"sync"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
)

// Store holds all in-memory state behind one lock, mirroring the single
// database connection of the sqlite adapter.
type Store struct {
	mu sync.RWMutex

	works     map[int64]*domain.Work
	workByURI map[string]int64
	documents map[int64]domain.Document
	rels      []domain.Relationship
	ratifs    map[string]domain.Ratification
	topics    map[string]domain.Topic
	citations map[int64][]domain.Citation
	pivot     *float64
	chunks    map[int64][]domain.ContentChunk
	embeds    map[int64]domain.DocumentEmbedding
	ingestors map[int64]domain.Ingestor
	traces    []domain.SearchTrace
	tasks     map[string]domain.ScheduledTask
	results   []domain.TaskResult

	nextWorkID     int64
	nextDocumentID int64
	nextCitationID int64
	nextChunkID    int64
	nextIngestorID int64
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		works:     make(map[int64]*domain.Work),
		workByURI: make(map[string]int64),
		documents: make(map[int64]domain.Document),
		ratifs:    make(map[string]domain.Ratification),
		topics:    make(map[string]domain.Topic),
		citations: make(map[int64][]domain.Citation),
		chunks:    make(map[int64][]domain.ContentChunk),
		embeds:    make(map[int64]domain.DocumentEmbedding),
		ingestors: make(map[int64]domain.Ingestor),
		tasks:     make(map[string]domain.ScheduledTask),
	}
}

// DocumentStore returns the DocumentStore view of the store.
func (s *Store) DocumentStore() driven.DocumentStore { return &DocumentStore{s} }

// CitationStore returns the CitationStore view of the store.
func (s *Store) CitationStore() driven.CitationStore { return &CitationStore{s} }

// RankingStore returns the RankingStore view of the store.
func (s *Store) RankingStore() driven.RankingStore { return &RankingStore{s} }

// ChunkStore returns the ChunkStore view of the store.
func (s *Store) ChunkStore() driven.ChunkStore { return &ChunkStore{s} }

// IngestorStore returns the IngestorStore view of the store.
func (s *Store) IngestorStore() driven.IngestorStore { return &IngestorStore{s} }

// TraceStore returns the TraceStore view of the store.
func (s *Store) TraceStore() driven.TraceStore { return &TraceStore{s} }

// SchedulerStore returns the SchedulerStore view of the store.
func (s *Store) SchedulerStore() driven.SchedulerStore { return &SchedulerStore{s} }
