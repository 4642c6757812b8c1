package driven

import (
	"context"
	"time"

	"github.com/laws-africa/peachjam/internal/core/domain"
)

// SerialAllocator returns max(serial)+1 for judgments of a court in a year.
// It is only valid inside the PrepareFunc of the SaveDocument call that supplied it.
type SerialAllocator func(courtCode string, year int) (int, error)

// PrepareFunc derives identifier parts and defaults inside the save transaction.
type PrepareFunc func(doc *domain.Document, next SerialAllocator) error

// DocumentStore persists works, documents and their metadata.
// Backed by SQLite.
type DocumentStore interface {
	// SaveDocument inserts or updates a document in a single write transaction.
	// prepare runs first, under the transaction's lock. The Work is created if
	// needed and the most-recent flags of siblings are recomputed.
	// Returns the previously stored version, or nil for a new document.
	SaveDocument(ctx context.Context, doc *domain.Document, prepare PrepareFunc) (*domain.Document, error)

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id int64) (*domain.Document, error)

	// GetDocumentByExpressionURI retrieves a document by its expression FRBR URI.
	GetDocumentByExpressionURI(ctx context.Context, uri string) (*domain.Document, error)

	// DeleteDocument removes a document and recomputes sibling most-recent flags.
	// The Work is kept.
	DeleteDocument(ctx context.Context, id int64) (*domain.Document, error)

	// ListDocuments returns documents matching the filter, ordered by ID.
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]domain.Document, error)

	// ListExpressionURIs returns the expression URIs of all local documents.
	ListExpressionURIs(ctx context.Context) ([]string, error)

	// SiblingDocuments returns documents of the same Work and language.
	SiblingDocuments(ctx context.Context, workID int64, language string) ([]domain.Document, error)

	// GetWork retrieves a work by ID.
	GetWork(ctx context.Context, id int64) (*domain.Work, error)

	// GetWorkByURI retrieves a work by its FRBR URI.
	GetWorkByURI(ctx context.Context, uri string) (*domain.Work, error)

	// EnsureWork returns the work for uri, creating a stub when missing.
	EnsureWork(ctx context.Context, uri, title string) (*domain.Work, error)

	// ListWorks returns all works.
	ListWorks(ctx context.Context) ([]domain.Work, error)

	// UpdateWorkLanguages recomputes Work.Languages from its documents.
	UpdateWorkLanguages(ctx context.Context, workID int64) ([]string, error)

	// ReplaceRelationships replaces the relationships whose subject is subjectURI.
	ReplaceRelationships(ctx context.Context, subjectURI string, rels []domain.Relationship) error

	// ListRelationships returns relationships where the work is subject or object.
	ListRelationships(ctx context.Context, workURI string) ([]domain.Relationship, error)

	// SaveRatification stores a ratification, replacing its country list.
	SaveRatification(ctx context.Context, r *domain.Ratification) error

	// GetRatification retrieves a ratification by work URI.
	GetRatification(ctx context.Context, workURI string) (*domain.Ratification, error)

	// SaveTopics upserts taxonomy topics.
	SaveTopics(ctx context.Context, topics []domain.Topic) error
}

// DocumentFilter selects documents to list.
type DocumentFilter struct {
	// MostRecentOnly restricts to most-recent expressions.
	MostRecentOnly bool

	// WorkIDs restricts to the given works.
	WorkIDs []int64

	// AfterID and Limit page through results. Zero Limit means no limit.
	AfterID int64
	Limit   int
}

// CitationStore persists citation edges.
type CitationStore interface {
	// ReplaceCitations replaces every citation extracted from a document.
	ReplaceCitations(ctx context.Context, documentID int64, citations []domain.Citation) error

	// ListCitationsFrom returns citations extracted from a document.
	ListCitationsFrom(ctx context.Context, documentID int64) ([]domain.Citation, error)

	// ListEdges returns every distinct (citing work, target work) pair.
	ListEdges(ctx context.Context) ([]CitationEdge, error)
}

// CitationEdge is a distinct edge of the citation graph.
type CitationEdge struct {
	CitingWorkID int64
	TargetWorkID int64
}

// RankingStore persists authority scores.
type RankingStore interface {
	// SaveWorkRanks writes the ranks of every listed work and the pivot in one transaction.
	SaveWorkRanks(ctx context.Context, ranks []WorkRank, pivot float64) error

	// GetPagerankPivot returns the stored pivot, or false when none was stored.
	GetPagerankPivot(ctx context.Context) (float64, bool, error)
}

// WorkRank holds the ranking fields of one work.
type WorkRank struct {
	WorkID                 int64
	Pagerank               float64
	PagerankNormalized     float64
	NCitingWorksNormalized float64
	AuthorityScore         float64
}

// ChunkStore persists content chunks and document embeddings.
type ChunkStore interface {
	// ReplaceChunks replaces every chunk of a document.
	ReplaceChunks(ctx context.Context, documentID int64, chunks []domain.ContentChunk) error

	// GetChunks returns a document's chunks ordered by type, portion and chunk_n.
	GetChunks(ctx context.Context, documentID int64) ([]domain.ContentChunk, error)

	// DeleteChunks removes a document's chunks and aggregate embedding.
	DeleteChunks(ctx context.Context, documentID int64) error

	// SaveDocumentEmbedding upserts a document's aggregate embedding.
	SaveDocumentEmbedding(ctx context.Context, e *domain.DocumentEmbedding) error

	// GetDocumentEmbedding returns a document's aggregate, or ErrNotFound.
	GetDocumentEmbedding(ctx context.Context, documentID int64) (*domain.DocumentEmbedding, error)

	// ListDocumentEmbeddings returns the aggregates of most-recent documents.
	ListDocumentEmbeddings(ctx context.Context) ([]domain.DocumentEmbedding, error)

	// ListChunkVectors streams every embedded chunk to fn.
	ListChunkVectors(ctx context.Context, fn func(c domain.ContentChunk) error) error
}

// IngestorStore persists ingestor configuration.
type IngestorStore interface {
	// SaveIngestor creates or updates an ingestor by name.
	SaveIngestor(ctx context.Context, ing *domain.Ingestor) error

	// GetIngestor retrieves an ingestor by ID.
	GetIngestor(ctx context.Context, id int64) (*domain.Ingestor, error)

	// GetIngestorByName retrieves an ingestor by name.
	GetIngestorByName(ctx context.Context, name string) (*domain.Ingestor, error)

	// ListIngestors returns all ingestors.
	ListIngestors(ctx context.Context) ([]domain.Ingestor, error)

	// SetLastRefreshed records the time of the last successful check.
	SetLastRefreshed(ctx context.Context, id int64, at time.Time) error
}

// TraceStore persists search traces.
type TraceStore interface {
	SaveTrace(ctx context.Context, t *domain.SearchTrace) error
	GetTrace(ctx context.Context, id string) (*domain.SearchTrace, error)
	ListTraces(ctx context.Context, limit int) ([]domain.SearchTrace, error)
}
