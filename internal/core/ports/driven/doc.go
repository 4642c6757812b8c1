// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - DocumentStore: works, documents, relationships and ratifications
//   - CitationStore: citation edges
//   - RankingStore: authority scores and the pagerank pivot
//   - ChunkStore: content chunks and document embeddings
//   - IngestorStore: ingestor configuration and refresh state
//   - TraceStore: search traces
//   - SchedulerStore: periodic schedule state
//   - BlobStore: prefixed blob storage
//   - SearchIndex: full-text index (bleve)
//   - TaskQueue: durable background task queue
//   - ConfigStore: application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingService: generates vector embeddings. Without it, semantic
//     and hybrid search fall back to text search and no chunks are embedded.
//   - VectorIndex: nearest-neighbour search over chunk embeddings.
//   - Cache: suggestion and query-embedding cache.
//   - Converter: office-to-PDF conversion.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, ingestor, or normaliser package
package driven
