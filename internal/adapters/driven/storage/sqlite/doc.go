// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO. It implements multiple store interfaces through a single database connection:
//
//   - DocumentStore: works, documents, relationships, ratifications and topics
//   - CitationStore and RankingStore: the citation graph and authority scores
//   - ChunkStore: content chunks and aggregate embeddings
//   - IngestorStore, TraceStore and SchedulerStore
//
// # Schema
//
// The schema is managed by golang-migrate from the embedded migrations/ directory.
//
// # Data Location
//
// By default, the database is stored at ~/.peachjam/data/peachjam.db
//
// # Thread Safety
//
// Writes that touch several rows run under an immediate transaction, so judgment
// serial allocation and most-recent recomputation are serialised by SQLite.
package sqlite
