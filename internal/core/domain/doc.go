// Package domain defines the core entities of the ingestion and search engines.
//
// This package is the innermost layer of the hexagonal architecture.
// It has NO external dependencies and defines the fundamental types:
//
//   - Work: the stable identity of a piece of legal content
//   - Document: one language and point-in-time expression of a Work
//   - Citation: a directed edge between two Works
//   - ContentChunk: a unit of text fed to the semantic index
//   - Ingestor: a configured instance of an ingestion adapter
//   - SearchRequest / Query: the search form and the query plan it compiles to
//   - Task: a unit of background work
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
