package domain

import "time"

// EventKind is the fixed enumeration of lifecycle events.
type EventKind string

// Event kinds.
const (
	EventDocumentSaved       EventKind = "document_saved"
	EventDocumentDeleted     EventKind = "document_deleted"
	EventCitationsExtracted  EventKind = "citations_extracted"
	EventEmbeddingsRefreshed EventKind = "embeddings_refreshed"
)

// AllEventKinds returns every event kind.
func AllEventKinds() []EventKind {
	return []EventKind{
		EventDocumentSaved,
		EventDocumentDeleted,
		EventCitationsExtracted,
		EventEmbeddingsRefreshed,
	}
}

// Event describes something that happened to a document.
type Event struct {
	ID         string
	Kind       EventKind
	DocumentID int64
	WorkID     int64
	Language   string

	// CitationInputsChanged is set on DocumentSaved when date, title,
	// alternative names or text changed.
	CitationInputsChanged bool

	OccurredAt time.Time
}
