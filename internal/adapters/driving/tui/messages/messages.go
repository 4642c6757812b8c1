// Package messages defines the Bubbletea messages passed between views.
package messages

import (
	"github.com/laws-africa/peachjam/internal/core/domain"
)

// SearchCompleted carries a search response back to the search view.
type SearchCompleted struct {
	Request  domain.SearchRequest
	Response *domain.SearchResponse
	Err      error
}

// DocumentSelected asks the app to open a document.
type DocumentSelected struct {
	ID int64
}

// DocumentLoaded carries a document fetched for the content view.
type DocumentLoaded struct {
	ID       int64
	Document *domain.Document
	Err      error
}

// ViewChanged switches the active view.
type ViewChanged struct {
	View ViewType
}

// ViewType identifies a view.
type ViewType int

const (
	// ViewSearch is the query input and result list.
	ViewSearch ViewType = iota
	// ViewDocument shows the text of one document.
	ViewDocument
	// ViewHelp lists key bindings.
	ViewHelp
)

func (v ViewType) String() string {
	switch v {
	case ViewSearch:
		return "search"
	case ViewDocument:
		return "document"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// ErrorOccurred reports an error to the active view.
type ErrorOccurred struct {
	Err error
}

// Quit exits the program.
type Quit struct{}
