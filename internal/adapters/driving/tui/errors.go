package tui

import "errors"

var (
	// ErrMissingSearchService is returned when no search service is provided.
	ErrMissingSearchService = errors.New("tui: search service is required")

	// ErrMissingDocumentService is returned when no document service is provided.
	ErrMissingDocumentService = errors.New("tui: document service is required")
)
