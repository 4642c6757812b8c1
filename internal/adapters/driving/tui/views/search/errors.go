package search

import "errors"

// ErrNoSearchService is reported when the view has nothing to search with.
var ErrNoSearchService = errors.New("search service is required")
