// Package mcp serves the search engine to MCP clients as tools and resources.
package mcp

import "errors"

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("mcp: search service is required")

// ErrRelatedUnavailable is returned by related_documents when no related
// service is configured.
var ErrRelatedUnavailable = errors.New("mcp: related documents are not available")
