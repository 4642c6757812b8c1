package mcp

import (
	"github.com/laws-africa/peachjam/internal/core/ports/driving"
)

// Ports aggregates the driving ports used by the MCP server.
type Ports struct {
	// Search is required.
	Search driving.SearchService

	// Related backs the related_documents tool.
	Related driving.RelatedService

	// Documents backs the document resources.
	Documents driving.DocumentService

	// Ingestion backs the ingestors resource.
	Ingestion driving.IngestionService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}
