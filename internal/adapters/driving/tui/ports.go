// Package tui provides an interactive terminal search browser.
package tui

import (
	"github.com/laws-africa/peachjam/internal/core/ports/driving"
)

// Ports are the driving ports the terminal UI calls.
type Ports struct {
	Search    driving.SearchService
	Documents driving.DocumentService
}

// Validate reports a missing port.
func (p *Ports) Validate() error {
	if p == nil || p.Search == nil {
		return ErrMissingSearchService
	}
	if p.Documents == nil {
		return ErrMissingDocumentService
	}
	return nil
}
