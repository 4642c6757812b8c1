// Package ingestors registers the built-in ingestion adapters.
package ingestors

import (
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
	"github.com/laws-africa/peachjam/internal/core/services"
	"github.com/laws-africa/peachjam/internal/ingestors/gazettes"
	"github.com/laws-africa/peachjam/internal/ingestors/indigo"
	"github.com/laws-africa/peachjam/internal/ingestors/judgments"
	"github.com/laws-africa/peachjam/internal/ingestors/markdown"
	"github.com/laws-africa/peachjam/internal/ingestors/ratifications"
)

// builders lists every built-in adapter by its registered name.
var builders = map[string]driven.AdapterBuilder{
	indigo.Name:        indigo.New,
	gazettes.Name:      gazettes.New,
	judgments.Name:     judgments.New,
	ratifications.Name: ratifications.New,
	markdown.Name:      markdown.New,
}

// Register adds the built-in adapters to reg.
func Register(reg *services.AdapterRegistry) error {
	for name, b := range builders {
		if err := reg.Register(services.TopicIngestorAdapter, name, b); err != nil {
			return err
		}
	}
	return nil
}
