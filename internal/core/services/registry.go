package services

import (
	"fmt"
	"sort"
	"sync"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
)

// TopicIngestorAdapter is the registry topic for ingestion adapters.
const TopicIngestorAdapter = "ingestor-adapter"

// AdapterRegistry maps topic → name → builder. Registration happens during
// init; Freeze makes it read-only.
type AdapterRegistry struct {
	mu       sync.RWMutex
	builders map[string]map[string]driven.AdapterBuilder
	frozen   bool
}

// NewAdapterRegistry creates an empty registry.
func NewAdapterRegistry() *AdapterRegistry {
	return &AdapterRegistry{builders: make(map[string]map[string]driven.AdapterBuilder)}
}

// Register adds a builder. It fails after Freeze or when the name is taken.
func (r *AdapterRegistry) Register(topic, name string, b driven.AdapterBuilder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return fmt.Errorf("registry is frozen: cannot register %s/%s", topic, name)
	}
	if b == nil {
		return fmt.Errorf("%w: nil builder for %s/%s", domain.ErrInvalidInput, topic, name)
	}
	names, ok := r.builders[topic]
	if !ok {
		names = make(map[string]driven.AdapterBuilder)
		r.builders[topic] = names
	}
	if _, exists := names[name]; exists {
		return fmt.Errorf("%w: %s/%s", domain.ErrAlreadyExists, topic, name)
	}
	names[name] = b
	return nil
}

// Freeze makes the registry read-only.
func (r *AdapterRegistry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Lookup returns the builder for name under topic.
func (r *AdapterRegistry) Lookup(topic, name string) (driven.AdapterBuilder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.builders[topic][name]
	if !ok {
		return nil, fmt.Errorf("%w: %s %q", domain.ErrUnsupportedType, topic, name)
	}
	return b, nil
}

// Names returns the sorted names registered under topic.
func (r *AdapterRegistry) Names(topic string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.builders[topic]))
	for n := range r.builders[topic] {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
