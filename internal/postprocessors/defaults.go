package postprocessors

import (
	"fmt"

	"github.com/laws-africa/peachjam/internal/core/ports/driven"
	"github.com/laws-africa/peachjam/internal/postprocessors/chunker"
	"github.com/laws-africa/peachjam/internal/postprocessors/portions"
)

// DefaultChain is the processor order used for embedding.
var DefaultChain = []string{"portions", "chunker"}

// RegisterDefaults registers all built-in processors with the registry.
// Call this during application initialisation to enable standard processors.
func RegisterDefaults(r *Registry) {
	r.Register("portions", buildPortions)
	r.Register("chunker", buildChunker)
}

// DefaultPipeline builds the standard chain: initial portions, then sentence
// sub-chunking. cfg is keyed by processor name.
func DefaultPipeline(cfg map[string]map[string]any) (*Pipeline, error) {
	r := NewRegistry()
	RegisterDefaults(r)

	p := NewPipeline()
	for _, name := range DefaultChain {
		proc, err := r.Build(name, cfg[name])
		if err != nil {
			return nil, fmt.Errorf("building %s: %w", name, err)
		}
		p.Add(proc)
	}
	return p, nil
}

func buildPortions(_ map[string]any) (driven.PostProcessor, error) {
	return portions.New(), nil
}

// buildChunker creates a chunker processor from generic config.
// Supported config keys:
//   - max_words (int): target words per piece (default: 256)
//   - overlap (int): words repeated between pieces (default: 20% of max_words)
//   - max_chars (int): hard character cap per piece (default: 2048)
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []chunker.Option

	if cfg != nil {
		if n := getIntFromConfig(cfg, "max_words"); n > 0 {
			opts = append(opts, chunker.WithMaxWords(n))
		}
		if _, ok := cfg["overlap"]; ok {
			opts = append(opts, chunker.WithOverlap(getIntFromConfig(cfg, "overlap")))
		}
		if n := getIntFromConfig(cfg, "max_chars"); n > 0 {
			opts = append(opts, chunker.WithMaxChars(n))
		}
	}

	return chunker.New(opts...), nil
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) int {
	val, ok := cfg[key]
	if !ok {
		return 0
	}

	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
