// Package ai builds the embedding service selected by settings.
package ai

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/laws-africa/peachjam/internal/adapters/driven/embedding/cohere"
	"github.com/laws-africa/peachjam/internal/adapters/driven/embedding/ollama"
	"github.com/laws-africa/peachjam/internal/adapters/driven/embedding/openai"
	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// envPrefix marks a setting that names an environment variable.
const envPrefix = "env:"

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// Returns nil, nil when embeddings are not configured.
func CreateAndValidateEmbeddingService(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := svc.Ping(ctx); err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrEmbeddingUnavailable, err)
	}
	return svc, nil
}

// CreateEmbeddingService creates the embedding service named by settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil {
		return nil, nil
	}
	resolved := *settings
	resolved.APIKey = ResolveSecret(settings.APIKey)
	if !resolved.IsConfigured() {
		if resolved.Provider != "" && !knownProvider(resolved.Provider) {
			return nil, fmt.Errorf("%w: embedding provider %q", domain.ErrUnsupportedType, resolved.Provider)
		}
		return nil, nil
	}

	switch resolved.Provider {
	case domain.EmbeddingProviderCohere:
		return cohere.NewEmbeddingService(cohere.Config{
			APIKey:     resolved.APIKey,
			BaseURL:    resolved.BaseURL,
			Model:      resolved.Model,
			Dimensions: resolved.Dimensions,
		})
	case domain.EmbeddingProviderOpenAI:
		return openai.NewEmbeddingService(openai.Config{
			APIKey:     resolved.APIKey,
			BaseURL:    resolved.BaseURL,
			Model:      resolved.Model,
			Dimensions: resolved.Dimensions,
		})
	default:
		return ollama.NewEmbeddingService(ollama.Config{
			BaseURL:    resolved.BaseURL,
			Model:      resolved.Model,
			Dimensions: resolved.Dimensions,
		}), nil
	}
}

func knownProvider(p string) bool {
	switch p {
	case domain.EmbeddingProviderCohere, domain.EmbeddingProviderOpenAI, domain.EmbeddingProviderOllama:
		return true
	}
	return false
}

// ResolveSecret expands "env:NAME" to the value of the environment variable NAME.
// Other values are returned unchanged.
func ResolveSecret(v string) string {
	name, ok := strings.CutPrefix(v, envPrefix)
	if !ok {
		return v
	}
	return os.Getenv(name)
}
