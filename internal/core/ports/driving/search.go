package driving

import (
	"context"

	"github.com/laws-africa/peachjam/internal/core/domain"
)

// SearchService provides search capabilities to external actors.
type SearchService interface {
	// Search plans and executes a validated search request.
	Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResponse, error)

	// Suggest returns up to domain.MaxSuggestions completions for prefix.
	Suggest(ctx context.Context, prefix string) ([]string, error)
}

// TraceService exposes recorded search traces.
type TraceService interface {
	// GetTrace returns a trace by ID, or ErrNotFound.
	GetTrace(ctx context.Context, id string) (*domain.SearchTrace, error)

	// ListTraces returns the most recent traces.
	ListTraces(ctx context.Context, limit int) ([]domain.SearchTrace, error)
}
