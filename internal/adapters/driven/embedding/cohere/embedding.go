// Package cohere provides an embedding service adapter using the Cohere API.
package cohere

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/laws-africa/peachjam/internal/adapters/driven/embedding"
	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultBaseURL    = "https://api.cohere.com"
	DefaultModel      = "embed-multilingual-v3.0"
	DefaultTimeout    = 60 * time.Second
	DefaultDimensions = domain.EmbeddingDimensions
)

// Input types distinguish stored passages from search queries.
const (
	inputDocument = "search_document"
	inputQuery    = "search_query"
)

// Config holds configuration for the Cohere embedding service.
type Config struct {
	// APIKey is the Cohere API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.cohere.com).
	BaseURL string

	// Model is the embedding model to use (default: embed-multilingual-v3.0).
	Model string

	// Timeout is the request timeout (default: 60s).
	Timeout time.Duration

	// Dimensions is the embedding vector size.
	Dimensions int
}

// EmbeddingService generates embeddings using the Cohere embed endpoint.
type EmbeddingService struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	model      string
	dimensions int
}

type embedRequest struct {
	Model          string   `json:"model"`
	Texts          []string `json:"texts"`
	InputType      string   `json:"input_type"`
	EmbeddingTypes []string `json:"embedding_types"`
	Truncate       string   `json:"truncate"`
}

type embedResponse struct {
	Embeddings struct {
		Float [][]float64 `json:"float"`
	} `json:"embeddings"`
}

// NewEmbeddingService creates a new Cohere embedding service.
func NewEmbeddingService(cfg Config) (*EmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("cohere: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}
	return &EmbeddingService{
		client:     &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed generates a query embedding.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.embed(ctx, []string{embedding.Truncate(text, embedding.MaxChars)}, inputQuery)
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("cohere: %w: no embedding returned", domain.ErrEmbeddingFailure)
	}
	return vecs[0], nil
}

// EmbedBatch generates document embeddings, MaxBatch texts per request.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedding.EmbedInBatches(ctx, texts, embedding.MaxBatch, func(ctx context.Context, batch []string) ([][]float32, error) {
		return s.embed(ctx, batch, inputDocument)
	})
}

func (s *EmbeddingService) embed(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
	req := embedRequest{
		Model:          s.model,
		Texts:          texts,
		InputType:      inputType,
		EmbeddingTypes: []string{"float"},
		Truncate:       "END",
	}
	var resp embedResponse
	if err := embedding.PostJSON(ctx, s.client, s.baseURL+"/v2/embed", s.headers(), req, &resp); err != nil {
		return nil, fmt.Errorf("cohere: %w", err)
	}
	out := make([][]float32, len(resp.Embeddings.Float))
	for i, v := range resp.Embeddings.Float {
		out[i] = embedding.ToFloat32(v)
	}
	return out, nil
}

func (s *EmbeddingService) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + s.apiKey}
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping checks the API key against the models endpoint without running inference.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	if err := embedding.Get(ctx, s.client, s.baseURL+"/v1/models?page_size=1", s.headers()); err != nil {
		return fmt.Errorf("cohere: %w", err)
	}
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}
