package ai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laws-africa/peachjam/internal/core/domain"
)

func TestCreateEmbeddingService(t *testing.T) {
	tests := []struct {
		name      string
		settings  *domain.EmbeddingSettings
		wantNil   bool
		wantErr   error
		wantModel string
	}{
		{
			name:    "nil settings returns nil",
			wantNil: true,
		},
		{
			name:     "unconfigured settings returns nil",
			settings: &domain.EmbeddingSettings{},
			wantNil:  true,
		},
		{
			name:     "cohere without key returns nil",
			settings: &domain.EmbeddingSettings{Provider: domain.EmbeddingProviderCohere},
			wantNil:  true,
		},
		{
			name: "cohere provider creates service",
			settings: &domain.EmbeddingSettings{
				Provider: domain.EmbeddingProviderCohere,
				APIKey:   "test-key",
				Model:    "embed-multilingual-v3.0",
			},
			wantModel: "embed-multilingual-v3.0",
		},
		{
			name: "openai provider creates service",
			settings: &domain.EmbeddingSettings{
				Provider: domain.EmbeddingProviderOpenAI,
				APIKey:   "test-key",
				Model:    "text-embedding-3-large",
			},
			wantModel: "text-embedding-3-large",
		},
		{
			name:      "ollama needs no key",
			settings:  &domain.EmbeddingSettings{Provider: domain.EmbeddingProviderOllama, Model: "bge-m3"},
			wantModel: "bge-m3",
		},
		{
			name:     "unknown provider is rejected",
			settings: &domain.EmbeddingSettings{Provider: "unknown", APIKey: "k"},
			wantNil:  true,
			wantErr:  domain.ErrUnsupportedType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateEmbeddingService(tt.settings)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			if tt.wantNil {
				assert.Nil(t, svc)
				return
			}
			require.NotNil(t, svc)
			assert.Equal(t, tt.wantModel, svc.ModelName())
			assert.Equal(t, domain.EmbeddingDimensions, svc.Dimensions())
		})
	}
}

func TestCreateEmbeddingService_KeyFromEnv(t *testing.T) {
	t.Setenv("PEACHJAM_TEST_COHERE_KEY", "secret")
	svc, err := CreateEmbeddingService(&domain.EmbeddingSettings{
		Provider: domain.EmbeddingProviderCohere,
		APIKey:   "env:PEACHJAM_TEST_COHERE_KEY",
	})
	require.NoError(t, err)
	assert.NotNil(t, svc)

	svc, err = CreateEmbeddingService(&domain.EmbeddingSettings{
		Provider: domain.EmbeddingProviderCohere,
		APIKey:   "env:PEACHJAM_TEST_UNSET_KEY",
	})
	require.NoError(t, err)
	assert.Nil(t, svc)
}

func TestResolveSecret(t *testing.T) {
	t.Setenv("PEACHJAM_TEST_SECRET", "abc")
	assert.Equal(t, "abc", ResolveSecret("env:PEACHJAM_TEST_SECRET"))
	assert.Equal(t, "plain", ResolveSecret("plain"))
	assert.Equal(t, "", ResolveSecret(""))
}

func TestCreateAndValidateEmbeddingService(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer up.Close()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer down.Close()

	ctx := context.Background()
	svc, err := CreateAndValidateEmbeddingService(ctx, &domain.EmbeddingSettings{
		Provider: domain.EmbeddingProviderCohere, APIKey: "k", BaseURL: up.URL,
	})
	require.NoError(t, err)
	assert.NotNil(t, svc)

	svc, err = CreateAndValidateEmbeddingService(ctx, &domain.EmbeddingSettings{
		Provider: domain.EmbeddingProviderCohere, APIKey: "k", BaseURL: down.URL,
	})
	assert.Nil(t, svc)
	assert.True(t, errors.Is(err, domain.ErrEmbeddingUnavailable))

	svc, err = CreateAndValidateEmbeddingService(ctx, nil)
	assert.NoError(t, err)
	assert.Nil(t, svc)
}
