package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driving"
)

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Short key",
			input:    "abc123",
			expected: "****",
		},
		{
			name:     "Exactly 8 chars",
			input:    "12345678",
			expected: "****",
		},
		{
			name:     "Long key",
			input:    "sk-1234567890abcdef",
			expected: "sk-1...cdef",
		},
		{
			name:     "Very long key",
			input:    "sk-proj-1234567890abcdefghijklmnop",
			expected: "sk-p...mnop",
		},
		{
			name:     "Empty key",
			input:    "",
			expected: "(not set)",
		},
		{
			name:     "Environment reference",
			input:    "env:COHERE_API_KEY",
			expected: "env:COHERE_API_KEY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := maskAPIKey(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		maxVal     int
		defaultVal int
		expected   int
	}{
		{
			name:       "Empty input returns default",
			input:      "",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Valid choice within range",
			input:      "3",
			maxVal:     5,
			defaultVal: 1,
			expected:   3,
		},
		{
			name:       "Choice below minimum returns default",
			input:      "0",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Choice above maximum returns default",
			input:      "6",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Invalid input returns default",
			input:      "abc",
			maxVal:     5,
			defaultVal: 2,
			expected:   2,
		},
		{
			name:       "Negative number returns default",
			input:      "-1",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Whitespace returns default",
			input:      "   ",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Maximum value is valid",
			input:      "5",
			maxVal:     5,
			defaultVal: 1,
			expected:   5,
		},
		{
			name:       "Minimum value is valid",
			input:      "1",
			maxVal:     5,
			defaultVal: 3,
			expected:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseChoice(tt.input, tt.maxVal, tt.defaultVal)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, false, parseValue("false"))
	assert.Equal(t, int64(100), parseValue("100"))
	assert.Equal(t, int64(1), parseValue("1"))
	assert.Equal(t, 0.85, parseValue("0.85"))
	assert.Equal(t, "env:COHERE_API_KEY", parseValue("env:COHERE_API_KEY"))
	assert.Equal(t, "0 2 * * *", parseValue("0 2 * * *"))
}

func TestIsSecretKey(t *testing.T) {
	assert.True(t, isSecretKey("embedding.api_key"))
	assert.True(t, isSecretKey("storage.s3_secret_key"))
	assert.False(t, isSecretKey("search.knn_k"))
}

func TestSettingsShow_Defaults(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "", "settings")
	require.NoError(t, err)
	assert.Contains(t, out, "[search]")
	assert.Contains(t, out, "knn_k = 150")
	assert.Contains(t, out, "provider = cohere")
	assert.Contains(t, out, "api_key = (not set)")
	assert.Contains(t, out, "backend = memory")
	assert.Contains(t, out, "Configuration is valid.")
}

func TestSettingsSet(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "", "settings", "set", "search.knn_k", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "Set search.knn_k")
	assert.Equal(t, 100, testSvc.config.GetInt("search.knn_k"))

	out, err = execute(t, "", "settings", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "knn_k = 100")
}

func TestSettingsSet_WarnsWhenInvalid(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "", "settings", "set", "ranking.damping", "1.5")
	require.NoError(t, err)
	assert.Contains(t, out, "Warning:")
	assert.Contains(t, out, "damping")
}

func TestSettingsSet_PromptsForSecret(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "sk-live-abcdefgh1234\n", "settings", "set", "embedding.api_key")
	require.NoError(t, err)
	assert.Contains(t, out, "Enter embedding.api_key:")
	assert.Equal(t, "sk-live-abcdefgh1234", testSvc.config.GetString("embedding.api_key"))

	out, err = execute(t, "", "settings")
	require.NoError(t, err)
	assert.Contains(t, out, "api_key = sk-l...1234")
	assert.NotContains(t, out, "sk-live-abcdefgh1234")
}

func TestSettingsSet_Errors(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "", "settings", "set", "search.knn_k")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = execute(t, "", "settings", "set", "knn_k", "5")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSettingsEmbedding(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "2\ntext-embedding-3-small\nenv:OPENAI_API_KEY\n", "settings", "embedding")
	require.NoError(t, err)
	assert.Contains(t, out, "Embedding provider configured: openai (text-embedding-3-small)")
	assert.Equal(t, "openai", testSvc.config.GetString("embedding.provider"))
	assert.Equal(t, "env:OPENAI_API_KEY", testSvc.config.GetString("embedding.api_key"))
}

func TestSettingsEmbedding_OllamaNeedsNoKey(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "3\nnomic-embed-text\n", "settings", "embedding")
	require.NoError(t, err)
	assert.Contains(t, out, "ollama (nomic-embed-text)")
	assert.Empty(t, testSvc.config.GetString("embedding.api_key"))
}

func TestSettingsEmbedding_RequiresModel(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "3\n\n", "settings", "embedding")
	assert.ErrorContains(t, err, "model name is required")
}

func TestSettingsCommands_UseLoader(t *testing.T) {
	var gotDir string
	SetSettingsLoader(func(opts Options) (driving.SettingsService, error) {
		gotDir = opts.ConfigDir
		return nil, errors.New("config.toml: parse error")
	})
	defer SetSettingsLoader(nil)

	_, err := execute(t, "", "--config-dir", "/etc/peachjam", "settings")
	assert.ErrorContains(t, err, "parse error")
	assert.Equal(t, "/etc/peachjam", gotDir)
}
