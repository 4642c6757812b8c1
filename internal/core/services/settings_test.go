package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laws-africa/peachjam/internal/adapters/driven/config/memory"
	"github.com/laws-africa/peachjam/internal/core/domain"
)

func TestSettingsService_Get_ReturnsDefaults(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore())

	settings, err := service.Get()

	require.NoError(t, err)
	assert.Equal(t, domain.DefaultAppSettings(), *settings)
}

func TestSettingsService_Get_ReturnsStoredValues(t *testing.T) {
	store := memory.NewConfigStoreFrom(map[string]any{
		"search.strict":              false,
		"search.knn_similarity":      0.5,
		"embedding.api_key":          "key",
		"embedding.exclude_doctypes": "gazette causelist",
		"ranking.pagerank_weight":    0.6,
		"ranking.citation_weight":    0.4,
		"queue.backend":              "redis",
		"queue.workers":              6,
		"converter.timeout":          "5m",
		"storage.read_only_buckets":  []string{"archive"},
		"scheduler.ranking_cron":     "0 4 * * 1",
		"index.dir":                  "/var/lib/peachjam/index",
	})
	service := NewSettingsService(store)

	settings, err := service.Get()

	require.NoError(t, err)
	assert.False(t, settings.Search.Strict)
	assert.InDelta(t, 0.5, settings.Search.KNNSimilarity, 1e-9)
	assert.Equal(t, 150, settings.Search.KNNK)
	assert.True(t, settings.Embedding.IsConfigured())
	assert.Equal(t, []string{"gazette", "causelist"}, settings.Embedding.ExcludeDoctypes)
	assert.InDelta(t, 0.6, settings.Ranking.PagerankWeight, 1e-9)
	assert.Equal(t, "redis", settings.Queue.Backend)
	assert.Equal(t, 6, settings.Queue.Workers)
	assert.Equal(t, 5*time.Minute, settings.Converter.Timeout)
	assert.Equal(t, []string{"archive"}, settings.Storage.ReadOnlyBuckets)
	assert.Equal(t, "0 4 * * 1", settings.Scheduler.RankingCron)
	assert.Equal(t, "/var/lib/peachjam/index", settings.IndexDir)
}

func TestSettingsService_Get_BadDurationFallsBack(t *testing.T) {
	store := memory.NewConfigStoreFrom(map[string]any{"converter.timeout": "soon"})

	settings, err := NewSettingsService(store).Get()

	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, settings.Converter.Timeout)
}

func TestSettingsService_Set(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store)

	require.NoError(t, service.Set("search.strict", false))
	settings, err := service.Get()
	require.NoError(t, err)
	assert.False(t, settings.Search.Strict)

	err = service.Set("strict", false)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLoadSettings_Validation(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]any
		want   error
	}{
		{"defaults", nil, nil},
		{"negative weight", map[string]any{"ranking.pagerank_weight": -0.1}, domain.ErrInvalidInput},
		{"zero weights", map[string]any{"ranking.pagerank_weight": 0.0, "ranking.citation_weight": 0.0}, domain.ErrInvalidInput},
		{"damping", map[string]any{"ranking.damping": 1.0}, domain.ErrInvalidInput},
		{"candidates below k", map[string]any{"search.knn_num_candidates": 10}, domain.ErrInvalidInput},
		{"similarity", map[string]any{"search.knn_similarity": 1.5}, domain.ErrInvalidInput},
		{"queue backend", map[string]any{"queue.backend": "sqs"}, domain.ErrUnsupportedType},
		{"embedding provider", map[string]any{"embedding.provider": "bedrock"}, domain.ErrUnsupportedType},
		{"openai provider", map[string]any{"embedding.provider": "openai"}, nil},
		{"cron", map[string]any{"scheduler.ranking_cron": "every sunday"}, domain.ErrInvalidInput},
		{"repeat", map[string]any{"scheduler.timeline_alerts": "fortnightly"}, domain.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSettings(memory.NewConfigStoreFrom(tt.values))
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSettingsService_GetDefaults(t *testing.T) {
	d := NewSettingsService(memory.NewConfigStore()).GetDefaults()
	assert.Equal(t, 0.7, d.Ranking.PagerankWeight)
	assert.Equal(t, 0.3, d.Ranking.CitationWeight)
	assert.Equal(t, "0 3 * * 0", d.Scheduler.RankingCron)
}
