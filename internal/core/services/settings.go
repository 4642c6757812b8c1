package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/gorhill/cronexpr"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
	"github.com/laws-africa/peachjam/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keySearchStrict        = "search.strict"
	keySearchPagerankBoost = "search.pagerank_boost"
	keySearchKNNK          = "search.knn_k"
	keySearchKNNCandidates = "search.knn_num_candidates"
	keySearchKNNSimilarity = "search.knn_similarity"
	keySearchRRFConstant   = "search.rrf_rank_constant"
	keySearchConfigVersion = "search.config_version"

	keyEmbedProvider        = "embedding.provider"
	keyEmbedModel           = "embedding.model"
	keyEmbedBaseURL         = "embedding.base_url"
	keyEmbedAPIKey          = "embedding.api_key"
	keyEmbedDimensions      = "embedding.dimensions"
	keyEmbedExcludeDoctypes = "embedding.exclude_doctypes"

	keyRankPagerankWeight = "ranking.pagerank_weight"
	keyRankCitationWeight = "ranking.citation_weight"
	keyRankDamping        = "ranking.damping"

	keyStorageFileRoot        = "storage.file_root"
	keyStorageS3Endpoint      = "storage.s3_endpoint"
	keyStorageS3AccessKey     = "storage.s3_access_key"
	keyStorageS3SecretKey     = "storage.s3_secret_key"
	keyStorageS3UseSSL        = "storage.s3_use_ssl"
	keyStorageS3Bucket        = "storage.s3_bucket"
	keyStorageReadOnlyBuckets = "storage.read_only_buckets"

	keyQueueBackend   = "queue.backend"
	keyQueueRedisAddr = "queue.redis_addr"
	keyQueueWorkers   = "queue.workers"

	keyConverterCommand     = "converter.command"
	keyConverterTimeout     = "converter.timeout"
	keyConverterMemoryLimit = "converter.memory_limit"

	keySchedulerEnabled         = "scheduler.enabled"
	keySchedulerRankingCron     = "scheduler.ranking_cron"
	keySchedulerTimelineRefresh = "scheduler.timeline_refresh"
	keySchedulerTimelineAlerts  = "scheduler.timeline_alerts"

	keyHTTPAddr = "http.addr"
	keyIndexDir = "index.dir"
)

// SettingsService maps flat config keys onto typed application settings.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// LoadSettings reads and validates settings from a config store.
func LoadSettings(configStore driven.ConfigStore) (domain.AppSettings, error) {
	s := NewSettingsService(configStore)
	settings, err := s.Get()
	if err != nil {
		return domain.AppSettings{}, err
	}
	if err := validateSettings(settings); err != nil {
		return domain.AppSettings{}, err
	}
	return *settings, nil
}

// Get retrieves current application settings, falling back to defaults.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Search: domain.SearchSettings{
			Strict:           s.getBool(keySearchStrict, d.Search.Strict),
			PagerankBoost:    s.getBool(keySearchPagerankBoost, d.Search.PagerankBoost),
			KNNK:             s.getInt(keySearchKNNK, d.Search.KNNK),
			KNNNumCandidates: s.getInt(keySearchKNNCandidates, d.Search.KNNNumCandidates),
			KNNSimilarity:    s.getFloat(keySearchKNNSimilarity, d.Search.KNNSimilarity),
			RRFRankConstant:  s.getInt(keySearchRRFConstant, d.Search.RRFRankConstant),
			ConfigVersion:    s.getString(keySearchConfigVersion, d.Search.ConfigVersion),
		},
		Embedding: domain.EmbeddingSettings{
			Provider:        s.getString(keyEmbedProvider, d.Embedding.Provider),
			Model:           s.getString(keyEmbedModel, d.Embedding.Model),
			BaseURL:         s.getString(keyEmbedBaseURL, d.Embedding.BaseURL),
			APIKey:          s.configStore.GetString(keyEmbedAPIKey),
			Dimensions:      s.getInt(keyEmbedDimensions, d.Embedding.Dimensions),
			ExcludeDoctypes: s.configStore.GetStringSlice(keyEmbedExcludeDoctypes),
		},
		Ranking: domain.RankingSettings{
			PagerankWeight: s.getFloat(keyRankPagerankWeight, d.Ranking.PagerankWeight),
			CitationWeight: s.getFloat(keyRankCitationWeight, d.Ranking.CitationWeight),
			Damping:        s.getFloat(keyRankDamping, d.Ranking.Damping),
		},
		Storage: domain.StorageSettings{
			FileRoot:        s.getString(keyStorageFileRoot, d.Storage.FileRoot),
			S3Endpoint:      s.configStore.GetString(keyStorageS3Endpoint),
			S3AccessKey:     s.configStore.GetString(keyStorageS3AccessKey),
			S3SecretKey:     s.configStore.GetString(keyStorageS3SecretKey),
			S3UseSSL:        s.getBool(keyStorageS3UseSSL, d.Storage.S3UseSSL),
			S3Bucket:        s.configStore.GetString(keyStorageS3Bucket),
			ReadOnlyBuckets: s.configStore.GetStringSlice(keyStorageReadOnlyBuckets),
		},
		Queue: domain.QueueSettings{
			Backend:   s.getString(keyQueueBackend, d.Queue.Backend),
			RedisAddr: s.getString(keyQueueRedisAddr, d.Queue.RedisAddr),
			Workers:   s.getInt(keyQueueWorkers, d.Queue.Workers),
		},
		Converter: domain.ConverterSettings{
			Command:     s.getString(keyConverterCommand, d.Converter.Command),
			Timeout:     s.getDuration(keyConverterTimeout, d.Converter.Timeout),
			MemoryLimit: int64(s.getInt(keyConverterMemoryLimit, int(d.Converter.MemoryLimit))),
		},
		Scheduler: domain.SchedulerConfig{
			Enabled:         s.getBool(keySchedulerEnabled, d.Scheduler.Enabled),
			RankingCron:     s.getString(keySchedulerRankingCron, d.Scheduler.RankingCron),
			TimelineRefresh: domain.Repeat(s.getString(keySchedulerTimelineRefresh, string(d.Scheduler.TimelineRefresh))),
			TimelineAlerts:  domain.Repeat(s.getString(keySchedulerTimelineAlerts, string(d.Scheduler.TimelineAlerts))),
		},
		HTTPAddr: s.getString(keyHTTPAddr, d.HTTPAddr),
		IndexDir: s.configStore.GetString(keyIndexDir),
	}

	return settings, nil
}

// Set stores a single setting by dot key.
func (s *SettingsService) Set(key string, value any) error {
	if !strings.Contains(key, ".") {
		return fmt.Errorf("%w: setting key %q must be section.name", domain.ErrInvalidInput, key)
	}
	if err := s.configStore.Set(key, value); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Validate checks if current settings are usable.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return validateSettings(settings)
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func validateSettings(settings *domain.AppSettings) error {
	r := settings.Ranking
	if r.PagerankWeight < 0 || r.CitationWeight < 0 {
		return fmt.Errorf("%w: ranking weights must not be negative", domain.ErrInvalidInput)
	}
	if r.PagerankWeight+r.CitationWeight == 0 {
		return fmt.Errorf("%w: ranking weights must not both be zero", domain.ErrInvalidInput)
	}
	if r.Damping <= 0 || r.Damping >= 1 {
		return fmt.Errorf("%w: ranking damping must be in (0, 1)", domain.ErrInvalidInput)
	}

	sr := settings.Search
	if sr.KNNK <= 0 || sr.KNNNumCandidates < sr.KNNK {
		return fmt.Errorf("%w: search.knn_num_candidates must be >= search.knn_k > 0", domain.ErrInvalidInput)
	}
	if sr.KNNSimilarity < -1 || sr.KNNSimilarity > 1 {
		return fmt.Errorf("%w: search.knn_similarity must be in [-1, 1]", domain.ErrInvalidInput)
	}
	if sr.RRFRankConstant < 1 {
		return fmt.Errorf("%w: search.rrf_rank_constant must be >= 1", domain.ErrInvalidInput)
	}

	switch settings.Queue.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("%w: unknown queue backend %q", domain.ErrUnsupportedType, settings.Queue.Backend)
	}
	if settings.Queue.Workers < 1 {
		return fmt.Errorf("%w: queue.workers must be >= 1", domain.ErrInvalidInput)
	}

	switch settings.Embedding.Provider {
	case "", domain.EmbeddingProviderCohere, domain.EmbeddingProviderOpenAI, domain.EmbeddingProviderOllama:
	default:
		return fmt.Errorf("%w: unknown embedding provider %q", domain.ErrUnsupportedType, settings.Embedding.Provider)
	}

	sc := settings.Scheduler
	if sc.RankingCron != "" {
		if _, err := cronexpr.Parse(sc.RankingCron); err != nil {
			return fmt.Errorf("%w: scheduler.ranking_cron: %v", domain.ErrInvalidInput, err)
		}
	}
	for _, r := range []domain.Repeat{sc.TimelineRefresh, sc.TimelineAlerts} {
		if r != domain.RepeatNone && r.Interval() == 0 {
			return fmt.Errorf("%w: unknown repeat %q", domain.ErrInvalidInput, r)
		}
	}
	return nil
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

// getDuration reads a duration string like "10m".
func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	str := s.configStore.GetString(key)
	if str == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}
