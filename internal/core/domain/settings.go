package domain

import "time"

// SearchSettings holds search engine configuration.
type SearchSettings struct {
	// Strict fails a search when any index errors. Otherwise partial results are returned.
	Strict bool

	// PagerankBoost enables the authority rank_feature clause when a pivot is stored.
	PagerankBoost bool

	// KNNK is the number of nearest chunks retrieved in semantic and hybrid modes.
	KNNK int

	// KNNNumCandidates is the candidate pool considered for kNN.
	KNNNumCandidates int

	// KNNSimilarity is the minimum inner-product similarity for kNN hits.
	KNNSimilarity float64

	// RRFRankConstant is the k in 1/(k + rank).
	RRFRankConstant int

	// ConfigVersion is recorded on search traces.
	ConfigVersion string
}

// EmbeddingSettings holds embedding service configuration.
type EmbeddingSettings struct {
	// Provider names the embedding backend: cohere, openai or ollama.
	Provider string

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey authenticates with the service. May be given as env:NAME.
	APIKey string

	// Dimensions is the embedding vector size.
	Dimensions int

	// ExcludeDoctypes lists doctypes that are never embedded.
	ExcludeDoctypes []string
}

// Embedding providers.
const (
	EmbeddingProviderCohere = "cohere"
	EmbeddingProviderOpenAI = "openai"
	EmbeddingProviderOllama = "ollama"
)

// IsConfigured returns true if the embedding service is set up.
// Ollama runs locally and needs no API key.
func (e EmbeddingSettings) IsConfigured() bool {
	switch e.Provider {
	case EmbeddingProviderOllama:
		return true
	case EmbeddingProviderCohere, EmbeddingProviderOpenAI:
		return e.APIKey != ""
	default:
		return false
	}
}

// RankingSettings holds authority ranking configuration.
type RankingSettings struct {
	PagerankWeight float64
	CitationWeight float64
	Damping        float64
}

// StorageSettings holds blob backend configuration.
type StorageSettings struct {
	// FileRoot is the directory behind the file: prefix.
	FileRoot string

	// S3 settings are used for the s3: prefix when Endpoint is set.
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool
	S3Bucket    string

	// ReadOnlyBuckets discard writes silently.
	ReadOnlyBuckets []string
}

// QueueSettings selects the task queue backend.
type QueueSettings struct {
	// Backend is "redis" or "memory".
	Backend string

	RedisAddr string

	// Workers is the size of the worker pool.
	Workers int
}

// ConverterSettings configures the office-to-PDF converter.
type ConverterSettings struct {
	Command     string
	Timeout     time.Duration
	MemoryLimit int64
}

// AppSettings holds all application settings.
type AppSettings struct {
	Search    SearchSettings
	Embedding EmbeddingSettings
	Ranking   RankingSettings
	Storage   StorageSettings
	Queue     QueueSettings
	Converter ConverterSettings
	Scheduler SchedulerConfig

	// HTTPAddr is the listen address of the API server.
	HTTPAddr string

	// IndexDir holds the search indexes. Empty means an index directory under the data directory.
	IndexDir string
}

// DefaultAppSettings returns settings with sensible defaults.
// The embedding service is left unconfigured; semantic modes degrade to text.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Search: SearchSettings{
			Strict:           true,
			PagerankBoost:    true,
			KNNK:             150,
			KNNNumCandidates: 1500,
			KNNSimilarity:    0.4,
			RRFRankConstant:  60,
			ConfigVersion:    "1",
		},
		Embedding: EmbeddingSettings{
			Provider:   EmbeddingProviderCohere,
			Model:      "embed-multilingual-v3.0",
			BaseURL:    "https://api.cohere.com",
			Dimensions: EmbeddingDimensions,
		},
		Ranking: RankingSettings{
			PagerankWeight: 0.7,
			CitationWeight: 0.3,
			Damping:        0.85,
		},
		Storage: StorageSettings{
			S3UseSSL: true,
		},
		Queue: QueueSettings{
			Backend:   "memory",
			RedisAddr: "localhost:6379",
			Workers:   2,
		},
		Converter: ConverterSettings{
			Command:     "soffice",
			Timeout:     10 * time.Minute,
			MemoryLimit: 2 << 30,
		},
		Scheduler: DefaultSchedulerConfig(),
		HTTPAddr:  ":8080",
	}
}
