package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newStore returns a store in a temp dir that sees only env.
func newStore(t *testing.T, env map[string]string) *ConfigStore {
	t.Helper()
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	store.lookupEnv = func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}
	return store
}

func TestNewConfigStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "peachjam")

	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.toml"), store.Path())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())

	_, ok := store.Get("search.strict")
	assert.False(t, ok, "a missing file starts empty")
}

func TestNewConfigStore_DefaultDir(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot determine home directory")
	}

	store, err := NewConfigStore("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".peachjam", "config.toml"), store.Path())
}

func TestNewConfigStore_Errors(t *testing.T) {
	_, err := NewConfigStore("/dev/null/cannot/create/dirs")
	assert.Error(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("this is not valid TOML {{{[["), 0600))
	_, err = NewConfigStore(dir)
	assert.Error(t, err)
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"search.knn_k", "PEACHJAM_SEARCH_KNN_K"},
		{"queue.redis-addr", "PEACHJAM_QUEUE_REDIS_ADDR"},
		{"ranking.pagerank_weight", "PEACHJAM_RANKING_PAGERANK_WEIGHT"},
		{"strict", "PEACHJAM_STRICT"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EnvKey(tt.key), tt.key)
	}
}

func TestConfigStore_EnvOverrides(t *testing.T) {
	env := map[string]string{
		"PEACHJAM_SEARCH_STRICT":           "false",
		"PEACHJAM_QUEUE_WORKERS":           "8",
		"PEACHJAM_RANKING_PAGERANK_WEIGHT": "0.6",
		"PEACHJAM_INGEST_PLACES":           "za bw cc-*",
		"PEACHJAM_EMBEDDING_MODEL":         "embed-english-v3.0",
		"PEACHJAM_SEARCH_KNN_K":            "many",
	}
	store := newStore(t, env)
	require.NoError(t, store.Set("search.strict", true))
	require.NoError(t, store.Set("queue.workers", 2))
	require.NoError(t, store.Set("ranking.pagerank_weight", 0.7))
	require.NoError(t, store.Set("ingest.places", []string{"ke"}))
	require.NoError(t, store.Set("embedding.model", "embed-multilingual-v3.0"))
	require.NoError(t, store.Set("search.knn_k", 150))
	require.NoError(t, store.Set("search.knn_similarity", 0.4))

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"bool", store.GetBool("search.strict"), false},
		{"int", store.GetInt("queue.workers"), 8},
		{"float", store.GetFloat("ranking.pagerank_weight"), 0.6},
		{"slice", store.GetStringSlice("ingest.places"), []string{"za", "bw", "cc-*"}},
		{"string", store.GetString("embedding.model"), "embed-english-v3.0"},
		{"unparseable int", store.GetInt("search.knn_k"), 0},
		{"file value without override", store.GetFloat("search.knn_similarity"), 0.4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}

	// overrides are never written back
	reloaded, err := NewConfigStore(filepath.Dir(store.Path()))
	require.NoError(t, err)
	reloaded.lookupEnv = func(string) (string, bool) { return "", false }
	assert.True(t, reloaded.GetBool("search.strict"))
	assert.Equal(t, 2, reloaded.GetInt("queue.workers"))
}

func TestConfigStore_SecretReferences(t *testing.T) {
	env := map[string]string{
		"COHERE_API_KEY":                    "co-secret",
		"INDIGO_TOKEN":                      "indigo-secret",
		"EMPTY_SECRET":                      "",
		"PEACHJAM_EMBEDDING_OPENAI_API_KEY": "env:COHERE_API_KEY",
	}
	store := newStore(t, env)

	tests := []struct {
		name  string
		key   string
		value string
		want  string
	}{
		{"resolved", "embedding.api_key", "env:COHERE_API_KEY", "co-secret"},
		{"ingestor token", "ingestors.laws-africa.token", "env:INDIGO_TOKEN", "indigo-secret"},
		{"unset variable", "embedding.ollama_key", "env:MISSING_KEY", ""},
		{"empty variable", "blob.s3_secret", "env:EMPTY_SECRET", ""},
		{"plain value", "embedding.model", "embed-multilingual-v3.0", "embed-multilingual-v3.0"},
		{"prefix is case sensitive", "embedding.provider", "ENV:COHERE_API_KEY", "ENV:COHERE_API_KEY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, store.Set(tt.key, tt.value))
			assert.Equal(t, tt.want, store.GetString(tt.key))
		})
	}

	t.Run("override naming a secret", func(t *testing.T) {
		require.NoError(t, store.Set("embedding.openai_api_key", "sk-file"))
		assert.Equal(t, "co-secret", store.GetString("embedding.openai_api_key"))
	})

	t.Run("reference is stored, not the secret", func(t *testing.T) {
		raw, err := os.ReadFile(store.Path())
		require.NoError(t, err)
		assert.Contains(t, string(raw), "env:COHERE_API_KEY")
		assert.NotContains(t, string(raw), "co-secret")
	})
}

func TestConfigStore_NestedTables(t *testing.T) {
	dir := t.TempDir()
	content := []byte("[search]\nstrict = false\nknn_similarity = 0.5\n\n[embedding]\nmodel = \"m\"\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), content, 0600))

	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	assert.False(t, store.GetBool("search.strict"))
	assert.InDelta(t, 0.5, store.GetFloat("search.knn_similarity"), 1e-9)
	assert.Equal(t, "m", store.GetString("embedding.model"))

	// saving keeps the nested layout readable on reload
	require.NoError(t, store.Set("search.strict", true))
	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[search]")

	store2, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.True(t, store2.GetBool("search.strict"))
	assert.Equal(t, "m", store2.GetString("embedding.model"))
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store := newStore(t, nil)
	require.NoError(t, store.Set("queue.workers", 4))
	require.NoError(t, store.Set("ranking.damping", 0.85))
	require.NoError(t, store.Set("search.strict", true))
	require.NoError(t, store.Set("ingest.places", []any{"za", 7, "ke"}))

	reloaded, err := NewConfigStore(filepath.Dir(store.Path()))
	require.NoError(t, err)
	reloaded.lookupEnv = store.lookupEnv

	assert.Equal(t, 4, reloaded.GetInt("queue.workers"), "TOML integers load as int64")
	assert.InDelta(t, 4.0, reloaded.GetFloat("queue.workers"), 1e-9)
	assert.InDelta(t, 0.85, reloaded.GetFloat("ranking.damping"), 1e-9)
	assert.True(t, reloaded.GetBool("search.strict"))
	assert.Equal(t, []string{"za", "ke"}, reloaded.GetStringSlice("ingest.places"))

	// mismatched types read as zero values
	assert.Equal(t, "", reloaded.GetString("queue.workers"))
	assert.Equal(t, 0, reloaded.GetInt("search.strict"))
	assert.False(t, reloaded.GetBool("queue.workers"))
	assert.Nil(t, reloaded.GetStringSlice("queue.workers"))
	assert.Zero(t, reloaded.GetFloat("missing"))
}

func TestConfigStore_SaveErrors(t *testing.T) {
	assert.Error(t, newStore(t, nil).Set("queue.channel", make(chan int)))

	store := newStore(t, nil)
	require.NoError(t, store.Set("queue.workers", 1))
	require.NoError(t, os.Remove(store.Path()))
	require.NoError(t, os.Mkdir(store.Path(), 0700))
	assert.Error(t, store.Set("queue.workers", 2))
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store := newStore(t, nil)
	require.NoError(t, store.Set("embedding.api_key", "env:COHERE_API_KEY"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfigStore_Concurrency(t *testing.T) {
	store := newStore(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := "queue.worker_" + string(rune('0'+id))
			_ = store.Set(key, id)
			_ = store.GetInt(key)
			_ = store.GetString(key)
		}(i)
	}
	wg.Wait()
}
