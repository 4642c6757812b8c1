package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driving"
)

// SettingsLoader opens the settings service without building the rest of
// the application, so broken settings can still be repaired.
type SettingsLoader func(opts Options) (driving.SettingsService, error)

var settingsLoader SettingsLoader

// SetSettingsLoader installs the loader used by the settings commands.
func SetSettingsLoader(fn SettingsLoader) {
	settingsLoader = fn
}

var settingsCmd = &cobra.Command{
	Use:         "settings",
	Short:       "Manage application settings",
	Long:        `View and change settings stored in config.toml. Any setting can be overridden with a PEACHJAM_ environment variable.`,
	Annotations: map[string]string{skipBootstrap: "true"},
	RunE:        runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:         "show",
	Short:       "Show current settings",
	Annotations: map[string]string{skipBootstrap: "true"},
	RunE:        runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Change a setting",
	Long: `Stores one setting by its dotted key, e.g.

  peachjam settings set search.knn_k 100
  peachjam settings set embedding.api_key env:COHERE_API_KEY

Keys ending in api_key, secret_key or token are prompted for without echo when
no value is given.`,
	Annotations: map[string]string{skipBootstrap: "true"},
	Args:        cobra.RangeArgs(1, 2),
	RunE:        runSettingsSet,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:         "embedding",
	Short:       "Configure the embedding provider",
	Annotations: map[string]string{skipBootstrap: "true"},
	RunE:        runSettingsEmbedding,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	rootCmd.AddCommand(settingsCmd)
}

func loadSettingsService() (driving.SettingsService, error) {
	if settingsService != nil {
		return settingsService, nil
	}
	if settingsLoader == nil {
		return nil, errors.New("settings service not configured")
	}
	svc, err := settingsLoader(Options{ConfigDir: configDir, DataDir: dataDir})
	if err != nil {
		return nil, err
	}
	settingsService = svc
	return svc, nil
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	svc, err := loadSettingsService()
	if err != nil {
		return err
	}
	settings, err := svc.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("[search]")
	cmd.Printf("  strict = %t\n", settings.Search.Strict)
	cmd.Printf("  pagerank_boost = %t\n", settings.Search.PagerankBoost)
	cmd.Printf("  knn_k = %d\n", settings.Search.KNNK)
	cmd.Printf("  knn_num_candidates = %d\n", settings.Search.KNNNumCandidates)
	cmd.Printf("  knn_similarity = %g\n", settings.Search.KNNSimilarity)
	cmd.Printf("  rrf_rank_constant = %d\n", settings.Search.RRFRankConstant)
	cmd.Println()

	cmd.Println("[embedding]")
	cmd.Printf("  provider = %s\n", settings.Embedding.Provider)
	cmd.Printf("  model = %s\n", settings.Embedding.Model)
	cmd.Printf("  base_url = %s\n", settings.Embedding.BaseURL)
	cmd.Printf("  api_key = %s\n", maskAPIKey(settings.Embedding.APIKey))
	cmd.Printf("  dimensions = %d\n", settings.Embedding.Dimensions)
	status := "configured"
	if !settings.Embedding.IsConfigured() {
		status = "not configured, semantic search falls back to text"
	}
	cmd.Printf("  # %s\n", status)
	cmd.Println()

	cmd.Println("[ranking]")
	cmd.Printf("  pagerank_weight = %g\n", settings.Ranking.PagerankWeight)
	cmd.Printf("  citation_weight = %g\n", settings.Ranking.CitationWeight)
	cmd.Printf("  damping = %g\n", settings.Ranking.Damping)
	cmd.Println()

	cmd.Println("[storage]")
	cmd.Printf("  file_root = %s\n", settings.Storage.FileRoot)
	if settings.Storage.S3Endpoint != "" {
		cmd.Printf("  s3_endpoint = %s\n", settings.Storage.S3Endpoint)
		cmd.Printf("  s3_bucket = %s\n", settings.Storage.S3Bucket)
		cmd.Printf("  s3_secret_key = %s\n", maskAPIKey(settings.Storage.S3SecretKey))
	}
	cmd.Println()

	cmd.Println("[queue]")
	cmd.Printf("  backend = %s\n", settings.Queue.Backend)
	if settings.Queue.Backend == "redis" {
		cmd.Printf("  redis_addr = %s\n", settings.Queue.RedisAddr)
	}
	cmd.Printf("  workers = %d\n", settings.Queue.Workers)
	cmd.Println()

	cmd.Println("[scheduler]")
	cmd.Printf("  enabled = %t\n", settings.Scheduler.Enabled)
	cmd.Printf("  ranking_cron = %s\n", settings.Scheduler.RankingCron)
	cmd.Println()

	if err := svc.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
	} else {
		cmd.Println("Configuration is valid.")
	}
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	svc, err := loadSettingsService()
	if err != nil {
		return err
	}
	key := args[0]

	var raw string
	switch {
	case len(args) == 2:
		raw = args[1]
	case isSecretKey(key):
		cmd.Printf("Enter %s: ", key)
		raw = readPassword(cmd.InOrStdin())
		cmd.Println()
	default:
		return fmt.Errorf("%w: a value is required for %s", domain.ErrInvalidInput, key)
	}

	if err := svc.Set(key, parseValue(raw)); err != nil {
		return err
	}
	cmd.Printf("Set %s\n", key)
	if err := svc.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
	}
	return nil
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	svc, err := loadSettingsService()
	if err != nil {
		return err
	}
	in := cmd.InOrStdin()
	reader := bufio.NewReader(in)
	defaults := svc.GetDefaults().Embedding

	providers := []string{domain.EmbeddingProviderCohere, domain.EmbeddingProviderOpenAI, domain.EmbeddingProviderOllama}
	cmd.Println("Select Embedding Provider")
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p)
	}
	cmd.Print("\nEnter choice [1]: ")
	provider := providers[parseChoice(readLine(reader), len(providers), 1)-1]

	defaultModel := defaults.Model
	if provider != defaults.Provider {
		defaultModel = ""
	}
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}
	if model == "" {
		return errors.New("a model name is required")
	}

	values := map[string]any{
		"embedding.provider": provider,
		"embedding.model":    model,
	}
	if provider != domain.EmbeddingProviderOllama {
		cmd.Print("Enter API key (or env:NAME): ")
		key := readLine(reader)
		cmd.Println()
		if key == "" {
			return errors.New("API key is required for this provider")
		}
		values["embedding.api_key"] = key
	}
	for _, k := range []string{"embedding.provider", "embedding.model", "embedding.api_key"} {
		if v, ok := values[k]; ok {
			if err := svc.Set(k, v); err != nil {
				return fmt.Errorf("failed to configure embedding provider: %w", err)
			}
		}
	}
	if err := svc.Validate(); err != nil {
		return fmt.Errorf("embedding configuration invalid: %w", err)
	}
	cmd.Printf("Embedding provider configured: %s (%s)\n", provider, model)
	return nil
}

// Helper functions.

func isSecretKey(key string) bool {
	for _, suffix := range []string{"api_key", "secret_key", "token"} {
		if strings.HasSuffix(key, suffix) {
			return true
		}
	}
	return false
}

// parseValue keeps booleans and numbers typed in config.toml.
func parseValue(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads without echo from a terminal, or a plain line otherwise.
//
//nolint:errcheck // CLI helper, error ignored for UX
func readPassword(in io.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return string(password)
		}
	}
	return readLine(bufio.NewReader(in))
}

func maskAPIKey(key string) string {
	switch {
	case key == "":
		return "(not set)"
	case strings.HasPrefix(key, "env:"):
		return key
	case len(key) <= 8:
		return "****"
	default:
		return key[:4] + "..." + key[len(key)-4:]
	}
}
