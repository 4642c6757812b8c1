package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/laws-africa/peachjam/internal/core/domain"
)

var (
	ingestorSettings []string
	ingestorDisabled bool
	ingestorCheckAll bool
)

var ingestorCmd = &cobra.Command{
	Use:   "ingestor",
	Short: "Manage ingestors",
	Long: `An ingestor is a named instance of an adapter (indigo, gazettes, judgments,
ratifications or markdown) with its own settings.`,
}

var ingestorListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingestors",
	RunE:  runIngestorList,
}

var ingestorAddCmd = &cobra.Command{
	Use:   "add [name] [adapter]",
	Short: "Create or update an ingestor",
	Long: `Creates an ingestor, or replaces the adapter and settings of an existing one.

Example:
  peachjam ingestor add laws-africa-za indigo \
    --set api_url=https://api.laws.africa/v3/ --set token=env:INDIGO_TOKEN \
    --set places=za`,
	Args: cobra.ExactArgs(2),
	RunE: runIngestorAdd,
}

var ingestorCheckCmd = &cobra.Command{
	Use:   "check [name]",
	Short: "Check an ingestor for upstream changes",
	Long:  `Lists changed and deleted upstream documents and queues a task for each.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIngestorCheck,
}

var ingestorUpdateCmd = &cobra.Command{
	Use:   "update [name] [upstream-id]",
	Short: "Fetch one upstream document now",
	Args:  cobra.ExactArgs(2),
	RunE:  runIngestorUpdate,
}

var ingestorRemoveCmd = &cobra.Command{
	Use:   "remove [name] [upstream-id]",
	Short: "Delete one document through its ingestor",
	Args:  cobra.ExactArgs(2),
	RunE:  runIngestorRemove,
}

var ingestorWebhookCmd = &cobra.Command{
	Use:   "webhook [name] [payload-file]",
	Short: "Replay a webhook payload",
	Long:  `Passes a webhook payload to an ingestor. The payload is read from stdin when no file is given.`,
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runIngestorWebhook,
}

func init() {
	ingestorAddCmd.Flags().StringArrayVarP(&ingestorSettings, "set", "s", nil, "setting as key=value (repeatable)")
	ingestorAddCmd.Flags().BoolVar(&ingestorDisabled, "disabled", false, "create the ingestor disabled")
	ingestorCheckCmd.Flags().BoolVarP(&ingestorCheckAll, "all", "a", false, "check every enabled ingestor")

	ingestorCmd.AddCommand(ingestorListCmd)
	ingestorCmd.AddCommand(ingestorAddCmd)
	ingestorCmd.AddCommand(ingestorCheckCmd)
	ingestorCmd.AddCommand(ingestorUpdateCmd)
	ingestorCmd.AddCommand(ingestorRemoveCmd)
	ingestorCmd.AddCommand(ingestorWebhookCmd)
	rootCmd.AddCommand(ingestorCmd)
}

func findIngestor(ctx context.Context, name string) (*domain.Ingestor, error) {
	if ingestionService == nil {
		return nil, errors.New("ingestion service not configured")
	}
	all, err := ingestionService.ListIngestors(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].Name == name {
			return &all[i], nil
		}
	}
	return nil, fmt.Errorf("%w: ingestor %q", domain.ErrNotFound, name)
}

func runIngestorList(cmd *cobra.Command, _ []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}
	all, err := ingestionService.ListIngestors(cmd.Context())
	if err != nil {
		return err
	}
	if len(all) == 0 {
		cmd.Println("No ingestors configured.")
		return nil
	}
	for _, ing := range all {
		state := "enabled"
		if !ing.Enabled {
			state = "disabled"
		}
		refreshed := "never"
		if ing.LastRefreshedAt != nil {
			refreshed = ing.LastRefreshedAt.Format("2006-01-02 15:04:05")
		}
		cmd.Printf("%-24s %-14s %-9s last refreshed %s\n", ing.Name, ing.Adapter, state, refreshed)
	}
	return nil
}

func parseSettings(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: setting %q must be key=value", domain.ErrInvalidInput, p)
		}
		out[k] = v
	}
	return out, nil
}

func runIngestorAdd(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}
	settings, err := parseSettings(ingestorSettings)
	if err != nil {
		return err
	}

	ing := &domain.Ingestor{Name: args[0]}
	existing, err := findIngestor(cmd.Context(), args[0])
	switch {
	case err == nil:
		ing = existing
	case !errors.Is(err, domain.ErrNotFound):
		return err
	}
	ing.Adapter = args[1]
	ing.Settings = settings
	ing.Enabled = !ingestorDisabled

	if err := ingestionService.SaveIngestor(cmd.Context(), ing); err != nil {
		return err
	}
	if existing != nil {
		cmd.Printf("Updated ingestor %s\n", ing.Name)
	} else {
		cmd.Printf("Created ingestor %s\n", ing.Name)
	}
	return nil
}

func runIngestorCheck(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}
	var targets []domain.Ingestor
	switch {
	case ingestorCheckAll:
		all, err := ingestionService.ListIngestors(cmd.Context())
		if err != nil {
			return err
		}
		for _, ing := range all {
			if ing.Enabled {
				targets = append(targets, ing)
			}
		}
	case len(args) == 1:
		ing, err := findIngestor(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		targets = append(targets, *ing)
	default:
		return errors.New("name an ingestor or pass --all")
	}

	var errs []error
	for _, ing := range targets {
		updated, deleted, err := ingestionService.CheckForUpdates(cmd.Context(), ing.ID)
		if err != nil {
			cmd.PrintErrf("%s: %v\n", ing.Name, err)
			errs = append(errs, err)
			continue
		}
		cmd.Printf("%s: %d updated, %d deleted\n", ing.Name, updated, deleted)
	}
	return errors.Join(errs...)
}

func runIngestorUpdate(cmd *cobra.Command, args []string) error {
	ing, err := findIngestor(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if err := ingestionService.UpdateDocument(cmd.Context(), ing.ID, args[1]); err != nil {
		return err
	}
	cmd.Printf("Updated %s\n", args[1])
	return nil
}

func runIngestorRemove(cmd *cobra.Command, args []string) error {
	ing, err := findIngestor(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if err := ingestionService.DeleteDocument(cmd.Context(), ing.ID, args[1]); err != nil {
		return err
	}
	cmd.Printf("Removed %s\n", args[1])
	return nil
}

func runIngestorWebhook(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}
	var (
		payload []byte
		err     error
	)
	if len(args) == 2 {
		payload, err = os.ReadFile(args[1])
	} else {
		payload, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return fmt.Errorf("reading payload: %w", err)
	}
	if err := ingestionService.HandleWebhook(cmd.Context(), args[0], payload); err != nil {
		return err
	}
	cmd.Println("Webhook accepted.")
	return nil
}
