package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/laws-africa/peachjam/internal/core/domain"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Maintain the search indexes",
}

var indexEnsureCmd = &cobra.Command{
	Use:   "ensure",
	Short: "Create missing language indexes",
	Long:  `Creates every language index. Fails if an existing index has a different mapping.`,
	RunE:  runIndexEnsure,
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Reindex every document",
	RunE:  runIndexRebuild,
}

var indexDocumentCmd = &cobra.Command{
	Use:   "document [id...]",
	Short: "Reindex documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIndexDocument,
}

var embedCmd = &cobra.Command{
	Use:   "embed [id...]",
	Short: "Refresh chunks and embeddings of documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runEmbed,
}

var citationsCmd = &cobra.Command{
	Use:   "citations [id...]",
	Short: "Extract citations from documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCitations,
}

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Recompute work authority scores",
	Long: `Builds the citation graph over all works, computes PageRank, and writes
changed scores to the search indexes.`,
	RunE: runRank,
}

func init() {
	indexCmd.AddCommand(indexEnsureCmd)
	indexCmd.AddCommand(indexRebuildCmd)
	indexCmd.AddCommand(indexDocumentCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(embedCmd)
	rootCmd.AddCommand(citationsCmd)
	rootCmd.AddCommand(rankCmd)
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a document id", domain.ErrInvalidInput, a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func runIndexEnsure(cmd *cobra.Command, _ []string) error {
	if indexService == nil {
		return errors.New("index service not configured")
	}
	if err := indexService.EnsureIndexes(cmd.Context()); err != nil {
		return err
	}
	cmd.Println("Indexes ready.")
	return nil
}

func runIndexRebuild(cmd *cobra.Command, _ []string) error {
	if indexService == nil {
		return errors.New("index service not configured")
	}
	if err := indexService.EnsureIndexes(cmd.Context()); err != nil {
		return err
	}
	n, err := indexService.ReindexAll(cmd.Context())
	if err != nil {
		return err
	}
	cmd.Printf("Indexed %d documents.\n", n)
	return nil
}

func runIndexDocument(cmd *cobra.Command, args []string) error {
	if indexService == nil {
		return errors.New("index service not configured")
	}
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := indexService.ReindexDocument(cmd.Context(), id); err != nil {
			return fmt.Errorf("document %d: %w", id, err)
		}
	}
	cmd.Printf("Reindexed %d documents.\n", len(ids))
	return nil
}

func runEmbed(cmd *cobra.Command, args []string) error {
	if embeddingsService == nil {
		return errors.New("embeddings service not configured")
	}
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := embeddingsService.RefreshDocument(cmd.Context(), id); err != nil {
			return fmt.Errorf("document %d: %w", id, err)
		}
	}
	cmd.Printf("Refreshed embeddings of %d documents.\n", len(ids))
	return nil
}

func runCitations(cmd *cobra.Command, args []string) error {
	if citationService == nil {
		return errors.New("citation service not configured")
	}
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	for _, id := range ids {
		n, err := citationService.ExtractCitations(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("document %d: %w", id, err)
		}
		cmd.Printf("%d: %d citations\n", id, n)
	}
	return nil
}

func runRank(cmd *cobra.Command, _ []string) error {
	if rankingService == nil {
		return errors.New("ranking service not configured")
	}
	report, err := rankingService.RankWorks(cmd.Context())
	if err != nil {
		return err
	}
	cmd.Printf("Ranked %d works over %d citations.\n", report.Nodes, report.Edges)
	cmd.Printf("Pivot %.6f, %d works changed, %d documents reindexed.\n",
		report.Pivot, report.UpdatedWorkCount, report.ReindexedDocs)
	return nil
}
