package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/laws-africa/peachjam/internal/core/domain"
)

var relatedLimit int

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Inspect stored documents",
	Long:  `View stored documents by id or expression FRBR URI, and find related documents.`,
}

var documentGetCmd = &cobra.Command{
	Use:   "get [id-or-uri]",
	Short: "Show document metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentGet,
}

var documentContentCmd = &cobra.Command{
	Use:   "content [id-or-uri]",
	Short: "Print document text",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentContent,
}

var documentRelatedCmd = &cobra.Command{
	Use:   "related [id]",
	Short: "List semantically related documents",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentRelated,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [id-or-uri]",
	Short: "Delete a document",
	Long:  `Deletes a document locally. It is removed from the index by a background task.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentDelete,
}

func init() {
	documentRelatedCmd.Flags().IntVarP(&relatedLimit, "limit", "n", 10, "number of related documents")
	documentCmd.AddCommand(documentGetCmd)
	documentCmd.AddCommand(documentContentCmd)
	documentCmd.AddCommand(documentRelatedCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	rootCmd.AddCommand(documentCmd)
}

// lookupDocument accepts a numeric id or an expression FRBR URI.
func lookupDocument(ctx context.Context, ref string) (*domain.Document, error) {
	if documentService == nil {
		return nil, errors.New("document service not configured")
	}
	if strings.HasPrefix(ref, "/") {
		return documentService.GetByExpressionURI(ctx, ref)
	}
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a document id or FRBR URI", domain.ErrInvalidInput, ref)
	}
	return documentService.Get(ctx, id)
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	doc, err := lookupDocument(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	cmd.Printf("ID:         %d\n", doc.ID)
	cmd.Printf("Title:      %s\n", doc.Title)
	if doc.Citation != "" {
		cmd.Printf("Citation:   %s\n", doc.Citation)
	}
	cmd.Printf("Kind:       %s\n", doc.Kind)
	cmd.Printf("Work:       %s\n", doc.WorkFrbrURI)
	cmd.Printf("Expression: %s\n", doc.ExpressionFrbrURI)
	cmd.Printf("Language:   %s\n", doc.Language)
	if !doc.Date.IsZero() {
		cmd.Printf("Date:       %s\n", doc.Date.Format("2006-01-02"))
	}
	cmd.Printf("Published:  %t\n", doc.Published)
	if len(doc.Topics) > 0 {
		cmd.Printf("Topics:     %s\n", strings.Join(doc.Topics, ", "))
	}
	if doc.SourceFile != nil {
		cmd.Printf("Source:     %s (%s, %d bytes)\n", doc.SourceFile.Filename, doc.SourceFile.MimeType, doc.SourceFile.Size)
	}
	cmd.Printf("Updated:    %s\n", doc.UpdatedAt.Format("2006-01-02 15:04:05"))
	return nil
}

func runDocumentContent(cmd *cobra.Command, args []string) error {
	doc, err := lookupDocument(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if doc.ContentText == "" {
		cmd.Println("(no content)")
		return nil
	}
	cmd.Println(doc.ContentText)
	return nil
}

func runDocumentRelated(cmd *cobra.Command, args []string) error {
	if relatedService == nil {
		return errors.New("related documents require an embedding provider")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q is not a document id", domain.ErrInvalidInput, args[0])
	}
	related, err := relatedService.Related(cmd.Context(), []int64{id}, relatedLimit)
	if err != nil {
		return err
	}
	if len(related) == 0 {
		cmd.Println("No related documents.")
		return nil
	}
	for i, r := range related {
		cmd.Printf("  [%d] %s (%.3f)\n", i+1, r.Document.Title, r.Similarity)
		cmd.Printf("      %s\n", r.Document.ExpressionFrbrURI)
	}
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	doc, err := lookupDocument(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if err := documentService.DeleteDocument(cmd.Context(), doc.ID); err != nil {
		return err
	}
	cmd.Printf("Deleted %s\n", doc.ExpressionFrbrURI)
	return nil
}
