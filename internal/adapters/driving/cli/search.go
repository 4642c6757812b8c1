package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/laws-africa/peachjam/internal/core/domain"
)

var (
	searchMode     string
	searchPage     int
	searchOrdering string
	searchFilters  []string
	searchJSON     bool
	searchDebug    bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed documents",
	Long: `Searches the document indexes. Modes are text (keyword search with
authority ranking), semantic (nearest content chunks by embedding) and hybrid
(both, fused with reciprocal rank fusion).

Filters take the same names as the search form, e.g.
  peachjam search "unfair dismissal" -f doc_type=Judgment -f year=2021`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

var suggestCmd = &cobra.Command{
	Use:   "suggest [prefix]",
	Short: "Suggest document titles and citations",
	Args:  cobra.ExactArgs(1),
	RunE:  runSuggest,
}

func init() {
	searchCmd.Flags().StringVarP(&searchMode, "mode", "m", "text", "search mode: text, semantic or hybrid")
	searchCmd.Flags().IntVarP(&searchPage, "page", "p", 1, "results page")
	searchCmd.Flags().StringVarP(&searchOrdering, "ordering", "o", "", "ordering: -score, date or -date")
	searchCmd.Flags().StringArrayVarP(&searchFilters, "filter", "f", nil, "filter as field=value (repeatable)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().BoolVar(&searchDebug, "debug", false, "include score explanations")
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(suggestCmd)
}

// searchForm builds the same form the HTTP search endpoint receives.
func searchForm(query string) (url.Values, error) {
	form := url.Values{"q": {query}}
	if searchMode != "" {
		form.Set("mode", searchMode)
	}
	if searchPage > 1 {
		form.Set("page", strconv.Itoa(searchPage))
	}
	if searchOrdering != "" {
		form.Set("ordering", searchOrdering)
	}
	if searchDebug {
		form.Set("debug", "true")
	}
	for _, f := range searchFilters {
		k, v, ok := strings.Cut(f, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: filter %q must be field=value", domain.ErrInvalidInput, f)
		}
		form.Add(k, v)
	}
	return form, nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	form, err := searchForm(args[0])
	if err != nil {
		return err
	}
	req, err := domain.ParseSearchForm(form)
	if err != nil {
		return err
	}
	req.UserAgent = "peachjam-cli/" + version

	resp, err := searchService.Search(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return printJSON(cmd, resp)
	}
	outputSearchTable(cmd, resp)
	return nil
}

func outputSearchTable(cmd *cobra.Command, resp *domain.SearchResponse) {
	if len(resp.Results) == 0 {
		cmd.Println("No results found.")
		return
	}

	cmd.Printf("%d results:\n\n", resp.Count)
	for i, hit := range resp.Results {
		title := stringField(hit.Document, "title")
		if title == "" {
			title = hit.ID
		}
		marker := ""
		if hit.BestMatch {
			marker = " *"
		}
		cmd.Printf("  [%d] %s (%.2f)%s\n", i+1, title, hit.Score, marker)
		if c := stringField(hit.Document, "citation"); c != "" {
			cmd.Printf("      %s\n", c)
		}
		if uri := stringField(hit.Document, "expression_frbr_uri"); uri != "" {
			cmd.Printf("      %s\n", uri)
		}
		if snippets := hit.Highlight["content"]; len(snippets) > 0 {
			cmd.Printf("      %s\n", snippets[0])
		}
		cmd.Println()
	}
	if resp.TraceID != nil {
		cmd.Printf("trace: %s\n", *resp.TraceID)
	}
}

func runSuggest(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}
	suggestions, err := searchService.Suggest(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	for _, s := range suggestions {
		cmd.Println(s)
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
