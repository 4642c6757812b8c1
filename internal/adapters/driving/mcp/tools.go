package mcp

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/laws-africa/peachjam/internal/core/domain"
)

// defaultRelated is the number of related documents returned when n is unset.
const defaultRelated = 5

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query   string              `json:"query" jsonschema:"free text to search for"`
	Mode    string              `json:"mode,omitempty" jsonschema:"text, semantic or hybrid (default text)"`
	Page    int                 `json:"page,omitempty" jsonschema:"results page from 1 to 10 (default 1)"`
	Filters map[string][]string `json:"filters,omitempty" jsonschema:"facet filters such as doc_type, court or year"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Count   int                  `json:"count"`
	Results []SearchResultOutput `json:"results"`
}

// SearchResultOutput is a single search hit.
type SearchResultOutput struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Citation  string   `json:"citation,omitempty"`
	URI       string   `json:"expression_frbr_uri"`
	Score     float64  `json:"score"`
	BestMatch bool     `json:"best_match,omitempty"`
	Snippets  []string `json:"snippets,omitempty"`
}

// SuggestInput is the input schema for the suggest tool.
type SuggestInput struct {
	Prefix string `json:"prefix" jsonschema:"the start of a title or citation"`
}

// SuggestOutput is the output schema for the suggest tool.
type SuggestOutput struct {
	Suggestions []string `json:"suggestions"`
}

// RelatedInput is the input schema for the related_documents tool.
type RelatedInput struct {
	DocumentID int64 `json:"document_id" jsonschema:"id of the source document"`
	N          int   `json:"n,omitempty" jsonschema:"number of related documents (default 5)"`
}

// RelatedOutput is the output schema for the related_documents tool.
type RelatedOutput struct {
	Results []RelatedResultOutput `json:"results"`
}

// RelatedResultOutput is one related document.
type RelatedResultOutput struct {
	ID         int64   `json:"id"`
	Title      string  `json:"title"`
	URI        string  `json:"expression_frbr_uri"`
	Similarity float64 `json:"similarity"`
	Score      float64 `json:"score"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Search legislation, judgments and other legal documents",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "suggest",
		Description: "Complete a partial document title or citation",
	}, s.handleSuggest)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "related_documents",
		Description: "Find documents semantically related to a document",
	}, s.handleRelated)
}

// handleSearch runs the input through the same validation as the HTTP form.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	form := url.Values{"q": {input.Query}}
	if input.Mode != "" {
		form.Set("mode", input.Mode)
	}
	if input.Page > 0 {
		form.Set("page", strconv.Itoa(input.Page))
	}
	for k, vs := range input.Filters {
		form[k] = vs
	}
	req, err := domain.ParseSearchForm(form)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	resp, err := s.ports.Search.Search(ctx, req)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Count:   resp.Count,
		Results: make([]SearchResultOutput, len(resp.Results)),
	}
	for i, hit := range resp.Results {
		output.Results[i] = SearchResultOutput{
			ID:        hit.ID,
			Title:     stringField(hit.Document, "title"),
			Citation:  stringField(hit.Document, "citation"),
			URI:       stringField(hit.Document, "expression_frbr_uri"),
			Score:     hit.Score,
			BestMatch: hit.BestMatch,
			Snippets:  hit.Highlight["content"],
		}
	}
	return nil, output, nil
}

func (s *Server) handleSuggest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SuggestInput,
) (*mcp.CallToolResult, SuggestOutput, error) {
	suggestions, err := s.ports.Search.Suggest(ctx, input.Prefix)
	if err != nil {
		return nil, SuggestOutput{}, err
	}
	if suggestions == nil {
		suggestions = []string{}
	}
	return nil, SuggestOutput{Suggestions: suggestions}, nil
}

func (s *Server) handleRelated(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RelatedInput,
) (*mcp.CallToolResult, RelatedOutput, error) {
	if s.ports.Related == nil {
		return nil, RelatedOutput{}, ErrRelatedUnavailable
	}
	n := input.N
	if n <= 0 {
		n = defaultRelated
	}
	related, err := s.ports.Related.Related(ctx, []int64{input.DocumentID}, n)
	if err != nil {
		return nil, RelatedOutput{}, fmt.Errorf("related documents of %d: %w", input.DocumentID, err)
	}
	output := RelatedOutput{Results: make([]RelatedResultOutput, len(related))}
	for i, r := range related {
		output.Results[i] = RelatedResultOutput{
			ID:         r.Document.ID,
			Title:      r.Document.Title,
			URI:        r.Document.ExpressionFrbrURI,
			Similarity: r.Similarity,
			Score:      r.Score,
		}
	}
	return nil, output, nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
