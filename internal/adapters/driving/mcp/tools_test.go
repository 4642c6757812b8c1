package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driving"
)

func TestServer_handleSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns search results", func(t *testing.T) {
		mockSearch := &mockSearchService{
			response: &domain.SearchResponse{
				Count: 1,
				Results: []domain.SearchHit{{
					ID:        "12",
					Score:     3.5,
					BestMatch: true,
					Highlight: map[string][]string{"content": {"the <mark>offer</mark>"}},
					Document: map[string]any{
						"title":               "Contract Act",
						"citation":            "Act 1 of 2009",
						"expression_frbr_uri": "/akn/za/act/2009/1/eng@2009-01-01",
					},
				}},
			},
		}
		server, err := NewServer(&Ports{Search: mockSearch})
		require.NoError(t, err)

		input := SearchInput{
			Query:   "offer",
			Mode:    "hybrid",
			Page:    2,
			Filters: map[string][]string{"court": {"ZACC"}},
		}
		_, output, err := server.handleSearch(ctx, nil, input)
		require.NoError(t, err)

		assert.Equal(t, 1, output.Count)
		require.Len(t, output.Results, 1)
		got := output.Results[0]
		assert.Equal(t, "12", got.ID)
		assert.Equal(t, "Contract Act", got.Title)
		assert.Equal(t, "Act 1 of 2009", got.Citation)
		assert.Equal(t, "/akn/za/act/2009/1/eng@2009-01-01", got.URI)
		assert.True(t, got.BestMatch)
		assert.Equal(t, []string{"the <mark>offer</mark>"}, got.Snippets)

		req := mockSearch.lastRequest
		assert.Equal(t, "offer", req.Query)
		assert.Equal(t, domain.SearchModeHybrid, req.Mode)
		assert.Equal(t, 2, req.Page)
		assert.Equal(t, []string{"ZACC"}, req.Filters["court"])
	})

	t.Run("invalid input is rejected before searching", func(t *testing.T) {
		mockSearch := &mockSearchService{}
		server, err := NewServer(&Ports{Search: mockSearch})
		require.NoError(t, err)

		_, _, err = server.handleSearch(ctx, nil, SearchInput{})
		var fe domain.FieldErrors
		require.ErrorAs(t, err, &fe)

		_, _, err = server.handleSearch(ctx, nil, SearchInput{Query: "x", Mode: "fuzzy"})
		assert.ErrorAs(t, err, &fe)
		assert.Empty(t, mockSearch.lastRequest.Query)
	})

	t.Run("returns error on search failure", func(t *testing.T) {
		server, err := NewServer(&Ports{Search: &mockSearchService{err: errors.New("search failed")}})
		require.NoError(t, err)

		_, _, err = server.handleSearch(ctx, nil, SearchInput{Query: "test"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "search failed")
	})
}

func TestServer_handleSuggest(t *testing.T) {
	ctx := context.Background()

	server, err := NewServer(&Ports{Search: &mockSearchService{suggestions: []string{"Constitution", "Contract Act"}}})
	require.NoError(t, err)
	_, output, err := server.handleSuggest(ctx, nil, SuggestInput{Prefix: "con"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Constitution", "Contract Act"}, output.Suggestions)

	server, err = NewServer(&Ports{Search: &mockSearchService{}})
	require.NoError(t, err)
	_, output, err = server.handleSuggest(ctx, nil, SuggestInput{Prefix: "zz"})
	require.NoError(t, err)
	assert.NotNil(t, output.Suggestions)
	assert.Empty(t, output.Suggestions)
}

func TestServer_handleRelated(t *testing.T) {
	ctx := context.Background()

	t.Run("without a related service", func(t *testing.T) {
		server, err := NewServer(&Ports{Search: &mockSearchService{}})
		require.NoError(t, err)
		_, _, err = server.handleRelated(ctx, nil, RelatedInput{DocumentID: 1})
		assert.ErrorIs(t, err, ErrRelatedUnavailable)
	})

	t.Run("returns related documents", func(t *testing.T) {
		related := &mockRelatedService{results: []driving.RelatedDocument{{
			Document:   domain.Document{ID: 4, Title: "Sale Act", ExpressionFrbrURI: "/akn/za/act/2010/4/eng@2010-01-01"},
			Similarity: 0.8,
			Score:      0.9,
		}}}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Related: related})
		require.NoError(t, err)

		_, output, err := server.handleRelated(ctx, nil, RelatedInput{DocumentID: 1})
		require.NoError(t, err)
		require.Len(t, output.Results, 1)
		assert.Equal(t, int64(4), output.Results[0].ID)
		assert.Equal(t, "Sale Act", output.Results[0].Title)
		assert.Equal(t, []int64{1}, related.lastIDs)
		assert.Equal(t, defaultRelated, related.lastN)
	})

	t.Run("wraps errors", func(t *testing.T) {
		related := &mockRelatedService{err: domain.ErrNotFound}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Related: related})
		require.NoError(t, err)
		_, _, err = server.handleRelated(ctx, nil, RelatedInput{DocumentID: 9, N: 3})
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Equal(t, 3, related.lastN)
	})
}
