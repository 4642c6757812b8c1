package domain

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSearchForm_Defaults(t *testing.T) {
	req, err := ParseSearchForm(url.Values{"q": {"  fair trial "}})
	require.NoError(t, err)

	assert.Equal(t, "fair trial", req.Query)
	assert.Equal(t, 1, req.Page)
	assert.Equal(t, OrderingScore, req.Ordering)
	assert.Equal(t, SearchModeText, req.Mode)
	assert.False(t, req.IsAdvanced())
	assert.Equal(t, 0, req.From())
}

func TestParseSearchForm_EmptyQuery(t *testing.T) {
	_, err := ParseSearchForm(url.Values{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	var fe FieldErrors
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, fe, "q")

	// a field query alone is enough
	req, err := ParseSearchForm(url.Values{"search__title": {"constitution"}})
	require.NoError(t, err)
	assert.True(t, req.IsAdvanced())
}

func TestParseSearchForm_Invalid(t *testing.T) {
	_, err := ParseSearchForm(url.Values{
		"q":               {"x"},
		"page":            {"11"},
		"ordering":        {"title"},
		"mode":            {"fuzzy"},
		"date__gte":       {"yesterday"},
		"search__all":     {"a"},
		"search__content": {"b"},
	})
	var fe FieldErrors
	require.True(t, errors.As(err, &fe))
	for _, k := range []string{"page", "ordering", "mode", "date__gte", "search__content"} {
		assert.Contains(t, fe, k)
	}
}

func TestParseSearchForm_FiltersAndRanges(t *testing.T) {
	req, err := ParseSearchForm(url.Values{
		"q":               {"x"},
		"page":            {"3"},
		"court":           {"EACJ", ""},
		"topics":          {"land"},
		"date__range":     {"2020-01-01__2020-12-31"},
		"created_at__gte": {"2021-01-01T00:00:00Z"},
	})
	require.NoError(t, err)

	assert.Equal(t, 20, req.From())
	assert.Equal(t, map[string][]string{"court": {"EACJ"}}, req.FacetFilters())
	assert.Equal(t, map[string][]string{"topics": {"land"}}, req.TermFilters())
	require.NotNil(t, req.Ranges["date"].Gte)
	assert.Equal(t, "2020-12-31", req.Ranges["date"].Lte.Format(DateLayout))
	assert.NotNil(t, req.Ranges["created_at"].Gte)
	assert.Nil(t, req.Ranges["created_at"].Lte)
}

func TestFiltersString_Canonical(t *testing.T) {
	a := SearchRequest{Filters: map[string][]string{
		"court": {"B", "A"},
		"year":  {"2020"},
	}}
	b := SearchRequest{Filters: map[string][]string{
		"year":  {"2020"},
		"court": {"A", "B"},
	}}
	assert.Equal(t, a.FiltersString(), b.FiltersString())
	assert.Equal(t, "court=A&court=B&year=2020", a.FiltersString())
}

func TestClassifyQuery(t *testing.T) {
	assert.Equal(t, QueryClass(""), ClassifyQuery("  "))
	assert.Equal(t, QueryClassKeywords, ClassifyQuery("fair trial"))
	assert.Equal(t, QueryClassCitation, ClassifyQuery("[2019] EACJ 1"))
	assert.Equal(t, QueryClassCitation, ClassifyQuery("/akn/za/act/2009/1"))

	quote := strings.TrimSpace(strings.Repeat("word ", 40))
	assert.Equal(t, QueryClassQuote, ClassifyQuery(quote))
	assert.Equal(t, QueryClassKeywords, ClassifyQuery(strings.Repeat("word ", 39)))
}

func TestSearchMode(t *testing.T) {
	assert.True(t, SearchModeHybrid.RequiresEmbedding())
	assert.True(t, SearchModeSemantic.RequiresEmbedding())
	assert.False(t, SearchModeText.RequiresEmbedding())
	assert.False(t, SearchMode("full").IsValid())
}
