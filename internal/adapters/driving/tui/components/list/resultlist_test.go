package list

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laws-africa/peachjam/internal/core/domain"
)

func hits() []domain.SearchHit {
	return []domain.SearchHit{
		{
			ID: "7", Score: 4.5, BestMatch: true,
			Document: map[string]any{
				"title":    "Labour Relations Act",
				"citation": "Act 66 of 1995",
				"date":     "1995-12-13",
			},
			Highlight: map[string][]string{"content": {"unfair <mark>dismissal</mark>\nof employees"}},
		},
		{
			ID: "9", Score: 2.25,
			Document: map[string]any{"expression_frbr_uri": "/akn/za/judgment/zalac/2020/1/eng@2020-01-01"},
			Pages: []domain.PageHit{{
				PageNum:   3,
				Highlight: map[string][]string{"pages.body": {"the <mark>dismissal</mark> was fair"}},
			}},
		},
	}
}

func TestResultList_Empty(t *testing.T) {
	r := NewResultList(nil)
	assert.Contains(t, r.View(), "No results")
	assert.Nil(t, r.SelectedHit())
}

func TestResultList_View(t *testing.T) {
	r := NewResultList(nil)
	r.SetDimensions(100, 20)
	r.SetResults(hits(), 12)

	view := r.View()
	assert.Contains(t, view, "12 results")
	assert.Contains(t, view, "Labour Relations Act")
	assert.Contains(t, view, "Act 66 of 1995  1995-12-13")
	assert.Contains(t, view, "dismissal")
	assert.NotContains(t, view, "<mark>")
	assert.Contains(t, view, "★")
	// untitled hits fall back to the id and the expression URI
	assert.Contains(t, view, "/akn/za/judgment/zalac/2020/1/eng@2020-01-01")
	assert.Contains(t, view, "p. 3:")
}

func TestResultList_Navigation(t *testing.T) {
	r := NewResultList(nil)
	r.SetResults(hits(), 2)

	r.MoveUp()
	assert.Equal(t, 0, r.Selected())

	r, _ = r.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	assert.Equal(t, 1, r.Selected())
	r.MoveDown()
	assert.Equal(t, 1, r.Selected())

	hit := r.SelectedHit()
	require.NotNil(t, hit)
	assert.Equal(t, "9", hit.ID)

	r, _ = r.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 0, r.Selected())

	r.SetResults(hits()[:1], 1)
	assert.Equal(t, 0, r.Selected())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "Labour ...", truncate("Labour Relations Act", 10))
	assert.Equal(t, "La", truncate("Labour", 2))
	assert.Equal(t, "", truncate("Labour", -1))
}
