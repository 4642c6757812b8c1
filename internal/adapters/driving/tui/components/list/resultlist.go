// Package list provides the search result list of the terminal UI.
package list

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/laws-africa/peachjam/internal/adapters/driving/tui/styles"
	"github.com/laws-africa/peachjam/internal/core/domain"
)

// linesPerHit is the height of one rendered hit: title, citation, snippet.
const linesPerHit = 3

// ResultList shows one page of search hits with a movable cursor.
type ResultList struct {
	hits     []domain.SearchHit
	total    int
	selected int
	styles   *styles.Styles
	width    int
	height   int
}

// NewResultList returns an empty list.
func NewResultList(s *styles.Styles) *ResultList {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &ResultList{styles: s, width: 80, height: 10}
}

func (r *ResultList) Init() tea.Cmd {
	return nil
}

func (r *ResultList) Update(msg tea.Msg) (*ResultList, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			r.MoveUp()
		case "down", "j":
			r.MoveDown()
		}
	}
	return r, nil
}

func (r *ResultList) View() string {
	if len(r.hits) == 0 {
		return r.styles.Muted.Render("No results")
	}

	lines := make([]string, 0, len(r.hits)+2)
	lines = append(lines, r.styles.Subtitle.Render(fmt.Sprintf("%d results", r.total)), "")

	visible := max((r.height-2)/linesPerHit, 1)
	start := 0
	if r.selected >= visible {
		start = r.selected - visible + 1
	}
	end := min(start+visible, len(r.hits))
	for i := start; i < end; i++ {
		lines = append(lines, r.renderHit(i, &r.hits[i]))
	}
	return strings.Join(lines, "\n")
}

func (r *ResultList) renderHit(index int, hit *domain.SearchHit) string {
	indicator := "  "
	if index == r.selected {
		indicator = "> "
	}

	title := field(hit.Document, "title")
	if title == "" {
		title = hit.ID
	}
	maxTitle := max(r.width-16, 10)
	title = truncate(title, maxTitle)

	score := fmt.Sprintf("%.2f", hit.Score)
	var line string
	if index == r.selected {
		line = r.styles.Selected.Render(fmt.Sprintf("%s%-*s  %s", indicator, maxTitle, title, score))
	} else {
		line = r.styles.Normal.Render(fmt.Sprintf("%s%-*s  ", indicator, maxTitle, title)) +
			r.styles.Muted.Render(score)
	}
	if hit.BestMatch {
		line += r.styles.BestMatch.Render(" ★")
	}

	meta := field(hit.Document, "citation")
	if meta == "" {
		meta = field(hit.Document, "expression_frbr_uri")
	}
	if date := field(hit.Document, "date"); date != "" {
		meta = strings.TrimSpace(meta + "  " + date)
	}
	line += "\n" + r.styles.Citation.Render("    "+meta)

	snippet := ""
	if s := hit.Highlight["content"]; len(s) > 0 {
		snippet = s[0]
	} else if len(hit.Pages) > 0 {
		if s := hit.Pages[0].Highlight["pages.body"]; len(s) > 0 {
			snippet = fmt.Sprintf("p. %d: %s", hit.Pages[0].PageNum, s[0])
		}
	}
	return line + "\n    " + r.renderSnippet(snippet, max(r.width-6, 20))
}

// renderSnippet draws <mark> spans in the highlight style.
func (r *ResultList) renderSnippet(snippet string, width int) string {
	var b strings.Builder
	n := 0
	for snippet != "" && n < width {
		before, rest, found := strings.Cut(snippet, "<mark>")
		before = truncate(flatten.Replace(before), width-n)
		b.WriteString(r.styles.Muted.Render(before))
		n += len(before)
		if !found {
			break
		}
		marked, after, _ := strings.Cut(rest, "</mark>")
		marked = truncate(marked, width-n)
		b.WriteString(r.styles.Mark.Render(marked))
		n += len(marked)
		snippet = after
	}
	return b.String()
}

var flatten = strings.NewReplacer("\n", " ", "\r", " ", "\t", " ")

// truncate cuts s to at most n bytes, ending in an ellipsis when there is room.
func truncate(s string, n int) string {
	switch {
	case len(s) <= n:
		return s
	case n <= 3:
		return s[:max(n, 0)]
	default:
		return s[:n-3] + "..."
	}
}

func field(doc map[string]any, key string) string {
	s, _ := doc[key].(string)
	return s
}

// SetResults replaces the hits and resets the cursor. total is the count
// over all pages.
func (r *ResultList) SetResults(hits []domain.SearchHit, total int) {
	r.hits = hits
	r.total = total
	r.selected = 0
}

func (r *ResultList) Hits() []domain.SearchHit {
	return r.hits
}

func (r *ResultList) Selected() int {
	return r.selected
}

// SelectedHit returns the hit under the cursor, or nil.
func (r *ResultList) SelectedHit() *domain.SearchHit {
	if r.selected < 0 || r.selected >= len(r.hits) {
		return nil
	}
	return &r.hits[r.selected]
}

func (r *ResultList) MoveUp() {
	if r.selected > 0 {
		r.selected--
	}
}

func (r *ResultList) MoveDown() {
	if r.selected < len(r.hits)-1 {
		r.selected++
	}
}

func (r *ResultList) SetDimensions(width, height int) {
	r.width = width
	r.height = height
}
