// Package doccontent provides the scrolling document text view of the terminal UI.
package doccontent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/laws-africa/peachjam/internal/adapters/driving/tui/messages"
	"github.com/laws-africa/peachjam/internal/adapters/driving/tui/styles"
	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driving"
)

// ErrNoDocumentService is reported when documents cannot be loaded.
var ErrNoDocumentService = errors.New("document service is required")

// reservedLines are taken by the title, metadata, separator and help.
const reservedLines = 7

// View shows the text of one document.
type View struct {
	styles    *styles.Styles
	documents driving.DocumentService
	ctx       context.Context

	id           int64
	document     *domain.Document
	lines        []string
	scrollOffset int
	width        int
	height       int
	err          error
	loading      bool
}

// NewView creates a document view.
func NewView(s *styles.Styles, documents driving.DocumentService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{styles: s, documents: documents, ctx: context.Background(), width: 80, height: 24}
}

// WithContext sets the context documents are loaded under.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Load clears the view and returns a command fetching document id.
func (v *View) Load(id int64) tea.Cmd {
	v.id = id
	v.document = nil
	v.lines = nil
	v.scrollOffset = 0
	v.err = nil
	v.loading = true

	svc, ctx := v.documents, v.ctx
	return func() tea.Msg {
		if svc == nil {
			return messages.DocumentLoaded{ID: id, Err: ErrNoDocumentService}
		}
		doc, err := svc.Get(ctx, id)
		return messages.DocumentLoaded{ID: id, Document: doc, Err: err}
	}
}

func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
	case tea.KeyMsg:
		return v.handleKeyMsg(msg)
	case messages.DocumentLoaded:
		if msg.ID != v.id {
			return v, nil
		}
		v.loading = false
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.document = msg.Document
		v.wrap()
	case messages.ErrorOccurred:
		v.err = msg.Err
	}
	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		v.scrollOffset = max(v.scrollOffset-1, 0)
	case "down", "j":
		v.scrollOffset = min(v.scrollOffset+1, v.maxScrollOffset())
	case "pgup", "ctrl+u":
		v.scrollOffset = max(v.scrollOffset-v.visibleLines(), 0)
	case "pgdown", "ctrl+d", " ":
		v.scrollOffset = min(v.scrollOffset+v.visibleLines(), v.maxScrollOffset())
	case "home", "g":
		v.scrollOffset = 0
	case "end", "G":
		v.scrollOffset = v.maxScrollOffset()
	case "esc", "q":
		return v, func() tea.Msg { return messages.ViewChanged{View: messages.ViewSearch} }
	}
	return v, nil
}

// wrap breaks the content into lines at word boundaries.
func (v *View) wrap() {
	v.lines = nil
	if v.document == nil || v.document.ContentText == "" {
		return
	}
	width := max(v.width-4, 20)
	for _, para := range strings.Split(v.document.ContentText, "\n") {
		line := ""
		for _, word := range strings.Fields(para) {
			for len(word) > width {
				if line != "" {
					v.lines = append(v.lines, line)
					line = ""
				}
				v.lines = append(v.lines, word[:width])
				word = word[width:]
			}
			switch {
			case line == "":
				line = word
			case len(line)+1+len(word) > width:
				v.lines = append(v.lines, line)
				line = word
			default:
				line += " " + word
			}
		}
		v.lines = append(v.lines, line)
	}
}

func (v *View) visibleLines() int {
	return max(v.height-reservedLines, 1)
}

func (v *View) maxScrollOffset() int {
	return max(len(v.lines)-v.visibleLines(), 0)
}

func (v *View) View() string {
	var b strings.Builder

	title := fmt.Sprintf("Document %d", v.id)
	if v.document != nil && v.document.Title != "" {
		title = v.document.Title
	}
	b.WriteString(v.styles.Title.Render(title))
	b.WriteString("\n")
	if d := v.document; d != nil {
		meta := d.ExpressionFrbrURI
		if d.Citation != "" {
			meta = d.Citation + "  " + meta
		}
		b.WriteString(v.styles.Citation.Render(meta))
	}
	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", min(max(v.width-4, 0), 60)))
	b.WriteString("\n\n")

	switch {
	case v.loading:
		b.WriteString(v.styles.Muted.Render("Loading..."))
		b.WriteString("\n\n")
	case v.err != nil:
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
		b.WriteString("\n\n")
	case len(v.lines) == 0:
		b.WriteString(v.styles.Muted.Render("(no content)"))
		b.WriteString("\n\n")
	default:
		visible := v.visibleLines()
		end := min(v.scrollOffset+visible, len(v.lines))
		for _, line := range v.lines[v.scrollOffset:end] {
			b.WriteString(v.styles.Normal.Render(line))
			b.WriteString("\n")
		}
		if len(v.lines) > visible {
			b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  Line %d-%d of %d",
				v.scrollOffset+1, end, len(v.lines))))
		}
		b.WriteString("\n\n")
	}

	b.WriteString(v.styles.Help.Render("[↑/↓/PgUp/PgDn] scroll  [g/G] top/bottom  [esc] back"))
	return b.String()
}

// SetDimensions resizes the view and rewraps the content.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.wrap()
}

func (v *View) Document() *domain.Document {
	return v.document
}

// Lines returns the wrapped content.
func (v *View) Lines() []string {
	return v.lines
}

func (v *View) ScrollOffset() int {
	return v.scrollOffset
}

func (v *View) Err() error {
	return v.err
}
