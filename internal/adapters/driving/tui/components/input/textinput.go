// Package input provides the query input of the terminal UI.
package input

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/laws-africa/peachjam/internal/adapters/driving/tui/styles"
)

// maxQueryLength caps what can be typed into the box.
const maxQueryLength = 512

// SearchInput is a styled single-line query box.
type SearchInput struct {
	textinput textinput.Model
	styles    *styles.Styles
	label     string
	width     int
}

// NewSearchInput returns a focused, empty input.
func NewSearchInput(s *styles.Styles) *SearchInput {
	if s == nil {
		s = styles.DefaultStyles()
	}
	ti := textinput.New()
	ti.Placeholder = "Search legislation, judgments and more..."
	ti.CharLimit = maxQueryLength
	ti.Width = 50
	ti.Focus()

	return &SearchInput{textinput: ti, styles: s, label: "Search", width: 50}
}

func (s *SearchInput) Init() tea.Cmd {
	return textinput.Blink
}

func (s *SearchInput) Update(msg tea.Msg) (*SearchInput, tea.Cmd) {
	var cmd tea.Cmd
	s.textinput, cmd = s.textinput.Update(msg)
	return s, cmd
}

func (s *SearchInput) View() string {
	label := s.styles.Title.Render(s.label + ": ")
	//nolint:misspell // lipgloss.Center
	return lipgloss.JoinHorizontal(lipgloss.Center, label, s.styles.InputField.Render(s.textinput.View()))
}

// SetLabel replaces the text before the box, e.g. with the search mode.
func (s *SearchInput) SetLabel(label string) {
	s.label = label
}

func (s *SearchInput) Value() string {
	return s.textinput.Value()
}

func (s *SearchInput) SetValue(value string) {
	s.textinput.SetValue(value)
}

func (s *SearchInput) Focus() tea.Cmd {
	return s.textinput.Focus()
}

func (s *SearchInput) Blur() {
	s.textinput.Blur()
}

func (s *SearchInput) Focused() bool {
	return s.textinput.Focused()
}

// SetWidth sizes the box to the terminal, leaving room for the label.
func (s *SearchInput) SetWidth(width int) {
	s.width = width
	s.textinput.Width = max(width-len(s.label)-8, 20)
}
