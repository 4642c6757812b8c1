// Package status provides the status bar of the terminal UI.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/laws-africa/peachjam/internal/adapters/driving/tui/keymap"
	"github.com/laws-africa/peachjam/internal/adapters/driving/tui/styles"
	"github.com/laws-africa/peachjam/internal/core/domain"
)

// State is what the search view is doing.
type State string

const (
	StateReady     State = "ready"
	StateSearching State = "searching"
	StateResults   State = "results"
	StateError     State = "error"
)

// Bar shows the search state on the left and key hints on the right.
type Bar struct {
	styles  *styles.Styles
	keymap  *keymap.KeyMap
	state   State
	message string
	mode    domain.SearchMode
	count   int
	page    int
	pages   int
	width   int
}

// NewBar returns a bar in the ready state.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &Bar{styles: s, keymap: km, state: StateReady, mode: domain.SearchModeText, page: 1, width: 80}
}

func (s *Bar) View() string {
	left := s.renderLeft()
	right := s.renderRight()
	padding := max(s.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return s.styles.StatusBar.Width(s.width).Render(left + strings.Repeat(" ", padding) + right)
}

func (s *Bar) renderLeft() string {
	mode := s.styles.Subtitle.Render(string(s.mode))
	switch s.state {
	case StateSearching:
		return mode + " " + s.styles.Muted.Render("Searching...")
	case StateError:
		if s.message != "" {
			return mode + " " + s.styles.Error.Render("Error: "+s.message)
		}
		return mode + " " + s.styles.Error.Render("Error")
	case StateResults:
		text := fmt.Sprintf("%d results, page %d of %d", s.count, s.page, max(s.pages, 1))
		if s.message != "" {
			text += " (" + s.message + ")"
		}
		return mode + " " + s.styles.Normal.Render(text)
	default:
		if s.message != "" {
			return mode + " " + s.styles.Muted.Render(s.message)
		}
		return mode + " " + s.styles.Muted.Render("Ready")
	}
}

func (s *Bar) renderRight() string {
	bindings := s.Bindings()
	hints := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		hints = append(hints, h.Key+": "+h.Desc)
	}
	return s.styles.Muted.Render(strings.Join(hints, " | "))
}

// Bindings returns the hints currently shown.
func (s *Bar) Bindings() []key.Binding {
	if s.state == StateResults && s.count > 0 {
		return s.keymap.ResultsHelp()
	}
	return s.keymap.ShortHelp()
}

func (s *Bar) SetState(state State) { s.state = state }
func (s *Bar) State() State         { return s.state }

func (s *Bar) SetMessage(message string) { s.message = message }
func (s *Bar) Message() string           { return s.message }

func (s *Bar) SetMode(mode domain.SearchMode) { s.mode = mode }

// SetResults records the total hit count and the page being shown.
func (s *Bar) SetResults(count, page, pages int) {
	s.count, s.page, s.pages = count, page, pages
}

func (s *Bar) SetWidth(width int) { s.width = width }

// Clear returns to the ready state.
func (s *Bar) Clear() {
	s.state = StateReady
	s.message = ""
	s.count, s.page, s.pages = 0, 1, 0
}
