// Package styles holds the colours and lipgloss styles of the terminal UI.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme is a colour palette.
type Theme struct {
	Primary    lipgloss.Color
	Secondary  lipgloss.Color
	Foreground lipgloss.Color
	Muted      lipgloss.Color
	Highlight  lipgloss.Color
	Error      lipgloss.Color
	Border     lipgloss.Color
	Bar        lipgloss.Color
}

// DefaultTheme returns the default palette.
func DefaultTheme() *Theme {
	return &Theme{
		Primary:    lipgloss.Color("#E8743B"), // peach
		Secondary:  lipgloss.Color("#3B8EA5"), // teal
		Foreground: lipgloss.Color("#E4E4E7"),
		Muted:      lipgloss.Color("#71717A"),
		Highlight:  lipgloss.Color("#FACC15"),
		Error:      lipgloss.Color("#F87171"),
		Border:     lipgloss.Color("#52525B"),
		Bar:        lipgloss.Color("#18181B"),
	}
}

// Styles are the pre-built styles shared by views.
type Styles struct {
	theme *Theme

	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Normal   lipgloss.Style
	Muted    lipgloss.Style
	Selected lipgloss.Style
	Error    lipgloss.Style

	// Citation renders a document's citation under its title.
	Citation lipgloss.Style

	// Mark renders a highlighted term inside a snippet.
	Mark lipgloss.Style

	// BestMatch flags the hit that matched the title or citation exactly.
	BestMatch lipgloss.Style

	InputField lipgloss.Style
	StatusBar  lipgloss.Style
	Help       lipgloss.Style
	Border     lipgloss.Style
}

// NewStyles builds styles from theme, or the default theme when nil.
func NewStyles(theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}
	return &Styles{
		theme:    theme,
		Title:    lipgloss.NewStyle().Bold(true).Foreground(theme.Primary),
		Subtitle: lipgloss.NewStyle().Bold(true).Foreground(theme.Secondary),
		Normal:   lipgloss.NewStyle().Foreground(theme.Foreground),
		Muted:    lipgloss.NewStyle().Foreground(theme.Muted),
		Selected: lipgloss.NewStyle().Bold(true).
			Foreground(theme.Foreground).
			Background(theme.Primary),
		Error:     lipgloss.NewStyle().Foreground(theme.Error),
		Citation:  lipgloss.NewStyle().Italic(true).Foreground(theme.Secondary),
		Mark:      lipgloss.NewStyle().Bold(true).Foreground(theme.Highlight),
		BestMatch: lipgloss.NewStyle().Bold(true).Foreground(theme.Highlight),
		InputField: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),
		StatusBar: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Background(theme.Bar).
			Padding(0, 1),
		Help: lipgloss.NewStyle().Foreground(theme.Muted),
		Border: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border),
	}
}

// DefaultStyles returns styles for the default theme.
func DefaultStyles() *Styles {
	return NewStyles(DefaultTheme())
}

// Theme returns the palette the styles were built from.
func (s *Styles) Theme() *Theme {
	return s.theme
}
