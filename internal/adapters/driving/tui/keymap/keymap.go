// Package keymap defines the terminal UI key bindings.
package keymap

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap holds every binding the views respond to.
type KeyMap struct {
	Quit      key.Binding
	Help      key.Binding
	Back      key.Binding
	Search    key.Binding
	Up        key.Binding
	Down      key.Binding
	Open      key.Binding
	NewSearch key.Binding

	// Mode cycles text, semantic and hybrid search.
	Mode key.Binding

	NextPage key.Binding
	PrevPage key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Back:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Search:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "search")),
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Open:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		NewSearch: key.NewBinding(key.WithKeys("n", "/"), key.WithHelp("/", "new search")),
		Mode:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "mode")),
		NextPage:  key.NewBinding(key.WithKeys("]", "pgdown"), key.WithHelp("]", "next page")),
		PrevPage:  key.NewBinding(key.WithKeys("[", "pgup"), key.WithHelp("[", "prev page")),
	}
}

// ShortHelp is shown while typing a query.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Search, k.Mode, k.Back}
}

// ResultsHelp is shown while browsing results.
func (k *KeyMap) ResultsHelp() []key.Binding {
	return []key.Binding{k.Open, k.NewSearch, k.NextPage, k.PrevPage, k.Quit}
}

// FullHelp groups every binding for the help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Search, k.Mode, k.NewSearch},
		{k.Up, k.Down, k.Open},
		{k.NextPage, k.PrevPage},
		{k.Back, k.Help, k.Quit},
	}
}
