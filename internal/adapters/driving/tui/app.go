package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/laws-africa/peachjam/internal/adapters/driving/tui/keymap"
	"github.com/laws-africa/peachjam/internal/adapters/driving/tui/messages"
	"github.com/laws-africa/peachjam/internal/adapters/driving/tui/styles"
	"github.com/laws-africa/peachjam/internal/adapters/driving/tui/views/doccontent"
	"github.com/laws-africa/peachjam/internal/adapters/driving/tui/views/search"
)

// App is the root Bubbletea model. It routes messages to the active view.
type App struct {
	ports  *Ports
	styles *styles.Styles
	keymap *keymap.KeyMap

	searchView   *search.View
	documentView *doccontent.View

	currentView messages.ViewType
	err         error
	width       int
	height      int
	ready       bool
}

var _ tea.Model = (*App)(nil)

// NewApp creates the application. Searches run under ctx.
func NewApp(ctx context.Context, ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}
	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()
	return &App{
		ports:        ports,
		styles:       s,
		keymap:       km,
		searchView:   search.NewView(s, km, ports.Search).WithContext(ctx),
		documentView: doccontent.NewView(s, ports.Documents).WithContext(ctx),
		currentView:  messages.ViewSearch,
	}, nil
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(tea.SetWindowTitle("peachjam"), a.searchView.Init())
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		switch a.currentView {
		case messages.ViewSearch:
			a.searchView, cmd = a.searchView.Update(msg)
		case messages.ViewDocument:
			a.documentView, cmd = a.documentView.Update(msg)
		case messages.ViewHelp:
			if msg.String() == "esc" || msg.String() == "?" || msg.String() == "q" {
				a.currentView = messages.ViewSearch
			}
		}
		return a, cmd

	case messages.ViewChanged:
		a.currentView = msg.View
		return a, nil

	case messages.DocumentSelected:
		a.currentView = messages.ViewDocument
		return a, a.documentView.Load(msg.ID)

	case messages.DocumentLoaded:
		a.documentView, cmd = a.documentView.Update(msg)
		return a, cmd

	case messages.SearchCompleted:
		a.err = msg.Err
		a.searchView, cmd = a.searchView.Update(msg)
		return a, cmd

	case messages.ErrorOccurred:
		a.err = msg.Err
		if a.currentView == messages.ViewDocument {
			a.documentView, cmd = a.documentView.Update(msg)
		} else {
			a.searchView, cmd = a.searchView.Update(msg)
		}
		return a, cmd

	case messages.Quit:
		return a, tea.Quit
	}

	if a.currentView == messages.ViewSearch {
		a.searchView, cmd = a.searchView.Update(msg)
	}
	return a, cmd
}

func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}
	switch a.currentView {
	case messages.ViewDocument:
		return a.documentView.View()
	case messages.ViewHelp:
		return a.viewHelp()
	default:
		return a.searchView.View()
	}
}

func (a *App) viewHelp() string {
	var b strings.Builder
	b.WriteString(a.styles.Title.Render("Keys"))
	b.WriteString("\n\n")
	for _, group := range a.keymap.FullHelp() {
		for _, binding := range group {
			h := binding.Help()
			b.WriteString(fmt.Sprintf("  %-8s %s\n", h.Key, h.Desc))
		}
		b.WriteString("\n")
	}
	b.WriteString(a.styles.Help.Render("[esc] back"))
	return b.String()
}

// Run starts the program on the alternate screen and blocks until it exits.
func (a *App) Run(ctx context.Context) error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// CurrentView returns the active view.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Err returns the last error reported to the app.
func (a *App) Err() error {
	return a.err
}

// SearchView returns the search view.
func (a *App) SearchView() *search.View {
	return a.searchView
}

// DocumentView returns the document view.
func (a *App) DocumentView() *doccontent.View {
	return a.documentView
}

// SetDimensions resizes every view.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.searchView.SetDimensions(width, height)
	a.documentView.SetDimensions(width, height)
}
