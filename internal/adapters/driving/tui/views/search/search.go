// Package search provides the query and results view of the terminal UI.
package search

import (
	"context"
	"errors"
	"maps"
	"net/url"
	"slices"
	"strconv"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/laws-africa/peachjam/internal/adapters/driving/tui/components/input"
	"github.com/laws-africa/peachjam/internal/adapters/driving/tui/components/list"
	"github.com/laws-africa/peachjam/internal/adapters/driving/tui/components/status"
	"github.com/laws-africa/peachjam/internal/adapters/driving/tui/keymap"
	"github.com/laws-africa/peachjam/internal/adapters/driving/tui/messages"
	"github.com/laws-africa/peachjam/internal/adapters/driving/tui/styles"
	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driving"
)

// userAgent is recorded on search traces made from the terminal.
const userAgent = "peachjam-tui"

var modes = []domain.SearchMode{domain.SearchModeText, domain.SearchModeSemantic, domain.SearchModeHybrid}

// View holds the query input, the result list and the status bar.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	input     *input.SearchInput
	list      *list.ResultList
	statusbar *status.Bar

	searchService driving.SearchService
	ctx           context.Context

	mode    domain.SearchMode
	query   string
	page    int
	pages   int
	traceID string

	width      int
	height     int
	ready      bool
	err        error
	focusInput bool
}

// NewView creates a search view. Nil styles or keymap use the defaults.
func NewView(s *styles.Styles, km *keymap.KeyMap, searchService driving.SearchService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	v := &View{
		styles:        s,
		keymap:        km,
		input:         input.NewSearchInput(s),
		list:          list.NewResultList(s),
		statusbar:     status.NewBar(s, km),
		searchService: searchService,
		ctx:           context.Background(),
		page:          1,
		width:         80,
		height:        24,
		focusInput:    true,
	}
	v.setMode(domain.SearchModeText)
	return v
}

// WithContext sets the context searches run under.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		if v.focusInput {
			return v.handleInputKey(msg)
		}
		return v.handleResultsKey(msg)

	case messages.SearchCompleted:
		v.handleSearchCompleted(msg)
		return v, nil

	case messages.ErrorOccurred:
		v.showError(msg.Err)
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) handleInputKey(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keymap.Search):
		if v.input.Value() == "" {
			return v, nil
		}
		return v, v.submit(v.input.Value(), 1)
	case key.Matches(msg, v.keymap.Mode):
		v.cycleMode()
		return v, nil
	case key.Matches(msg, v.keymap.Back):
		if len(v.list.Hits()) > 0 {
			v.blurInput()
		}
		return v, nil
	}
	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) handleResultsKey(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keymap.Open):
		return v, v.openSelected()
	case key.Matches(msg, v.keymap.NewSearch), key.Matches(msg, v.keymap.Back):
		v.focusInput = true
		return v, v.input.Focus()
	case key.Matches(msg, v.keymap.Mode):
		v.cycleMode()
		return v, v.submit(v.query, 1)
	case key.Matches(msg, v.keymap.NextPage):
		if v.page < v.pages {
			return v, v.submit(v.query, v.page+1)
		}
		return v, nil
	case key.Matches(msg, v.keymap.PrevPage):
		if v.page > 1 {
			return v, v.submit(v.query, v.page-1)
		}
		return v, nil
	case key.Matches(msg, v.keymap.Help):
		return v, func() tea.Msg { return messages.ViewChanged{View: messages.ViewHelp} }
	case key.Matches(msg, v.keymap.Quit):
		return v, func() tea.Msg { return messages.Quit{} }
	}
	v.list, _ = v.list.Update(msg)
	return v, nil
}

func (v *View) openSelected() tea.Cmd {
	hit := v.list.SelectedHit()
	if hit == nil {
		return nil
	}
	id, err := strconv.ParseInt(hit.ID, 10, 64)
	if err != nil {
		return func() tea.Msg { return messages.ErrorOccurred{Err: err} }
	}
	return func() tea.Msg { return messages.DocumentSelected{ID: id} }
}

func (v *View) cycleMode() {
	for i, m := range modes {
		if m == v.mode {
			v.setMode(modes[(i+1)%len(modes)])
			return
		}
	}
	v.setMode(domain.SearchModeText)
}

func (v *View) setMode(mode domain.SearchMode) {
	v.mode = mode
	v.statusbar.SetMode(mode)
	label := "Search"
	switch mode {
	case domain.SearchModeSemantic:
		label = "Semantic"
	case domain.SearchModeHybrid:
		label = "Hybrid"
	}
	v.input.SetLabel(label)
}

// submit validates the query the way the search form does and returns a
// command that runs it.
func (v *View) submit(query string, page int) tea.Cmd {
	form := url.Values{
		"q":    {query},
		"mode": {string(v.mode)},
		"page": {strconv.Itoa(page)},
	}
	if v.traceID != "" {
		form.Set("previous_trace_id", v.traceID)
	}
	req, err := domain.ParseSearchForm(form)
	if err != nil {
		v.showError(err)
		return nil
	}
	req.UserAgent = userAgent

	v.err = nil
	v.statusbar.SetState(status.StateSearching)
	v.statusbar.SetMessage("")
	v.blurInput()

	svc, ctx := v.searchService, v.ctx
	return func() tea.Msg {
		if svc == nil {
			return messages.ErrorOccurred{Err: ErrNoSearchService}
		}
		resp, err := svc.Search(ctx, req)
		return messages.SearchCompleted{Request: req, Response: resp, Err: err}
	}
}

func (v *View) handleSearchCompleted(msg messages.SearchCompleted) {
	if msg.Err != nil {
		v.showError(msg.Err)
		return
	}
	resp := msg.Response
	v.err = nil
	v.query = msg.Request.Query
	v.page = msg.Request.Page
	v.pages = min((resp.Count+domain.PageSize-1)/domain.PageSize, domain.MaxPage)
	if resp.TraceID != nil {
		v.traceID = *resp.TraceID
	}
	v.list.SetResults(resp.Results, resp.Count)
	v.statusbar.SetState(status.StateResults)
	v.statusbar.SetResults(resp.Count, v.page, v.pages)
	v.statusbar.SetMessage("")
	v.blurInput()
}

func (v *View) showError(err error) {
	v.err = err
	msg := err.Error()
	var fe domain.FieldErrors
	if errors.As(err, &fe) {
		fields := slices.Sorted(maps.Keys(fe))
		msg = fields[0] + " " + fe[fields[0]][0]
	}
	v.statusbar.SetState(status.StateError)
	v.statusbar.SetMessage(msg)
}

func (v *View) blurInput() {
	v.focusInput = false
	v.input.Blur()
}

func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}
	sections := []string{v.styles.Title.Render("Peachjam"), "", v.input.View(), ""}
	if v.err != nil {
		sections = append(sections, v.styles.Error.Render("Error: "+v.err.Error()), "")
	}
	sections = append(sections, v.list.View(), "", v.statusbar.View())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
	v.input.SetWidth(width)
	v.list.SetDimensions(width, height-10)
	v.statusbar.SetWidth(width)
}

// Query returns the text in the input box.
func (v *View) Query() string {
	return v.input.Value()
}

// Mode returns the search mode the next search will use.
func (v *View) Mode() domain.SearchMode {
	return v.mode
}

// Page returns the page of the results being shown.
func (v *View) Page() int {
	return v.page
}

func (v *View) Hits() []domain.SearchHit {
	return v.list.Hits()
}

func (v *View) Err() error {
	return v.err
}

func (v *View) InputFocused() bool {
	return v.focusInput
}

// Reset clears the query and results and focuses the input.
func (v *View) Reset() {
	v.focusInput = true
	v.input.Focus()
	v.input.SetValue("")
	v.list.SetResults(nil, 0)
	v.query, v.page, v.pages = "", 1, 0
	v.err = nil
	v.statusbar.Clear()
}
