package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/laws-africa/peachjam/internal/core/domain"
)

// defaultTraceLimit is the number of traces listed when limit is unset.
const defaultTraceLimit = 50

// maxTraceLimit caps the limit parameter of the trace list.
const maxTraceLimit = 500

// search validates the query string and runs the search.
func (s *Server) search(c echo.Context) error {
	req, err := domain.ParseSearchForm(c.QueryParams())
	if err != nil {
		return err
	}
	req.UserAgent = c.Request().UserAgent()
	req.IPAddress = c.RealIP()

	resp, err := s.ports.Search.Search(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) suggest(c echo.Context) error {
	suggestions, err := s.ports.Search.Suggest(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return err
	}
	if suggestions == nil {
		suggestions = []string{}
	}
	return c.JSON(http.StatusOK, map[string]any{"suggestions": suggestions})
}

// traceJSON is the wire form of a search trace.
type traceJSON struct {
	ID              string              `json:"id"`
	ConfigVersion   string              `json:"config_version"`
	Query           string              `json:"search"`
	FieldQueries    map[string]string   `json:"field_searches,omitempty"`
	Filters         map[string][]string `json:"filters,omitempty"`
	FiltersString   string              `json:"filters_string"`
	Ordering        string              `json:"ordering"`
	Page            int                 `json:"page"`
	Mode            string              `json:"mode"`
	QueryClass      string              `json:"query_class"`
	NResults        int                 `json:"n_results"`
	PreviousTraceID string              `json:"previous_search,omitempty"`
	UserAgent       string              `json:"user_agent,omitempty"`
	IPAddress       string              `json:"ip_address,omitempty"`
	TookMillis      int64               `json:"took_ms"`
	CreatedAt       time.Time           `json:"created_at"`
}

func toTraceJSON(t *domain.SearchTrace) traceJSON {
	return traceJSON{
		ID:              t.ID,
		ConfigVersion:   t.ConfigVersion,
		Query:           t.Query,
		FieldQueries:    t.FieldQueries,
		Filters:         t.Filters,
		FiltersString:   t.FiltersString,
		Ordering:        string(t.Ordering),
		Page:            t.Page,
		Mode:            string(t.Mode),
		QueryClass:      string(t.QueryClass),
		NResults:        t.NResults,
		PreviousTraceID: t.PreviousTraceID,
		UserAgent:       t.UserAgent,
		IPAddress:       t.IPAddress,
		TookMillis:      t.Took.Milliseconds(),
		CreatedAt:       t.CreatedAt,
	}
}

func (s *Server) listTraces(c echo.Context) error {
	if s.ports.Traces == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "search traces are not recorded")
	}
	limit := defaultTraceLimit
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = min(n, maxTraceLimit)
	}

	traces, err := s.ports.Traces.ListTraces(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	out := make([]traceJSON, len(traces))
	for i := range traces {
		out[i] = toTraceJSON(&traces[i])
	}
	body := map[string]any{"results": out}
	if w := c.QueryParam("warning"); w != "" {
		body["warning"] = w
	}
	return c.JSON(http.StatusOK, body)
}

// getTrace redirects to the trace list with a warning when the id is unknown.
func (s *Server) getTrace(c echo.Context) error {
	if s.ports.Traces == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "search traces are not recorded")
	}
	trace, err := s.ports.Traces.GetTrace(c.Request().Context(), c.Param("id"))
	if errors.Is(err, domain.ErrNotFound) {
		return c.Redirect(http.StatusFound, "/api/search/traces?warning=trace-not-found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toTraceJSON(trace))
}
