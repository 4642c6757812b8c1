package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	defaultRelated = 10
	maxRelated     = 50
)

// relatedJSON is one related document on the wire.
type relatedJSON struct {
	ID                int64   `json:"id"`
	Title             string  `json:"title"`
	Citation          string  `json:"citation,omitempty"`
	ExpressionFrbrURI string  `json:"expression_frbr_uri"`
	Similarity        float64 `json:"similarity"`
	Score             float64 `json:"score"`
}

// related serves GET /api/documents/:id/related?n=.
func (s *Server) related(c echo.Context) error {
	if s.ports.Related == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "related documents are not available")
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "id must be a positive integer")
	}
	n := defaultRelated
	if v := c.QueryParam("n"); v != "" {
		n, err = strconv.Atoi(v)
		if err != nil || n < 1 || n > maxRelated {
			return echo.NewHTTPError(http.StatusBadRequest, "n must be between 1 and 50")
		}
	}

	related, err := s.ports.Related.Related(c.Request().Context(), []int64{id}, n)
	if err != nil {
		return err
	}
	out := make([]relatedJSON, len(related))
	for i, r := range related {
		out[i] = relatedJSON{
			ID:                r.Document.ID,
			Title:             r.Document.Title,
			Citation:          r.Document.Citation,
			ExpressionFrbrURI: r.Document.ExpressionFrbrURI,
			Similarity:        r.Similarity,
			Score:             r.Score,
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"results": out})
}
