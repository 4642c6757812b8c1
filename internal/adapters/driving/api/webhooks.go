package api

import (
	"crypto/subtle"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// maxWebhookBody caps webhook payloads.
const maxWebhookBody = 1 << 20

// webhook passes a push notification to the named ingestor.
func (s *Server) webhook(c echo.Context) error {
	if s.ports.Ingestion == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "ingestion is not available")
	}
	if s.cfg.WebhookToken != "" && !s.validToken(c.Request().Header.Get(echo.HeaderAuthorization)) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid webhook token")
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "reading payload")
	}
	if len(payload) > maxWebhookBody {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "payload too large")
	}

	if err := s.ports.Ingestion.HandleWebhook(c.Request().Context(), c.Param("name"), payload); err != nil {
		return err
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) validToken(header string) bool {
	token, ok := strings.CutPrefix(header, "Token ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.WebhookToken)) == 1
}
