// Package api serves the search engine over HTTP with echo.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/laws-africa/peachjam/internal/core/ports/driving"
	"github.com/laws-africa/peachjam/internal/logger"
)

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("api: search service is required")

// Ports aggregates the driving ports the API serves.
type Ports struct {
	// Search is required.
	Search    driving.SearchService
	Traces    driving.TraceService
	Related   driving.RelatedService
	Ingestion driving.IngestionService
}

// Config configures the server.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// WebhookToken, when set, must be presented as "Authorization: Token <value>"
	// on webhook calls.
	WebhookToken string

	// Metrics serves /metrics when set.
	Metrics http.Handler

	// MCP is mounted at /mcp when set.
	MCP http.Handler
}

// Server is the HTTP API.
type Server struct {
	ports Ports
	cfg   Config
	echo  *echo.Echo
}

// NewServer builds the echo instance and registers the routes.
func NewServer(ports Ports, cfg Config) (*Server, error) {
	if ports.Search == nil {
		return nil, ErrMissingSearchService
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = errorHandler

	s := &Server{ports: ports, cfg: cfg, echo: e}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	e := s.echo
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if s.cfg.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(s.cfg.Metrics))
	}
	if s.cfg.MCP != nil {
		e.Any("/mcp", echo.WrapHandler(s.cfg.MCP))
	}

	api := e.Group("/api")
	search := api.Group("/search")
	search.GET("", s.search)
	search.GET("/suggest", s.suggest)
	search.GET("/traces", s.listTraces)
	search.GET("/traces/:id", s.getTrace)

	api.GET("/documents/:id/related", s.related)
	api.POST("/ingestors/:name/webhook", s.webhook)
}

// Handler exposes the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run listens on cfg.Addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		logger.Info("api: listening on %s", s.cfg.Addr)
		errc <- s.echo.Start(s.cfg.Addr)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	}
}
