package cli

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/laws-africa/peachjam/internal/adapters/driving/api"
	"github.com/laws-africa/peachjam/internal/adapters/driving/mcp"
)

// webhookTokenEnv names the variable holding the webhook shared secret.
const webhookTokenEnv = "PEACHJAM_WEBHOOK_TOKEN"

var (
	serveAddr  string
	serveNoMCP bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serves search, suggestions, traces, related documents and ingestor
webhooks over HTTP. Prometheus metrics are at /metrics and the MCP server is
mounted at /mcp.

Webhook calls must present "Authorization: Token <secret>" when
PEACHJAM_WEBHOOK_TOKEN is set.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "listen address (default from http.addr)")
	serveCmd.Flags().BoolVar(&serveNoMCP, "no-mcp", false, "do not mount the MCP server")
	rootCmd.AddCommand(serveCmd)
}

func newAPIServer() (*api.Server, error) {
	if searchService == nil {
		return nil, errors.New("search service not configured")
	}
	addr := serveAddr
	if addr == "" {
		addr = appSettings.HTTPAddr
	}
	cfg := api.Config{
		Addr:         addr,
		WebhookToken: os.Getenv(webhookTokenEnv),
		Metrics:      metricsHandler,
	}
	if !serveNoMCP {
		m, err := mcp.NewServer(mcpPorts())
		if err != nil {
			return nil, err
		}
		cfg.MCP = m.Handler()
	}
	return api.NewServer(api.Ports{
		Search:    searchService,
		Traces:    traceService,
		Related:   relatedService,
		Ingestion: ingestionService,
	}, cfg)
}

func runServe(cmd *cobra.Command, _ []string) error {
	server, err := newAPIServer()
	if err != nil {
		return err
	}
	return server.Run(cmd.Context())
}
