package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const uriScheme = "peachjam://"

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "ingestors",
		Name:        "ingestors",
		Description: "Configured ingestors and when they were last refreshed",
		MIMEType:    "application/json",
	}, s.handleIngestorsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "documents/{documentId}",
		Name:        "document-content",
		Description: "Plain text of a document",
		MIMEType:    "text/plain",
	}, s.handleDocumentContentResource)
}

func (s *Server) handleIngestorsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	type ingestorInfo struct {
		Name          string     `json:"name"`
		Adapter       string     `json:"adapter"`
		Enabled       bool       `json:"enabled"`
		LastRefreshed *time.Time `json:"last_refreshed_at"`
	}
	infos := []ingestorInfo{}

	if s.ports.Ingestion != nil {
		ingestors, err := s.ports.Ingestion.ListIngestors(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing ingestors: %w", err)
		}
		for _, ing := range ingestors {
			infos = append(infos, ingestorInfo{
				Name:          ing.Name,
				Adapter:       ing.Adapter,
				Enabled:       ing.Enabled,
				LastRefreshed: ing.LastRefreshedAt,
			})
		}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling ingestors: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

func (s *Server) handleDocumentContentResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Documents == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	id, ok := extractDocumentID(req.Params.URI)
	if !ok {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	doc, err := s.ports.Documents.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting document %d: %w", id, err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     doc.ContentText,
		}},
	}, nil
}

// extractDocumentID parses the id from peachjam://documents/{documentId}.
func extractDocumentID(uri string) (int64, bool) {
	rest, ok := strings.CutPrefix(uri, uriScheme+"documents/")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
