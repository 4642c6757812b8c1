package driven

import (
	"context"

	"github.com/laws-africa/peachjam/internal/core/domain"
)

// Normaliser extracts plain text and structure from one content format.
type Normaliser interface {
	// SupportedMIMETypes returns the MIME types this normaliser handles.
	SupportedMIMETypes() []string

	// Priority orders normalisers for the same MIME type; higher wins.
	Priority() int

	// Normalise extracts text and structure from raw content.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*NormaliseResult, error)
}

// NormaliseResult is the extracted form of a piece of content.
type NormaliseResult struct {
	// Title is the content's own title, if it declares one.
	Title string

	// Text is the plain text. Paged formats separate pages with domain.PageBreak.
	Text string

	// TOC is the provision tree of marked-up content.
	TOC []domain.TocEntry

	// Provisions maps TOC ids to the plain text of each provision.
	Provisions map[string]string
}
