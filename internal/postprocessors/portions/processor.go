// Package portions creates the initial content chunks of a document:
// one per TOC provision, one per page, or one for the whole text, plus
// a summary chunk.
package portions

import (
	"context"
	"strconv"
	"strings"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/normalisers/html"
)

// Processor builds portion chunks. It ignores incoming chunks.
type Processor struct{}

// New creates a portions processor.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "portions"
}

// Process creates chunks from the document's content and summary.
func (p *Processor) Process(_ context.Context, doc *domain.Document, _ []domain.ContentChunk) ([]domain.ContentChunk, error) {
	var chunks []domain.ContentChunk

	switch {
	case doc.HasProvisions():
		provisions, err := provisionChunks(doc)
		if err != nil {
			return nil, err
		}
		chunks = provisions
	case strings.Contains(doc.ContentText, domain.PageBreak):
		chunks = pageChunks(doc)
	case strings.TrimSpace(doc.ContentText) != "":
		chunks = []domain.ContentChunk{{
			DocumentID: doc.ID,
			Type:       domain.ChunkTypeText,
			Text:       strings.TrimSpace(doc.ContentText),
		}}
	}

	if summary := doc.SummaryText(); summary != "" {
		chunks = append(chunks, domain.ContentChunk{
			DocumentID: doc.ID,
			Type:       domain.ChunkTypeSummary,
			Text:       summary,
		})
	}

	for i := range chunks {
		chunks[i].NChunks = 1
	}
	return chunks, nil
}

// provisionChunks emits one chunk per TOC entry with its ancestry prepended.
func provisionChunks(doc *domain.Document) ([]domain.ContentChunk, error) {
	flat := domain.FlattenTOC(doc.TOC)
	ids := make([]string, 0, len(flat))
	for _, e := range flat {
		ids = append(ids, e.ID)
	}
	texts, err := html.ProvisionTexts(doc.ContentHTML, ids)
	if err != nil {
		return nil, err
	}

	var out []domain.ContentChunk
	for _, e := range flat {
		body := strings.TrimSpace(texts[e.ID])
		if body == "" {
			continue
		}
		out = append(out, domain.ContentChunk{
			DocumentID:     doc.ID,
			Type:           domain.ChunkTypeProvision,
			Portion:        e.ID,
			Text:           ProvisionText(e.ParentTitles, e.Title, body),
			ProvisionType:  e.Type,
			ProvisionID:    e.ID,
			ProvisionTitle: e.Title,
			ParentIDs:      e.ParentIDs,
			ParentTitles:   e.ParentTitles,
		})
	}
	return out, nil
}

// ProvisionText joins the provision's context and body around the sentinel.
func ProvisionText(parentTitles []string, title, body string) string {
	heads := make([]string, 0, len(parentTitles)+1)
	for _, t := range append(append([]string(nil), parentTitles...), title) {
		if t = strings.TrimSpace(t); t != "" {
			heads = append(heads, t)
		}
	}
	return strings.Join(heads, "\n") + domain.ProvisionSentinel + body
}

// pageChunks emits one chunk per non-empty page. Portions are 1-based page numbers.
func pageChunks(doc *domain.Document) []domain.ContentChunk {
	var out []domain.ContentChunk
	for i, page := range doc.Pages() {
		page = strings.TrimSpace(page)
		if page == "" {
			continue
		}
		out = append(out, domain.ContentChunk{
			DocumentID: doc.ID,
			Type:       domain.ChunkTypePage,
			Portion:    strconv.Itoa(i + 1),
			Text:       page,
		})
	}
	return out
}
