package citations

import (
	"strings"

	"github.com/laws-africa/peachjam/internal/core/domain"
)

// Span locates a provision's text within the document text.
type Span struct {
	ID    string
	Start int
	End   int
}

// ProvisionSpans finds each provision body in text. Provisions are searched in
// TOC order, each from its parent's start. Bodies that cannot be found are skipped.
func ProvisionSpans(text string, toc []domain.TocEntry, bodies map[string]string) []Span {
	starts := make(map[string]int)
	cursor := 0
	var spans []Span
	for _, e := range domain.FlattenTOC(toc) {
		body := strings.TrimSpace(bodies[e.ID])
		if body == "" {
			continue
		}

		from := cursor
		if n := len(e.ParentIDs); n > 0 {
			if s, ok := starts[e.ParentIDs[n-1]]; ok {
				from = s
			}
		}
		i := strings.Index(text[from:], body)
		if i < 0 {
			continue
		}
		start := from + i
		starts[e.ID] = start
		spans = append(spans, Span{ID: e.ID, Start: start, End: start + len(body)})
		if e.TopLevel {
			cursor = start + len(body)
		}
	}
	return spans
}

// InnermostProvision returns the id of the smallest span containing [start, end), or "".
func InnermostProvision(spans []Span, start, end int) string {
	best, size := "", -1
	for _, s := range spans {
		if s.Start <= start && end <= s.End {
			if size < 0 || s.End-s.Start < size {
				best, size = s.ID, s.End-s.Start
			}
		}
	}
	return best
}
