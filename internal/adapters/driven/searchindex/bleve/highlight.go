package bleve

import (
	"github.com/blevesearch/bleve"
	"github.com/blevesearch/bleve/document"
	"github.com/blevesearch/bleve/search"
	"github.com/blevesearch/bleve/search/highlight"
	htmlformat "github.com/blevesearch/bleve/search/highlight/format/html"
	simplefrag "github.com/blevesearch/bleve/search/highlight/fragmenter/simple"
	simplehl "github.com/blevesearch/bleve/search/highlight/highlighter/simple"

	"github.com/laws-africa/peachjam/internal/core/domain"
)

const (
	markBefore = "<mark>"
	markAfter  = "</mark>"

	// wholeValueLimit caps the values returned for a multi-valued field.
	wholeValueLimit = 100
)

// fieldHighlighter marks one field with its own fragment sizing.
type fieldHighlighter struct {
	field string
	num   int
	hl    highlight.Highlighter
}

// newHighlighters builds a highlighter per field. A field with no fragment
// size or fragment count is returned whole, one fragment per value.
func newHighlighters(cfg map[string]domain.HighlightField) []fieldHighlighter {
	out := make([]fieldHighlighter, 0, len(cfg))
	formatter := htmlformat.NewFragmentFormatter(markBefore, markAfter)
	for _, f := range sortedFields(cfg) {
		hc := cfg[f]
		var frag highlight.Fragmenter = wholeValue{}
		num := wholeValueLimit
		if hc.FragmentSize > 0 && hc.NumberOfFragments > 0 {
			frag = simplefrag.NewFragmenter(hc.FragmentSize)
			num = hc.NumberOfFragments
		}
		out = append(out, fieldHighlighter{
			field: f,
			num:   num,
			hl:    simplehl.NewHighlighter(frag, formatter, simplehl.DefaultSeparator),
		})
	}
	return out
}

// highlightHit marks the matched terms of hit. The stored document is
// loaded only when some configured field matched.
func highlightHit(idx bleve.Index, hit *search.DocumentMatch, hls []fieldHighlighter) (map[string][]string, error) {
	if len(hls) == 0 || len(hit.Locations) == 0 {
		return nil, nil
	}
	var doc *document.Document
	var out map[string][]string
	for _, h := range hls {
		if len(hit.Locations[h.field]) == 0 {
			continue
		}
		if doc == nil {
			d, err := idx.Document(hit.ID)
			if err != nil {
				return nil, err
			}
			if d == nil {
				return nil, nil
			}
			doc = d
		}
		frags := h.hl.BestFragmentsInField(hit, doc, h.field, h.num)
		if len(frags) == 0 {
			continue
		}
		if out == nil {
			out = make(map[string][]string)
		}
		out[h.field] = frags
	}
	return out, nil
}

// wholeValue returns each matched value as a single fragment.
type wholeValue struct{}

func (wholeValue) Fragment(orig []byte, ot highlight.TermLocations) []*highlight.Fragment {
	if len(ot) == 0 {
		return nil
	}
	return []*highlight.Fragment{{Orig: orig, Start: 0, End: len(orig)}}
}
