package citations

import (
	"sort"
	"unicode/utf8"

	"github.com/laws-africa/peachjam/internal/core/domain"
)

// Extractor runs a set of matchers over a document's text.
type Extractor struct {
	matchers []Matcher
}

// NewExtractor creates an extractor with the given matchers.
func NewExtractor(matchers ...Matcher) *Extractor {
	return &Extractor{matchers: matchers}
}

// DefaultMatchers returns the built-in matchers. courts maps court codes to countries.
func DefaultMatchers(courts map[string]string) []Matcher {
	return []Matcher{
		&MNCMatcher{Courts: courts},
		&ActMatcher{},
		&AKNMatcher{},
	}
}

// Extract returns the de-duplicated matches in doc.ContentText ordered by
// position, with context either side.
func (e *Extractor) Extract(doc *domain.Document) []domain.CitationMatch {
	text := doc.ContentText
	if text == "" {
		return nil
	}

	seen := make(map[domain.CitationKey]bool)
	var out []domain.CitationMatch
	for _, m := range e.matchers {
		for _, match := range m.Match(doc, text) {
			if seen[match.Key()] {
				continue
			}
			seen[match.Key()] = true
			match.Prefix, match.Suffix = surrounding(text, match.Start, match.End, domain.CitationContextSize)
			out = append(out, match)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].End < out[j].End
	})
	return out
}

// surrounding returns up to size characters either side of [start, end).
func surrounding(text string, start, end, size int) (string, string) {
	from := start
	for n := 0; n < size && from > 0; n++ {
		_, w := utf8.DecodeLastRuneInString(text[:from])
		from -= w
	}
	to := end
	for n := 0; n < size && to < len(text); n++ {
		_, w := utf8.DecodeRuneInString(text[to:])
		to += w
	}
	return text[from:start], text[end:to]
}
