// Package citations finds references to other legal works in document text.
package citations

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/laws-africa/peachjam/internal/core/domain"
)

// Matcher finds candidate citations in text. Offsets are byte offsets into text.
type Matcher interface {
	// Name identifies the matcher on emitted matches.
	Name() string

	// Match returns candidate citations in the document's text.
	Match(doc *domain.Document, text string) []domain.CitationMatch
}

// MNCMatcher finds media-neutral citations such as "[2019] EACJ 1".
// Courts maps upper-case court codes to their country code.
type MNCMatcher struct {
	Courts map[string]string
}

var mncRe = regexp.MustCompile(`\[(\d{4})\]\s+([A-Z][A-Za-z]{1,15})\s+(\d{1,6})\b`)

// Name returns "mnc".
func (m *MNCMatcher) Name() string { return "mnc" }

// Match resolves each MNC against the known courts. Unknown courts are ignored.
func (m *MNCMatcher) Match(_ *domain.Document, text string) []domain.CitationMatch {
	var out []domain.CitationMatch
	for _, loc := range mncRe.FindAllStringSubmatchIndex(text, -1) {
		year := text[loc[2]:loc[3]]
		court := strings.ToUpper(text[loc[4]:loc[5]])
		num := strings.TrimLeft(text[loc[6]:loc[7]], "0")

		country, ok := m.Courts[court]
		if !ok || num == "" {
			continue
		}
		f := domain.FrbrURI{
			Country: strings.ToLower(country),
			Doctype: "judgment",
			Actor:   strings.ToLower(court),
			Date:    year,
			Number:  num,
		}
		uri, err := f.WorkURI()
		if err != nil {
			continue
		}
		out = append(out, domain.CitationMatch{
			Start:   loc[0],
			End:     loc[1],
			Text:    text[loc[0]:loc[1]],
			URL:     uri,
			WorkURI: uri,
			Matcher: m.Name(),
		})
	}
	return out
}

// ActMatcher finds references like "Act 4 of 2009" or "Act No. 4 of 2009"
// and resolves them in the citing document's country.
type ActMatcher struct{}

var actRe = regexp.MustCompile(`\bAct,?\s+(?:[Nn]o\.?\s*)?(\d{1,5})\s+of\s+(\d{4})\b`)

// Name returns "act".
func (m *ActMatcher) Name() string { return "act" }

// Match needs the document's country to resolve targets.
func (m *ActMatcher) Match(doc *domain.Document, text string) []domain.CitationMatch {
	if doc == nil || doc.Country == "" {
		return nil
	}
	var out []domain.CitationMatch
	for _, loc := range actRe.FindAllStringSubmatchIndex(text, -1) {
		num, err := strconv.Atoi(text[loc[2]:loc[3]])
		if err != nil || num == 0 {
			continue
		}
		f := domain.FrbrURI{
			Country: doc.Country,
			Doctype: "act",
			Date:    text[loc[4]:loc[5]],
			Number:  strconv.Itoa(num),
		}
		uri, err := f.WorkURI()
		if err != nil {
			continue
		}
		out = append(out, domain.CitationMatch{
			Start:   loc[0],
			End:     loc[1],
			Text:    text[loc[0]:loc[1]],
			URL:     uri,
			WorkURI: uri,
			Matcher: m.Name(),
		})
	}
	return out
}

// AKNMatcher finds literal FRBR URIs, optionally pointing at a provision
// with a "/~<id>" suffix.
type AKNMatcher struct{}

var aknRe = regexp.MustCompile(`/akn/[a-z]{2}(?:-[a-z0-9]+)?/[A-Za-z0-9_.@/~!-]+`)

// Name returns "akn".
func (m *AKNMatcher) Name() string { return "akn" }

// Match parses each candidate URI and drops ones that are not valid identifiers.
func (m *AKNMatcher) Match(_ *domain.Document, text string) []domain.CitationMatch {
	var out []domain.CitationMatch
	for _, loc := range aknRe.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		// sentence punctuation is not part of the URI
		for end > start && strings.ContainsRune(".-/", rune(text[end-1])) {
			end--
		}
		raw := text[start:end]

		uri, provision := raw, ""
		if i := strings.Index(raw, "/~"); i >= 0 {
			uri, provision = raw[:i], raw[i+2:]
		}
		f, err := domain.ParseFrbrURI(uri)
		if err != nil {
			continue
		}
		work, err := f.WorkURI()
		if err != nil {
			continue
		}
		out = append(out, domain.CitationMatch{
			Start:             start,
			End:               end,
			Text:              raw,
			URL:               raw,
			WorkURI:           work,
			TargetProvisionID: provision,
			Matcher:           m.Name(),
		})
	}
	return out
}
