package html

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles HTML and AKN documents.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml", "application/akn+xml"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise extracts text, TOC and provision text from marked-up content.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	root, err := html.Parse(bytes.NewReader(raw.Content))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing html: %v", domain.ErrInvalidInput, err)
	}

	toc := buildTOC(root)
	ids := make(map[string]bool)
	for _, e := range domain.FlattenTOC(toc) {
		ids[e.ID] = true
	}

	return &driven.NormaliseResult{
		Title:      documentTitle(root),
		Text:       nodeText(root),
		TOC:        toc,
		Provisions: provisionTexts(root, ids),
	}, nil
}

// Text returns the plain text of marked-up content.
func Text(markup string) (string, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("%w: parsing html: %v", domain.ErrInvalidInput, err)
	}
	return nodeText(root), nil
}

// ProvisionTexts returns the plain text of each element whose id is listed.
// Ids that do not occur in the markup are absent from the result.
func ProvisionTexts(markup string, ids []string) (map[string]string, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing html: %v", domain.ErrInvalidInput, err)
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	return provisionTexts(root, want), nil
}

// TOC builds a table of contents from akn-* classed elements.
func TOC(markup string) ([]domain.TocEntry, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing html: %v", domain.ErrInvalidInput, err)
	}
	return buildTOC(root), nil
}

func provisionTexts(root *html.Node, ids map[string]bool) map[string]string {
	out := make(map[string]string)
	if len(ids) == 0 {
		return out
	}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if id := elementID(n); id != "" && ids[id] {
				if _, seen := out[id]; !seen {
					out[id] = nodeText(n)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

// documentTitle returns the <title> text, else the first h1.
func documentTitle(root *html.Node) string {
	if t := findFirst(root, atom.Title); t != nil {
		if s := collapse(rawText(t)); s != "" {
			return s
		}
	}
	if h := findFirst(root, atom.H1); h != nil {
		return collapse(rawText(h))
	}
	return ""
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if f := findFirst(c, a); f != nil {
			return f
		}
	}
	return nil
}

func elementID(n *html.Node) string {
	var id string
	for _, a := range n.Attr {
		switch strings.ToLower(a.Key) {
		case "data-eid":
			return a.Val
		case "id", "eid":
			id = a.Val
		}
	}
	return id
}

func classes(n *html.Node) []string {
	for _, a := range n.Attr {
		if a.Key == "class" {
			return strings.Fields(a.Val)
		}
	}
	return nil
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range classes(n) {
		if c == class {
			return true
		}
	}
	return false
}
