package html

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/laws-africa/peachjam/internal/core/domain"
)

// tocTypes are the AKN element types that appear in a table of contents.
var tocTypes = map[string]bool{
	"preface":     true,
	"preamble":    true,
	"part":        true,
	"subpart":     true,
	"chapter":     true,
	"subchapter":  true,
	"division":    true,
	"subdivision": true,
	"section":     true,
	"article":     true,
	"attachment":  true,
	"conclusions": true,
}

// buildTOC collects akn-classed elements with ids into a tree that mirrors
// their nesting in the markup.
func buildTOC(root *html.Node) []domain.TocEntry {
	var walk func(*html.Node) []domain.TocEntry
	walk = func(n *html.Node) []domain.TocEntry {
		var out []domain.TocEntry
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			typ := aknType(c)
			id := elementID(c)
			if typ == "" || id == "" {
				out = append(out, walk(c)...)
				continue
			}
			out = append(out, domain.TocEntry{
				ID:       id,
				Type:     typ,
				Title:    entryTitle(c, typ),
				Children: walk(c),
			})
		}
		return out
	}
	return walk(root)
}

func aknType(n *html.Node) string {
	for _, c := range classes(n) {
		if t, ok := strings.CutPrefix(c, "akn-"); ok && tocTypes[t] {
			return t
		}
	}
	// raw AKN XML uses the element name itself
	if n.DataAtom == 0 || n.DataAtom == atom.Section || n.DataAtom == atom.Article {
		if tocTypes[n.Data] && hasAttr(n, "eid") {
			return n.Data
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return true
		}
	}
	return false
}

// entryTitle joins the element's num and heading, e.g. "1. Definitions".
func entryTitle(n *html.Node, typ string) string {
	var num, heading string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch {
		case num == "" && (hasClass(c, "akn-num") || c.Data == "num"):
			num = collapse(rawText(c))
		case heading == "" && (hasClass(c, "akn-heading") || c.Data == "heading"):
			heading = collapse(rawText(c))
		case heading == "" && isHeading(c):
			heading = collapse(rawText(c))
		}
	}
	title := strings.TrimSpace(num + " " + heading)
	if title == "" {
		return strings.ToUpper(typ[:1]) + typ[1:]
	}
	return title
}

func isHeading(n *html.Node) bool {
	switch n.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return true
	}
	return false
}
