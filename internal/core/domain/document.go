package domain

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the tagged variant of a Document.
type Kind string

// Document kinds.
const (
	KindJudgment    Kind = "judgment"
	KindLegislation Kind = "legislation"
	KindGazette     Kind = "gazette"
	KindGeneric     Kind = "generic"
	KindBook        Kind = "book"
	KindJournal     Kind = "journal"
	KindBill        Kind = "bill"
	KindCauseList   Kind = "causelist"
)

// IsValid returns true if the kind is recognised.
func (k Kind) IsValid() bool {
	switch k {
	case KindJudgment, KindLegislation, KindGazette, KindGeneric,
		KindBook, KindJournal, KindBill, KindCauseList:
		return true
	default:
		return false
	}
}

// DefaultDoctype returns the FRBR doctype a kind implies when none is given.
func (k Kind) DefaultDoctype() string {
	switch k {
	case KindJudgment:
		return "judgment"
	case KindLegislation:
		return "act"
	case KindGazette:
		return "officialGazette"
	case KindBill:
		return "bill"
	case KindCauseList:
		return "doc"
	default:
		return "doc"
	}
}

// DateLayout is the layout used for expression and document dates.
const DateLayout = "2006-01-02"

// PageBreak separates pages in plaintext content.
const PageBreak = "\f"

// Document is a single expression (language + point in time) of a Work.
type Document struct {
	ID     int64
	WorkID int64

	Kind Kind

	// FRBR parts. WorkFrbrURI and ExpressionFrbrURI are derived from these on save.
	Country  string
	Locality string
	Doctype  string
	Subtype  string
	Actor    string
	FrbrDate string
	Number   string

	WorkFrbrURI       string
	ExpressionFrbrURI string

	// Language is a 3-letter ISO-639-3 code.
	Language string

	// Date is the expression date.
	Date time.Time

	Title            string
	Citation         string
	AlternativeNames []string
	Nature           string
	Jurisdiction     string
	MatterType       string
	Authors          []string
	Labels           []string
	Topics           []string
	Blurb            string

	// ContentHTML holds marked-up content. Paged sources leave it empty and
	// carry their text in ContentText with PageBreak separators.
	ContentHTML string
	ContentText string
	TOC         []TocEntry

	SourceFile *SourceFile
	Images     []Image

	Published  bool
	MostRecent bool

	// Kind-specific payloads. At most one is set, matching Kind.
	Judgment    *JudgmentDetails
	Legislation *LegislationDetails

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TocEntry is a node of a document's table of contents.
type TocEntry struct {
	ID       string     `json:"id"`
	Type     string     `json:"type"`
	Title    string     `json:"title"`
	Children []TocEntry `json:"children,omitempty"`
}

// SourceFile is the original file a document was built from.
type SourceFile struct {
	Filename string
	MimeType string
	Size     int64

	// Blob is a prefixed storage name, e.g. "file:docs/1/source.pdf".
	Blob string

	// PDFBlob holds a converted PDF companion for non-PDF sources.
	PDFBlob string
}

// Image is an image attachment referenced from marked-up content.
type Image struct {
	Filename string
	MimeType string
	Blob     string
}

// LegislationDetails is the legislation payload.
type LegislationDetails struct {
	Repealed     bool
	Commenced    bool
	ParentWork   string
	PointsInTime []string
}

// FrbrParts returns the parsed identifier parts of the document.
func (d *Document) FrbrParts() FrbrURI {
	return FrbrURI{
		Country:        d.Country,
		Locality:       d.Locality,
		Doctype:        d.Doctype,
		Subtype:        d.Subtype,
		Actor:          d.Actor,
		Date:           d.FrbrDate,
		Number:         d.Number,
		Language:       d.Language,
		ExpressionDate: d.DateString(),
	}
}

// SetFrbrParts copies identifier parts onto the document.
func (d *Document) SetFrbrParts(f FrbrURI) {
	d.Country = f.Country
	d.Locality = f.Locality
	d.Doctype = f.Doctype
	d.Subtype = f.Subtype
	d.Actor = f.Actor
	d.FrbrDate = f.Date
	d.Number = f.Number
}

// DateString returns the expression date as YYYY-MM-DD, or "" when unset.
func (d *Document) DateString() string {
	if d.Date.IsZero() {
		return ""
	}
	return d.Date.Format(DateLayout)
}

// GenerateWorkFrbrURI composes the work identifier from the document's parts.
func (d *Document) GenerateWorkFrbrURI() (string, error) {
	return d.FrbrParts().WorkURI()
}

// DeriveIdentifiers fills WorkFrbrURI and ExpressionFrbrURI from the parts.
func (d *Document) DeriveIdentifiers() error {
	work, err := d.GenerateWorkFrbrURI()
	if err != nil {
		return err
	}
	if d.Language == "" || d.Date.IsZero() {
		return fmt.Errorf("%w: language and date are required", ErrInvalidIdentifier)
	}
	d.WorkFrbrURI = work
	d.ExpressionFrbrURI = ExpressionFrbrURI(work, d.Language, d.DateString())
	return nil
}

// Year returns the expression year as a string.
func (d *Document) Year() string {
	if d.Date.IsZero() {
		return ""
	}
	return d.Date.Format("2006")
}

// HasProvisions reports whether the document is chunked by TOC provision:
// it needs both marked-up content and a TOC.
func (d *Document) HasProvisions() bool {
	return d.ContentHTML != "" && len(d.TOC) > 0
}

// IsPaged returns true when plaintext content carries page breaks.
func (d *Document) IsPaged() bool {
	return d.ContentHTML == "" && strings.Contains(d.ContentText, PageBreak)
}

// Pages splits paged plaintext into pages.
func (d *Document) Pages() []string {
	if d.ContentText == "" {
		return nil
	}
	return strings.Split(d.ContentText, PageBreak)
}

// SummaryText concatenates the editorial summary fields.
func (d *Document) SummaryText() string {
	parts := []string{d.Blurb}
	if j := d.Judgment; j != nil {
		parts = append(parts, j.Flynote, j.CaseSummary, j.Issues, j.Held, j.Order)
	}
	var b strings.Builder
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(p)
	}
	return b.String()
}

// CitationInputsChanged reports whether fields that feed citation extraction differ.
func (d *Document) CitationInputsChanged(prev *Document) bool {
	if prev == nil {
		return true
	}
	return !d.Date.Equal(prev.Date) ||
		d.Title != prev.Title ||
		strings.Join(d.AlternativeNames, "\x00") != strings.Join(prev.AlternativeNames, "\x00") ||
		d.ContentText != prev.ContentText
}

// ValidateTOC checks that each TOC id appears at most once.
func (d *Document) ValidateTOC() error {
	seen := make(map[string]bool)
	var walk func([]TocEntry) error
	walk = func(entries []TocEntry) error {
		for i := range entries {
			id := entries[i].ID
			if id != "" {
				if seen[id] {
					return fmt.Errorf("%w: duplicate toc id %q", ErrInvalidInput, id)
				}
				seen[id] = true
			}
			if err := walk(entries[i].Children); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(d.TOC)
}

// FlatTocEntry is a TOC node with its ancestry.
type FlatTocEntry struct {
	TocEntry
	ParentIDs    []string
	ParentTitles []string
	TopLevel     bool
}

// FlattenTOC walks the TOC depth-first, recording ancestors for each node.
func FlattenTOC(toc []TocEntry) []FlatTocEntry {
	var out []FlatTocEntry
	var walk func([]TocEntry, []string, []string)
	walk = func(entries []TocEntry, ids, titles []string) {
		for _, e := range entries {
			out = append(out, FlatTocEntry{
				TocEntry:     TocEntry{ID: e.ID, Type: e.Type, Title: e.Title},
				ParentIDs:    append([]string(nil), ids...),
				ParentTitles: append([]string(nil), titles...),
				TopLevel:     len(ids) == 0,
			})
			walk(e.Children, append(ids, e.ID), append(titles, e.Title))
		}
	}
	walk(toc, nil, nil)
	return out
}

// MostRecentID returns the ID of the sibling with the greatest date. Ties go
// to the highest ID. Returns 0 for no siblings.
func MostRecentID(siblings []Document) int64 {
	var best *Document
	for i := range siblings {
		d := &siblings[i]
		if best == nil || d.Date.After(best.Date) || (d.Date.Equal(best.Date) && d.ID > best.ID) {
			best = d
		}
	}
	if best == nil {
		return 0
	}
	return best.ID
}
