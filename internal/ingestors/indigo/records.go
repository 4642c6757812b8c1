package indigo

import (
	"fmt"
	"time"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/ingestors/upstream"
)

// workRef points at another work.
type workRef struct {
	FrbrURI string `json:"frbr_uri"`
	Title   string `json:"title"`
}

type expressionRef struct {
	ExpressionFrbrURI string `json:"expression_frbr_uri"`
	Language          string `json:"language"`
	ExpressionDate    string `json:"expression_date"`
}

type pointInTime struct {
	Date        string          `json:"date"`
	Expressions []expressionRef `json:"expressions"`
}

type link struct {
	Rel       string `json:"rel"`
	Title     string `json:"title"`
	Href      string `json:"href"`
	MediaType string `json:"mediaType"`
}

type publicationDocument struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
}

type amendment struct {
	AmendingWork workRef `json:"amending_work"`
	Date         string  `json:"date"`
}

type repeal struct {
	RepealingWork workRef `json:"repealing_work"`
	Date          string  `json:"date"`
}

type commencement struct {
	CommencingWork *workRef `json:"commencing_work"`
	Date           string   `json:"date"`
}

// expression is an expression record from the content API. List and detail
// responses share the shape; lists omit some fields.
type expression struct {
	FrbrURI           string `json:"frbr_uri"`
	ExpressionFrbrURI string `json:"expression_frbr_uri"`
	Title             string `json:"title"`
	Language          string `json:"language"`
	ExpressionDate    string `json:"expression_date"`
	UpdatedAt         string `json:"updated_at"`
	Stub              bool   `json:"stub"`
	Nature            string `json:"nature"`
	NumberedTitle     string `json:"numbered_title"`
	Commenced         bool   `json:"commenced"`

	PointsInTime        []pointInTime        `json:"points_in_time"`
	PublicationDocument *publicationDocument `json:"publication_document"`
	ParentWork          *workRef             `json:"parent_work"`
	Repeal              *repeal              `json:"repeal"`
	Amendments          []amendment          `json:"amendments"`
	Commencements       []commencement       `json:"commencements"`
	TaxonomyTopics      []string             `json:"taxonomy_topics"`
	AlternativeNames    []struct {
		Title string `json:"title"`
	} `json:"alternative_names"`
	Links []link `json:"links"`
}

// expressionURIs lists every expression across the points in time, or the
// record's own expression when there is no timeline.
func (e *expression) expressionURIs() []string {
	var out []string
	for _, pit := range e.PointsInTime {
		for _, x := range pit.Expressions {
			if x.ExpressionFrbrURI != "" {
				out = append(out, x.ExpressionFrbrURI)
			}
		}
	}
	if len(out) == 0 && e.ExpressionFrbrURI != "" {
		out = append(out, e.ExpressionFrbrURI)
	}
	return out
}

// stranded reports whether the expression date is missing from the timeline.
func (e *expression) stranded() bool {
	for _, pit := range e.PointsInTime {
		if pit.Date == e.ExpressionDate {
			return false
		}
	}
	return true
}

// isStub reports a record with nothing to publish.
func (e *expression) isStub() bool {
	return e.Stub || e.PublicationDocument == nil
}

// pointInTimeDates returns the timeline dates in order.
func (e *expression) pointInTimeDates() []string {
	out := make([]string, 0, len(e.PointsInTime))
	for _, pit := range e.PointsInTime {
		out = append(out, pit.Date)
	}
	return out
}

// relationships maps the record's links to other works.
func (e *expression) relationships(skipCommencements bool) []domain.Relationship {
	var out []domain.Relationship
	add := func(obj string, p domain.Predicate) {
		if obj == "" || obj == e.FrbrURI {
			return
		}
		out = append(out, domain.Relationship{SubjectWorkURI: e.FrbrURI, ObjectWorkURI: obj, Predicate: p})
	}
	if e.ParentWork != nil {
		add(e.ParentWork.FrbrURI, domain.PredicateChildOf)
	}
	for _, a := range e.Amendments {
		add(a.AmendingWork.FrbrURI, domain.PredicateAmendedBy)
	}
	if e.Repeal != nil {
		add(e.Repeal.RepealingWork.FrbrURI, domain.PredicateRepealedBy)
	}
	if !skipCommencements {
		for _, c := range e.Commencements {
			if c.CommencingWork != nil {
				add(c.CommencingWork.FrbrURI, domain.PredicateCommencedBy)
			}
		}
	}
	return out
}

// relatedWorks returns every work referenced by relationships, with titles.
func (e *expression) relatedWorks(skipCommencements bool) []workRef {
	var out []workRef
	if e.ParentWork != nil {
		out = append(out, *e.ParentWork)
	}
	for _, a := range e.Amendments {
		out = append(out, a.AmendingWork)
	}
	if e.Repeal != nil {
		out = append(out, e.Repeal.RepealingWork)
	}
	if !skipCommencements {
		for _, c := range e.Commencements {
			if c.CommencingWork != nil {
				out = append(out, *c.CommencingWork)
			}
		}
	}
	return out
}

const docxType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// sourceLink picks the source file link, preferring DOCX over PDF.
func (e *expression) sourceLink() (link, bool) {
	var pdf *link
	for i := range e.Links {
		switch e.Links[i].MediaType {
		case docxType:
			return e.Links[i], true
		case "application/pdf":
			if pdf == nil {
				pdf = &e.Links[i]
			}
		}
	}
	if pdf != nil {
		return *pdf, true
	}
	return link{}, false
}

type tocResponse struct {
	TOC []domain.TocEntry `json:"toc"`
}

type mediaItem struct {
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	URL      string `json:"url"`
}

type webhook struct {
	Action string `json:"action"`
	Data   struct {
		FrbrURI           string `json:"frbr_uri"`
		ExpressionFrbrURI string `json:"expression_frbr_uri"`
	} `json:"data"`
}

func parseDate(s string) (t time.Time, err error) {
	t, err = upstream.ParseDate(s)
	if err == nil && t.IsZero() {
		err = fmt.Errorf("%w: missing expression date", domain.ErrInvalidInput)
	}
	return t, err
}
