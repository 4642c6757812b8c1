package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// FrbrURI is a parsed Akoma Ntoso FRBR identifier.
//
//	/akn/<country>[-<locality>]/<doctype>[/<subtype>][/<actor>]/<date>/<number>[/<language>@<date>]
type FrbrURI struct {
	Country  string
	Locality string
	Doctype  string
	Subtype  string
	Actor    string
	Date     string
	Number   string

	// Language and ExpressionDate are only set for expression URIs.
	Language       string
	ExpressionDate string
}

var (
	placeRe      = regexp.MustCompile(`^([a-z]{2})(?:-([a-z0-9]+))?$`)
	frbrDateRe   = regexp.MustCompile(`^\d{4}(-\d{2}-\d{2})?$`)
	expressionRe = regexp.MustCompile(`^([a-z]{3})@(\d{4}-\d{2}-\d{2})?$`)
	frbrPartRe   = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
)

// ParseFrbrURI parses a work or expression FRBR URI.
func ParseFrbrURI(uri string) (FrbrURI, error) {
	var f FrbrURI
	if !strings.HasPrefix(uri, "/akn/") {
		return f, fmt.Errorf("%w: %q must start with /akn/", ErrInvalidIdentifier, uri)
	}

	parts := strings.Split(strings.TrimSuffix(strings.TrimPrefix(uri, "/akn/"), "/"), "/")

	// optional trailing language@date
	if n := len(parts); n > 0 {
		if m := expressionRe.FindStringSubmatch(parts[n-1]); m != nil {
			f.Language = m[1]
			f.ExpressionDate = m[2]
			parts = parts[:n-1]
		}
	}

	// place, doctype, date, number at minimum
	if len(parts) < 4 || len(parts) > 6 {
		return FrbrURI{}, fmt.Errorf("%w: %q has the wrong number of components", ErrInvalidIdentifier, uri)
	}

	m := placeRe.FindStringSubmatch(parts[0])
	if m == nil {
		return FrbrURI{}, fmt.Errorf("%w: bad place %q", ErrInvalidIdentifier, parts[0])
	}
	f.Country, f.Locality = m[1], m[2]
	f.Doctype = parts[1]

	// date is the second-last component; subtype and actor sit between doctype and date
	f.Date = parts[len(parts)-2]
	f.Number = parts[len(parts)-1]
	if !frbrDateRe.MatchString(f.Date) {
		return FrbrURI{}, fmt.Errorf("%w: bad date %q", ErrInvalidIdentifier, f.Date)
	}

	switch middle := parts[2 : len(parts)-2]; len(middle) {
	case 2:
		f.Subtype, f.Actor = middle[0], middle[1]
	case 1:
		// a lone middle component is an actor for judgments and a subtype otherwise
		if f.Doctype == "judgment" {
			f.Actor = middle[0]
		} else {
			f.Subtype = middle[0]
		}
	}

	if err := f.validate(); err != nil {
		return FrbrURI{}, err
	}
	return f, nil
}

func (f FrbrURI) validate() error {
	if f.Country == "" || f.Doctype == "" || f.Date == "" || f.Number == "" {
		return fmt.Errorf("%w: country, doctype, date and number are required", ErrInvalidIdentifier)
	}
	for _, p := range []string{f.Doctype, f.Subtype, f.Actor, f.Number} {
		if p != "" && !frbrPartRe.MatchString(p) {
			return fmt.Errorf("%w: bad component %q", ErrInvalidIdentifier, p)
		}
	}
	if !frbrDateRe.MatchString(f.Date) {
		return fmt.Errorf("%w: bad date %q", ErrInvalidIdentifier, f.Date)
	}
	return nil
}

// Place returns the country with the optional locality suffix.
func (f FrbrURI) Place() string {
	if f.Locality != "" {
		return f.Country + "-" + f.Locality
	}
	return f.Country
}

// WorkURI formats the work-level identifier.
func (f FrbrURI) WorkURI() (string, error) {
	if err := f.validate(); err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("/akn/")
	b.WriteString(f.Place())
	b.WriteString("/")
	b.WriteString(f.Doctype)
	if f.Subtype != "" {
		b.WriteString("/" + f.Subtype)
	}
	if f.Actor != "" {
		b.WriteString("/" + f.Actor)
	}
	b.WriteString("/" + f.Date + "/" + f.Number)
	return b.String(), nil
}

// ExpressionURI formats the expression-level identifier.
func (f FrbrURI) ExpressionURI() (string, error) {
	work, err := f.WorkURI()
	if err != nil {
		return "", err
	}
	if f.Language == "" || f.ExpressionDate == "" {
		return "", fmt.Errorf("%w: expression requires language and date", ErrInvalidIdentifier)
	}
	return ExpressionFrbrURI(work, f.Language, f.ExpressionDate), nil
}

// String returns the expression URI when language is set, else the work URI.
// Invalid identifiers render as an empty string.
func (f FrbrURI) String() string {
	if f.Language != "" {
		s, _ := f.ExpressionURI()
		return s
	}
	s, _ := f.WorkURI()
	return s
}

// ExpressionFrbrURI extends a work URI with language and date.
func ExpressionFrbrURI(workURI, language, date string) string {
	return workURI + "/" + language + "@" + date
}
