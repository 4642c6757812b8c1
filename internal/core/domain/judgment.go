package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Court issues judgments. Code is the short form used in MNCs, e.g. "EACJ".
type Court struct {
	Code    string
	Name    string
	Country string
}

// JudgmentDetails is the judgment payload.
type JudgmentDetails struct {
	Court       Court
	Registry    string
	Judges      []string
	Attorneys   []string
	Outcomes    []string
	CaseNumbers []string
	CaseName    string
	CaseAction  string

	Flynote     string
	CaseSummary string
	Issues      string
	Held        string
	Order       string

	// SerialNumber is assigned once per (court, year) and never reassigned.
	SerialNumber         int
	SerialNumberOverride *int

	// MNC is the media-neutral citation, e.g. "[2019] EACJ 1".
	MNC string
}

// FormatMNC builds a media-neutral citation.
func FormatMNC(year int, courtCode string, serial int) string {
	return fmt.Sprintf("[%d] %s %d", year, strings.ToUpper(courtCode), serial)
}

// AssignJudgmentFrbrURI applies judgment defaults to the document's identifier parts.
// nextSerial is consulted only when no serial is assigned and no override is set.
func AssignJudgmentFrbrURI(d *Document, nextSerial func() (int, error)) error {
	j := d.Judgment
	if j == nil || j.Court.Code == "" {
		return fmt.Errorf("%w: judgment requires a court", ErrInvalidIdentifier)
	}
	if d.Date.IsZero() {
		return fmt.Errorf("%w: judgment requires a date", ErrInvalidIdentifier)
	}

	switch {
	case j.SerialNumberOverride != nil:
		j.SerialNumber = *j.SerialNumberOverride
	case j.SerialNumber == 0:
		n, err := nextSerial()
		if err != nil {
			return fmt.Errorf("assigning serial: %w", err)
		}
		j.SerialNumber = n
	}

	year := d.Date.Year()
	j.MNC = FormatMNC(year, j.Court.Code, j.SerialNumber)

	d.Doctype = "judgment"
	d.Subtype = ""
	d.Actor = strings.ToLower(j.Court.Code)
	d.FrbrDate = strconv.Itoa(year)
	d.Number = strconv.Itoa(j.SerialNumber)
	if j.Court.Country != "" {
		d.Country = strings.ToLower(j.Court.Country)
	}
	if d.Citation == "" {
		d.Citation = j.MNC
	}
	return nil
}
