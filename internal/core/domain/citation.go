package domain

import "time"

// Citation is a directed edge from a citing Work to a target Work.
type Citation struct {
	ID int64

	CitingWorkID  int64
	CitingWorkURI string
	TargetWorkID  int64
	TargetWorkURI string

	// CitingDocumentID is the expression the citation was extracted from.
	CitingDocumentID int64

	// Optional provision scopes, as TOC ids.
	CitingProvisionID string
	TargetProvisionID string

	Start int
	End   int
	Text  string

	// URL is the resolved target, e.g. /akn/za/act/2009/1/~sec_2.
	URL string
}

// CitationContextSize is the number of characters of context kept either side of a match.
const CitationContextSize = 100

// CitationMatch is a candidate citation emitted by a matcher.
type CitationMatch struct {
	Start  int
	End    int
	Text   string
	Prefix string
	Suffix string

	// URL is the matched target. WorkURI is the work the URL resolves to.
	URL     string
	WorkURI string

	// TargetProvisionID scopes the match to a provision of the target, if any.
	TargetProvisionID string

	// Matcher names the matcher that produced the match.
	Matcher string
}

// Key identifies a match for de-duplication.
func (m CitationMatch) Key() CitationKey {
	return CitationKey{URL: m.URL, Start: m.Start, End: m.End}
}

// CitationKey de-duplicates matches by resolved URL and span.
type CitationKey struct {
	URL   string
	Start int
	End   int
}

// Ratification records which countries have ratified a treaty work.
type Ratification struct {
	WorkURI   string
	Countries []RatificationCountry
	UpdatedAt time.Time
}

// RatificationCountry is a single country's ratification record.
type RatificationCountry struct {
	Country          string
	RatificationDate string
	DepositDate      string
	SignatureDate    string
}
