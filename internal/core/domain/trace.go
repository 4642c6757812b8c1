package domain

import "time"

// SearchTrace records an executed search for offline analysis.
type SearchTrace struct {
	ID            string
	ConfigVersion string

	Query         string
	FieldQueries  map[string]string
	Filters       map[string][]string
	FiltersString string
	Ordering      Ordering
	Page          int
	Mode          SearchMode
	QueryClass    QueryClass

	NResults int

	PreviousTraceID string
	UserAgent       string
	IPAddress       string

	// Took is the wall time spent executing the search.
	Took time.Duration

	CreatedAt time.Time
}
