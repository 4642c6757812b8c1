// Package settings parses the settings shared by the ingestion adapters and
// decides which documents an ingestor is responsible for.
package settings

import (
	"slices"
	"strings"

	"github.com/laws-africa/peachjam/internal/core/domain"
)

// playground is a locality that wildcard places never match.
const playground = "playground"

// Settings is the parsed form of an ingestor's settings map.
type Settings struct {
	APIURL string
	Token  string

	// Places lists places like "za" or "za-cpt". "cc-*" matches every
	// locality of cc except the playground.
	Places []string

	IncludeDoctypes []string
	ExcludeDoctypes []string
	IncludeSubtypes []string
	ExcludeSubtypes []string
	IncludeActors   []string
	ExcludeActors   []string

	IncludeCountries []string
	ExcludeCountries []string

	TaxonomyTopicRoot string
	AddTopics         []string

	SkipTimeline      bool
	SkipCommencements bool
}

// Parse reads settings from a frozen settings map. Lists are separated by
// spaces or commas.
func Parse(m map[string]string) Settings {
	ing := domain.Ingestor{Settings: m}
	list := func(key string) []string {
		return strings.FieldsFunc(ing.Setting(key), func(r rune) bool {
			return r == ' ' || r == ',' || r == '\t' || r == '\n'
		})
	}
	return Settings{
		APIURL:            strings.TrimRight(ing.Setting(domain.SettingAPIURL), "/"),
		Token:             ing.Setting(domain.SettingToken),
		Places:            list(domain.SettingPlaces),
		IncludeDoctypes:   list(domain.SettingIncludeDoctypes),
		ExcludeDoctypes:   list(domain.SettingExcludeDoctypes),
		IncludeSubtypes:   list(domain.SettingIncludeSubtypes),
		ExcludeSubtypes:   list(domain.SettingExcludeSubtypes),
		IncludeActors:     list(domain.SettingIncludeActors),
		ExcludeActors:     list(domain.SettingExcludeActors),
		IncludeCountries:  lower(list(domain.SettingIncludeCountries)),
		ExcludeCountries:  lower(list(domain.SettingExcludeCountries)),
		TaxonomyTopicRoot: ing.Setting(domain.SettingTaxonomyTopicRoot),
		AddTopics:         list(domain.SettingAddTopics),
		SkipTimeline:      ing.SettingBool(domain.SettingSkipTimeline),
		SkipCommencements: ing.SettingBool(domain.SettingSkipCommencements),
	}
}

func lower(in []string) []string {
	for i := range in {
		in[i] = strings.ToLower(in[i])
	}
	return in
}

// IsResponsibleFor reports whether a document identified by uri falls under
// these settings. Unparseable identifiers are never owned.
func (s Settings) IsResponsibleFor(uri string) bool {
	f, err := domain.ParseFrbrURI(uri)
	if err != nil {
		return false
	}
	return s.PlaceAllowed(f.Country, f.Locality) &&
		allowed(f.Doctype, s.IncludeDoctypes, s.ExcludeDoctypes) &&
		allowed(f.Subtype, s.IncludeSubtypes, s.ExcludeSubtypes) &&
		allowed(f.Actor, s.IncludeActors, s.ExcludeActors)
}

// PlaceAllowed matches a country and optional locality against Places.
// No places means every place.
func (s Settings) PlaceAllowed(country, locality string) bool {
	if len(s.Places) == 0 {
		return true
	}
	place := country
	if locality != "" {
		place += "-" + locality
	}
	for _, p := range s.Places {
		if cc, ok := strings.CutSuffix(p, "-*"); ok {
			if cc == country && locality != "" && locality != playground {
				return true
			}
			continue
		}
		if p == place {
			return true
		}
	}
	return false
}

// CountryAllowed applies the country include and exclude lists, ignoring case.
func (s Settings) CountryAllowed(country string) bool {
	return allowed(strings.ToLower(country), s.IncludeCountries, s.ExcludeCountries)
}

// Topics returns the topic slugs stamped on every imported document together
// with the mirrored upstream slugs under the taxonomy root. Without a root,
// upstream topics are dropped.
func (s Settings) Topics(upstream []string) []string {
	var out []string
	if s.TaxonomyTopicRoot != "" {
		for _, slug := range upstream {
			if slug == s.TaxonomyTopicRoot || strings.HasPrefix(slug, s.TaxonomyTopicRoot+"-") {
				out = append(out, slug)
			}
		}
	}
	for _, slug := range s.AddTopics {
		if !slices.Contains(out, slug) {
			out = append(out, slug)
		}
	}
	return out
}

// MergeTopics replaces the topics under the taxonomy root in existing with
// mirrored, keeping topics outside the root.
func (s Settings) MergeTopics(existing, mirrored []string) []string {
	out := make([]string, 0, len(existing)+len(mirrored))
	for _, slug := range existing {
		if s.TaxonomyTopicRoot != "" && (slug == s.TaxonomyTopicRoot || strings.HasPrefix(slug, s.TaxonomyTopicRoot+"-")) {
			continue
		}
		if !slices.Contains(out, slug) {
			out = append(out, slug)
		}
	}
	for _, slug := range mirrored {
		if !slices.Contains(out, slug) {
			out = append(out, slug)
		}
	}
	return out
}

func allowed(v string, include, exclude []string) bool {
	if len(include) > 0 && !slices.Contains(include, v) {
		return false
	}
	return !slices.Contains(exclude, v)
}
