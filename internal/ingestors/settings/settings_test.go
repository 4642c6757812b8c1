package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/laws-africa/peachjam/internal/core/domain"
)

func TestParse(t *testing.T) {
	s := Parse(map[string]string{
		domain.SettingAPIURL:            "https://api.laws.africa/v3/",
		domain.SettingToken:             " abc ",
		domain.SettingPlaces:            "za za-cpt",
		domain.SettingIncludeDoctypes:   "act,by-law",
		domain.SettingIncludeCountries:  "ZA",
		domain.SettingSkipCommencements: "yes",
		domain.SettingAddTopics:         "laws-africa",
	})

	assert.Equal(t, "https://api.laws.africa/v3", s.APIURL)
	assert.Equal(t, "abc", s.Token)
	assert.Equal(t, []string{"za", "za-cpt"}, s.Places)
	assert.Equal(t, []string{"act", "by-law"}, s.IncludeDoctypes)
	assert.Equal(t, []string{"za"}, s.IncludeCountries)
	assert.True(t, s.SkipCommencements)
	assert.False(t, s.SkipTimeline)
	assert.Equal(t, []string{"laws-africa"}, s.AddTopics)
}

func TestIsResponsibleFor(t *testing.T) {
	s := Parse(map[string]string{
		domain.SettingPlaces:          "za za-cpt",
		domain.SettingIncludeDoctypes: "act",
	})

	assert.True(t, s.IsResponsibleFor("/akn/za/act/2009/1"))
	assert.True(t, s.IsResponsibleFor("/akn/za-cpt/act/2009/1"))
	assert.True(t, s.IsResponsibleFor("/akn/za/act/2009/1/eng@2020-01-01"))
	assert.False(t, s.IsResponsibleFor("/akn/za-xxx/act/2009/1"))
	assert.False(t, s.IsResponsibleFor("/akn/za/judgment/zahc/1999/1"))
	assert.False(t, s.IsResponsibleFor("not-a-uri"))
}

func TestIsResponsibleFor_Wildcard(t *testing.T) {
	s := Parse(map[string]string{domain.SettingPlaces: "za-*"})

	assert.True(t, s.IsResponsibleFor("/akn/za-cpt/act/by-law/2009/1"))
	assert.True(t, s.IsResponsibleFor("/akn/za-jhb/act/2010/2"))
	assert.False(t, s.IsResponsibleFor("/akn/za-playground/act/2010/2"))
	assert.False(t, s.IsResponsibleFor("/akn/za/act/2010/2"))
	assert.False(t, s.IsResponsibleFor("/akn/zm-lsk/act/2010/2"))
}

func TestIsResponsibleFor_SubtypesAndActors(t *testing.T) {
	s := Parse(map[string]string{
		domain.SettingExcludeSubtypes: "by-law",
		domain.SettingIncludeActors:   "zahc",
	})

	assert.False(t, s.IsResponsibleFor("/akn/za/act/by-law/2009/1"))
	assert.True(t, s.IsResponsibleFor("/akn/za/judgment/zahc/2009/1"))
	assert.False(t, s.IsResponsibleFor("/akn/za/judgment/zasca/2009/1"))
	// an actor whitelist rejects documents without an actor
	assert.False(t, s.IsResponsibleFor("/akn/za/act/2009/1"))
}

func TestIsResponsibleFor_NoPlaces(t *testing.T) {
	s := Parse(nil)
	assert.True(t, s.IsResponsibleFor("/akn/ke/act/2009/1"))
}

func TestCountryAllowed(t *testing.T) {
	s := Parse(map[string]string{domain.SettingIncludeCountries: "za"})
	assert.True(t, s.CountryAllowed("ZA"))
	assert.False(t, s.CountryAllowed("XX"))

	s = Parse(map[string]string{domain.SettingExcludeCountries: "xx"})
	assert.True(t, s.CountryAllowed("ZA"))
	assert.False(t, s.CountryAllowed("XX"))
}

func TestTopics(t *testing.T) {
	s := Parse(map[string]string{
		domain.SettingTaxonomyTopicRoot: "subject-areas",
		domain.SettingAddTopics:         "laws-africa",
	})

	got := s.Topics([]string{"subject-areas-land", "collections-gazettes", "subject-areas"})
	assert.Equal(t, []string{"subject-areas-land", "subject-areas", "laws-africa"}, got)

	merged := s.MergeTopics([]string{"subject-areas-old", "local-tag"}, got)
	assert.Equal(t, []string{"local-tag", "subject-areas-land", "subject-areas", "laws-africa"}, merged)
}

func TestTopics_NoRoot(t *testing.T) {
	s := Parse(map[string]string{domain.SettingAddTopics: "a b"})
	assert.Equal(t, []string{"a", "b"}, s.Topics([]string{"subject-areas-land"}))
}
