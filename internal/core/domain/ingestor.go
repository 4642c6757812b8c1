package domain

import (
	"strings"
	"time"
)

// Ingestor is a named instance of an ingestion adapter.
type Ingestor struct {
	ID int64

	// Name is unique, e.g. "laws-africa-za".
	Name string

	// Adapter names the registered adapter builder, e.g. "indigo".
	Adapter string

	// Settings are string-valued. Multi-value settings are space-separated.
	Settings map[string]string

	// LastRefreshedAt is nil before the first successful check.
	LastRefreshedAt *time.Time

	Enabled bool
}

// Setting returns a single setting, or "" when absent.
func (i *Ingestor) Setting(key string) string {
	if i.Settings == nil {
		return ""
	}
	return strings.TrimSpace(i.Settings[key])
}

// SettingList returns a space-separated setting as a list.
func (i *Ingestor) SettingList(key string) []string {
	return strings.Fields(i.Setting(key))
}

// SettingBool returns true for "true", "1" or "yes".
func (i *Ingestor) SettingBool(key string) bool {
	switch strings.ToLower(i.Setting(key)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

// FrozenSettings returns a copy of the settings map.
func (i *Ingestor) FrozenSettings() map[string]string {
	out := make(map[string]string, len(i.Settings))
	for k, v := range i.Settings {
		out[k] = v
	}
	return out
}

// Setting keys shared by the adapters.
const (
	SettingAPIURL            = "api_url"
	SettingToken             = "token"
	SettingPlaces            = "places"
	SettingIncludeDoctypes   = "include_doctypes"
	SettingExcludeDoctypes   = "exclude_doctypes"
	SettingIncludeSubtypes   = "include_subtypes"
	SettingExcludeSubtypes   = "exclude_subtypes"
	SettingIncludeActors     = "include_actors"
	SettingExcludeActors     = "exclude_actors"
	SettingIncludeCountries  = "include_countries"
	SettingExcludeCountries  = "exclude_countries"
	SettingTaxonomyTopicRoot = "taxonomy_topic_root"
	SettingAddTopics         = "add_topics"
	SettingSkipTimeline      = "skip_timeline"
	SettingSkipCommencements = "skip_commencements"

	// SettingRepeat is how often the check task is scheduled: hourly, daily or weekly.
	SettingRepeat = "repeat"
)
