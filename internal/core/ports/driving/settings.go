package driving

import "github.com/laws-africa/peachjam/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings.
	Get() (*domain.AppSettings, error)

	// Set stores a single setting by dot key, e.g. "search.strict".
	Set(key string, value any) error

	// Validate checks that the settings are usable.
	Validate() error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings
}
