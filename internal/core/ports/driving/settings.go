package driving

import "github.com/custodia-labs/docqa/internal/core/domain"

// SettingsService reads and writes the effective configuration: defaults,
// then config.toml, then DOCQA_* environment variables.
type SettingsService interface {
	Get() (*domain.AppSettings, error)
	Save(settings *domain.AppSettings) error

	// Set parses value for the dotted key and stores it.
	Set(key, value string) error

	// Keys lists every key Set accepts.
	Keys() []string
	GetDefaults() domain.AppSettings

	// ValidateEmbeddingConfig and ValidateLLMConfig ping the configured
	// providers.
	ValidateEmbeddingConfig() error
	ValidateLLMConfig() error
}
