package ai

import (
	"fmt"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure ConfigValidator implements the interface.
var _ driven.AIConfigValidator = (*ConfigValidator)(nil)

// ConfigValidator checks provider settings by pinging the provider they
// describe. Unconfigured settings pass, since there is nothing to reach.
type ConfigValidator struct {
	embedding func(*domain.EmbeddingSettings) error
	llm       func(*domain.LLMSettings) error
}

// NewConfigValidator creates a validator that pings real providers.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{
		embedding: ValidateEmbeddingConfig,
		llm:       ValidateLLMConfig,
	}
}

// ValidateEmbedding pings the embedding provider.
func (v *ConfigValidator) ValidateEmbedding(settings *domain.EmbeddingSettings) error {
	if err := v.embedding(settings); err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrEmbeddingUnavailable, settings.Provider, err)
	}
	return nil
}

// ValidateLLM pings the model runtime.
func (v *ConfigValidator) ValidateLLM(settings *domain.LLMSettings) error {
	if err := v.llm(settings); err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrLLMUnavailable, settings.Provider, err)
	}
	return nil
}
