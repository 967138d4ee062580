package driven

import "context"

// LLMService generates text from a prompt. Adapters wrap transient failures
// (refused connections, timeouts, 429 and 5xx responses) with
// domain.ErrLLMUnavailable; anything else is permanent.
type LLMService interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
	ModelName() string

	// Ping makes the cheapest request the runtime offers.
	Ping(ctx context.Context) error
	Close() error
}

// ModelLister is implemented by runtimes that can enumerate installed models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// GenerateOptions tunes one generation. Zero values leave the provider's
// default in place.
type GenerateOptions struct {
	System      string
	MaxTokens   int
	Temperature float64
	TopP        float64
	StopWords   []string
}
