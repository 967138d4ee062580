package driving

import "context"

// HealthStatus reports the reachability of model collaborators.
type HealthStatus struct {
	// EmbeddingConnected is true when the embedding service answered a ping.
	EmbeddingConnected bool

	// LLMConnected is true when the model runtime answered a ping.
	LLMConnected bool

	// EmbeddingModel is the configured embedding model.
	EmbeddingModel string

	// LLMModel is the configured generation model.
	LLMModel string

	// AvailableModels lists models installed on the runtime, when it can list them.
	AvailableModels []string

	// Errors holds per-collaborator failure messages.
	Errors map[string]string
}

// Healthy returns true when both collaborators are reachable.
func (h HealthStatus) Healthy() bool {
	return h.EmbeddingConnected && h.LLMConnected
}

// HealthService checks collaborator connectivity.
type HealthService interface {
	// Check pings the embedding service and model runtime.
	Check(ctx context.Context) HealthStatus
}
