package domain

import "maps"

const unknownDescription = "Unknown"

// OllamaBaseURL is where a local Ollama listens by default.
const OllamaBaseURL = "http://localhost:11434"

// AIProvider names a backend for embeddings, generation or both.
type AIProvider string

const (
	AIProviderOllama    AIProvider = "ollama"
	AIProviderOpenAI    AIProvider = "openai"
	AIProviderAnthropic AIProvider = "anthropic"
)

// providerInfo is what the rest of the program needs to know about a
// provider. An empty embeddingModel means it cannot embed.
type providerInfo struct {
	label          string
	local          bool
	embeddingModel string
	llmModel       string
}

// providerOrder fixes the order providers are offered in.
var providerOrder = []AIProvider{AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic}

var providerCatalogue = map[AIProvider]providerInfo{
	AIProviderOllama: {
		label:          "Ollama (local)",
		local:          true,
		embeddingModel: "nomic-embed-text",
		llmModel:       "llama3:8b",
	},
	AIProviderOpenAI: {
		label:          "OpenAI (cloud)",
		embeddingModel: "text-embedding-3-small",
		llmModel:       "gpt-4o-mini",
	},
	AIProviderAnthropic: {
		label:    "Anthropic (cloud)",
		llmModel: "claude-3-5-sonnet-latest",
	},
}

// embeddingDimensions lists vector sizes of models we know about.
var embeddingDimensions = map[string]int{
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"all-minilm":             384,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

func (p AIProvider) IsValid() bool {
	_, ok := providerCatalogue[p]
	return ok
}

// RequiresAPIKey reports whether the provider is a hosted API.
func (p AIProvider) RequiresAPIKey() bool { return p.IsValid() && !p.IsLocal() }

func (p AIProvider) IsLocal() bool { return providerCatalogue[p].local }

// CanEmbed reports whether the provider offers an embeddings endpoint.
func (p AIProvider) CanEmbed() bool { return providerCatalogue[p].embeddingModel != "" }

func (p AIProvider) String() string { return string(p) }

// Description is the label shown in menus and status output.
func (p AIProvider) Description() string {
	if info, ok := providerCatalogue[p]; ok {
		return info.label
	}
	return unknownDescription
}

// AllEmbeddingProviders lists the providers that can embed, in menu order.
func AllEmbeddingProviders() []AIProvider {
	out := make([]AIProvider, 0, len(providerOrder))
	for _, p := range providerOrder {
		if p.CanEmbed() {
			out = append(out, p)
		}
	}
	return out
}

// AllLLMProviders lists every provider, in menu order.
func AllLLMProviders() []AIProvider {
	return append([]AIProvider(nil), providerOrder...)
}

// DefaultEmbeddingModels maps each embedding provider to its default model.
func DefaultEmbeddingModels() map[AIProvider]string {
	out := make(map[AIProvider]string)
	for p, info := range providerCatalogue {
		if info.embeddingModel != "" {
			out[p] = info.embeddingModel
		}
	}
	return out
}

// DefaultLLMModels maps each provider to its default generation model.
func DefaultLLMModels() map[AIProvider]string {
	out := make(map[AIProvider]string, len(providerCatalogue))
	for p, info := range providerCatalogue {
		out[p] = info.llmModel
	}
	return out
}

// EmbeddingDimensions returns a copy of the known model sizes.
func EmbeddingDimensions() map[string]int {
	return maps.Clone(embeddingDimensions)
}
