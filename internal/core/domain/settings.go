package domain

import "time"

// EmbeddingSettings selects the embedding backend.
type EmbeddingSettings struct {
	Provider AIProvider
	Model    string
	BaseURL  string
	APIKey   string
}

// IsConfigured reports whether the settings name a provider that can embed
// and carry a key when one is needed.
func (e EmbeddingSettings) IsConfigured() bool {
	return e.Provider.CanEmbed() && (!e.Provider.RequiresAPIKey() || e.APIKey != "")
}

// LLMSettings selects the generation backend and its sampling parameters.
type LLMSettings struct {
	Provider    AIProvider
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64
	TopP        float64
	MaxTokens   int // 0 leaves the provider default
}

func (l LLMSettings) IsConfigured() bool {
	return l.Provider.IsValid() && (!l.Provider.RequiresAPIKey() || l.APIKey != "")
}

// ChunkingSettings sizes the chunk windows, in characters.
type ChunkingSettings struct {
	ChunkSize int
	Overlap   int
}

// RetrievalSettings bounds what one question may pull into context.
type RetrievalSettings struct {
	TopK            int
	ConfidenceFloor float64 // items scoring below are dropped
	MaxContextChars int
	Timeout         time.Duration
	LookupResults   int
}

// GenerationSettings shapes the generation gateway: how many model calls
// run at once, how many may wait, and how transient failures are retried.
type GenerationSettings struct {
	MaxConcurrent int
	QueueDepth    int
	Timeout       time.Duration // per attempt
	MaxAttempts   int
	Backoff       time.Duration // first retry delay, doubled each time
	MaxBackoff    time.Duration
	HistoryTurns  int
}

// LookupProvider names an external knowledge source.
type LookupProvider string

const (
	LookupDuckDuckGo LookupProvider = "duckduckgo"

	// LookupNone answers ungrounded questions with empty context.
	LookupNone LookupProvider = "none"
)

type LookupSettings struct {
	Provider      LookupProvider
	BaseURL       string
	RatePerSecond float64
	FetchPages    bool
}

// StorageBackend names a persistence implementation.
type StorageBackend string

const (
	StorageMemory   StorageBackend = "memory"
	StorageSQLite   StorageBackend = "sqlite"
	StorageBolt     StorageBackend = "bolt"
	StorageDynamoDB StorageBackend = "dynamodb"
	StoragePGVector StorageBackend = "pgvector"
)

// StorageSettings picks a backend per store. Documents live in memory or
// sqlite; sessions also in bolt or dynamodb; vectors in memory or pgvector.
type StorageSettings struct {
	Backend        StorageBackend
	DataDir        string
	SessionBackend StorageBackend
	VectorBackend  StorageBackend
	PostgresURL    string
	DynamoDBTable  string
}

type ServerSettings struct {
	Addr        string
	BodyLimitMB int
}

// AppSettings is the full resolved configuration.
type AppSettings struct {
	Embedding  EmbeddingSettings
	LLM        LLMSettings
	Chunking   ChunkingSettings
	Retrieval  RetrievalSettings
	Generation GenerationSettings
	Lookup     LookupSettings
	Storage    StorageSettings
	Server     ServerSettings
}

// DefaultAppSettings targets a local Ollama with sqlite persistence.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			Provider: AIProviderOllama,
			Model:    providerCatalogue[AIProviderOllama].embeddingModel,
			BaseURL:  OllamaBaseURL,
		},
		LLM: LLMSettings{
			Provider:    AIProviderOllama,
			Model:       providerCatalogue[AIProviderOllama].llmModel,
			BaseURL:     OllamaBaseURL,
			Temperature: 0.7,
			TopP:        0.9,
		},
		Chunking:  ChunkingSettings{ChunkSize: 1000, Overlap: 200},
		Retrieval: RetrievalSettings{TopK: 5, MaxContextChars: 12000, Timeout: 30 * time.Second, LookupResults: 5},
		Generation: GenerationSettings{
			MaxConcurrent: 1,
			QueueDepth:    16,
			Timeout:       2 * time.Minute,
			MaxAttempts:   3,
			Backoff:       200 * time.Millisecond,
			MaxBackoff:    2 * time.Second,
			HistoryTurns:  6,
		},
		Lookup: LookupSettings{Provider: LookupDuckDuckGo, RatePerSecond: 1},
		Storage: StorageSettings{
			Backend:        StorageSQLite,
			SessionBackend: StorageSQLite,
			VectorBackend:  StorageMemory,
		},
		Server: ServerSettings{Addr: ":8080", BodyLimitMB: 50},
	}
}

// PipelineConfig names the post-processors to run, in order, with a loose
// config map per processor so new ones need no new fields here.
type PipelineConfig struct {
	Processors       []string
	ProcessorConfigs map[string]map[string]any
}

// GetProcessorConfig returns nil for a processor with no config.
func (c *PipelineConfig) GetProcessorConfig(name string) map[string]any {
	return c.ProcessorConfigs[name]
}

// PipelineConfigFor is the ingestion pipeline: chunk, then count tokens.
func PipelineConfigFor(c ChunkingSettings) PipelineConfig {
	return PipelineConfig{
		Processors: []string{"chunker", "tokens"},
		ProcessorConfigs: map[string]map[string]any{
			"chunker": {"chunk_size": c.ChunkSize, "overlap": c.Overlap},
		},
	}
}
