package services

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// EnvPrefix prefixes environment overrides, e.g. DOCQA_RETRIEVAL_TOP_K.
const EnvPrefix = "DOCQA_"

// Config keys.
const (
	keyEmbeddingProvider = "embedding.provider"
	keyEmbeddingModel    = "embedding.model"
	keyEmbeddingBaseURL  = "embedding.base_url"
	keyEmbeddingAPIKey   = "embedding.api_key"

	keyLLMProvider = "llm.provider"
	keyLLMModel    = "llm.model"
	keyLLMBaseURL  = "llm.base_url"
	keyLLMAPIKey   = "llm.api_key"
)

// setting binds one dotted key to a field of AppSettings.
type setting struct {
	key    string
	secret bool
	// load copies the stored value into settings.
	load func(driven.ConfigStore, *domain.AppSettings)
	// parse converts text from the CLI or the environment.
	parse func(string) (any, error)
	// assign writes a parsed value into settings.
	assign func(*domain.AppSettings, any)
	// value returns the field in its stored representation.
	value func(*domain.AppSettings) any
}

func textSetting[T ~string](key string, field func(*domain.AppSettings) *T, check func(T) error) setting {
	return setting{
		key:  key,
		load: func(c driven.ConfigStore, s *domain.AppSettings) {
			v := T(c.GetString(key))
			if check != nil {
				if err := check(v); err != nil {
					logger.Warn("Ignoring %s: %v", key, err)
					return
				}
			}
			*field(s) = v
		},
		parse: func(raw string) (any, error) {
			v := T(strings.TrimSpace(raw))
			if check != nil {
				if err := check(v); err != nil {
					return nil, err
				}
			}
			return string(v), nil
		},
		assign: func(s *domain.AppSettings, v any) { *field(s) = T(v.(string)) },
		value:  func(s *domain.AppSettings) any { return string(*field(s)) },
	}
}

func intSetting(key string, field func(*domain.AppSettings) *int) setting {
	return setting{
		key:  key,
		load: func(c driven.ConfigStore, s *domain.AppSettings) { *field(s) = c.GetInt(key) },
		parse: func(raw string) (any, error) {
			n, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				return nil, fmt.Errorf("not an integer: %q", raw)
			}
			return n, nil
		},
		assign: func(s *domain.AppSettings, v any) { *field(s) = v.(int) },
		value:  func(s *domain.AppSettings) any { return *field(s) },
	}
}

func floatSetting(key string, field func(*domain.AppSettings) *float64) setting {
	return setting{
		key:  key,
		load: func(c driven.ConfigStore, s *domain.AppSettings) { *field(s) = c.GetFloat(key) },
		parse: func(raw string) (any, error) {
			f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return nil, fmt.Errorf("not a number: %q", raw)
			}
			return f, nil
		},
		assign: func(s *domain.AppSettings, v any) { *field(s) = v.(float64) },
		value:  func(s *domain.AppSettings) any { return *field(s) },
	}
}

func boolSetting(key string, field func(*domain.AppSettings) *bool) setting {
	return setting{
		key:  key,
		load: func(c driven.ConfigStore, s *domain.AppSettings) { *field(s) = c.GetBool(key) },
		parse: func(raw string) (any, error) {
			b, err := strconv.ParseBool(strings.TrimSpace(raw))
			if err != nil {
				return nil, fmt.Errorf("not a boolean: %q", raw)
			}
			return b, nil
		},
		assign: func(s *domain.AppSettings, v any) { *field(s) = v.(bool) },
		value:  func(s *domain.AppSettings) any { return *field(s) },
	}
}

// durationSetting stores a duration as a whole number of units.
func durationSetting(key string, unit time.Duration, field func(*domain.AppSettings) *time.Duration) setting {
	s := intSetting(key, nil)
	s.load = func(c driven.ConfigStore, a *domain.AppSettings) { *field(a) = time.Duration(c.GetInt(key)) * unit }
	s.assign = func(a *domain.AppSettings, v any) { *field(a) = time.Duration(v.(int)) * unit }
	s.value = func(a *domain.AppSettings) any { return int(*field(a) / unit) }
	return s
}

func secret(s setting) setting {
	s.secret = true
	return s
}

func checkProvider(p domain.AIProvider) error {
	if !p.IsValid() {
		return fmt.Errorf("unknown provider %q (valid: ollama, openai, anthropic)", p)
	}
	return nil
}

func checkLookupProvider(p domain.LookupProvider) error {
	switch p {
	case domain.LookupDuckDuckGo, domain.LookupNone:
		return nil
	}
	return fmt.Errorf("unknown lookup provider %q (valid: duckduckgo, none)", p)
}

func checkBackend(b domain.StorageBackend) error {
	switch b {
	case domain.StorageMemory, domain.StorageSQLite, domain.StorageBolt, domain.StorageDynamoDB, domain.StoragePGVector:
		return nil
	}
	return fmt.Errorf("unknown storage backend %q", b)
}

var settingTable = []setting{
	textSetting(keyEmbeddingProvider, func(s *domain.AppSettings) *domain.AIProvider { return &s.Embedding.Provider }, checkProvider),
	textSetting(keyEmbeddingModel, func(s *domain.AppSettings) *string { return &s.Embedding.Model }, nil),
	textSetting(keyEmbeddingBaseURL, func(s *domain.AppSettings) *string { return &s.Embedding.BaseURL }, nil),
	secret(textSetting(keyEmbeddingAPIKey, func(s *domain.AppSettings) *string { return &s.Embedding.APIKey }, nil)),

	textSetting(keyLLMProvider, func(s *domain.AppSettings) *domain.AIProvider { return &s.LLM.Provider }, checkProvider),
	textSetting(keyLLMModel, func(s *domain.AppSettings) *string { return &s.LLM.Model }, nil),
	textSetting(keyLLMBaseURL, func(s *domain.AppSettings) *string { return &s.LLM.BaseURL }, nil),
	secret(textSetting(keyLLMAPIKey, func(s *domain.AppSettings) *string { return &s.LLM.APIKey }, nil)),
	floatSetting("llm.temperature", func(s *domain.AppSettings) *float64 { return &s.LLM.Temperature }),
	floatSetting("llm.top_p", func(s *domain.AppSettings) *float64 { return &s.LLM.TopP }),
	intSetting("llm.max_tokens", func(s *domain.AppSettings) *int { return &s.LLM.MaxTokens }),

	intSetting("chunking.chunk_size", func(s *domain.AppSettings) *int { return &s.Chunking.ChunkSize }),
	intSetting("chunking.overlap", func(s *domain.AppSettings) *int { return &s.Chunking.Overlap }),

	intSetting("retrieval.top_k", func(s *domain.AppSettings) *int { return &s.Retrieval.TopK }),
	floatSetting("retrieval.confidence_floor", func(s *domain.AppSettings) *float64 { return &s.Retrieval.ConfidenceFloor }),
	intSetting("retrieval.max_context_chars", func(s *domain.AppSettings) *int { return &s.Retrieval.MaxContextChars }),
	durationSetting("retrieval.timeout_seconds", time.Second, func(s *domain.AppSettings) *time.Duration { return &s.Retrieval.Timeout }),
	intSetting("retrieval.lookup_results", func(s *domain.AppSettings) *int { return &s.Retrieval.LookupResults }),

	intSetting("generation.max_concurrent", func(s *domain.AppSettings) *int { return &s.Generation.MaxConcurrent }),
	intSetting("generation.queue_depth", func(s *domain.AppSettings) *int { return &s.Generation.QueueDepth }),
	durationSetting("generation.timeout_seconds", time.Second, func(s *domain.AppSettings) *time.Duration { return &s.Generation.Timeout }),
	intSetting("generation.max_attempts", func(s *domain.AppSettings) *int { return &s.Generation.MaxAttempts }),
	durationSetting("generation.backoff_ms", time.Millisecond, func(s *domain.AppSettings) *time.Duration { return &s.Generation.Backoff }),
	durationSetting("generation.max_backoff_ms", time.Millisecond, func(s *domain.AppSettings) *time.Duration { return &s.Generation.MaxBackoff }),
	intSetting("generation.history_turns", func(s *domain.AppSettings) *int { return &s.Generation.HistoryTurns }),

	textSetting("lookup.provider", func(s *domain.AppSettings) *domain.LookupProvider { return &s.Lookup.Provider }, checkLookupProvider),
	textSetting("lookup.base_url", func(s *domain.AppSettings) *string { return &s.Lookup.BaseURL }, nil),
	floatSetting("lookup.rate_per_second", func(s *domain.AppSettings) *float64 { return &s.Lookup.RatePerSecond }),
	boolSetting("lookup.fetch_pages", func(s *domain.AppSettings) *bool { return &s.Lookup.FetchPages }),

	textSetting("storage.backend", func(s *domain.AppSettings) *domain.StorageBackend { return &s.Storage.Backend }, checkBackend),
	textSetting("storage.data_dir", func(s *domain.AppSettings) *string { return &s.Storage.DataDir }, nil),
	textSetting("storage.session_backend", func(s *domain.AppSettings) *domain.StorageBackend { return &s.Storage.SessionBackend }, checkBackend),
	textSetting("storage.vector_backend", func(s *domain.AppSettings) *domain.StorageBackend { return &s.Storage.VectorBackend }, checkBackend),
	secret(textSetting("storage.postgres_url", func(s *domain.AppSettings) *string { return &s.Storage.PostgresURL }, nil)),
	textSetting("storage.dynamodb_table", func(s *domain.AppSettings) *string { return &s.Storage.DynamoDBTable }, nil),

	textSetting("server.addr", func(s *domain.AppSettings) *string { return &s.Server.Addr }, nil),
	intSetting("server.body_limit_mb", func(s *domain.AppSettings) *int { return &s.Server.BodyLimitMB }),
}

func lookupSetting(key string) (setting, bool) {
	for _, s := range settingTable {
		if s.key == key {
			return s, true
		}
	}
	return setting{}, false
}

// EnvName returns the environment variable that overrides key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// LoadEnv loads .env files into the process environment. Variables that are
// already set win over the files; missing files are skipped.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// SettingsService resolves settings from defaults, the config file and
// DOCQA_* environment variables, in increasing precedence.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	lookupEnv   func(string) (string, bool)
}

// NewSettingsService creates a new settings service.
// aiValidator may be nil if validation is not needed.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		lookupEnv:   os.LookupEnv,
	}
}

// Get retrieves the effective settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	result := domain.DefaultAppSettings()
	explicit := make(map[string]bool)

	for _, st := range settingTable {
		if _, ok := s.configStore.Get(st.key); ok {
			st.load(s.configStore, &result)
			explicit[st.key] = true
		}
		if raw, ok := s.lookupEnv(EnvName(st.key)); ok && raw != "" {
			v, err := st.parse(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, EnvName(st.key), err)
			}
			st.assign(&result, v)
			explicit[st.key] = true
		}
	}

	// Switching provider without naming a model or endpoint means that
	// provider's defaults, not the local runtime's.
	if explicit[keyEmbeddingProvider] {
		if !explicit[keyEmbeddingModel] {
			result.Embedding.Model = domain.DefaultEmbeddingModels()[result.Embedding.Provider]
		}
		if !explicit[keyEmbeddingBaseURL] && !result.Embedding.Provider.IsLocal() {
			result.Embedding.BaseURL = ""
		}
	}
	if explicit[keyLLMProvider] {
		if !explicit[keyLLMModel] {
			result.LLM.Model = domain.DefaultLLMModels()[result.LLM.Provider]
		}
		if !explicit[keyLLMBaseURL] && !result.LLM.Provider.IsLocal() {
			result.LLM.BaseURL = ""
		}
	}

	if err := Validate(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Save persists every setting. Empty secrets are not written.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	if settings == nil {
		return fmt.Errorf("%w: settings are required", domain.ErrInvalidInput)
	}
	if err := Validate(settings); err != nil {
		return err
	}
	for _, st := range settingTable {
		v := st.value(settings)
		if st.secret && v == "" {
			continue
		}
		if err := s.configStore.Set(st.key, v); err != nil {
			return fmt.Errorf("save %s: %w", st.key, err)
		}
	}
	return nil
}

// Set parses value for key and persists it. The resulting settings must
// still be valid.
func (s *SettingsService) Set(key, value string) error {
	st, ok := lookupSetting(strings.TrimSpace(key))
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	v, err := st.parse(value)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, st.key, err)
	}

	current, err := s.Get()
	if err != nil {
		return err
	}
	st.assign(current, v)
	if err := Validate(current); err != nil {
		return err
	}

	return s.configStore.Set(st.key, v)
}

// Keys returns every recognised key in sorted order.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(settingTable))
	for _, st := range settingTable {
		keys = append(keys, st.key)
	}
	sort.Strings(keys)
	return keys
}

// IsSecret reports whether key holds a credential that should be masked.
func IsSecret(key string) bool {
	st, ok := lookupSetting(key)
	return ok && st.secret
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// Validate checks settings for values the pipeline cannot run with.
func Validate(a *domain.AppSettings) error {
	var problems []string
	add := func(format string, args ...any) { problems = append(problems, fmt.Sprintf(format, args...)) }

	if !a.Embedding.Provider.IsValid() {
		add("embedding.provider %q is not valid", a.Embedding.Provider)
	}
	if !a.LLM.Provider.IsValid() {
		add("llm.provider %q is not valid", a.LLM.Provider)
	}
	if a.LLM.Temperature < 0 || a.LLM.Temperature > 2 {
		add("llm.temperature must be between 0 and 2")
	}
	if a.LLM.TopP < 0 || a.LLM.TopP > 1 {
		add("llm.top_p must be between 0 and 1")
	}
	if a.LLM.MaxTokens < 0 {
		add("llm.max_tokens must not be negative")
	}
	if a.Chunking.ChunkSize <= 0 {
		add("chunking.chunk_size must be positive")
	}
	if a.Chunking.Overlap < 0 || a.Chunking.Overlap >= a.Chunking.ChunkSize {
		add("chunking.overlap must be at least 0 and less than chunk_size")
	}
	if a.Retrieval.TopK <= 0 {
		add("retrieval.top_k must be positive")
	}
	if a.Retrieval.ConfidenceFloor < -1 || a.Retrieval.ConfidenceFloor > 1 {
		add("retrieval.confidence_floor must be between -1 and 1")
	}
	if a.Retrieval.MaxContextChars < 0 {
		add("retrieval.max_context_chars must not be negative")
	}
	if a.Retrieval.LookupResults < 0 {
		add("retrieval.lookup_results must not be negative")
	}
	if a.Generation.MaxConcurrent <= 0 {
		add("generation.max_concurrent must be positive")
	}
	if a.Generation.QueueDepth < 0 {
		add("generation.queue_depth must not be negative")
	}
	if a.Generation.MaxAttempts <= 0 {
		add("generation.max_attempts must be positive")
	}
	if a.Generation.Backoff < 0 || a.Generation.MaxBackoff < 0 {
		add("generation backoff must not be negative")
	}
	if a.Generation.HistoryTurns < 0 {
		add("generation.history_turns must not be negative")
	}
	if a.Lookup.RatePerSecond < 0 {
		add("lookup.rate_per_second must not be negative")
	}
	switch a.Storage.Backend {
	case domain.StorageMemory, domain.StorageSQLite:
	default:
		add("storage.backend must be memory or sqlite")
	}
	if err := checkBackend(a.Storage.SessionBackend); err != nil || a.Storage.SessionBackend == domain.StoragePGVector {
		add("storage.session_backend must be memory, sqlite, bolt or dynamodb")
	}
	switch a.Storage.VectorBackend {
	case domain.StorageMemory, domain.StoragePGVector:
	default:
		add("storage.vector_backend must be memory or pgvector")
	}
	if a.Server.BodyLimitMB <= 0 {
		add("server.body_limit_mb must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(problems, "; "))
	}
	return nil
}

// ValidateEmbeddingConfig validates the current embedding configuration.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// GetPipelineConfig returns the ingestion pipeline configuration.
func (s *SettingsService) GetPipelineConfig() (domain.PipelineConfig, error) {
	settings, err := s.Get()
	if err != nil {
		return domain.PipelineConfig{}, err
	}
	return domain.PipelineConfigFor(settings.Chunking), nil
}
