package services

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/docqa/internal/core/domain"
)

func newTestSettings(env map[string]string) (*SettingsService, *memory.ConfigStore) {
	store := memory.NewConfigStore()
	svc := NewSettingsService(store, nil)
	svc.lookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	return svc, store
}

func TestSettingsService_Get_ReturnsDefaults(t *testing.T) {
	svc, _ := newTestSettings(nil)

	settings, err := svc.Get()

	require.NoError(t, err)
	assert.Equal(t, domain.DefaultAppSettings(), *settings)
}

func TestSettingsService_Get_ReturnsStoredValues(t *testing.T) {
	svc, store := newTestSettings(nil)
	_ = store.Set("retrieval.top_k", 8)
	_ = store.Set("retrieval.confidence_floor", 0.25)
	_ = store.Set("generation.timeout_seconds", 30)
	_ = store.Set("generation.backoff_ms", 50)
	_ = store.Set("lookup.fetch_pages", true)

	settings, err := svc.Get()

	require.NoError(t, err)
	assert.Equal(t, 8, settings.Retrieval.TopK)
	assert.InDelta(t, 0.25, settings.Retrieval.ConfidenceFloor, 1e-9)
	assert.Equal(t, 30*time.Second, settings.Generation.Timeout)
	assert.Equal(t, 50*time.Millisecond, settings.Generation.Backoff)
	assert.True(t, settings.Lookup.FetchPages)
}

func TestSettingsService_Get_InvalidProviderFallsBack(t *testing.T) {
	svc, store := newTestSettings(nil)
	_ = store.Set("embedding.provider", "invalid_provider")

	settings, err := svc.Get()

	require.NoError(t, err)
	assert.Equal(t, domain.DefaultAppSettings().Embedding.Provider, settings.Embedding.Provider)
}

func TestSettingsService_Get_CloudProviderDefaults(t *testing.T) {
	svc, store := newTestSettings(nil)
	_ = store.Set("llm.provider", "anthropic")

	settings, err := svc.Get()

	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderAnthropic, settings.LLM.Provider)
	assert.Equal(t, domain.DefaultLLMModels()[domain.AIProviderAnthropic], settings.LLM.Model)
	assert.Empty(t, settings.LLM.BaseURL)
}

func TestSettingsService_Get_PreservesExplicitBaseURL(t *testing.T) {
	svc, store := newTestSettings(nil)
	_ = store.Set("embedding.provider", "openai")
	_ = store.Set("embedding.base_url", "https://proxy.example.com/v1")
	_ = store.Set("embedding.model", "text-embedding-3-large")

	settings, err := svc.Get()

	require.NoError(t, err)
	assert.Equal(t, "https://proxy.example.com/v1", settings.Embedding.BaseURL)
	assert.Equal(t, "text-embedding-3-large", settings.Embedding.Model)
}

func TestSettingsService_Get_EnvironmentWins(t *testing.T) {
	svc, store := newTestSettings(map[string]string{
		"DOCQA_RETRIEVAL_TOP_K":    "3",
		"DOCQA_LLM_API_KEY":        "sk-env",
		"DOCQA_LOOKUP_FETCH_PAGES": "true",
	})
	_ = store.Set("retrieval.top_k", 8)

	settings, err := svc.Get()

	require.NoError(t, err)
	assert.Equal(t, 3, settings.Retrieval.TopK)
	assert.Equal(t, "sk-env", settings.LLM.APIKey)
	assert.True(t, settings.Lookup.FetchPages)
}

func TestSettingsService_Get_InvalidEnvironment(t *testing.T) {
	svc, _ := newTestSettings(map[string]string{"DOCQA_RETRIEVAL_TOP_K": "many"})

	_, err := svc.Get()

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), "DOCQA_RETRIEVAL_TOP_K")
}

func TestSettingsService_Set(t *testing.T) {
	svc, store := newTestSettings(nil)

	require.NoError(t, svc.Set("retrieval.top_k", "7"))
	require.NoError(t, svc.Set("generation.backoff_ms", "100"))
	require.NoError(t, svc.Set("llm.provider", "openai"))

	v, ok := store.Get("retrieval.top_k")
	require.True(t, ok)
	assert.Equal(t, 7, v)

	settings, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, 7, settings.Retrieval.TopK)
	assert.Equal(t, 100*time.Millisecond, settings.Generation.Backoff)
	assert.Equal(t, domain.AIProviderOpenAI, settings.LLM.Provider)
}

func TestSettingsService_Set_Errors(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown key", "search.mode", "hybrid"},
		{"not an integer", "retrieval.top_k", "five"},
		{"not a number", "llm.temperature", "warm"},
		{"unknown provider", "llm.provider", "gemini"},
		{"unknown lookup", "lookup.provider", "bing"},
		{"overlap not below chunk size", "chunking.overlap", "1000"},
		{"zero concurrency", "generation.max_concurrent", "0"},
		{"vector backend", "storage.vector_backend", "sqlite"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestSettings(nil)

			err := svc.Set(tt.key, tt.value)

			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			_, stored := store.Get(tt.key)
			assert.False(t, stored)
		})
	}
}

func TestSettingsService_Save(t *testing.T) {
	svc, store := newTestSettings(nil)
	settings := domain.DefaultAppSettings()
	settings.LLM.Provider = domain.AIProviderOpenAI
	settings.LLM.Model = "gpt-4o"
	settings.LLM.APIKey = "sk-test"
	settings.Retrieval.Timeout = 45 * time.Second

	require.NoError(t, svc.Save(&settings))

	assert.Equal(t, "openai", store.GetString("llm.provider"))
	assert.Equal(t, "sk-test", store.GetString("llm.api_key"))
	assert.Equal(t, 45, store.GetInt("retrieval.timeout_seconds"))

	// Empty secrets are not written.
	_, ok := store.Get("embedding.api_key")
	assert.False(t, ok)

	loaded, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", loaded.LLM.Model)
	assert.Equal(t, 45*time.Second, loaded.Retrieval.Timeout)
}

func TestSettingsService_Save_Invalid(t *testing.T) {
	svc, _ := newTestSettings(nil)
	settings := domain.DefaultAppSettings()
	settings.Chunking.ChunkSize = 0

	err := svc.Save(&settings)

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.ErrorIs(t, svc.Save(nil), domain.ErrInvalidInput)
}

func TestSettingsService_Keys(t *testing.T) {
	svc, _ := newTestSettings(nil)

	keys := svc.Keys()

	assert.IsNonDecreasing(t, keys)
	assert.Contains(t, keys, "retrieval.top_k")
	assert.Contains(t, keys, "generation.history_turns")
	assert.Contains(t, keys, "storage.dynamodb_table")
	assert.True(t, IsSecret("llm.api_key"))
	assert.False(t, IsSecret("llm.model"))
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "DOCQA_RETRIEVAL_TOP_K", EnvName("retrieval.top_k"))
	assert.Equal(t, "DOCQA_LLM_API_KEY", EnvName("llm.api_key"))
}

func TestLoadEnv(t *testing.T) {
	const name = "DOCQA_TEST_LOAD_ENV_VALUE"
	t.Cleanup(func() { _ = os.Unsetenv(name) })

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(name+"=from-file\n"), 0o600))

	require.NoError(t, LoadEnv(filepath.Join(t.TempDir(), "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv(name))
}

func TestValidate(t *testing.T) {
	settings := domain.DefaultAppSettings()
	require.NoError(t, Validate(&settings))

	settings.LLM.TopP = 1.5
	settings.Retrieval.TopK = 0

	err := Validate(&settings)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), "llm.top_p")
	assert.Contains(t, err.Error(), "retrieval.top_k")
}

type stubAIValidator struct {
	embedding *domain.EmbeddingSettings
	llm       *domain.LLMSettings
	err       error
}

func (v *stubAIValidator) ValidateEmbedding(s *domain.EmbeddingSettings) error {
	v.embedding = s
	return v.err
}

func (v *stubAIValidator) ValidateLLM(s *domain.LLMSettings) error {
	v.llm = s
	return v.err
}

func TestSettingsService_ValidateConfig(t *testing.T) {
	validator := &stubAIValidator{}
	svc := NewSettingsService(memory.NewConfigStore(), validator)
	svc.lookupEnv = func(string) (string, bool) { return "", false }

	require.NoError(t, svc.ValidateEmbeddingConfig())
	require.NoError(t, svc.ValidateLLMConfig())
	require.NotNil(t, validator.embedding)
	require.NotNil(t, validator.llm)
	assert.Equal(t, "nomic-embed-text", validator.embedding.Model)

	validator.err = errors.New("connection refused")
	assert.Error(t, svc.ValidateLLMConfig())

	// No validator configured.
	plain, _ := newTestSettings(nil)
	assert.NoError(t, plain.ValidateLLMConfig())
}

func TestSettingsService_GetPipelineConfig(t *testing.T) {
	svc, store := newTestSettings(nil)
	_ = store.Set("chunking.chunk_size", 500)
	_ = store.Set("chunking.overlap", 50)

	cfg, err := svc.GetPipelineConfig()

	require.NoError(t, err)
	assert.Equal(t, []string{"chunker", "tokens"}, cfg.Processors)
	assert.Equal(t, 500, cfg.GetProcessorConfig("chunker")["chunk_size"])
	assert.Equal(t, 50, cfg.GetProcessorConfig("chunker")["overlap"])
}
