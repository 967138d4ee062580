package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/docqa/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/normalisers"
	"github.com/custodia-labs/docqa/internal/postprocessors"
	"github.com/custodia-labs/docqa/internal/postprocessors/chunker"
)

// --- Mock implementations ---

// mockEmbeddingService maps text onto three axes by counting the words
// "alpha", "beta" and "gamma", plus a small constant so no vector is zero.
type mockEmbeddingService struct {
	mu        sync.Mutex
	err       error
	batchErr  error
	batches   int
	shortBy   int
	pingErr   error
	modelName string
	// gate, when set, blocks EmbedBatch until closed.
	gate chan struct{}
}

func keywordVector(text string) []float32 {
	lower := strings.ToLower(text)
	return []float32{
		0.1 + 10*float32(strings.Count(lower, "alpha")),
		10 * float32(strings.Count(lower, "beta")),
		10 * float32(strings.Count(lower, "gamma")),
	}
}

func (m *mockEmbeddingService) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return keywordVector(text), nil
}

func (m *mockEmbeddingService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if m.gate != nil {
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches++
	if m.batchErr != nil {
		return nil, m.batchErr
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts[:len(texts)-m.shortBy] {
		out = append(out, keywordVector(t))
	}
	return out, nil
}

func (m *mockEmbeddingService) Dimensions() int { return 3 }

func (m *mockEmbeddingService) ModelName() string {
	if m.modelName == "" {
		return "keyword-3"
	}
	return m.modelName
}

func (m *mockEmbeddingService) Ping(context.Context) error { return m.pingErr }

func (m *mockEmbeddingService) Close() error { return nil }

func (m *mockEmbeddingService) batchCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batches
}

// mockLLMService answers through respond, or echoes a fixed reply.
type mockLLMService struct {
	mu      sync.Mutex
	respond func(ctx context.Context, prompt string) (string, error)
	prompts []string
	opts    []driven.GenerateOptions
	pingErr error
	models  []string
}

func (m *mockLLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.opts = append(m.opts, opts)
	respond := m.respond
	m.mu.Unlock()

	if respond == nil {
		return "generated answer", nil
	}
	return respond(ctx, prompt)
}

func (m *mockLLMService) ModelName() string { return "mock-llm" }

func (m *mockLLMService) Ping(context.Context) error { return m.pingErr }

func (m *mockLLMService) Close() error { return nil }

func (m *mockLLMService) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

func (m *mockLLMService) lastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

// listingLLMService adds model listing.
type listingLLMService struct {
	mockLLMService
}

func (m *listingLLMService) ListModels(context.Context) ([]string, error) {
	return m.models, nil
}

// mockPromptStore serves fixed templates named after their key.
type mockPromptStore struct {
	missing map[string]bool
}

func (m *mockPromptStore) Load(name string) (string, error) {
	if m.missing[name] {
		return "", fmt.Errorf("%w: prompt %s", domain.ErrNotFound, name)
	}
	return "INSTRUCTION " + name, nil
}

func (m *mockPromptStore) Reload() {}

// mockLookup returns canned external results.
type mockLookup struct {
	mu      sync.Mutex
	results []domain.LookupResult
	err     error
	queries []string
}

func (m *mockLookup) Lookup(_ context.Context, query string, limit int) ([]domain.LookupResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, query)
	if m.err != nil {
		return nil, m.err
	}
	if limit > 0 && limit < len(m.results) {
		return m.results[:limit], nil
	}
	return m.results, nil
}

// wordCounter counts whitespace-separated words.
type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

// failingVectorStore wraps a store and fails selected operations.
type failingVectorStore struct {
	driven.VectorStore
	searchErr error
}

func (f *failingVectorStore) Search(ctx context.Context, documentID string, query []float32, k int) ([]domain.ScoredChunk, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.VectorStore.Search(ctx, documentID, query, k)
}

// --- Fixture ---

// testEnv wires the services over in-memory adapters.
type testEnv struct {
	docStore  *memory.DocumentStore
	vectors   *memory.VectorStore
	sessRepo  *memory.SessionRepository
	embedder  *mockEmbeddingService
	llm       *mockLLMService
	lookup    *mockLookup
	index     *EmbeddingIndex
	documents *DocumentService
	gateway   *GenerationGateway
	sessions  *SessionService
	answers   *AnswerService
}

func testRetrievalSettings() domain.RetrievalSettings {
	return domain.RetrievalSettings{
		TopK:            3,
		ConfidenceFloor: 0.5,
		MaxContextChars: 2000,
		Timeout:         5 * time.Second,
		LookupResults:   3,
	}
}

func testGenerationSettings() domain.GenerationSettings {
	return domain.GenerationSettings{
		MaxConcurrent: 1,
		QueueDepth:    8,
		Timeout:       5 * time.Second,
		MaxAttempts:   3,
		Backoff:       time.Millisecond,
		MaxBackoff:    5 * time.Millisecond,
		HistoryTurns:  6,
	}
}

func newTestEnv() *testEnv {
	env := &testEnv{
		docStore: memory.NewDocumentStore(),
		vectors:  memory.NewVectorStore(),
		sessRepo: memory.NewSessionRepository(),
		embedder: &mockEmbeddingService{},
		llm:      &mockLLMService{},
		lookup:   &mockLookup{},
	}
	env.index = NewEmbeddingIndex(env.embedder, env.vectors)

	pipeline := postprocessors.NewPipeline(chunker.New(chunker.WithChunkSize(60), chunker.WithOverlap(10)))
	env.documents = NewDocumentService(env.docStore, normalisers.NewDefaultRegistry(), pipeline, env.index)
	env.gateway = NewGenerationGateway(env.llm, &mockPromptStore{}, wordCounter{}, domain.LLMSettings{MaxTokens: 256}, testGenerationSettings())
	env.sessions = NewSessionService(env.sessRepo)
	env.answers = NewAnswerService(env.docStore, env.index, env.lookup, env.gateway, env.sessions, testRetrievalSettings())
	return env
}

// ingest uploads and processes a text document.
func (e *testEnv) ingest(ctx context.Context, filename, text string) (*domain.Document, error) {
	doc, err := e.documents.Ingest(ctx, domain.UploadRequest{Filename: filename, Content: []byte(text)})
	if err != nil {
		return nil, err
	}
	if doc.Status != domain.StatusReady {
		return doc, errors.New("document not ready: " + doc.FailureReason)
	}
	return doc, nil
}

// sampleText gives each keyword its own sentence.
const sampleText = "Alpha particles are helium nuclei. " +
	"Beta decay emits electrons from the nucleus. " +
	"Gamma rays are high energy photons."
