package services

import (
	"context"
	"sync"

	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

// Ensure HealthService implements the interface.
var _ driving.HealthService = (*HealthService)(nil)

// HealthService pings the model collaborators.
type HealthService struct {
	embedder driven.EmbeddingService
	llm      driven.LLMService
}

// NewHealthService creates a new health service.
func NewHealthService(embedder driven.EmbeddingService, llm driven.LLMService) *HealthService {
	return &HealthService{embedder: embedder, llm: llm}
}

// Check pings both collaborators concurrently and lists installed models
// when the runtime supports it.
func (s *HealthService) Check(ctx context.Context) driving.HealthStatus {
	status := driving.HealthStatus{
		EmbeddingModel: s.embedder.ModelName(),
		LLMModel:       s.llm.ModelName(),
		Errors:         make(map[string]string),
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	record := func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			status.Errors[name] = err.Error()
		}
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		err := s.embedder.Ping(ctx)
		record("embedding", err)
		mu.Lock()
		status.EmbeddingConnected = err == nil
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		if lister, ok := s.llm.(driven.ModelLister); ok {
			models, err := lister.ListModels(ctx)
			record("llm", err)
			mu.Lock()
			status.LLMConnected = err == nil
			status.AvailableModels = models
			mu.Unlock()
			return
		}
		err := s.llm.Ping(ctx)
		record("llm", err)
		mu.Lock()
		status.LLMConnected = err == nil
		mu.Unlock()
	}()
	wg.Wait()

	return status
}
