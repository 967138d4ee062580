// Package ollama generates text with a local Ollama server.
package ollama

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/custodia-labs/docqa/internal/adapters/driven/transport"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

var (
	_ driven.LLMService  = (*LLMService)(nil)
	_ driven.ModelLister = (*LLMService)(nil)
)

const (
	DefaultBaseURL    = domain.OllamaBaseURL
	DefaultLLMModel   = "llama3:8b"
	DefaultLLMTimeout = 120 * time.Second
)

// LLMConfig configures the service; zero fields take the defaults.
type LLMConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// LLMService calls POST /api/generate without streaming.
type LLMService struct {
	api   *transport.Client
	model string
}

type generateRequest struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	System  string   `json:"system,omitempty"`
	Stream  bool     `json:"stream"`
	Options *options `json:"options,omitempty"`
}

type options struct {
	NumPredict  int      `json:"num_predict,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        float64  `json:"top_p,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

func NewLLMService(cfg LLMConfig) *LLMService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultLLMTimeout
	}
	return &LLMService{
		api:   transport.NewClient("ollama", cfg.BaseURL, cfg.Timeout, domain.ErrLLMUnavailable),
		model: cfg.Model,
	}
}

func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	req := generateRequest{
		Model:   s.model,
		Prompt:  prompt,
		System:  opts.System,
		Options: toOptions(opts),
	}
	var resp generateResponse
	if err := s.api.Do(ctx, http.MethodPost, "/api/generate", req, &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}

// toOptions returns nil when nothing is set so the model's own defaults
// apply. Otherwise temperature is always sent, since zero is meaningful.
func toOptions(opts driven.GenerateOptions) *options {
	if opts.MaxTokens <= 0 && opts.Temperature <= 0 && opts.TopP <= 0 && len(opts.StopWords) == 0 {
		return nil
	}
	temperature := opts.Temperature
	return &options{
		NumPredict:  opts.MaxTokens,
		Temperature: &temperature,
		TopP:        opts.TopP,
		Stop:        opts.StopWords,
	}
}

// ListModels returns the installed model names, sorted.
func (s *LLMService) ListModels(ctx context.Context) ([]string, error) {
	var tags tagsResponse
	if err := s.api.Do(ctx, http.MethodGet, "/api/tags", nil, &tags); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	slices.Sort(names)
	return names, nil
}

func (s *LLMService) ModelName() string { return s.model }

// Ping lists models, which needs no inference.
func (s *LLMService) Ping(ctx context.Context) error {
	_, err := s.ListModels(ctx)
	return err
}

func (s *LLMService) Close() error { return s.api.Close() }
