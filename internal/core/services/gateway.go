package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// GenerationRequest is everything the gateway folds into one prompt.
type GenerationRequest struct {
	// Prompt names the instruction template, e.g. driven.PromptGroundedAnswer.
	Prompt string

	// Context items in the order they are shown to the model.
	Context []domain.ContextItem

	// History is the current retrieval context of the session, oldest first.
	// Only the most recent turns are used.
	History []domain.Turn

	// Question is the user's question. Empty for summaries.
	Question string
}

// GenerationGateway is the only path to the model runtime. It caps the
// number of in-flight invocations, queues the rest in FIFO order up to a
// fixed depth and retries transient failures with exponential backoff.
type GenerationGateway struct {
	llm      driven.LLMService
	prompts  driven.PromptStore
	counter  driven.TokenCounter
	llmCfg   domain.LLMSettings
	cfg      domain.GenerationSettings
	permits  *semaphore.Weighted
	pending  atomic.Int64
	capacity int64
	sleep    func(context.Context, time.Duration) error
}

// NewGenerationGateway creates a gateway. counter may be nil.
func NewGenerationGateway(
	llm driven.LLMService,
	prompts driven.PromptStore,
	counter driven.TokenCounter,
	llmCfg domain.LLMSettings,
	cfg domain.GenerationSettings,
) *GenerationGateway {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.QueueDepth < 0 {
		cfg.QueueDepth = 0
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = domain.DefaultAppSettings().Generation.Timeout
	}

	return &GenerationGateway{
		llm:      llm,
		prompts:  prompts,
		counter:  counter,
		llmCfg:   llmCfg,
		cfg:      cfg,
		permits:  semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		capacity: int64(cfg.MaxConcurrent + cfg.QueueDepth),
		sleep:    sleepContext,
	}
}

// Generate builds the prompt and invokes the model.
//
// Returns domain.ErrBackpressure without waiting when the gateway already
// holds MaxConcurrent+QueueDepth requests. Each attempt runs under its own
// timeout and is not cancelled by ctx: a caller that gives up while a model
// call is running does not waste it. No further attempt starts once ctx is done.
func (g *GenerationGateway) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	if g.pending.Add(1) > g.capacity {
		g.pending.Add(-1)
		return "", domain.ErrBackpressure
	}
	defer g.pending.Add(-1)

	prompt, opts, err := g.build(req)
	if err != nil {
		return "", err
	}

	// semaphore.Weighted serves waiters in FIFO order.
	if err := g.permits.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer g.permits.Release(1)

	var lastErr error
	for attempt := 0; attempt < g.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := g.backoff(attempt)
			logger.Debug("Generation attempt %d failed (%v), retrying in %v", attempt, lastErr, delay)
			if err := g.sleep(ctx, delay); err != nil {
				return "", err
			}
		}

		text, err := g.attempt(ctx, prompt, opts)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !isTransient(err) {
			return "", fmt.Errorf("%w: %w", domain.ErrGenerationUnavailable, err)
		}
	}

	return "", fmt.Errorf("%w: after %d attempts: %w", domain.ErrGenerationUnavailable, g.cfg.MaxAttempts, lastErr)
}

func (g *GenerationGateway) attempt(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.cfg.Timeout)
	defer cancel()
	return g.llm.Generate(attemptCtx, prompt, opts)
}

// backoff returns the delay before the given retry (1-based).
func (g *GenerationGateway) backoff(retry int) time.Duration {
	delay := g.cfg.Backoff << (retry - 1)
	// delay < Backoff means the shift overflowed.
	if g.cfg.MaxBackoff > 0 && (delay > g.cfg.MaxBackoff || delay < g.cfg.Backoff) {
		delay = g.cfg.MaxBackoff
	}
	return delay
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// InFlight returns the number of requests holding or waiting for a permit.
func (g *GenerationGateway) InFlight() int {
	return int(g.pending.Load())
}

func isTransient(err error) bool {
	return errors.Is(err, domain.ErrLLMUnavailable) || errors.Is(err, context.DeadlineExceeded)
}

// build renders the prompt and the generation options.
func (g *GenerationGateway) build(req GenerationRequest) (string, driven.GenerateOptions, error) {
	instruction, err := g.prompts.Load(req.Prompt)
	if err != nil {
		return "", driven.GenerateOptions{}, fmt.Errorf("load prompt %s: %w", req.Prompt, err)
	}
	system, err := g.prompts.Load(driven.PromptSystem)
	if err != nil {
		logger.Debug("No system prompt: %v", err)
		system = ""
	}

	prompt := BuildPrompt(instruction, req.Context, lastTurns(req.History, g.cfg.HistoryTurns), req.Question)
	if g.counter != nil {
		logger.Debug("Prompt: %d tokens, %d context items", g.counter.Count(system)+g.counter.Count(prompt), len(req.Context))
	}

	return prompt, driven.GenerateOptions{
		System:      system,
		MaxTokens:   g.llmCfg.MaxTokens,
		Temperature: g.llmCfg.Temperature,
		TopP:        g.llmCfg.TopP,
	}, nil
}

// lastTurns returns at most n of the most recent turns. n <= 0 disables history.
func lastTurns(turns []domain.Turn, n int) []domain.Turn {
	if n <= 0 {
		return nil
	}
	if len(turns) > n {
		return turns[len(turns)-n:]
	}
	return turns
}

// BuildPrompt renders the instruction, numbered context, conversation and
// question as one prompt.
func BuildPrompt(instruction string, items []domain.ContextItem, history []domain.Turn, question string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(instruction))
	b.WriteString("\n\nContext:\n")
	if len(items) == 0 {
		b.WriteString("(none)\n")
	}
	for _, item := range items {
		fmt.Fprintf(&b, "[%s]%s\n%s\n\n", item.Ref, sourceLabel(item.Provenance), strings.TrimSpace(item.Text))
	}

	if len(history) > 0 {
		b.WriteString("\nConversation so far:\n")
		for _, t := range history {
			label := "User"
			if t.Role == domain.RoleAnswer {
				label = "Assistant"
			}
			fmt.Fprintf(&b, "%s: %s\n", label, strings.TrimSpace(t.Content))
		}
	}

	if question != "" {
		fmt.Fprintf(&b, "\nQuestion: %s\nAnswer:", strings.TrimSpace(question))
	}
	return b.String()
}

func sourceLabel(p domain.Provenance) string {
	switch p.Kind {
	case domain.ProvenanceChunk:
		return fmt.Sprintf(" (passage %d)", p.ChunkIndex+1)
	case domain.ProvenanceExternal:
		switch {
		case p.Title != "" && p.URL != "":
			return fmt.Sprintf(" %s <%s>", p.Title, p.URL)
		case p.Title != "":
			return " " + p.Title
		case p.URL != "":
			return fmt.Sprintf(" <%s>", p.URL)
		}
	}
	return ""
}
