package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

func newTestGateway(llm *mockLLMService, cfg domain.GenerationSettings) *GenerationGateway {
	return NewGenerationGateway(llm, &mockPromptStore{}, wordCounter{}, domain.LLMSettings{MaxTokens: 256, Temperature: 0.3, TopP: 0.9}, cfg)
}

func TestGenerationGateway_Generate(t *testing.T) {
	llm := &mockLLMService{}
	gateway := newTestGateway(llm, testGenerationSettings())

	text, err := gateway.Generate(context.Background(), GenerationRequest{
		Prompt: driven.PromptGroundedAnswer,
		Context: []domain.ContextItem{
			{Ref: "1", Text: "Beta decay emits electrons.", Provenance: domain.Provenance{Kind: domain.ProvenanceChunk, ChunkIndex: 4}},
		},
		Question: "What does beta decay emit?",
	})

	require.NoError(t, err)
	assert.Equal(t, "generated answer", text)
	require.Equal(t, 1, llm.calls())

	prompt := llm.lastPrompt()
	assert.Contains(t, prompt, "INSTRUCTION answer_grounded")
	assert.Contains(t, prompt, "[1] (passage 5)\nBeta decay emits electrons.")
	assert.Contains(t, prompt, "Question: What does beta decay emit?\nAnswer:")

	opts := llm.opts[0]
	assert.Equal(t, "INSTRUCTION system", opts.System)
	assert.Equal(t, 256, opts.MaxTokens)
	assert.InDelta(t, 0.3, opts.Temperature, 1e-9)
	assert.InDelta(t, 0.9, opts.TopP, 1e-9)
}

func TestGenerationGateway_Generate_Retries(t *testing.T) {
	var calls atomic.Int32
	llm := &mockLLMService{respond: func(context.Context, string) (string, error) {
		if calls.Add(1) < 3 {
			return "", fmt.Errorf("%w: status 503", domain.ErrLLMUnavailable)
		}
		return "third time lucky", nil
	}}
	gateway := newTestGateway(llm, testGenerationSettings())

	text, err := gateway.Generate(context.Background(), GenerationRequest{Prompt: driven.PromptUngroundedAnswer, Question: "q"})

	require.NoError(t, err)
	assert.Equal(t, "third time lucky", text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGenerationGateway_Generate_Failures(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCalls int
	}{
		{"transient until exhausted", fmt.Errorf("%w: status 429", domain.ErrLLMUnavailable), 3},
		{"attempt timeout", context.DeadlineExceeded, 3},
		{"permanent", errors.New("invalid api key"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &mockLLMService{respond: func(context.Context, string) (string, error) { return "", tt.err }}
			gateway := newTestGateway(llm, testGenerationSettings())

			_, err := gateway.Generate(context.Background(), GenerationRequest{Prompt: driven.PromptUngroundedAnswer, Question: "q"})

			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrGenerationUnavailable)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.wantCalls, llm.calls())
			assert.Zero(t, gateway.InFlight())
		})
	}
}

func TestGenerationGateway_Generate_Backpressure(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	llm := &mockLLMService{respond: func(context.Context, string) (string, error) {
		started <- struct{}{}
		<-release
		return "ok", nil
	}}
	cfg := testGenerationSettings()
	cfg.MaxConcurrent = 1
	cfg.QueueDepth = 1
	gateway := newTestGateway(llm, cfg)
	req := GenerationRequest{Prompt: driven.PromptUngroundedAnswer, Question: "q"}

	errs := make(chan error, 2)
	go func() {
		_, err := gateway.Generate(context.Background(), req)
		errs <- err
	}()
	<-started

	go func() {
		_, err := gateway.Generate(context.Background(), req)
		errs <- err
	}()
	require.Eventually(t, func() bool { return gateway.InFlight() == 2 }, time.Second, time.Millisecond)

	_, err := gateway.Generate(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrBackpressure)
	assert.Equal(t, 2, gateway.InFlight())

	close(release)
	<-started
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)
	assert.Zero(t, gateway.InFlight())
	assert.Equal(t, 2, llm.calls())
}

func TestGenerationGateway_Generate_QueuedInArrivalOrder(t *testing.T) {
	started := make(chan struct{}, 3)
	release := make(chan struct{})
	llm := &mockLLMService{respond: func(context.Context, string) (string, error) {
		started <- struct{}{}
		<-release
		return "ok", nil
	}}
	cfg := testGenerationSettings()
	cfg.MaxConcurrent = 1
	cfg.QueueDepth = 4
	gateway := newTestGateway(llm, cfg)

	errs := make(chan error, 3)
	ask := func(question string) {
		_, err := gateway.Generate(context.Background(), GenerationRequest{Prompt: driven.PromptUngroundedAnswer, Question: question})
		errs <- err
	}

	go ask("first")
	<-started

	// Each request is parked on the permit before the next one arrives.
	for i, question := range []string{"second", "third"} {
		go ask(question)
		require.Eventually(t, func() bool { return gateway.InFlight() == i+2 }, time.Second, time.Millisecond)
		time.Sleep(20 * time.Millisecond)
	}

	close(release)
	for range 3 {
		require.NoError(t, <-errs)
	}

	llm.mu.Lock()
	defer llm.mu.Unlock()
	require.Len(t, llm.prompts, 3)
	for i, question := range []string{"first", "second", "third"} {
		assert.Contains(t, llm.prompts[i], "Question: "+question+"\nAnswer:")
	}
}

func TestGenerationGateway_Generate_CancelledWhileQueued(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	llm := &mockLLMService{respond: func(context.Context, string) (string, error) {
		started <- struct{}{}
		<-release
		return "ok", nil
	}}
	gateway := newTestGateway(llm, testGenerationSettings())
	req := GenerationRequest{Prompt: driven.PromptUngroundedAnswer, Question: "q"}

	done := make(chan error, 1)
	go func() {
		_, err := gateway.Generate(context.Background(), req)
		done <- err
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := gateway.Generate(ctx, req)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, llm.calls(), "queued request never reached the model")

	close(release)
	require.NoError(t, <-done)
}

func TestGenerationGateway_Generate_InFlightSurvivesCallerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	llm := &mockLLMService{respond: func(attemptCtx context.Context, _ string) (string, error) {
		cancel()
		if err := attemptCtx.Err(); err != nil {
			return "", err
		}
		return "finished anyway", nil
	}}
	gateway := newTestGateway(llm, testGenerationSettings())

	text, err := gateway.Generate(ctx, GenerationRequest{Prompt: driven.PromptUngroundedAnswer, Question: "q"})

	require.NoError(t, err)
	assert.Equal(t, "finished anyway", text)
}

func TestGenerationGateway_Generate_NoRetryAfterCallerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	llm := &mockLLMService{respond: func(context.Context, string) (string, error) {
		cancel()
		return "", domain.ErrLLMUnavailable
	}}
	cfg := testGenerationSettings()
	cfg.Backoff = time.Second
	cfg.MaxBackoff = time.Second
	gateway := newTestGateway(llm, cfg)

	_, err := gateway.Generate(ctx, GenerationRequest{Prompt: driven.PromptUngroundedAnswer, Question: "q"})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, llm.calls())
}

func TestGenerationGateway_Generate_MissingPrompt(t *testing.T) {
	llm := &mockLLMService{}
	prompts := &mockPromptStore{missing: map[string]bool{driven.PromptSummarise: true, driven.PromptSystem: true}}
	gateway := NewGenerationGateway(llm, prompts, nil, domain.LLMSettings{}, testGenerationSettings())

	_, err := gateway.Generate(context.Background(), GenerationRequest{Prompt: driven.PromptSummarise})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, llm.calls())

	_, err = gateway.Generate(context.Background(), GenerationRequest{Prompt: driven.PromptUngroundedAnswer, Question: "q"})
	require.NoError(t, err)
	assert.Empty(t, llm.opts[0].System)
}

func TestGenerationGateway_Backoff(t *testing.T) {
	cfg := testGenerationSettings()
	cfg.Backoff = 100 * time.Millisecond
	cfg.MaxBackoff = time.Second
	gateway := newTestGateway(&mockLLMService{}, cfg)

	assert.Equal(t, 100*time.Millisecond, gateway.backoff(1))
	assert.Equal(t, 200*time.Millisecond, gateway.backoff(2))
	assert.Equal(t, 400*time.Millisecond, gateway.backoff(3))
	assert.Equal(t, time.Second, gateway.backoff(5))
	assert.Equal(t, time.Second, gateway.backoff(70))
}

func TestBuildPrompt(t *testing.T) {
	items := []domain.ContextItem{
		{Ref: "1", Text: " first passage ", Provenance: domain.Provenance{Kind: domain.ProvenanceChunk, ChunkIndex: 0}},
		{Ref: "2", Text: "web text", Provenance: domain.Provenance{Kind: domain.ProvenanceExternal, Title: "Beta decay", URL: "https://example.org/beta"}},
	}
	history := []domain.Turn{
		{Role: domain.RoleQuestion, Content: "earlier question"},
		{Role: domain.RoleAnswer, Content: "earlier answer"},
	}

	prompt := BuildPrompt("Answer from context.", items, history, "new question")

	assert.Equal(t, "Answer from context.\n\nContext:\n"+
		"[1] (passage 1)\nfirst passage\n\n"+
		"[2] Beta decay <https://example.org/beta>\nweb text\n\n"+
		"\nConversation so far:\nUser: earlier question\nAssistant: earlier answer\n"+
		"\nQuestion: new question\nAnswer:", prompt)
}

func TestBuildPrompt_EmptyContext(t *testing.T) {
	prompt := BuildPrompt("Say you do not know.", nil, nil, "q")

	assert.Contains(t, prompt, "Context:\n(none)\n")
	assert.NotContains(t, prompt, "Conversation so far")
}

func TestLastTurns(t *testing.T) {
	turns := make([]domain.Turn, 10)
	for i := range turns {
		turns[i].Content = fmt.Sprint(i)
	}

	assert.Nil(t, lastTurns(turns, 0))
	assert.Len(t, lastTurns(turns, 20), 10)
	last := lastTurns(turns, 4)
	require.Len(t, last, 4)
	assert.Equal(t, "6", last[0].Content)
}
