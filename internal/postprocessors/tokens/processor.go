// Package tokens provides a post-processor that records token counts on chunks.
package tokens

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Processor fills Chunk.Tokens using a TokenCounter.
type Processor struct {
	counter driven.TokenCounter
}

// New creates a token-counting processor.
func New(counter driven.TokenCounter) *Processor {
	return &Processor{counter: counter}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "tokens"
}

// Process annotates each chunk with its token count and returns the chunks.
func (p *Processor) Process(_ context.Context, _ *domain.Document, _ string, chunks []domain.Chunk) ([]domain.Chunk, error) {
	for i := range chunks {
		chunks[i].Tokens = p.counter.Count(chunks[i].Content)
	}
	return chunks, nil
}
