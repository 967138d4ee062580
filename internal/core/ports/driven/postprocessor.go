package driven

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// PostProcessor is one stage of chunk production. The first stage of a
// pipeline receives nil chunks and creates them; later stages annotate and
// return what they are given.
type PostProcessor interface {
	Name() string
	Process(ctx context.Context, doc *domain.Document, text string, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// PostProcessorPipeline runs every stage over a document's extracted text.
type PostProcessorPipeline interface {
	Process(ctx context.Context, doc *domain.Document, text string) ([]domain.Chunk, error)
}

// TokenCounter measures text in model tokens.
type TokenCounter interface {
	Count(text string) int
}
