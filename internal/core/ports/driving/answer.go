package driving

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// AnswerService answers questions, grounded in a document or via external lookup.
type AnswerService interface {
	// Answer retrieves context, generates an answer and appends the
	// question/answer pair to the session.
	Answer(ctx context.Context, req domain.AnswerRequest) (*domain.Answer, error)
}

// SummaryService summarises ready documents.
type SummaryService interface {
	// Summarise generates a summary from the document's leading chunks.
	Summarise(ctx context.Context, documentID string) (string, error)
}
