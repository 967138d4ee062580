package cli

import (
	"errors"
	"fmt"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// explain wraps err with what to do next, when there is something to do.
func explain(action string, err error) error {
	hint := ""
	switch {
	case errors.Is(err, domain.ErrDocumentNotReady):
		hint = "process the document first with 'docqa document process <id>'"
	case errors.Is(err, domain.ErrDocumentNotFound):
		hint = "list documents with 'docqa document list'"
	case errors.Is(err, domain.ErrUnsupportedFileType):
		hint = "see 'docqa document upload --help' for supported types"
	case errors.Is(err, domain.ErrAlreadyProcessing):
		hint = "wait for processing to finish"
	case errors.Is(err, domain.ErrLeaseLost):
		hint = "another process took the document over, check it with 'docqa document get <id>'"
	case errors.Is(err, domain.ErrEmbeddingUnavailable), errors.Is(err, domain.ErrRetrievalUnavailable):
		hint = "check the embedding provider with 'docqa health'"
	case errors.Is(err, domain.ErrGenerationUnavailable), errors.Is(err, domain.ErrLLMUnavailable):
		hint = "check the LLM provider with 'docqa health'"
	case errors.Is(err, domain.ErrBackpressure):
		hint = "too many questions in flight, try again shortly"
	}
	if hint == "" {
		return fmt.Errorf("%s: %w", action, err)
	}
	return fmt.Errorf("%s: %w (%s)", action, err, hint)
}
