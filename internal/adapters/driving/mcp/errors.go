// Package mcp exposes document question answering to AI assistants over the
// Model Context Protocol.
package mcp

import (
	"errors"
	"fmt"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// ErrMissingAnswerService is returned when the answer service is not provided.
var ErrMissingAnswerService = errors.New("mcp: answer service is required")

// toolError prefixes err with a short code the calling assistant can act on.
func toolError(err error) error {
	code := "internal"
	switch {
	case errors.Is(err, domain.ErrDocumentNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrNotFound):
		code = "not_found"
	case errors.Is(err, domain.ErrDocumentNotReady):
		code = "not_ready"
	case errors.Is(err, domain.ErrInvalidInput):
		code = "invalid_input"
	case errors.Is(err, domain.ErrBackpressure):
		code = "busy"
	case errors.Is(err, domain.ErrRetrievalUnavailable),
		errors.Is(err, domain.ErrGenerationUnavailable),
		errors.Is(err, domain.ErrEmbeddingUnavailable):
		code = "unavailable"
	}
	return fmt.Errorf("%s: %w", code, err)
}
