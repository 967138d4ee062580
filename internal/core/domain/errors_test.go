package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are distinct
func TestErrors_Existence(t *testing.T) {
	all := []error{
		ErrNotFound, ErrInvalidInput, ErrNotImplemented,
		ErrUnsupportedFileType, ErrCorruptFile, ErrEmptyDocument,
		ErrAlreadyProcessing, ErrInvalidTransition,
		ErrEmbeddingUnavailable, ErrAlreadyIndexed,
		ErrDocumentNotFound, ErrDocumentNotReady,
		ErrRetrievalUnavailable, ErrGenerationUnavailable,
		ErrBackpressure, ErrSessionNotFound,
		ErrLLMUnavailable, ErrLookupUnavailable,
	}

	seen := make(map[string]bool)
	for _, err := range all {
		assert.NotEmpty(t, err.Error())
		assert.False(t, seen[err.Error()], "duplicate message %q", err.Error())
		seen[err.Error()] = true
	}
}

func TestErrors_Wrapping(t *testing.T) {
	err := fmt.Errorf("%w: ollama returned 503", ErrGenerationUnavailable)

	assert.True(t, errors.Is(err, ErrGenerationUnavailable))
	assert.False(t, errors.Is(err, ErrRetrievalUnavailable))
	assert.Equal(t, "generation unavailable: ollama returned 503", err.Error())
}
