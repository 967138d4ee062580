package chunker

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// maxLookBack caps how far a cut may move back from the window end to land on a boundary.
const maxLookBack = 100

// Span is a contiguous window of the source text. Start and End are
// character (rune) offsets, End exclusive.
type Span struct {
	Index int
	Start int
	End   int
	Text  string
}

// Split walks text with a sliding window of chunkSize characters advancing by
// chunkSize-overlap, preferring to cut at a sentence end, then at whitespace,
// within a small look-back tolerance. The final window runs to the end of the
// text. Windows containing only whitespace are skipped and do not consume an
// index. The result depends only on the inputs.
func Split(text string, chunkSize, overlap int) ([]Span, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidInput, chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap must be in [0, %d), got %d", domain.ErrInvalidInput, chunkSize, overlap)
	}

	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil, nil
	}

	step := chunkSize - overlap
	tolerance := min(maxLookBack, step/8)
	spans := make([]Span, 0, n/step+1)

	start := 0
	for start < n {
		end := start + chunkSize
		last := end >= n
		if last {
			end = n
		} else {
			end = cutPoint(runes, start, end, tolerance)
		}

		if content := string(runes[start:end]); strings.TrimSpace(content) != "" {
			spans = append(spans, Span{
				Index: len(spans),
				Start: start,
				End:   end,
				Text:  content,
			})
		}

		if last {
			break
		}
		start = max(start+1, end-overlap)
	}

	return spans, nil
}

// cutPoint returns the exclusive end of the window [start, end). It scans back
// at most tolerance characters for a sentence boundary, then for whitespace,
// and hard-cuts at end when neither is found.
func cutPoint(runes []rune, start, end, tolerance int) int {
	floor := max(start+1, end-tolerance)

	for c := end; c >= floor; c-- {
		if isSentenceEnd(runes, c) {
			return c
		}
	}
	for c := end; c >= floor; c-- {
		if unicode.IsSpace(runes[c]) {
			return c
		}
	}
	return end
}

// isSentenceEnd reports whether a cut at c falls right after terminal
// punctuation followed by whitespace, or inside a blank line.
func isSentenceEnd(runes []rune, c int) bool {
	if c <= 0 || c >= len(runes) || !unicode.IsSpace(runes[c]) {
		return false
	}
	switch runes[c-1] {
	case '.', '!', '?':
		return true
	case '\n':
		return runes[c] == '\n'
	}
	return false
}
