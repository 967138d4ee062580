// Package tokens measures text in model tokens using tiktoken BPE encodings.
package tokens

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure Counter implements the interface.
var _ driven.TokenCounter = (*Counter)(nil)

// DefaultEncoding is the BPE encoding used when none is named.
const DefaultEncoding = "cl100k_base"

// charsPerToken approximates token density for English prose.
const charsPerToken = 4

// Counter counts tokens with a tiktoken encoding. The encoding is loaded on
// first use; if it cannot be loaded (tiktoken fetches BPE ranks over the
// network on first load) counts fall back to a character estimate.
type Counter struct {
	encoding string
	load     func(string) (*tiktoken.Tiktoken, error)

	once sync.Once
	enc  *tiktoken.Tiktoken
}

// New creates a counter for the named encoding.
func New(encoding string) *Counter {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	return &Counter{encoding: encoding, load: tiktoken.GetEncoding}
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	c.once.Do(func() {
		enc, err := c.load(c.encoding)
		if err != nil {
			logger.Warn("tiktoken encoding %s unavailable, estimating tokens: %v", c.encoding, err)
			return
		}
		c.enc = enc
	})
	if c.enc == nil {
		return Estimate(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}

// Estimate approximates a token count from the character count.
func Estimate(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + charsPerToken - 1) / charsPerToken
}
