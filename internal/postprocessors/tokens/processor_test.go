package tokens

import (
	"context"
	"strings"
	"testing"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

func TestProcessor_Name(t *testing.T) {
	if New(wordCounter{}).Name() != "tokens" {
		t.Error("expected name 'tokens'")
	}
}

func TestProcessor_Process(t *testing.T) {
	chunks := []domain.Chunk{
		{Index: 0, Content: "one two three"},
		{Index: 1, Content: "four"},
	}

	out, err := New(wordCounter{}).Process(context.Background(), &domain.Document{}, "", chunks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].Tokens != 3 || out[1].Tokens != 1 {
		t.Errorf("unexpected token counts: %d, %d", out[0].Tokens, out[1].Tokens)
	}
}

func TestProcessor_Process_NoChunks(t *testing.T) {
	out, err := New(wordCounter{}).Process(context.Background(), &domain.Document{}, "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected no chunks, got %d", len(out))
	}
}
