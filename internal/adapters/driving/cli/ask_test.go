package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

func TestAsk_Grounded(t *testing.T) {
	svc, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "ask", "--doc", "doc-1", "what", "are", "alpha", "particles?")

	require.NoError(t, err)
	assert.Equal(t, "what are alpha particles?", svc.answers.last.Question)
	assert.Equal(t, "doc-1", svc.answers.last.DocumentID)
	assert.False(t, svc.answers.last.UseLookup)
	assert.Contains(t, out, "They are helium nuclei [1].")
	assert.Contains(t, out, "[1] physics.txt chunk 0 (0.93)")
	assert.Contains(t, out, "Session: sess-1")
}

func TestAsk_SessionAndWeb(t *testing.T) {
	svc, cleanup := setupTestServices()
	defer cleanup()
	svc.answers.answer = &domain.Answer{
		Text:         "Nothing relevant was found.",
		SessionID:    "sess-9",
		EmptyContext: true,
	}

	out, err := execute(t, "ask", "-s", "sess-9", "--web", "who won?")

	require.NoError(t, err)
	assert.Equal(t, "sess-9", svc.answers.last.SessionID)
	assert.True(t, svc.answers.last.UseLookup)
	assert.Contains(t, out, "The web lookup returned nothing relevant.")
	assert.NotContains(t, out, "Sources:")
}

func TestAsk_JSON(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "ask", "--json", "-d", "doc-1", "alpha?")
	require.NoError(t, err)

	var got answerJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "sess-1", got.SessionID)
	assert.True(t, got.Grounded)
	require.Len(t, got.Sources, 1)
	assert.Equal(t, 1, got.Sources[0].Ref)
	assert.Equal(t, "chunk", got.Sources[0].Kind)
	assert.InDelta(t, 0.93, got.Sources[0].Score, 1e-9)
}

func TestAsk_Errors(t *testing.T) {
	svc, cleanup := setupTestServices()
	defer cleanup()
	svc.answers.err = domain.ErrBackpressure

	_, err := execute(t, "ask", "anything")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBackpressure)
	assert.Contains(t, err.Error(), "try again shortly")
}

func TestAsk_RequiresQuestion(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "ask")

	require.Error(t, err)
}

func TestSourceLabel(t *testing.T) {
	tests := []struct {
		name string
		p    domain.Provenance
		want string
	}{
		{"chunk", domain.Provenance{Kind: domain.ProvenanceChunk, Title: "a.txt", ChunkIndex: 3, Score: 0.5}, "a.txt chunk 3 (0.50)"},
		{"external", domain.Provenance{Kind: domain.ProvenanceExternal, Title: "Wiki", URL: "https://w.example"}, "Wiki <https://w.example>"},
		{"external without title", domain.Provenance{Kind: domain.ProvenanceExternal, URL: "https://w.example"}, "https://w.example"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sourceLabel(tt.p))
		})
	}
}
