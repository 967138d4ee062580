package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

func TestSessionRepository_Lifecycle(t *testing.T) {
	repo := NewSessionRepository()
	ctx := context.Background()

	require.NoError(t, repo.CreateSession(ctx, &domain.Session{ID: "s1", DocumentID: "doc", CreatedAt: time.Now()}))
	assert.ErrorIs(t, repo.CreateSession(ctx, &domain.Session{ID: "s1"}), domain.ErrInvalidInput)

	turns := []domain.Turn{
		{Role: domain.RoleQuestion, Content: "What is the refund window?"},
		{Role: domain.RoleAnswer, Content: "30 days.", Provenance: []domain.Provenance{{Kind: domain.ProvenanceChunk, ChunkID: "c1"}}},
	}
	require.NoError(t, repo.AppendTurns(ctx, "s1", turns))
	require.NoError(t, repo.AppendTurns(ctx, "s1", []domain.Turn{{Role: domain.RoleQuestion, Content: "And exchanges?"}}))

	turns[1].Provenance[0].ChunkID = "mutated"

	s, err := repo.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, s.Turns, 3)
	assert.Equal(t, "What is the refund window?", s.Turns[0].Content)
	assert.Equal(t, "c1", s.Turns[1].Provenance[0].ChunkID)
	assert.Equal(t, "And exchanges?", s.Turns[2].Content)

	require.NoError(t, repo.BindDocument(ctx, "s1", "other", 3))
	s, err = repo.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "other", s.DocumentID)
	assert.Equal(t, 3, s.ContextStart)

	require.NoError(t, repo.DeleteSession(ctx, "s1"))
	_, err = repo.GetSession(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSessionRepository_UnknownSession(t *testing.T) {
	repo := NewSessionRepository()
	ctx := context.Background()

	assert.ErrorIs(t, repo.AppendTurns(ctx, "nope", nil), domain.ErrNotFound)
	assert.ErrorIs(t, repo.BindDocument(ctx, "nope", "doc", 0), domain.ErrNotFound)
	assert.ErrorIs(t, repo.DeleteSession(ctx, "nope"), domain.ErrNotFound)
}
