package driven

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// SessionRepository persists sessions and their turns.
// Each Append is atomic: either all given turns are stored, in order, or none are.
type SessionRepository interface {
	// CreateSession stores a new session without turns.
	// Returns an error if a session with the same ID exists.
	CreateSession(ctx context.Context, session *domain.Session) error

	// GetSession retrieves a session with all its turns.
	// Returns domain.ErrNotFound if it does not exist.
	GetSession(ctx context.Context, id string) (*domain.Session, error)

	// AppendTurns appends turns to the end of the session log.
	// Returns domain.ErrNotFound if the session does not exist.
	AppendTurns(ctx context.Context, id string, turns []domain.Turn) error

	// BindDocument sets the session's document and the start of its current
	// retrieval context.
	BindDocument(ctx context.Context, id, documentID string, contextStart int) error

	// DeleteSession removes a session and all its turns.
	// Returns domain.ErrNotFound if it does not exist.
	DeleteSession(ctx context.Context, id string) error
}
