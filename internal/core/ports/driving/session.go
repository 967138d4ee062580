package driving

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// SessionService exposes session history.
type SessionService interface {
	// Get returns a session with all its turns.
	Get(ctx context.Context, sessionID string) (*domain.Session, error)

	// History returns the turns of a session in append order.
	History(ctx context.Context, sessionID string) ([]domain.Turn, error)

	// Delete removes a session and all its turns.
	Delete(ctx context.Context, sessionID string) error
}
