package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure SessionRepository implements the interface.
var _ driven.SessionRepository = (*SessionRepository)(nil)

// SessionRepository is an in-memory implementation of driven.SessionRepository.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

// NewSessionRepository creates a new in-memory session repository.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[string]*domain.Session)}
}

// CreateSession stores a new session without turns.
func (r *SessionRepository) CreateSession(_ context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[session.ID]; exists {
		return fmt.Errorf("%w: session %s already exists", domain.ErrInvalidInput, session.ID)
	}
	s := *session
	s.Turns = nil
	r.sessions[s.ID] = &s
	return nil
}

// GetSession retrieves a session with a copy of its turns.
func (r *SessionRepository) GetSession(_ context.Context, id string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *s
	out.Turns = copyTurns(s.Turns)
	return &out, nil
}

// AppendTurns appends turns to the end of the session log.
func (r *SessionRepository) AppendTurns(_ context.Context, id string, turns []domain.Turn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.Turns = append(s.Turns, copyTurns(turns)...)
	return nil
}

// BindDocument sets the session's document and context start.
func (r *SessionRepository) BindDocument(_ context.Context, id, documentID string, contextStart int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.DocumentID = documentID
	s.ContextStart = contextStart
	return nil
}

// DeleteSession removes a session and its turns.
func (r *SessionRepository) DeleteSession(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.sessions, id)
	return nil
}

func copyTurns(turns []domain.Turn) []domain.Turn {
	out := make([]domain.Turn, len(turns))
	for i, t := range turns {
		t.Provenance = slices.Clone(t.Provenance)
		out[i] = t
	}
	return out
}
