package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure SessionService implements the interface.
var _ driving.SessionService = (*SessionService)(nil)

// SessionService keeps conversation logs. Appends to one session are
// serialised so the log is a total order; different sessions never contend.
type SessionService struct {
	repo  driven.SessionRepository
	locks *keyedMutex
	now   func() time.Time
}

// NewSessionService creates a new session service.
func NewSessionService(repo driven.SessionRepository) *SessionService {
	return &SessionService{
		repo:  repo,
		locks: newKeyedMutex(),
		now:   time.Now,
	}
}

// Get returns a session with all its turns.
func (s *SessionService) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, sessionErr(err)
	}
	return session, nil
}

// History returns the turns of a session in append order.
func (s *SessionService) History(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return session.Turns, nil
}

// Delete removes a session and all its turns.
func (s *SessionService) Delete(ctx context.Context, sessionID string) error {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	if err := s.repo.DeleteSession(ctx, sessionID); err != nil {
		return sessionErr(err)
	}
	logger.Debug("Deleted session %s", sessionID)
	return nil
}

// Append adds turns to a session and returns its ID. An empty sessionID
// starts a new session; an unknown one is created under that ID.
func (s *SessionService) Append(ctx context.Context, sessionID string, turns ...domain.Turn) (string, error) {
	return s.commit(ctx, sessionID, turns, func(*domain.Session) (string, bool) { return "", false })
}

// Bind points a session at a document and starts a fresh retrieval context.
func (s *SessionService) Bind(ctx context.Context, sessionID, documentID string) error {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return sessionErr(err)
	}
	if err := s.repo.BindDocument(ctx, sessionID, documentID, len(session.Turns)); err != nil {
		return sessionErr(err)
	}
	return nil
}

// Record appends a question/answer pair for the given document. When the
// session is new it is bound to documentID; when it is bound elsewhere it is
// rebound first, so the pair opens a fresh retrieval context.
func (s *SessionService) Record(ctx context.Context, sessionID, documentID string, turns []domain.Turn) (string, error) {
	return s.commit(ctx, sessionID, turns, func(session *domain.Session) (string, bool) {
		return documentID, session == nil || session.DocumentID != documentID
	})
}

// commit runs create/bind/append for one session under its lock. binding
// reports the document to bind and whether a bind is needed; it receives
// nil for a session that does not exist yet.
func (s *SessionService) commit(
	ctx context.Context,
	sessionID string,
	turns []domain.Turn,
	binding func(*domain.Session) (string, bool),
) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.repo.GetSession(ctx, sessionID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		documentID, _ := binding(nil)
		session = &domain.Session{
			ID:         sessionID,
			DocumentID: documentID,
			CreatedAt:  s.now().UTC(),
		}
		if err := s.repo.CreateSession(ctx, session); err != nil {
			return "", fmt.Errorf("create session: %w", err)
		}
		logger.Debug("Created session %s", sessionID)

	case err != nil:
		return "", fmt.Errorf("get session: %w", err)

	default:
		if documentID, rebind := binding(session); rebind {
			if err := s.repo.BindDocument(ctx, sessionID, documentID, len(session.Turns)); err != nil {
				return "", fmt.Errorf("bind session: %w", err)
			}
			logger.Debug("Session %s rebound to %q at turn %d", sessionID, documentID, len(session.Turns))
		}
	}

	if len(turns) == 0 {
		return sessionID, nil
	}
	if err := s.repo.AppendTurns(ctx, sessionID, turns); err != nil {
		return "", fmt.Errorf("append turns: %w", err)
	}
	return sessionID, nil
}

// sessionErr maps store-level not-found to the session taxonomy.
func sessionErr(err error) error {
	if errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrSessionNotFound) {
		return fmt.Errorf("%w: %w", domain.ErrSessionNotFound, err)
	}
	return err
}

// keyedMutex hands out one mutex per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock acquires the mutex for key and returns its release function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
