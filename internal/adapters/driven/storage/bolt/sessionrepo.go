// Package bolt provides a BoltDB-backed session repository.
//
// Each session is one JSON record in the sessions bucket. Appends run in a
// single read-write transaction, so a turn pair is either stored whole or not
// at all.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

var sessionsBucket = []byte("sessions")

// Ensure SessionRepository implements the interface.
var _ driven.SessionRepository = (*SessionRepository)(nil)

// SessionRepository stores sessions in a BoltDB file.
type SessionRepository struct {
	db *bolt.DB
}

// sessionRecord is the stored form of a session.
type sessionRecord struct {
	ID           string       `json:"id"`
	DocumentID   string       `json:"document_id,omitempty"`
	ContextStart int          `json:"context_start"`
	CreatedAt    time.Time    `json:"created_at"`
	Turns        []turnRecord `json:"turns,omitempty"`
}

type turnRecord struct {
	Role       domain.TurnRole     `json:"role"`
	Content    string              `json:"content"`
	Provenance []domain.Provenance `json:"provenance,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
}

// Open opens or creates the BoltDB file at path.
// If path is empty, defaults to ~/.docqa/data/sessions.bolt.
func Open(path string) (*SessionRepository, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, ".docqa", "data", "sessions.bolt")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(sessionsBucket)
		return e
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating sessions bucket: %w", err)
	}

	return &SessionRepository{db: db}, nil
}

// Close closes the database file.
func (r *SessionRepository) Close() error {
	return r.db.Close()
}

// CreateSession stores a new session without turns.
func (r *SessionRepository) CreateSession(_ context.Context, session *domain.Session) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(sessionsBucket)
		if b.Get([]byte(session.ID)) != nil {
			return fmt.Errorf("%w: session %s already exists", domain.ErrInvalidInput, session.ID)
		}
		return put(b, &sessionRecord{
			ID:           session.ID,
			DocumentID:   session.DocumentID,
			ContextStart: session.ContextStart,
			CreatedAt:    session.CreatedAt,
		})
	})
}

// GetSession retrieves a session with all its turns.
func (r *SessionRepository) GetSession(_ context.Context, id string) (*domain.Session, error) {
	var rec *sessionRecord
	err := r.db.View(func(tx *bolt.Tx) error {
		var e error
		rec, e = get(tx.Bucket(sessionsBucket), id)
		return e
	})
	if err != nil {
		return nil, err
	}
	return rec.toDomain(), nil
}

// AppendTurns appends turns to the session log in one transaction.
func (r *SessionRepository) AppendTurns(_ context.Context, id string, turns []domain.Turn) error {
	return r.update(id, func(rec *sessionRecord) {
		for _, t := range turns {
			rec.Turns = append(rec.Turns, turnRecord{
				Role:       t.Role,
				Content:    t.Content,
				Provenance: t.Provenance,
				CreatedAt:  t.CreatedAt,
			})
		}
	})
}

// BindDocument sets the session's document and context start.
func (r *SessionRepository) BindDocument(_ context.Context, id, documentID string, contextStart int) error {
	return r.update(id, func(rec *sessionRecord) {
		rec.DocumentID = documentID
		rec.ContextStart = contextStart
	})
}

// DeleteSession removes a session and its turns.
func (r *SessionRepository) DeleteSession(_ context.Context, id string) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(sessionsBucket)
		if b.Get([]byte(id)) == nil {
			return domain.ErrNotFound
		}
		return b.Delete([]byte(id))
	})
}

func (r *SessionRepository) update(id string, fn func(rec *sessionRecord)) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(sessionsBucket)
		rec, err := get(b, id)
		if err != nil {
			return err
		}
		fn(rec)
		return put(b, rec)
	})
}

func get(b *bolt.Bucket, id string) (*sessionRecord, error) {
	v := b.Get([]byte(id))
	if v == nil {
		return nil, domain.ErrNotFound
	}
	var rec sessionRecord
	if err := json.Unmarshal(v, &rec); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return &rec, nil
}

func put(b *bolt.Bucket, rec *sessionRecord) error {
	enc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", rec.ID, err)
	}
	return b.Put([]byte(rec.ID), enc)
}

func (rec *sessionRecord) toDomain() *domain.Session {
	s := &domain.Session{
		ID:           rec.ID,
		DocumentID:   rec.DocumentID,
		ContextStart: rec.ContextStart,
		CreatedAt:    rec.CreatedAt,
	}
	for _, t := range rec.Turns {
		s.Turns = append(s.Turns, domain.Turn{
			Role:       t.Role,
			Content:    t.Content,
			Provenance: t.Provenance,
			CreatedAt:  t.CreatedAt,
		})
	}
	return s
}
