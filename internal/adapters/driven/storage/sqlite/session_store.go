package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// sessionRepository implements driven.SessionRepository.
type sessionRepository struct {
	store *Store
}

var _ driven.SessionRepository = (*sessionRepository)(nil)

// CreateSession stores a new session without turns.
func (r *sessionRepository) CreateSession(ctx context.Context, session *domain.Session) error {
	_, err := r.store.db.ExecContext(ctx, `
		INSERT INTO sessions (id, document_id, context_start, created_at)
		VALUES (?, ?, ?, ?)
	`, session.ID, session.DocumentID, session.ContextStart, toUnix(session.CreatedAt))
	if err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("%w: session %s already exists", domain.ErrInvalidInput, session.ID)
		}
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// GetSession retrieves a session with all its turns in append order.
func (r *sessionRepository) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	var session domain.Session
	var createdAt int64
	err := r.store.db.QueryRowContext(ctx, `
		SELECT id, document_id, context_start, created_at FROM sessions WHERE id = ?
	`, id).Scan(&session.ID, &session.DocumentID, &session.ContextStart, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	session.CreatedAt = fromUnix(createdAt)

	rows, err := r.store.db.QueryContext(ctx, `
		SELECT role, content, provenance, created_at FROM turns
		WHERE session_id = ? ORDER BY seq
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var turn domain.Turn
		var role, provenanceJSON string
		var turnCreated int64
		if err := rows.Scan(&role, &turn.Content, &provenanceJSON, &turnCreated); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		turn.Role = domain.TurnRole(role)
		turn.CreatedAt = fromUnix(turnCreated)
		if provenanceJSON != "" && provenanceJSON != "[]" {
			if err := json.Unmarshal([]byte(provenanceJSON), &turn.Provenance); err != nil {
				return nil, fmt.Errorf("unmarshalling provenance: %w", err)
			}
		}
		session.Turns = append(session.Turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &session, nil
}

// AppendTurns appends turns in one transaction. Each insert computes its
// sequence number from the session's current tail and only matches when the
// session exists, so the first statement takes the write lock.
func (r *sessionRepository) AppendTurns(ctx context.Context, id string, turns []domain.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO turns (session_id, seq, role, content, provenance, created_at)
		SELECT s.id,
		       COALESCE((SELECT MAX(seq) + 1 FROM turns WHERE session_id = s.id), 0),
		       ?, ?, ?, ?
		FROM sessions s WHERE s.id = ?
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, turn := range turns {
		provenanceJSON := []byte("[]")
		if len(turn.Provenance) > 0 {
			provenanceJSON, err = json.Marshal(turn.Provenance)
			if err != nil {
				return fmt.Errorf("marshalling provenance: %w", err)
			}
		}

		result, err := stmt.ExecContext(ctx, string(turn.Role), turn.Content,
			string(provenanceJSON), toUnix(turn.CreatedAt), id)
		if err != nil {
			return fmt.Errorf("inserting turn: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking rows affected: %w", err)
		}
		if affected == 0 {
			return domain.ErrNotFound
		}
	}

	return tx.Commit()
}

// BindDocument sets the session's document and context start.
func (r *sessionRepository) BindDocument(ctx context.Context, id, documentID string, contextStart int) error {
	result, err := r.store.db.ExecContext(ctx, `
		UPDATE sessions SET document_id = ?, context_start = ? WHERE id = ?
	`, documentID, contextStart, id)
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}
	return requireAffected(result)
}

// DeleteSession removes a session. Turns cascade.
func (r *sessionRepository) DeleteSession(ctx context.Context, id string) error {
	result, err := r.store.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
