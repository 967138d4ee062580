// Package pgvector provides a PostgreSQL vector store using the pgvector extension.
//
// Vectors live in one table keyed by (document_id, idx). Writes for a document
// take a transaction-scoped advisory lock on the document ID, so a Put and a
// Remove of the same document serialise while other documents proceed.
// Readers see either all of a document's vectors or none.
package pgvector

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

const schema = `
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS docqa_vectors (
		document_id TEXT NOT NULL,
		idx INT NOT NULL,
		chunk_id TEXT NOT NULL,
		start_char INT NOT NULL,
		end_char INT NOT NULL,
		content TEXT NOT NULL,
		tokens INT NOT NULL DEFAULT 0,
		embedding vector NOT NULL,
		PRIMARY KEY (document_id, idx)
	);
`

// VectorStore is a driven.VectorStore backed by PostgreSQL.
type VectorStore struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL and ensures the vector table exists.
func New(ctx context.Context, connStr string) (*VectorStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating vector table: %w", err)
	}

	return &VectorStore{pool: pool}, nil
}

// Put inserts all chunk vectors of a document in one transaction.
func (s *VectorStore) Put(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	for i := range chunks {
		if len(chunks[i].Embedding) == 0 {
			return fmt.Errorf("%w: chunk %d has no embedding", domain.ErrInvalidInput, chunks[i].Index)
		}
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := lockDocument(ctx, tx, documentID); err != nil {
			return err
		}

		var exists bool
		if err := tx.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM docqa_vectors WHERE document_id = $1)", documentID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("checking existing vectors: %w", err)
		}
		if exists {
			return domain.ErrAlreadyIndexed
		}

		batch := &pgx.Batch{}
		for i := range chunks {
			c := &chunks[i]
			batch.Queue(`
				INSERT INTO docqa_vectors (document_id, idx, chunk_id, start_char, end_char, content, tokens, embedding)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, documentID, c.Index, c.ID, c.StartChar, c.EndChar, c.Content, c.Tokens, pgvector.NewVector(c.Embedding))
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting vectors: %w", err)
		}
		return nil
	})
}

// Search ranks a document's chunks by inner product with the query.
func (s *VectorStore) Search(ctx context.Context, documentID string, query []float32, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		return []domain.ScoredChunk{}, nil
	}

	// <#> is the negated inner product.
	rows, err := s.pool.Query(ctx, `
		SELECT chunk_id, idx, start_char, end_char, content, tokens, (embedding <#> $2) * -1 AS score
		FROM docqa_vectors
		WHERE document_id = $1
		ORDER BY score DESC, idx ASC
		LIMIT $3
	`, documentID, pgvector.NewVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("searching vectors: %w", err)
	}
	defer rows.Close()

	results := []domain.ScoredChunk{}
	for rows.Next() {
		var sc domain.ScoredChunk
		sc.Chunk.DocumentID = documentID
		if err := rows.Scan(&sc.Chunk.ID, &sc.Chunk.Index, &sc.Chunk.StartChar, &sc.Chunk.EndChar,
			&sc.Chunk.Content, &sc.Chunk.Tokens, &sc.Score); err != nil {
			return nil, fmt.Errorf("scanning vector row: %w", err)
		}
		results = append(results, sc)
	}
	return results, rows.Err()
}

// Remove deletes all vectors of a document.
func (s *VectorStore) Remove(ctx context.Context, documentID string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := lockDocument(ctx, tx, documentID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, "DELETE FROM docqa_vectors WHERE document_id = $1", documentID); err != nil {
			return fmt.Errorf("deleting vectors: %w", err)
		}
		return nil
	})
}

// Has reports whether the document has vectors.
func (s *VectorStore) Has(ctx context.Context, documentID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM docqa_vectors WHERE document_id = $1)", documentID,
	).Scan(&exists)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("checking vectors: %w", err)
	}
	return exists, nil
}

// Close closes the connection pool.
func (s *VectorStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func lockDocument(ctx context.Context, tx pgx.Tx, documentID string) error {
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", documentID); err != nil {
		return fmt.Errorf("locking document %s: %w", documentID, err)
	}
	return nil
}
