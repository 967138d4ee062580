package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/docqa/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Store is a SQLite-based storage that serves the document store and the
// session repository from one database.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.docqa/data/docqa.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".docqa", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "docqa.db")

	// foreign_keys is a per-connection pragma, so it goes in the DSN
	db, err := sql.Open("sqlite", dbPath+
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// SessionRepository returns a SessionRepository interface backed by this store.
func (s *Store) SessionRepository() driven.SessionRepository {
	return &sessionRepository{store: s}
}

// migrate runs all pending migrations and records each applied version.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		prefix, _, _ := strings.Cut(name, "_")
		version, err := strconv.Atoi(prefix)
		if err != nil {
			continue
		}

		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Document Store ====================

const documentColumns = `id, filename, file_type, size, status, failure_reason, chunk_count, created_at, ready_at, lease, heartbeat_at`

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// CreateDocument stores a new document and its raw content in one transaction.
func (d *documentStore) CreateDocument(ctx context.Context, doc *domain.Document, content []byte) error {
	tx, err := d.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.Filename, doc.FileType, doc.Size, string(doc.Status), doc.FailureReason,
		doc.ChunkCount, toUnix(doc.CreatedAt), nullableUnix(doc.ReadyAt), doc.Lease, toUnix(doc.HeartbeatAt))
	if err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("%w: document %s already exists", domain.ErrInvalidInput, doc.ID)
		}
		return fmt.Errorf("inserting document: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO document_contents (document_id, content) VALUES (?, ?)
	`, doc.ID, content); err != nil {
		return fmt.Errorf("inserting content: %w", err)
	}

	return tx.Commit()
}

// GetDocument retrieves a document by ID.
func (d *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := d.store.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+` FROM documents WHERE id = ?
	`, id)
	return scanDocument(row)
}

// GetContent retrieves the raw content of a document.
func (d *documentStore) GetContent(ctx context.Context, id string) ([]byte, error) {
	var content []byte
	err := d.store.db.QueryRowContext(ctx, `
		SELECT content FROM document_contents WHERE document_id = ?
	`, id).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying content: %w", err)
	}
	return content, nil
}

// ListDocuments returns documents newest first. A non-positive limit returns all.
func (d *documentStore) ListDocuments(ctx context.Context, offset, limit int) ([]domain.Document, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := d.store.db.QueryContext(ctx, `
		SELECT `+documentColumns+` FROM documents
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	docs := []domain.Document{}
	for rows.Next() {
		doc, err := scanDocumentRows(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// Transition applies a lifecycle change with a single conditional UPDATE, so
// two processes sharing the database cannot both win the same transition.
func (d *documentStore) Transition(ctx context.Context, id string, t domain.Transition) (*domain.Document, error) {
	if len(t.From) == 0 {
		return nil, fmt.Errorf("%w: transition without source statuses", domain.ErrInvalidInput)
	}

	set := []string{"status = ?"}
	args := []any{string(t.To)}
	switch t.To {
	case domain.StatusReady:
		set = append(set, "failure_reason = ''", "chunk_count = ?", "ready_at = ?", "lease = ''", "heartbeat_at = 0")
		args = append(args, t.ChunkCount, toUnix(t.At))
	case domain.StatusFailed:
		set = append(set, "failure_reason = ?", "chunk_count = 0", "ready_at = NULL", "lease = ''", "heartbeat_at = 0")
		args = append(args, t.FailureReason)
	case domain.StatusProcessing:
		set = append(set, "failure_reason = ''", "lease = ?", "heartbeat_at = ?")
		args = append(args, t.Lease, toUnix(t.At))
	}

	placeholders := make([]string, len(t.From))
	args = append(args, id)
	for i, from := range t.From {
		placeholders[i] = "?"
		args = append(args, string(from))
	}
	where := "id = ? AND status IN (" + strings.Join(placeholders, ", ") + ")"
	if t.Owner != "" {
		where += " AND lease = ?"
		args = append(args, t.Owner)
	}
	if !t.StaleBefore.IsZero() {
		where += " AND heartbeat_at < ?"
		args = append(args, toUnix(t.StaleBefore))
	}

	query := "UPDATE documents SET " + strings.Join(set, ", ") + " WHERE " + where

	result, err := d.store.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("updating document status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking rows affected: %w", err)
	}

	doc, err := d.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, t.Reject(doc)
	}
	return doc, nil
}

// SaveChunks replaces all chunks of a document in one transaction.
func (d *documentStore) SaveChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	tx, err := d.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("deleting old chunks: %w", err)
	}

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE id = ?", documentID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking document: %w", err)
	}
	if exists == 0 {
		return domain.ErrNotFound
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, idx, start_char, end_char, content, tokens, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i := range chunks {
		c := &chunks[i]
		if _, err := stmt.ExecContext(ctx, c.ID, documentID, c.Index, c.StartChar, c.EndChar,
			c.Content, c.Tokens, float32SliceToBytes(c.Embedding)); err != nil {
			return fmt.Errorf("inserting chunk %d: %w", c.Index, err)
		}
	}

	return tx.Commit()
}

// GetChunks retrieves all chunks for a document ordered by index.
func (d *documentStore) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := d.store.db.QueryContext(ctx, `
		SELECT id, document_id, idx, start_char, end_char, content, tokens, embedding
		FROM chunks WHERE document_id = ? ORDER BY idx
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}
	return chunks, rows.Err()
}

// DeleteDocument removes a document. Content and chunks cascade.
func (d *documentStore) DeleteDocument(ctx context.Context, id string) error {
	result, err := d.store.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ==================== Helper Functions ====================

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// toUnix stores times as Unix nanoseconds so ordering is exact.
func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func nullableUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toUnix(*t), Valid: true}
}

// isConstraintError reports a UNIQUE or PRIMARY KEY violation.
func isConstraintError(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocumentFrom(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var status string
	var createdAt int64
	var readyAt sql.NullInt64
	var heartbeatAt int64

	if err := row.Scan(&doc.ID, &doc.Filename, &doc.FileType, &doc.Size, &status,
		&doc.FailureReason, &doc.ChunkCount, &createdAt, &readyAt, &doc.Lease, &heartbeatAt); err != nil {
		return nil, err
	}

	doc.Status = domain.DocumentStatus(status)
	doc.CreatedAt = fromUnix(createdAt)
	doc.HeartbeatAt = fromUnix(heartbeatAt)
	if readyAt.Valid {
		t := fromUnix(readyAt.Int64)
		doc.ReadyAt = &t
	}
	return &doc, nil
}

// scanDocument scans a single document row.
func scanDocument(row *sql.Row) (*domain.Document, error) {
	doc, err := scanDocumentFrom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	return doc, nil
}

// scanDocumentRows scans a document from *sql.Rows.
func scanDocumentRows(rows *sql.Rows) (*domain.Document, error) {
	doc, err := scanDocumentFrom(rows)
	if err != nil {
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	return doc, nil
}

// scanChunk scans a chunk from *sql.Rows.
func scanChunk(rows *sql.Rows) (*domain.Chunk, error) {
	var chunk domain.Chunk
	var embeddingBlob []byte

	if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Index, &chunk.StartChar,
		&chunk.EndChar, &chunk.Content, &chunk.Tokens, &embeddingBlob); err != nil {
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	chunk.Embedding = bytesToFloat32Slice(embeddingBlob)
	return &chunk, nil
}
