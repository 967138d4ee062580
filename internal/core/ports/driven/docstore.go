package driven

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// DocumentStore persists documents, their raw content and their chunks.
// Deleting a document cascades to its content and chunks.
type DocumentStore interface {
	// CreateDocument stores a new document with its raw content.
	CreateDocument(ctx context.Context, doc *domain.Document, content []byte) error

	// GetDocument retrieves a document by ID.
	// Returns domain.ErrNotFound if it does not exist.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetContent retrieves the raw content of a document.
	GetContent(ctx context.Context, id string) ([]byte, error)

	// ListDocuments returns documents ordered by creation time, newest first.
	ListDocuments(ctx context.Context, offset, limit int) ([]domain.Document, error)

	// Transition atomically applies a lifecycle change when the current
	// status is allowed by it. Returns the updated document, or the error
	// from Transition.Reject when the current status does not match.
	Transition(ctx context.Context, id string, t domain.Transition) (*domain.Document, error)

	// SaveChunks replaces all chunks of a document.
	SaveChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error

	// GetChunks retrieves all chunks for a document ordered by index.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// DeleteDocument removes a document, its content and its chunks.
	DeleteDocument(ctx context.Context, id string) error
}
