package driving

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// DocumentService manages the document lifecycle: upload, processing,
// inspection and deletion.
type DocumentService interface {
	// Upload records a new document in the uploaded state.
	// Returns domain.ErrUnsupportedFileType for types no extractor handles.
	Upload(ctx context.Context, req domain.UploadRequest) (*domain.Document, error)

	// Process runs the ingestion pipeline for an uploaded or failed document.
	// Pipeline failures are recorded on the returned document, not returned as errors.
	// Returns domain.ErrAlreadyProcessing if a pipeline is already running.
	Process(ctx context.Context, documentID string) (*domain.Document, error)

	// Ingest uploads and processes a document in one call.
	Ingest(ctx context.Context, req domain.UploadRequest) (*domain.Document, error)

	// Get retrieves a document by ID.
	Get(ctx context.Context, documentID string) (*domain.Document, error)

	// List returns documents, newest first.
	List(ctx context.Context, offset, limit int) ([]domain.Document, error)

	// Chunks returns the chunks of a document in index order.
	Chunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// Delete removes a document with its chunks and index entries.
	Delete(ctx context.Context, documentID string) error

	// SupportedFileTypes returns the file types that can be uploaded.
	SupportedFileTypes() []string
}
