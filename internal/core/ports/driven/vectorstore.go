package driven

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// VectorStore holds unit-length chunk vectors grouped by document.
//
// Reads for one document may run concurrently with each other and with
// writes to other documents. A write to a document is exclusive with
// respect to reads and writes of that same document.
type VectorStore interface {
	// Put stores all chunk vectors of a document in one atomic step.
	// Returns domain.ErrAlreadyIndexed if the document already has entries.
	Put(ctx context.Context, documentID string, chunks []domain.Chunk) error

	// Search returns up to k chunks of the document ordered by descending
	// dot product with query, ties broken by ascending chunk index.
	// An unknown document yields an empty result.
	Search(ctx context.Context, documentID string, query []float32, k int) ([]domain.ScoredChunk, error)

	// Remove deletes all entries of a document. Removing an unknown document is a no-op.
	Remove(ctx context.Context, documentID string) error

	// Has reports whether the document has entries.
	Has(ctx context.Context, documentID string) (bool, error)

	// Close releases resources.
	Close() error
}
