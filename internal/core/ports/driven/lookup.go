package driven

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// KnowledgeLookup is the external knowledge-lookup collaborator used for
// questions without a selected document.
type KnowledgeLookup interface {
	// Lookup returns up to limit results in provider-ranked order.
	// An empty result is not an error.
	Lookup(ctx context.Context, query string, limit int) ([]domain.LookupResult, error)
}
