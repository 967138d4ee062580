// Package none provides a knowledge lookup that never finds anything.
// Ungrounded questions are then answered with empty context.
package none

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

var _ driven.KnowledgeLookup = Lookup{}

// Lookup is the disabled lookup.
type Lookup struct{}

// Lookup returns no results.
func (Lookup) Lookup(_ context.Context, _ string, _ int) ([]domain.LookupResult, error) {
	return []domain.LookupResult{}, nil
}
