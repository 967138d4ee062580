package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

// Ensure SummaryService implements the interface.
var _ driving.SummaryService = (*SummaryService)(nil)

// summaryChunks is how many leading chunks feed a summary.
const summaryChunks = 50

// SummaryService summarises ready documents through the generation gateway.
type SummaryService struct {
	docStore driven.DocumentStore
	gateway  *GenerationGateway
	maxChars int
}

// NewSummaryService creates a summary service. maxChars bounds the excerpt
// text like the answer context does.
func NewSummaryService(docStore driven.DocumentStore, gateway *GenerationGateway, maxChars int) *SummaryService {
	return &SummaryService{docStore: docStore, gateway: gateway, maxChars: maxChars}
}

// Summarise generates a summary from the document's leading chunks.
func (s *SummaryService) Summarise(ctx context.Context, documentID string) (string, error) {
	doc, err := s.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return "", documentErr(err)
	}
	if !doc.IsRetrievable() {
		return "", fmt.Errorf("%w: %s is %s", domain.ErrDocumentNotReady, documentID, doc.Status)
	}

	chunks, err := s.docStore.GetChunks(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("load chunks: %w", err)
	}
	if len(chunks) > summaryChunks {
		chunks = chunks[:summaryChunks]
	}

	items := make([]domain.ContextItem, 0, len(chunks))
	for _, c := range chunks {
		items = append(items, domain.ContextItem{
			Text: c.Content,
			Provenance: domain.Provenance{
				Kind:       domain.ProvenanceChunk,
				DocumentID: documentID,
				ChunkID:    c.ID,
				ChunkIndex: c.Index,
			},
		})
	}

	return s.gateway.Generate(ctx, GenerationRequest{
		Prompt:  driven.PromptSummarise,
		Context: AssembleContext(items, s.maxChars),
	})
}
