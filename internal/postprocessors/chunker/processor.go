// Package chunker cuts normalised text into overlapping windows.
package chunker

import (
	"context"
	"strconv"

	"github.com/google/uuid"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// chunkNamespace makes chunk IDs a pure function of document and index.
var chunkNamespace = uuid.MustParse("6f1c2d9e-3b7a-4c5e-9a8f-2d4b6e8c0a11")

// Processor is the "chunker" stage. It discards incoming chunks and emits
// fresh ones from the text.
type Processor struct {
	chunkSize int
	overlap   int
}

type Option func(*Processor)

func WithChunkSize(size int) Option { return func(p *Processor) { p.chunkSize = size } }
func WithOverlap(n int) Option      { return func(p *Processor) { p.overlap = n } }

// New applies opts over the defaults. Bad sizes surface from Process.
func New(opts ...Option) *Processor {
	p := &Processor{chunkSize: DefaultChunkSize, overlap: DefaultChunkOverlap}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Processor) Name() string   { return "chunker" }
func (p *Processor) ChunkSize() int { return p.chunkSize }
func (p *Processor) Overlap() int   { return p.overlap }

func (p *Processor) Process(ctx context.Context, doc *domain.Document, text string, _ []domain.Chunk) ([]domain.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	spans, err := Split(text, p.chunkSize, p.overlap)
	if err != nil {
		return nil, err
	}

	chunks := make([]domain.Chunk, len(spans))
	for i, s := range spans {
		chunks[i] = domain.Chunk{
			ID:         ChunkID(doc.ID, s.Index),
			DocumentID: doc.ID,
			Index:      s.Index,
			StartChar:  s.Start,
			EndChar:    s.End,
			Content:    s.Text,
		}
	}
	return chunks, nil
}

// ChunkID is stable across reprocessing: a v5 UUID of "<documentID>#<index>".
func ChunkID(documentID string, index int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(documentID+"#"+strconv.Itoa(index))).String()
}
