package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// EmbeddingIndex embeds chunks and keeps their unit-length vectors in a
// VectorStore, so similarity search reduces to a dot product.
type EmbeddingIndex struct {
	embedder driven.EmbeddingService
	store    driven.VectorStore
	loading  *keyedMutex
}

// NewEmbeddingIndex creates an index over the given embedder and store.
func NewEmbeddingIndex(embedder driven.EmbeddingService, store driven.VectorStore) *EmbeddingIndex {
	return &EmbeddingIndex{embedder: embedder, store: store, loading: newKeyedMutex()}
}

// Add embeds every chunk and stores the vectors in one step. It returns the
// chunks with normalised embeddings attached, for persistence. Nothing is
// stored unless every chunk produced a usable vector.
//
// Returns domain.ErrAlreadyIndexed if the document has entries; callers
// re-indexing a document Remove it first.
func (x *EmbeddingIndex) Add(ctx context.Context, documentID string, chunks []domain.Chunk) ([]domain.Chunk, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks to index", domain.ErrInvalidInput)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := x.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, domain.ErrEmbeddingUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: got %d vectors for %d chunks",
			domain.ErrEmbeddingUnavailable, len(vectors), len(chunks))
	}

	dims := len(vectors[0])
	indexed := make([]domain.Chunk, len(chunks))
	for i, v := range vectors {
		if len(v) != dims {
			return nil, fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				domain.ErrEmbeddingUnavailable, chunks[i].Index, len(v), dims)
		}
		unit, err := normalise(v)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %d: %w", domain.ErrEmbeddingUnavailable, chunks[i].Index, err)
		}
		indexed[i] = chunks[i]
		indexed[i].DocumentID = documentID
		indexed[i].Embedding = unit
	}

	if err := x.store.Put(ctx, documentID, indexed); err != nil {
		return nil, err
	}
	logger.Debug("Indexed %d chunks of %s (%d dimensions)", len(indexed), documentID, dims)
	return indexed, nil
}

// Restore reloads persisted chunks into the store. Chunks saved without an
// embedding are embedded again.
func (x *EmbeddingIndex) Restore(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			_, err := x.Add(ctx, documentID, chunks)
			return err
		}
	}
	return x.store.Put(ctx, documentID, chunks)
}

// EnsureLoaded restores a document from its persisted chunks unless the
// store already holds it. Concurrent callers for one document load it once.
// It reports whether a load happened.
func (x *EmbeddingIndex) EnsureLoaded(
	ctx context.Context,
	documentID string,
	chunks func(context.Context, string) ([]domain.Chunk, error),
) (bool, error) {
	if has, err := x.store.Has(ctx, documentID); err != nil || has {
		return false, err
	}

	unlock := x.loading.Lock(documentID)
	defer unlock()
	if has, err := x.store.Has(ctx, documentID); err != nil || has {
		return false, err
	}

	persisted, err := chunks(ctx, documentID)
	if err != nil {
		return false, fmt.Errorf("load chunks: %w", err)
	}
	if len(persisted) == 0 {
		return false, fmt.Errorf("document %s has no persisted chunks", documentID)
	}
	if err := x.Restore(ctx, documentID, persisted); err != nil {
		if errors.Is(err, domain.ErrAlreadyIndexed) {
			return false, nil
		}
		return false, err
	}
	logger.Debug("Loaded %d persisted chunks of %s into the index", len(persisted), documentID)
	return true, nil
}

// EmbedQuery embeds and normalises a question.
func (x *EmbeddingIndex) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	v, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	unit, err := normalise(v)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %w", domain.ErrEmbeddingUnavailable, err)
	}
	return unit, nil
}

// Search returns the raw top-k chunks of a document for a unit query
// vector. No confidence floor is applied here.
func (x *EmbeddingIndex) Search(ctx context.Context, documentID string, query []float32, k int) ([]domain.ScoredChunk, error) {
	return x.store.Search(ctx, documentID, query, k)
}

// Remove deletes every vector of a document.
func (x *EmbeddingIndex) Remove(ctx context.Context, documentID string) error {
	return x.store.Remove(ctx, documentID)
}

// Has reports whether the document has vectors.
func (x *EmbeddingIndex) Has(ctx context.Context, documentID string) (bool, error) {
	return x.store.Has(ctx, documentID)
}

// normalise returns v scaled to unit length.
func normalise(v []float32) ([]float32, error) {
	if len(v) == 0 {
		return nil, errors.New("empty vector")
	}
	var sum float64
	for _, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return nil, errors.New("vector contains NaN or Inf")
		}
		sum += float64(f) * float64(f)
	}
	if sum == 0 {
		return nil, errors.New("zero vector")
	}
	norm := math.Sqrt(sum)
	unit := make([]float32, len(v))
	for i, f := range v {
		unit[i] = float32(float64(f) / norm)
	}
	return unit, nil
}
