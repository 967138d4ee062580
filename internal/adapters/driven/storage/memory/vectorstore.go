package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore is an in-memory implementation of driven.VectorStore.
//
// The outer lock guards only the document map. Each document's vectors sit
// behind their own RWMutex, so searches of one document never wait on
// writes to another.
type VectorStore struct {
	mu   sync.RWMutex
	docs map[string]*documentVectors
}

type documentVectors struct {
	mu      sync.RWMutex
	entries []vectorEntry
	removed bool
}

type vectorEntry struct {
	chunk  domain.Chunk
	vector []float32
}

// NewVectorStore creates a new in-memory vector store.
func NewVectorStore() *VectorStore {
	return &VectorStore{docs: make(map[string]*documentVectors)}
}

// Put stores all chunk vectors of a document atomically.
func (s *VectorStore) Put(_ context.Context, documentID string, chunks []domain.Chunk) error {
	entries := make([]vectorEntry, 0, len(chunks))
	for _, c := range chunks {
		vector := slices.Clone(c.Embedding)
		c.Embedding = nil
		entries = append(entries, vectorEntry{chunk: c, vector: vector})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.docs[documentID]; ok && len(existing.entries) > 0 {
		return domain.ErrAlreadyIndexed
	}
	s.docs[documentID] = &documentVectors{entries: entries}
	return nil
}

// Search ranks a document's chunks by dot product with query.
func (s *VectorStore) Search(ctx context.Context, documentID string, query []float32, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		return []domain.ScoredChunk{}, nil
	}

	s.mu.RLock()
	dv, ok := s.docs[documentID]
	s.mu.RUnlock()
	if !ok {
		return []domain.ScoredChunk{}, nil
	}

	dv.mu.RLock()
	defer dv.mu.RUnlock()
	if dv.removed {
		return []domain.ScoredChunk{}, nil
	}

	scored := make([]domain.ScoredChunk, 0, len(dv.entries))
	for _, e := range dv.entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunk := e.chunk
		chunk.Embedding = slices.Clone(e.vector)
		scored = append(scored, domain.ScoredChunk{Chunk: chunk, Score: dot(e.vector, query)})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Chunk.Index < scored[j].Chunk.Index
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// Remove deletes all entries of a document.
func (s *VectorStore) Remove(_ context.Context, documentID string) error {
	s.mu.Lock()
	dv, ok := s.docs[documentID]
	delete(s.docs, documentID)
	s.mu.Unlock()

	if ok {
		// Wait for in-flight searches of this document before returning.
		dv.mu.Lock()
		dv.removed = true
		dv.entries = nil
		dv.mu.Unlock()
	}
	return nil
}

// Has reports whether the document has entries.
func (s *VectorStore) Has(_ context.Context, documentID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dv, ok := s.docs[documentID]
	return ok && len(dv.entries) > 0, nil
}

// Close releases resources (no-op for memory store).
func (s *VectorStore) Close() error {
	return nil
}

// dot returns the dot product over the shorter of the two vectors.
func dot(a, b []float32) float64 {
	n := min(len(a), len(b))
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
