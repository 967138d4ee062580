package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
// A single mutex makes every lifecycle transition an atomic compare-and-swap.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	contents  map[string][]byte
	chunks    map[string][]domain.Chunk
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]domain.Document),
		contents:  make(map[string][]byte),
		chunks:    make(map[string][]domain.Chunk),
	}
}

// CreateDocument stores a new document with its raw content.
func (s *DocumentStore) CreateDocument(_ context.Context, doc *domain.Document, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.documents[doc.ID]; exists {
		return domain.ErrInvalidInput
	}
	s.documents[doc.ID] = copyDocument(*doc)
	s.contents[doc.ID] = slices.Clone(content)
	return nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	doc = copyDocument(doc)
	return &doc, nil
}

// GetContent retrieves the raw content of a document.
func (s *DocumentStore) GetContent(_ context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.contents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return slices.Clone(content), nil
}

// ListDocuments returns documents newest first.
func (s *DocumentStore) ListDocuments(_ context.Context, offset, limit int) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		result = append(result, copyDocument(doc))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return page(result, offset, limit), nil
}

// Transition applies t when the current status allows it.
func (s *DocumentStore) Transition(_ context.Context, id string, t domain.Transition) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !t.Allows(&doc) {
		return nil, t.Reject(&doc)
	}

	t.Apply(&doc)
	s.documents[id] = doc

	doc = copyDocument(doc)
	return &doc, nil
}

// SaveChunks replaces all chunks of a document.
func (s *DocumentStore) SaveChunks(_ context.Context, documentID string, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[documentID]; !ok {
		return domain.ErrNotFound
	}
	s.chunks[documentID] = copyChunks(chunks)
	return nil
}

// GetChunks retrieves all chunks for a document ordered by index.
func (s *DocumentStore) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyChunks(s.chunks[documentID]), nil
}

// DeleteDocument removes a document, its content and its chunks.
func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.documents, id)
	delete(s.contents, id)
	delete(s.chunks, id)
	return nil
}

func copyDocument(doc domain.Document) domain.Document {
	if doc.ReadyAt != nil {
		readyAt := *doc.ReadyAt
		doc.ReadyAt = &readyAt
	}
	return doc
}

func copyChunks(chunks []domain.Chunk) []domain.Chunk {
	if chunks == nil {
		return nil
	}
	out := make([]domain.Chunk, len(chunks))
	for i, c := range chunks {
		c.Embedding = slices.Clone(c.Embedding)
		out[i] = c
	}
	return out
}

// page applies offset/limit to a slice. A non-positive limit returns the rest.
func page[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
