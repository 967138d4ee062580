package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// setupTestStore creates a SQLite store in a temporary directory.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store
}

// createTestDocument inserts an uploaded document.
func createTestDocument(t *testing.T, store *Store, id string, createdAt time.Time) *domain.Document {
	t.Helper()
	doc := &domain.Document{
		ID:        id,
		Filename:  id + ".txt",
		FileType:  "txt",
		Size:      5,
		Status:    domain.StatusUploaded,
		CreatedAt: createdAt,
	}
	require.NoError(t, store.DocumentStore().CreateDocument(context.Background(), doc, []byte("hello")))
	return doc
}

func TestNewStore_Success(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, filepath.Join(dir, "docqa.db"), store.Path())
	assert.FileExists(t, store.Path())
}

func TestNewStore_MigrationsRecorded(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	var version int
	require.NoError(t, store.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 1, version)
	require.NoError(t, store.Close())

	// Reopening must not re-run the initial migration.
	store, err = NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	var count int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestNewStore_ForeignKeysEnabled(t *testing.T) {
	store := setupTestStore(t)

	var enabled int
	require.NoError(t, store.db.QueryRow("PRAGMA foreign_keys").Scan(&enabled))
	assert.Equal(t, 1, enabled)
}

func TestDocumentStore_CreateAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	createTestDocument(t, store, "doc-1", created)

	got, err := store.DocumentStore().GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1.txt", got.Filename)
	assert.Equal(t, "txt", got.FileType)
	assert.Equal(t, int64(5), got.Size)
	assert.Equal(t, domain.StatusUploaded, got.Status)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.Nil(t, got.ReadyAt)

	content, err := store.DocumentStore().GetContent(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), content)
}

func TestDocumentStore_CreateDuplicate(t *testing.T) {
	store := setupTestStore(t)
	doc := createTestDocument(t, store, "doc-1", time.Now())

	err := store.DocumentStore().CreateDocument(context.Background(), doc, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDocumentStore_NotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	docs := store.DocumentStore()

	_, err := docs.GetDocument(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = docs.GetContent(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = docs.Transition(ctx, "missing", domain.BeginProcessing("lease-1", time.Now()))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, docs.DeleteDocument(ctx, "missing"), domain.ErrNotFound)
	assert.ErrorIs(t, docs.SaveChunks(ctx, "missing", nil), domain.ErrNotFound)
}

func TestDocumentStore_ListNewestFirst(t *testing.T) {
	store := setupTestStore(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		createTestDocument(t, store, fmt.Sprintf("doc-%d", i), base.Add(time.Duration(i)*time.Minute))
	}

	docs, err := store.DocumentStore().ListDocuments(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, docs, 5)
	assert.Equal(t, "doc-4", docs[0].ID)
	assert.Equal(t, "doc-0", docs[4].ID)

	page, err := store.DocumentStore().ListDocuments(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "doc-3", page[0].ID)
	assert.Equal(t, "doc-2", page[1].ID)

	empty, err := store.DocumentStore().ListDocuments(context.Background(), 10, 2)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDocumentStore_TransitionLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	docs := store.DocumentStore()
	createTestDocument(t, store, "doc-1", time.Now())

	doc, err := docs.Transition(ctx, "doc-1", domain.BeginProcessing("lease-1", time.Now()))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, doc.Status)

	doc, err = docs.Transition(ctx, "doc-1", domain.FailProcessing("lease-1", "corrupt file", time.Now()))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, doc.Status)
	assert.Equal(t, "corrupt file", doc.FailureReason)

	// Retry from failed.
	doc, err = docs.Transition(ctx, "doc-1", domain.BeginProcessing("lease-1", time.Now()))
	require.NoError(t, err)
	assert.Empty(t, doc.FailureReason)

	readyAt := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	doc, err = docs.Transition(ctx, "doc-1", domain.CompleteProcessing("lease-1", 7, readyAt))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, doc.Status)
	assert.Equal(t, 7, doc.ChunkCount)
	require.NotNil(t, doc.ReadyAt)
	assert.True(t, readyAt.Equal(*doc.ReadyAt))

	_, err = docs.Transition(ctx, "doc-1", domain.BeginProcessing("lease-1", time.Now()))
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestDocumentStore_TransitionWhileProcessing(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	createTestDocument(t, store, "doc-1", time.Now())

	_, err := store.DocumentStore().Transition(ctx, "doc-1", domain.BeginProcessing("lease-1", time.Now()))
	require.NoError(t, err)

	_, err = store.DocumentStore().Transition(ctx, "doc-1", domain.BeginProcessing("lease-1", time.Now()))
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessing)
}

func TestDocumentStore_LeaseSharedAcrossStores(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := NewStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = first.Close() })
	second, err := NewStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	createTestDocument(t, first, "doc-1", time.Now())
	began := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	doc, err := first.DocumentStore().Transition(ctx, "doc-1", domain.BeginProcessing("lease-a", began))
	require.NoError(t, err)
	assert.Equal(t, "lease-a", doc.Lease)
	assert.True(t, began.Equal(doc.HeartbeatAt))

	seen, err := second.DocumentStore().GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "lease-a", seen.Lease)

	_, err = second.DocumentStore().Transition(ctx, "doc-1", domain.BeginProcessing("lease-b", began))
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessing)

	// A live heartbeat cannot be reclaimed.
	_, err = second.DocumentStore().Transition(ctx, "doc-1", domain.ReclaimStale(began, "interrupted", began))
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessing)

	// Only the holder may renew or finish.
	_, err = second.DocumentStore().Transition(ctx, "doc-1", domain.RenewLease("lease-b", began))
	assert.ErrorIs(t, err, domain.ErrLeaseLost)
	renewed := began.Add(time.Minute)
	_, err = first.DocumentStore().Transition(ctx, "doc-1", domain.RenewLease("lease-a", renewed))
	require.NoError(t, err)

	_, err = second.DocumentStore().Transition(ctx, "doc-1", domain.ReclaimStale(renewed, "interrupted", renewed))
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessing)

	cutoff := renewed.Add(time.Second)
	doc, err = second.DocumentStore().Transition(ctx, "doc-1", domain.ReclaimStale(cutoff, "interrupted", cutoff))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, doc.Status)
	assert.Empty(t, doc.Lease)
	assert.True(t, doc.HeartbeatAt.IsZero())

	_, err = first.DocumentStore().Transition(ctx, "doc-1", domain.CompleteProcessing("lease-a", 3, cutoff))
	assert.ErrorIs(t, err, domain.ErrLeaseLost)
}

func TestDocumentStore_ConcurrentBeginProcessing(t *testing.T) {
	store := setupTestStore(t)
	createTestDocument(t, store, "doc-1", time.Now())

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	var succeeded, rejected int

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.DocumentStore().Transition(context.Background(), "doc-1", domain.BeginProcessing("lease-1", time.Now()))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrAlreadyProcessing):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, rejected)
}

func TestDocumentStore_SaveAndGetChunks(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	docs := store.DocumentStore()
	createTestDocument(t, store, "doc-1", time.Now())

	chunks := []domain.Chunk{
		{ID: "c1", DocumentID: "doc-1", Index: 1, StartChar: 8, EndChar: 20, Content: "second", Tokens: 2, Embedding: []float32{0, 1}},
		{ID: "c0", DocumentID: "doc-1", Index: 0, StartChar: 0, EndChar: 10, Content: "first", Tokens: 1, Embedding: []float32{1, 0}},
	}
	require.NoError(t, docs.SaveChunks(ctx, "doc-1", chunks))

	got, err := docs.GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c0", got[0].ID)
	assert.Equal(t, "c1", got[1].ID)
	assert.Equal(t, []float32{1, 0}, got[0].Embedding)
	assert.Equal(t, 8, got[1].StartChar)
	assert.Equal(t, 2, got[1].Tokens)

	// Saving again replaces the previous set.
	require.NoError(t, docs.SaveChunks(ctx, "doc-1", chunks[1:]))
	got, err = docs.GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c0", got[0].ID)
}

func TestDocumentStore_DeleteCascades(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	docs := store.DocumentStore()
	createTestDocument(t, store, "doc-1", time.Now())
	require.NoError(t, docs.SaveChunks(ctx, "doc-1", []domain.Chunk{{ID: "c0", Index: 0, Content: "x"}}))

	require.NoError(t, docs.DeleteDocument(ctx, "doc-1"))

	_, err := docs.GetDocument(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = docs.GetContent(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	chunks, err := docs.GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestFloat32Roundtrip(t *testing.T) {
	original := []float32{0.1, -0.2, 3.5, 0}
	assert.Equal(t, original, bytesToFloat32Slice(float32SliceToBytes(original)))
	assert.Nil(t, float32SliceToBytes(nil))
	assert.Nil(t, bytesToFloat32Slice(nil))
}

func TestStore_ContextCancellation(t *testing.T) {
	store := setupTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.DocumentStore().GetDocument(ctx, "doc-1")
	assert.Error(t, err)
}
