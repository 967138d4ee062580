package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// interruptedReason is recorded for documents whose pipeline stopped
// renewing its lease.
const interruptedReason = "processing interrupted before completion"

// DefaultLeaseTTL is how long a processing lease survives without renewal.
const DefaultLeaseTTL = 2 * time.Minute

// DocumentService drives documents through the lifecycle
// uploaded -> processing -> ready|failed.
//
// Every status change goes through DocumentStore.Transition, which applies it
// only if the current status allows it. That compare-and-swap is what keeps
// at most one ingestion pipeline running per document, across processes
// sharing a store. A pipeline holds a lease while processing and renews it
// every third of the lease TTL; only leases left unrenewed for a whole TTL
// are reclaimed.
type DocumentService struct {
	docStore   driven.DocumentStore
	extractors driven.NormaliserRegistry
	pipeline   driven.PostProcessorPipeline
	index      *EmbeddingIndex
	leaseTTL   time.Duration
	now        func() time.Time
}

// DocumentOption configures a DocumentService.
type DocumentOption func(*DocumentService)

// WithLeaseTTL sets how long a processing lease survives without renewal.
// Non-positive values are ignored.
func WithLeaseTTL(ttl time.Duration) DocumentOption {
	return func(s *DocumentService) {
		if ttl > 0 {
			s.leaseTTL = ttl
		}
	}
}

// NewDocumentService creates a new document service.
func NewDocumentService(
	docStore driven.DocumentStore,
	extractors driven.NormaliserRegistry,
	pipeline driven.PostProcessorPipeline,
	index *EmbeddingIndex,
	opts ...DocumentOption,
) *DocumentService {
	s := &DocumentService{
		docStore:   docStore,
		extractors: extractors,
		pipeline:   pipeline,
		index:      index,
		leaseTTL:   DefaultLeaseTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload records a new document in the uploaded state.
func (s *DocumentService) Upload(ctx context.Context, req domain.UploadRequest) (*domain.Document, error) {
	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		return nil, fmt.Errorf("%w: filename is required", domain.ErrInvalidInput)
	}

	fileType := domain.NormaliseFileType(req.FileType)
	if fileType == "" {
		fileType = domain.FileTypeFromFilename(filename)
	}
	if !s.extractors.Supports(fileType) {
		return nil, fmt.Errorf("%w: %q (supported: %s)", domain.ErrUnsupportedFileType,
			fileType, strings.Join(s.extractors.SupportedFileTypes(), ", "))
	}

	doc := &domain.Document{
		ID:        uuid.NewString(),
		Filename:  filename,
		FileType:  fileType,
		Size:      int64(len(req.Content)),
		Status:    domain.StatusUploaded,
		CreatedAt: s.now().UTC(),
	}
	if err := s.docStore.CreateDocument(ctx, doc, req.Content); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}

	logger.Info("Uploaded %s as %s (%d bytes)", filename, doc.ID, doc.Size)
	return doc, nil
}

// Process runs extract -> chunk -> index for an uploaded or failed document.
// A pipeline failure moves the document to failed and is returned on the
// document with a nil error. If another pipeline reclaims the lease meanwhile,
// the work is abandoned with domain.ErrLeaseLost.
func (s *DocumentService) Process(ctx context.Context, documentID string) (*domain.Document, error) {
	lease := uuid.NewString()
	doc, err := s.begin(ctx, documentID, lease)
	if err != nil {
		return nil, documentErr(err)
	}

	logger.Section("Ingest " + doc.Filename)

	ictx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stop := s.keepLease(ictx, cancel, documentID, lease)
	count, err := s.ingest(ictx, doc)
	stop()

	if lost := context.Cause(ictx); errors.Is(lost, domain.ErrLeaseLost) {
		logger.Warn("Abandoning %s: %v", documentID, lost)
		return nil, lost
	}
	if err != nil {
		return s.fail(ctx, doc, lease, err)
	}

	ready, err := s.docStore.Transition(ctx, documentID, domain.CompleteProcessing(lease, count, s.now().UTC()))
	if errors.Is(err, domain.ErrLeaseLost) {
		return nil, err
	}
	if err != nil {
		return s.fail(ctx, doc, lease, fmt.Errorf("mark ready: %w", err))
	}

	logger.Info("Document %s ready: %d chunks", documentID, count)
	return ready, nil
}

// begin takes the processing lease, reclaiming it first from a pipeline
// that stopped renewing it.
func (s *DocumentService) begin(ctx context.Context, documentID, lease string) (*domain.Document, error) {
	doc, err := s.docStore.Transition(ctx, documentID, domain.BeginProcessing(lease, s.now().UTC()))
	if errors.Is(err, domain.ErrAlreadyProcessing) && s.reclaim(ctx, documentID) {
		doc, err = s.docStore.Transition(ctx, documentID, domain.BeginProcessing(lease, s.now().UTC()))
	}
	return doc, err
}

// keepLease renews the lease until stop is called. Losing the lease
// cancels ctx with domain.ErrLeaseLost as the cause.
func (s *DocumentService) keepLease(ctx context.Context, cancel context.CancelCauseFunc, documentID, lease string) (stop func()) {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(max(s.leaseTTL/3, time.Millisecond))
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			_, err := s.docStore.Transition(ctx, documentID, domain.RenewLease(lease, s.now().UTC()))
			switch {
			case err == nil:
			case errors.Is(err, domain.ErrLeaseLost):
				cancel(err)
				return
			default:
				logger.Warn("Renewing lease on %s: %v", documentID, err)
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

// reclaim fails the document if its lease is stale and reports whether it did.
func (s *DocumentService) reclaim(ctx context.Context, documentID string) bool {
	now := s.now().UTC()
	_, err := s.docStore.Transition(ctx, documentID, domain.ReclaimStale(now.Add(-s.leaseTTL), interruptedReason, now))
	if err != nil {
		return false
	}
	logger.Warn("Reclaimed stale processing lease on %s", documentID)
	return true
}

// Ingest uploads and processes a document in one call.
func (s *DocumentService) Ingest(ctx context.Context, req domain.UploadRequest) (*domain.Document, error) {
	doc, err := s.Upload(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.Process(ctx, doc.ID)
}

// ingest runs the pipeline stages and returns the chunk count.
func (s *DocumentService) ingest(ctx context.Context, doc *domain.Document) (int, error) {
	// 1. EXTRACT
	content, err := s.docStore.GetContent(ctx, doc.ID)
	if err != nil {
		return 0, fmt.Errorf("load content: %w", err)
	}
	result, err := s.extractors.Normalise(ctx, &domain.RawDocument{
		Filename: doc.Filename,
		FileType: doc.FileType,
		Content:  content,
	})
	if err != nil {
		return 0, fmt.Errorf("extract: %w", err)
	}
	if strings.TrimSpace(result.Text) == "" {
		return 0, domain.ErrEmptyDocument
	}
	logger.Debug("Extracted %d characters from %s", len([]rune(result.Text)), doc.Filename)

	// 2. CHUNK
	chunks, err := s.pipeline.Process(ctx, doc, result.Text)
	if err != nil {
		return 0, fmt.Errorf("chunk: %w", err)
	}
	if len(chunks) == 0 {
		return 0, domain.ErrEmptyDocument
	}

	// 3. INDEX (stale entries from an earlier failed run are dropped first)
	if err := context.Cause(ctx); err != nil {
		return 0, err
	}
	if err := s.index.Remove(ctx, doc.ID); err != nil {
		return 0, fmt.Errorf("clear index: %w", err)
	}
	indexed, err := s.index.Add(ctx, doc.ID, chunks)
	if err != nil {
		return 0, fmt.Errorf("index: %w", err)
	}

	// 4. PERSIST (unless the lease was lost meanwhile)
	if err := context.Cause(ctx); err != nil {
		return 0, err
	}
	if err := s.docStore.SaveChunks(ctx, doc.ID, indexed); err != nil {
		return 0, fmt.Errorf("save chunks: %w", err)
	}

	return len(indexed), nil
}

// fail records a pipeline failure. It runs detached from ctx so that a
// cancelled caller still leaves the document in failed rather than processing.
func (s *DocumentService) fail(ctx context.Context, doc *domain.Document, lease string, cause error) (*domain.Document, error) {
	cleanup := context.WithoutCancel(ctx)
	logger.Warn("Processing %s failed: %v", doc.ID, cause)

	// Index entries now belong to whoever reclaimed the lease.
	if _, err := s.docStore.Transition(cleanup, doc.ID, domain.RenewLease(lease, s.now().UTC())); errors.Is(err, domain.ErrLeaseLost) {
		return nil, err
	}
	if err := s.index.Remove(cleanup, doc.ID); err != nil {
		logger.Warn("Failed to clear index for %s: %v", doc.ID, err)
	}

	failed, err := s.docStore.Transition(cleanup, doc.ID, domain.FailProcessing(lease, cause.Error(), s.now().UTC()))
	if err != nil {
		return nil, fmt.Errorf("record failure (%v): %w", cause, documentErr(err))
	}
	return failed, nil
}

// Get retrieves a document by ID.
func (s *DocumentService) Get(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := s.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return nil, documentErr(err)
	}
	return doc, nil
}

// List returns documents, newest first. A limit of zero or less returns all.
func (s *DocumentService) List(ctx context.Context, offset, limit int) ([]domain.Document, error) {
	if offset < 0 {
		offset = 0
	}
	return s.docStore.ListDocuments(ctx, offset, limit)
}

// Chunks returns the chunks of a document in index order.
func (s *DocumentService) Chunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	if _, err := s.Get(ctx, documentID); err != nil {
		return nil, err
	}
	return s.docStore.GetChunks(ctx, documentID)
}

// Delete removes a document with its chunks and index entries.
// Documents that are processing cannot be deleted unless their lease is stale.
func (s *DocumentService) Delete(ctx context.Context, documentID string) error {
	doc, err := s.Get(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.Status == domain.StatusProcessing && !s.reclaim(ctx, documentID) {
		return domain.ErrAlreadyProcessing
	}

	if err := s.index.Remove(ctx, documentID); err != nil {
		return fmt.Errorf("remove index entries: %w", err)
	}
	if err := s.docStore.DeleteDocument(ctx, documentID); err != nil {
		return documentErr(err)
	}

	logger.Info("Deleted document %s", documentID)
	return nil
}

// SupportedFileTypes returns the file types that can be uploaded.
func (s *DocumentService) SupportedFileTypes() []string {
	return s.extractors.SupportedFileTypes()
}

// RecoverStale fails every processing document whose lease went unrenewed
// for the lease TTL, so a crashed pipeline does not hold it forever. Leases
// of pipelines still running, here or in another process, are left alone.
// It returns the number of documents recovered.
func (s *DocumentService) RecoverStale(ctx context.Context) (int, error) {
	docs, err := s.docStore.ListDocuments(ctx, 0, 0)
	if err != nil {
		return 0, fmt.Errorf("list documents: %w", err)
	}

	cutoff := s.now().UTC().Add(-s.leaseTTL)
	recovered := 0
	for i := range docs {
		if docs[i].LeaseStale(cutoff) && s.reclaim(ctx, docs[i].ID) {
			recovered++
		}
	}
	return recovered, nil
}

// RestoreIndex loads the persisted vectors of every ready document the
// index does not hold yet. It returns the number of documents restored.
func (s *DocumentService) RestoreIndex(ctx context.Context) (int, error) {
	docs, err := s.docStore.ListDocuments(ctx, 0, 0)
	if err != nil {
		return 0, fmt.Errorf("list documents: %w", err)
	}

	restored := 0
	var errs []error
	for i := range docs {
		if !docs[i].IsRetrievable() {
			continue
		}
		loaded, err := s.index.EnsureLoaded(ctx, docs[i].ID, s.docStore.GetChunks)
		if err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", docs[i].ID, err))
			continue
		}
		if loaded {
			restored++
		}
	}

	if restored > 0 {
		logger.Info("Restored index for %d documents", restored)
	}
	return restored, errors.Join(errs...)
}

// documentErr maps store-level not-found to the document taxonomy.
func documentErr(err error) error {
	if errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrDocumentNotFound) {
		return fmt.Errorf("%w: %w", domain.ErrDocumentNotFound, err)
	}
	return err
}
