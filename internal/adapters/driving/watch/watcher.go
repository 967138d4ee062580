// Package watch ingests files dropped into an inbox directory.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/logger"
)

// DefaultSettle is how long a file must stay unchanged before it is ingested.
const DefaultSettle = 500 * time.Millisecond

// ErrNoDocumentService is returned when the watcher has nothing to ingest into.
var ErrNoDocumentService = errors.New("watch: document service is required")

// Result reports the outcome of one ingestion.
type Result struct {
	Path     string
	Document *domain.Document
	Err      error
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithSettle sets the quiet period before a changed file is ingested.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) { w.settle = d }
}

// WithExisting ingests files already in the directory when Run starts.
func WithExisting(enabled bool) Option {
	return func(w *Watcher) { w.existing = enabled }
}

// WithResults receives every ingestion outcome. The callback runs on a
// worker goroutine.
func WithResults(fn func(Result)) Option {
	return func(w *Watcher) { w.onResult = fn }
}

type fileStamp struct {
	size    int64
	modTime time.Time
}

// Watcher uploads and processes new or rewritten files in one directory.
// Subdirectories and dot-files are ignored, as are files whose type the
// document service cannot extract. A rewritten file becomes a new document.
type Watcher struct {
	docs     driving.DocumentService
	dir      string
	settle   time.Duration
	existing bool
	onResult func(Result)

	mu      sync.Mutex
	pending map[string]*time.Timer
	seen    map[string]fileStamp
	wg      sync.WaitGroup
}

// New creates a watcher for dir.
func New(docs driving.DocumentService, dir string, opts ...Option) *Watcher {
	w := &Watcher{
		docs:    docs,
		dir:     dir,
		settle:  DefaultSettle,
		pending: make(map[string]*time.Timer),
		seen:    make(map[string]fileStamp),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is cancelled, then waits for in-flight ingestions.
func (w *Watcher) Run(ctx context.Context) error {
	if w.docs == nil {
		return ErrNoDocumentService
	}
	info, err := os.Stat(w.dir)
	if err != nil {
		return fmt.Errorf("watch directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch directory: %s is not a directory", w.dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	logger.Info("Watching %s", w.dir)

	if w.existing {
		w.scan(ctx)
	}

	defer w.drain()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if path, ok := w.accept(event); ok {
				w.schedule(ctx, path)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error: %v", err)
		}
	}
}

// accept reports whether an event names a file worth ingesting.
func (w *Watcher) accept(event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return "", false
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return "", false
	}
	info, err := os.Stat(event.Name)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	if !w.supported(name) {
		logger.Debug("Ignoring %s: unsupported file type", name)
		return "", false
	}
	return event.Name, true
}

func (w *Watcher) supported(name string) bool {
	fileType := domain.FileTypeFromFilename(name)
	for _, t := range w.docs.SupportedFileTypes() {
		if t == fileType {
			return true
		}
	}
	return false
}

func (w *Watcher) scan(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		logger.Warn("Scanning %s: %v", w.dir, err)
		return
	}
	for _, entry := range entries {
		path := filepath.Join(w.dir, entry.Name())
		if _, ok := w.accept(fsnotify.Event{Name: path, Op: fsnotify.Create}); ok {
			w.schedule(ctx, path)
		}
	}
}

// schedule (re)starts the settle timer for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok && timer.Stop() {
		timer.Reset(w.settle)
		return
	}

	w.wg.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(w.settle, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.pending[path] == timer {
			delete(w.pending, path)
		}
		w.mu.Unlock()
		w.ingest(ctx, path)
	})
	w.pending[path] = timer
}

// drain stops timers that have not fired and waits for running ingestions.
func (w *Watcher) drain() {
	w.mu.Lock()
	for path, timer := range w.pending {
		if timer.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	stamp := fileStamp{size: info.Size(), modTime: info.ModTime()}

	w.mu.Lock()
	unchanged := w.seen[path] == stamp
	w.mu.Unlock()
	if unchanged {
		return
	}

	content, err := os.ReadFile(path)
	if err != nil {
		w.report(Result{Path: path, Err: fmt.Errorf("read %s: %w", path, err)})
		return
	}

	doc, err := w.docs.Ingest(ctx, domain.UploadRequest{
		Filename: filepath.Base(path),
		Content:  content,
	})
	if err == nil {
		w.mu.Lock()
		w.seen[path] = stamp
		w.mu.Unlock()
	}
	w.report(Result{Path: path, Document: doc, Err: err})
}

func (w *Watcher) report(r Result) {
	switch {
	case r.Err != nil:
		logger.Warn("Ingesting %s: %v", filepath.Base(r.Path), r.Err)
	case r.Document.Status == domain.StatusFailed:
		logger.Warn("Ingesting %s failed: %s", r.Document.Filename, r.Document.FailureReason)
	default:
		logger.Info("Ingested %s as %s (%d chunks)", r.Document.Filename, r.Document.ID, r.Document.ChunkCount)
	}
	if w.onResult != nil {
		w.onResult(r)
	}
}
