package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// DocumentStatus is a position in the document lifecycle.
type DocumentStatus string

// Lifecycle states. Deletion is not a state; it removes the document.
const (
	// StatusUploaded means metadata and raw content are stored, no chunks yet.
	StatusUploaded DocumentStatus = "uploaded"

	// StatusProcessing means exactly one ingestion pipeline is running.
	StatusProcessing DocumentStatus = "processing"

	// StatusReady means the document is chunked, indexed and retrievable.
	StatusReady DocumentStatus = "ready"

	// StatusFailed means ingestion failed; the reason is recorded.
	StatusFailed DocumentStatus = "failed"
)

// IsValid returns true if the status is recognised.
func (s DocumentStatus) IsValid() bool {
	switch s {
	case StatusUploaded, StatusProcessing, StatusReady, StatusFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s DocumentStatus) String() string {
	return string(s)
}

// Document is an uploaded file tracked through the ingestion lifecycle.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Filename is the original name of the uploaded file.
	Filename string

	// FileType is the declared file type (lowercase extension, e.g. "pdf").
	FileType string

	// Size is the raw content size in bytes.
	Size int64

	// Status is the current lifecycle state.
	Status DocumentStatus

	// FailureReason explains why processing failed. Empty unless Status is failed.
	FailureReason string

	// ChunkCount is the number of chunks produced by the last successful run.
	ChunkCount int

	// CreatedAt is when the document was uploaded.
	CreatedAt time.Time

	// ReadyAt is when the document became ready. Nil until then.
	ReadyAt *time.Time

	// Lease identifies the pipeline holding the document while processing.
	Lease string

	// HeartbeatAt is when the lease holder last renewed it. Zero unless processing.
	HeartbeatAt time.Time
}

// LeaseStale reports whether a processing lease went unrenewed since before cutoff.
func (d *Document) LeaseStale(cutoff time.Time) bool {
	return d != nil && d.Status == StatusProcessing && d.HeartbeatAt.Before(cutoff)
}

// IsRetrievable returns true if the document may be used for retrieval.
func (d *Document) IsRetrievable() bool {
	return d != nil && d.Status == StatusReady
}

// Chunk is a contiguous span of a document's text used as the unit of retrieval.
// Chunks are immutable once written.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	// It is derived from the document ID and index, so reprocessing is idempotent.
	ID string

	// DocumentID links to the owning Document.
	DocumentID string

	// Index is the zero-based sequence position within the document.
	Index int

	// StartChar is the character offset where the span begins.
	StartChar int

	// EndChar is the character offset one past the end of the span.
	EndChar int

	// Content is the text of the span.
	Content string

	// Tokens is the token count of Content, zero if not measured.
	Tokens int

	// Embedding is the unit-length vector representation.
	Embedding []float32
}

// Length returns the span length in characters.
func (c Chunk) Length() int {
	return c.EndChar - c.StartChar
}

// ScoredChunk pairs a chunk with its similarity to a query.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// RawDocument is the input to text extraction.
type RawDocument struct {
	// Filename is the original file name, used for titles and diagnostics.
	Filename string

	// FileType is the declared file type.
	FileType string

	// Content is the raw bytes.
	Content []byte
}

// FileTypeFromFilename derives a declared file type from a filename extension.
func FileTypeFromFilename(filename string) string {
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	return NormaliseFileType(ext)
}

// NormaliseFileType lowercases a file type and strips a leading dot.
func NormaliseFileType(fileType string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(fileType), "."))
}

// TitleFromFilename derives a human-readable title from a filename by
// dropping the extension and turning separators into spaces.
func TitleFromFilename(filename string) string {
	name := filepath.Base(filename)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	return name
}
