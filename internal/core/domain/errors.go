package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist in a store.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates functionality is not available in this build.
	ErrNotImplemented = errors.New("not implemented")

	// Ingestion Errors.

	// ErrUnsupportedFileType indicates no extractor handles the declared file type.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrCorruptFile indicates the file could not be parsed as its declared type.
	ErrCorruptFile = errors.New("corrupt file")

	// ErrEmptyDocument indicates extraction produced no text.
	ErrEmptyDocument = errors.New("document contains no extractable text")

	// ErrAlreadyProcessing indicates an ingestion pipeline is already running for the document.
	ErrAlreadyProcessing = errors.New("document is already processing")

	// ErrLeaseLost indicates the processing lease was reclaimed by another pipeline.
	ErrLeaseLost = errors.New("processing lease lost")

	// ErrInvalidTransition indicates a lifecycle change not allowed from the current status.
	ErrInvalidTransition = errors.New("invalid document status transition")

	// Index Errors.

	// ErrEmbeddingUnavailable indicates embeddings could not be produced.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrAlreadyIndexed indicates the document already has index entries.
	ErrAlreadyIndexed = errors.New("document already indexed")

	// Question Errors.

	// ErrDocumentNotFound indicates the referenced document does not exist.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrDocumentNotReady indicates the referenced document is not ready for retrieval.
	ErrDocumentNotReady = errors.New("document not ready")

	// ErrRetrievalUnavailable indicates the index or lookup collaborator could not be reached.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrGenerationUnavailable indicates the model runtime failed after retries.
	ErrGenerationUnavailable = errors.New("generation unavailable")

	// ErrBackpressure indicates the generation queue is full.
	ErrBackpressure = errors.New("generation queue full")

	// ErrSessionNotFound indicates the referenced session does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// Provider Errors.

	// ErrLLMUnavailable indicates a transient failure reaching the LLM runtime.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrLookupUnavailable indicates a transient failure reaching the lookup provider.
	ErrLookupUnavailable = errors.New("lookup service unavailable")
)
