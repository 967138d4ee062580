package domain

import "time"

// RetrievalSource says where the context for a question comes from.
// It has exactly two variants: DocumentGrounded and Ungrounded.
type RetrievalSource interface {
	retrievalSource()
}

// DocumentGrounded retrieves context from one ready document's chunks.
type DocumentGrounded struct {
	DocumentID string
}

// Ungrounded retrieves context from the external knowledge lookup.
type Ungrounded struct{}

func (DocumentGrounded) retrievalSource() {}
func (Ungrounded) retrievalSource()       {}

// ResolveRetrievalSource picks the variant for a question.
// An empty documentID or useLookup selects Ungrounded.
func ResolveRetrievalSource(documentID string, useLookup bool) RetrievalSource {
	if documentID == "" || useLookup {
		return Ungrounded{}
	}
	return DocumentGrounded{DocumentID: documentID}
}

// LookupResult is one record returned by the external knowledge lookup.
type LookupResult struct {
	Title   string
	URL     string
	Snippet string

	// Score is the provider's relevance in [0, 1]. Providers without a
	// relevance signal report 1.
	Score float64
}

// ContextItem is one unit of context fed to generation.
type ContextItem struct {
	// Ref is the stable identifier shown to the model, e.g. "1".
	Ref string

	// Text is the item body.
	Text string

	// Provenance describes where Text came from.
	Provenance Provenance
}

// AnswerRequest is a question with optional document and session.
type AnswerRequest struct {
	// Question is the natural-language question. Required.
	Question string

	// DocumentID selects a document to ground the answer in.
	DocumentID string

	// SessionID continues an existing session. Empty starts a new one.
	SessionID string

	// UseLookup forces the external lookup even when a document is selected.
	UseLookup bool
}

// Answer is the result of a question.
type Answer struct {
	// Text is the generated answer.
	Text string

	// Provenance lists context items in the order they were fed to generation.
	Provenance []Provenance

	// SessionID is the session the turn pair was appended to.
	SessionID string

	// DocumentID is the document the answer was grounded in, empty when ungrounded.
	DocumentID string

	// Grounded is true when context came from a document.
	Grounded bool

	// EmptyContext is true when no context item survived the confidence floor.
	EmptyContext bool

	// AnsweredAt is when generation finished.
	AnsweredAt time.Time
}

// UploadRequest carries a file for ingestion.
type UploadRequest struct {
	// Filename is the original file name. Required.
	Filename string

	// FileType is the declared type; derived from Filename when empty.
	FileType string

	// Content is the raw file bytes.
	Content []byte
}
