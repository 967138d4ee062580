package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	previewLength    = 500
)

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question   string `json:"question" jsonschema:"the question to answer"`
	DocumentID string `json:"document_id,omitempty" jsonschema:"ground the answer in this document"`
	SessionID  string `json:"session_id,omitempty" jsonschema:"continue this conversation"`
	UseWeb     bool   `json:"use_web,omitempty" jsonschema:"answer from a web lookup instead of the document"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer       string         `json:"answer"`
	SessionID    string         `json:"session_id"`
	DocumentID   string         `json:"document_id,omitempty"`
	Grounded     bool           `json:"grounded"`
	EmptyContext bool           `json:"empty_context"`
	Sources      []SourceOutput `json:"sources"`
}

// SourceOutput is one cited context item.
type SourceOutput struct {
	Ref        int     `json:"ref"`
	Kind       string  `json:"kind"`
	DocumentID string  `json:"document_id,omitempty"`
	ChunkIndex int     `json:"chunk_index,omitempty"`
	Title      string  `json:"title,omitempty"`
	URL        string  `json:"url,omitempty"`
	Score      float64 `json:"score"`
	Snippet    string  `json:"snippet"`
}

// ListDocumentsInput is the input schema for the list_documents tool.
type ListDocumentsInput struct {
	Skip  int `json:"skip,omitempty" jsonschema:"number of documents to skip"`
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of documents to return (default 20, max 100)"`
}

// ListDocumentsOutput is the output schema for the list_documents tool.
type ListDocumentsOutput struct {
	Documents []DocumentOutput `json:"documents"`
	Count     int              `json:"count"`
}

// DocumentOutput summarises one document.
type DocumentOutput struct {
	ID            string `json:"id"`
	Filename      string `json:"filename"`
	FileType      string `json:"file_type"`
	Status        string `json:"status"`
	ChunkCount    int    `json:"chunk_count"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// DocumentChunksInput is the input schema for the document_chunks tool.
type DocumentChunksInput struct {
	DocumentID string `json:"document_id" jsonschema:"the document whose chunks to list"`
}

// DocumentChunksOutput is the output schema for the document_chunks tool.
type DocumentChunksOutput struct {
	DocumentID string        `json:"document_id"`
	Chunks     []ChunkOutput `json:"chunks"`
}

// ChunkOutput is one chunk with its content preview.
type ChunkOutput struct {
	Index     int    `json:"index"`
	StartChar int    `json:"start_char"`
	EndChar   int    `json:"end_char"`
	Content   string `json:"content"`
}

var errNoDocumentService = errors.New("document service not available")

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from an uploaded document, or from the web when no document is given",
	}, s.handleAsk)

	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "list_documents",
		Description: "List uploaded documents with their processing status",
	}, s.handleListDocuments)

	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "document_chunks",
		Description: "List the indexed chunks of a document",
	}, s.handleDocumentChunks)
}

func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	answer, err := s.ports.Answers.Answer(ctx, domain.AnswerRequest{
		Question:   input.Question,
		DocumentID: input.DocumentID,
		SessionID:  input.SessionID,
		UseLookup:  input.UseWeb,
	})
	if err != nil {
		return nil, AskOutput{}, toolError(err)
	}

	output := AskOutput{
		Answer:       answer.Text,
		SessionID:    answer.SessionID,
		DocumentID:   answer.DocumentID,
		Grounded:     answer.Grounded,
		EmptyContext: answer.EmptyContext,
		Sources:      make([]SourceOutput, len(answer.Provenance)),
	}
	for i, p := range answer.Provenance {
		output.Sources[i] = SourceOutput{
			Ref:        i + 1,
			Kind:       string(p.Kind),
			DocumentID: p.DocumentID,
			ChunkIndex: p.ChunkIndex,
			Title:      p.Title,
			URL:        p.URL,
			Score:      p.Score,
			Snippet:    p.Snippet,
		}
	}
	return nil, output, nil
}

func (s *Server) handleListDocuments(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListDocumentsInput,
) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	if s.ports.Documents == nil {
		return nil, ListDocumentsOutput{}, errNoDocumentService
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)

	docs, err := s.ports.Documents.List(ctx, max(input.Skip, 0), limit)
	if err != nil {
		return nil, ListDocumentsOutput{}, toolError(err)
	}

	output := ListDocumentsOutput{
		Documents: make([]DocumentOutput, len(docs)),
		Count:     len(docs),
	}
	for i := range docs {
		output.Documents[i] = toDocumentOutput(&docs[i])
	}
	return nil, output, nil
}

func (s *Server) handleDocumentChunks(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DocumentChunksInput,
) (*mcp.CallToolResult, DocumentChunksOutput, error) {
	if s.ports.Documents == nil {
		return nil, DocumentChunksOutput{}, errNoDocumentService
	}

	chunks, err := s.ports.Documents.Chunks(ctx, input.DocumentID)
	if err != nil {
		return nil, DocumentChunksOutput{}, toolError(err)
	}

	output := DocumentChunksOutput{
		DocumentID: input.DocumentID,
		Chunks:     make([]ChunkOutput, len(chunks)),
	}
	for i := range chunks {
		output.Chunks[i] = ChunkOutput{
			Index:     chunks[i].Index,
			StartChar: chunks[i].StartChar,
			EndChar:   chunks[i].EndChar,
			Content:   preview(chunks[i].Content, previewLength),
		}
	}
	return nil, output, nil
}

func toDocumentOutput(doc *domain.Document) DocumentOutput {
	return DocumentOutput{
		ID:            doc.ID,
		Filename:      doc.Filename,
		FileType:      doc.FileType,
		Status:        doc.Status.String(),
		ChunkCount:    doc.ChunkCount,
		FailureReason: doc.FailureReason,
	}
}

func preview(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
