package http

import (
	"strconv"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// chunkPreviewLength bounds chunk content in listings.
const chunkPreviewLength = 500

// QuestionRequest is the body of POST /api/chat/question.
type QuestionRequest struct {
	Question    string `json:"question" validate:"required,max=4000"`
	DocumentID  string `json:"document_id" validate:"omitempty,max=128"`
	SessionID   string `json:"session_id" validate:"omitempty,max=128"`
	UseInternet bool   `json:"use_internet"`
}

// DocumentResponse describes a document.
type DocumentResponse struct {
	ID            string     `json:"id"`
	Filename      string     `json:"filename"`
	FileType      string     `json:"file_type"`
	Size          int64      `json:"size"`
	Status        string     `json:"status"`
	FailureReason string     `json:"failure_reason,omitempty"`
	ChunkCount    int        `json:"chunk_count"`
	CreatedAt     time.Time  `json:"created_at"`
	ReadyAt       *time.Time `json:"ready_at,omitempty"`
}

// DocumentListResponse is a page of documents.
type DocumentListResponse struct {
	Documents []DocumentResponse `json:"documents"`
	Skip      int                `json:"skip"`
	Limit     int                `json:"limit"`
}

// ChunkResponse previews one chunk.
type ChunkResponse struct {
	ID        string `json:"id"`
	Index     int    `json:"index"`
	StartChar int    `json:"start_char"`
	EndChar   int    `json:"end_char"`
	Tokens    int    `json:"tokens,omitempty"`
	Content   string `json:"content"`
}

// SourceResponse is one provenance entry of an answer.
type SourceResponse struct {
	Ref        string  `json:"ref"`
	Kind       string  `json:"kind"`
	DocumentID string  `json:"document_id,omitempty"`
	ChunkID    string  `json:"chunk_id,omitempty"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
	Title      string  `json:"title,omitempty"`
	URL        string  `json:"url,omitempty"`
	Snippet    string  `json:"snippet"`
}

// AnswerResponse is the body returned for a question.
type AnswerResponse struct {
	Answer       string           `json:"answer"`
	Sources      []SourceResponse `json:"sources"`
	SessionID    string           `json:"session_id"`
	DocumentID   string           `json:"document_id,omitempty"`
	Grounded     bool             `json:"grounded"`
	EmptyContext bool             `json:"empty_context"`
	Timestamp    time.Time        `json:"timestamp"`
}

// TurnResponse is one entry of a session history.
type TurnResponse struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	Sources   []SourceResponse `json:"sources,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// HistoryResponse is the log of a session.
type HistoryResponse struct {
	SessionID  string         `json:"session_id"`
	DocumentID string         `json:"document_id,omitempty"`
	Turns      []TurnResponse `json:"turns"`
}

// SummaryResponse carries a document summary.
type SummaryResponse struct {
	DocumentID string `json:"document_id"`
	Summary    string `json:"summary"`
}

// HealthResponse reports collaborator reachability.
type HealthResponse struct {
	Status             string            `json:"status"`
	EmbeddingConnected bool              `json:"embedding_connected"`
	LLMConnected       bool              `json:"llm_connected"`
	EmbeddingModel     string            `json:"embedding_model"`
	LLMModel           string            `json:"llm_model"`
	AvailableModels    []string          `json:"available_models,omitempty"`
	Errors             map[string]string `json:"errors,omitempty"`
}

func toDocumentResponse(d *domain.Document) DocumentResponse {
	return DocumentResponse{
		ID:            d.ID,
		Filename:      d.Filename,
		FileType:      d.FileType,
		Size:          d.Size,
		Status:        d.Status.String(),
		FailureReason: d.FailureReason,
		ChunkCount:    d.ChunkCount,
		CreatedAt:     d.CreatedAt,
		ReadyAt:       d.ReadyAt,
	}
}

func toSources(provenance []domain.Provenance) []SourceResponse {
	out := make([]SourceResponse, len(provenance))
	for i, p := range provenance {
		out[i] = SourceResponse{
			Ref:        strconv.Itoa(i + 1),
			Kind:       string(p.Kind),
			DocumentID: p.DocumentID,
			ChunkID:    p.ChunkID,
			ChunkIndex: p.ChunkIndex,
			Score:      p.Score,
			Title:      p.Title,
			URL:        p.URL,
			Snippet:    p.Snippet,
		}
	}
	return out
}

func preview(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
