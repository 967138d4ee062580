package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure AnswerService implements the interface.
var _ driving.AnswerService = (*AnswerService)(nil)

// SnippetLength bounds provenance previews.
const SnippetLength = 200

// AnswerService routes a question to document retrieval or external lookup,
// assembles bounded context, generates an answer and records the turn pair.
type AnswerService struct {
	docStore driven.DocumentStore
	index    *EmbeddingIndex
	lookup   driven.KnowledgeLookup
	gateway  *GenerationGateway
	sessions *SessionService
	cfg      domain.RetrievalSettings
	now      func() time.Time
}

// NewAnswerService creates a new answer service.
func NewAnswerService(
	docStore driven.DocumentStore,
	index *EmbeddingIndex,
	lookup driven.KnowledgeLookup,
	gateway *GenerationGateway,
	sessions *SessionService,
	cfg domain.RetrievalSettings,
) *AnswerService {
	return &AnswerService{
		docStore: docStore,
		index:    index,
		lookup:   lookup,
		gateway:  gateway,
		sessions: sessions,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Answer answers one question.
//
// If ctx is cancelled while the model is generating, the generation still
// completes but its result is dropped: nothing is appended and ctx.Err() is
// returned.
func (s *AnswerService) Answer(ctx context.Context, req domain.AnswerRequest) (*domain.Answer, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", domain.ErrInvalidInput)
	}

	sessionID := strings.TrimSpace(req.SessionID)
	var session *domain.Session
	if sessionID != "" {
		existing, err := s.sessions.Get(ctx, sessionID)
		switch {
		case err == nil:
			session = existing
		case errors.Is(err, domain.ErrSessionNotFound):
			// Created on commit under the caller's ID.
		default:
			return nil, err
		}
	} else {
		sessionID = uuid.NewString()
	}

	documentID := strings.TrimSpace(req.DocumentID)
	if documentID == "" && !req.UseLookup && session != nil {
		documentID = session.DocumentID
	}
	source := domain.ResolveRetrievalSource(documentID, req.UseLookup)

	boundTo := ""
	if grounded, ok := source.(domain.DocumentGrounded); ok {
		boundTo = grounded.DocumentID
	}

	// A session that switches document starts a fresh retrieval context.
	var history []domain.Turn
	if session != nil && session.DocumentID == boundTo {
		history = session.ContextTurns()
	}

	items, err := s.retrieve(ctx, source, question)
	if err != nil {
		return nil, err
	}
	items = AssembleContext(items, s.cfg.MaxContextChars)

	prompt := driven.PromptUngroundedAnswer
	if _, ok := source.(domain.DocumentGrounded); ok {
		prompt = driven.PromptGroundedAnswer
		if len(items) == 0 {
			prompt = driven.PromptEmptyContext
		}
	}

	asked := s.now().UTC()
	text, err := s.gateway.Generate(ctx, GenerationRequest{
		Prompt:   prompt,
		Context:  items,
		History:  history,
		Question: question,
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		logger.Debug("Discarding answer for abandoned question in session %s", sessionID)
		return nil, ctxErr
	}
	if err != nil {
		return nil, err
	}

	answeredAt := s.now().UTC()
	provenance := make([]domain.Provenance, len(items))
	for i, item := range items {
		provenance[i] = item.Provenance
	}

	turns := []domain.Turn{
		{Role: domain.RoleQuestion, Content: question, CreatedAt: asked},
		{Role: domain.RoleAnswer, Content: text, Provenance: provenance, CreatedAt: answeredAt},
	}
	sessionID, err = s.sessions.Record(ctx, sessionID, boundTo, turns)
	if err != nil {
		return nil, fmt.Errorf("record turns: %w", err)
	}

	return &domain.Answer{
		Text:         text,
		Provenance:   provenance,
		SessionID:    sessionID,
		DocumentID:   boundTo,
		Grounded:     boundTo != "",
		EmptyContext: len(items) == 0,
		AnsweredAt:   answeredAt,
	}, nil
}

// retrieve gathers ranked context items above the confidence floor.
func (s *AnswerService) retrieve(ctx context.Context, source domain.RetrievalSource, question string) ([]domain.ContextItem, error) {
	rctx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	var (
		items []domain.ContextItem
		err   error
	)
	switch src := source.(type) {
	case domain.DocumentGrounded:
		items, err = s.retrieveChunks(rctx, src.DocumentID, question)
	case domain.Ungrounded:
		items, err = s.retrieveExternal(rctx, question)
	default:
		return nil, fmt.Errorf("%w: unknown retrieval source %T", domain.ErrInvalidInput, source)
	}
	if err == nil {
		return items, nil
	}

	// The caller's own cancellation is not a retrieval failure.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if errors.Is(err, domain.ErrDocumentNotFound) || errors.Is(err, domain.ErrDocumentNotReady) {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %w", domain.ErrRetrievalUnavailable, err)
}

func (s *AnswerService) retrieveChunks(ctx context.Context, documentID, question string) ([]domain.ContextItem, error) {
	doc, err := s.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return nil, documentErr(err)
	}
	if !doc.IsRetrievable() {
		return nil, fmt.Errorf("%w: %s is %s", domain.ErrDocumentNotReady, documentID, doc.Status)
	}

	// Another process may have made the document ready since this index was filled.
	if _, err := s.index.EnsureLoaded(ctx, documentID, s.docStore.GetChunks); err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}

	query, err := s.index.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	hits, err := s.index.Search(ctx, documentID, query, s.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	items := make([]domain.ContextItem, 0, len(hits))
	for _, hit := range hits {
		if hit.Score < s.cfg.ConfidenceFloor {
			continue
		}
		items = append(items, domain.ContextItem{
			Text: hit.Chunk.Content,
			Provenance: domain.Provenance{
				Kind:       domain.ProvenanceChunk,
				DocumentID: documentID,
				ChunkID:    hit.Chunk.ID,
				ChunkIndex: hit.Chunk.Index,
				Score:      hit.Score,
				Title:      doc.Filename,
				Snippet:    Snippet(hit.Chunk.Content, SnippetLength),
			},
		})
	}
	logger.Debug("Retrieved %d of %d chunks above floor %.2f", len(items), len(hits), s.cfg.ConfidenceFloor)
	return items, nil
}

func (s *AnswerService) retrieveExternal(ctx context.Context, question string) ([]domain.ContextItem, error) {
	results, err := s.lookup.Lookup(ctx, question, s.cfg.LookupResults)
	if err != nil {
		return nil, fmt.Errorf("lookup: %w", err)
	}

	items := make([]domain.ContextItem, 0, len(results))
	for _, r := range results {
		if r.Score < s.cfg.ConfidenceFloor {
			continue
		}
		items = append(items, domain.ContextItem{
			Text: r.Snippet,
			Provenance: domain.Provenance{
				Kind:    domain.ProvenanceExternal,
				Score:   r.Score,
				Title:   r.Title,
				URL:     r.URL,
				Snippet: Snippet(r.Snippet, SnippetLength),
			},
		})
	}
	logger.Debug("Lookup returned %d results, %d above floor", len(results), len(items))
	return items, nil
}

// AssembleContext keeps the longest prefix of ranked items whose combined
// text fits in maxChars characters and numbers them "1".."n". Items are
// never cut: the lowest-ranked ones are dropped instead. maxChars <= 0
// means no bound.
func AssembleContext(items []domain.ContextItem, maxChars int) []domain.ContextItem {
	out := make([]domain.ContextItem, 0, len(items))
	total := 0
	for _, item := range items {
		size := len([]rune(item.Text))
		if maxChars > 0 && total+size > maxChars {
			break
		}
		total += size
		item.Ref = strconv.Itoa(len(out) + 1)
		out = append(out, item)
	}
	return out
}

// Snippet shortens text to at most n characters, marking the cut with "...".
func Snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
