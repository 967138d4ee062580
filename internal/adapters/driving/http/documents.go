package http

import (
	"fmt"
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func (s *Server) handleUpload(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return NewError(fiber.StatusBadRequest, "multipart field \"file\" is required")
	}
	f, err := header.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}

	doc, err := s.ports.Documents.Upload(c.UserContext(), domain.UploadRequest{
		Filename: header.Filename,
		Content:  content,
	})
	if err != nil {
		return err
	}

	if c.QueryBool("process", true) {
		s.processAsync(c.UserContext(), doc.ID)
	}
	return c.Status(fiber.StatusCreated).JSON(toDocumentResponse(doc))
}

func (s *Server) handleListDocuments(c *fiber.Ctx) error {
	skip := c.QueryInt("skip", 0)
	limit := c.QueryInt("limit", defaultPageSize)
	if skip < 0 || limit < 1 || limit > maxPageSize {
		return NewError(fiber.StatusBadRequest, fmt.Sprintf("skip must be >= 0 and limit between 1 and %d", maxPageSize))
	}

	docs, err := s.ports.Documents.List(c.UserContext(), skip, limit)
	if err != nil {
		return err
	}
	out := make([]DocumentResponse, len(docs))
	for i := range docs {
		out[i] = toDocumentResponse(&docs[i])
	}
	return c.JSON(DocumentListResponse{Documents: out, Skip: skip, Limit: limit})
}

func (s *Server) handleGetDocument(c *fiber.Ctx) error {
	doc, err := s.ports.Documents.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(toDocumentResponse(doc))
}

func (s *Server) handleChunks(c *fiber.Ctx) error {
	chunks, err := s.ports.Documents.Chunks(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	out := make([]ChunkResponse, len(chunks))
	for i, ch := range chunks {
		out[i] = ChunkResponse{
			ID:        ch.ID,
			Index:     ch.Index,
			StartChar: ch.StartChar,
			EndChar:   ch.EndChar,
			Tokens:    ch.Tokens,
			Content:   preview(ch.Content, chunkPreviewLength),
		}
	}
	return c.JSON(out)
}

func (s *Server) handleProcess(c *fiber.Ctx) error {
	doc, err := s.ports.Documents.Process(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(toDocumentResponse(doc))
}

func (s *Server) handleSummary(c *fiber.Ctx) error {
	if s.ports.Summaries == nil {
		return NewError(fiber.StatusNotImplemented, "summaries are not configured")
	}
	id := c.Params("id")
	summary, err := s.ports.Summaries.Summarise(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(SummaryResponse{DocumentID: id, Summary: summary})
}

func (s *Server) handleDeleteDocument(c *fiber.Ctx) error {
	if err := s.ports.Documents.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
