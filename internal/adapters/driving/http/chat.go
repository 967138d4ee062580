package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

func (s *Server) handleQuestion(c *fiber.Ctx) error {
	var req QuestionRequest
	if err := c.BodyParser(&req); err != nil {
		return NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validateStruct(req); err != nil {
		return err
	}

	answer, err := s.ports.Answers.Answer(c.UserContext(), domain.AnswerRequest{
		Question:   req.Question,
		DocumentID: req.DocumentID,
		SessionID:  req.SessionID,
		UseLookup:  req.UseInternet,
	})
	if err != nil {
		return err
	}

	return c.JSON(AnswerResponse{
		Answer:       answer.Text,
		Sources:      toSources(answer.Provenance),
		SessionID:    answer.SessionID,
		DocumentID:   answer.DocumentID,
		Grounded:     answer.Grounded,
		EmptyContext: answer.EmptyContext,
		Timestamp:    answer.AnsweredAt,
	})
}

func (s *Server) handleHistory(c *fiber.Ctx) error {
	session, err := s.ports.Sessions.Get(c.UserContext(), c.Params("session_id"))
	if err != nil {
		return err
	}
	turns := make([]TurnResponse, len(session.Turns))
	for i, t := range session.Turns {
		turns[i] = TurnResponse{
			Role:      string(t.Role),
			Content:   t.Content,
			CreatedAt: t.CreatedAt,
		}
		if len(t.Provenance) > 0 {
			turns[i].Sources = toSources(t.Provenance)
		}
	}
	return c.JSON(HistoryResponse{
		SessionID:  session.ID,
		DocumentID: session.DocumentID,
		Turns:      turns,
	})
}

func (s *Server) handleDeleteHistory(c *fiber.Ctx) error {
	if err := s.ports.Sessions.Delete(c.UserContext(), c.Params("session_id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
