package http

import "github.com/gofiber/fiber/v2"

func (s *Server) handleHealth(c *fiber.Ctx) error {
	status := s.ports.Health.Check(c.UserContext())

	resp := HealthResponse{
		Status:             "healthy",
		EmbeddingConnected: status.EmbeddingConnected,
		LLMConnected:       status.LLMConnected,
		EmbeddingModel:     status.EmbeddingModel,
		LLMModel:           status.LLMModel,
		AvailableModels:    status.AvailableModels,
		Errors:             status.Errors,
	}
	code := fiber.StatusOK
	if !status.Healthy() {
		resp.Status = "degraded"
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(resp)
}
