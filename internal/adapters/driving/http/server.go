// Package http exposes the document question-answering services over a
// JSON API built on fiber.
package http

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ports holds the services the API calls.
type Ports struct {
	Documents driving.DocumentService
	Answers   driving.AnswerService
	Summaries driving.SummaryService
	Sessions  driving.SessionService
	Health    driving.HealthService
}

// Config holds server options.
type Config struct {
	// BodyLimit caps request bodies in bytes. Zero keeps fiber's default.
	BodyLimit int
	// ReadTimeout bounds reading a request. Zero means no limit.
	ReadTimeout time.Duration
}

// Server is the HTTP API.
type Server struct {
	app   *fiber.App
	ports Ports

	// background tracks processing started by uploads.
	background sync.WaitGroup
}

// New creates a server and registers its routes.
func New(ports Ports, cfg Config) *Server {
	s := &Server{ports: ports}
	s.app = fiber.New(fiber.Config{
		AppName:               "docqa",
		ErrorHandler:          ErrorHandler,
		BodyLimit:             cfg.BodyLimit,
		ReadTimeout:           cfg.ReadTimeout,
		DisableStartupMessage: true,
	})
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.app.Group("/api")

	documents := api.Group("/documents")
	documents.Post("/", s.handleUpload)
	documents.Get("/", s.handleListDocuments)
	documents.Get("/:id", s.handleGetDocument)
	documents.Get("/:id/chunks", s.handleChunks)
	documents.Post("/:id/process", s.handleProcess)
	documents.Post("/:id/summary", s.handleSummary)
	documents.Delete("/:id", s.handleDeleteDocument)

	chat := api.Group("/chat")
	chat.Post("/question", s.handleQuestion)
	chat.Get("/history/:session_id", s.handleHistory)
	chat.Delete("/history/:session_id", s.handleDeleteHistory)

	api.Get("/health", s.handleHealth)
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until ctx is cancelled, then shuts down and waits
// for background processing to finish.
func (s *Server) Listen(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Listening on %s", addr)
		errCh <- s.app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if err := s.Shutdown(); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight work.
func (s *Server) Shutdown() error {
	err := s.app.Shutdown()
	s.background.Wait()
	return err
}

// Wait blocks until background processing has finished.
func (s *Server) Wait() {
	s.background.Wait()
}

// processAsync processes a document detached from the request lifetime.
func (s *Server) processAsync(ctx context.Context, documentID string) {
	ctx = context.WithoutCancel(ctx)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		doc, err := s.ports.Documents.Process(ctx, documentID)
		if err != nil {
			logger.Warn("Background processing of %s failed: %v", documentID, err)
			return
		}
		logger.Info("Document %s is %s", doc.ID, doc.Status)
	}()
}
