// Package server exposes the pipeline stages over HTTP. Each POST endpoint
// runs one stage synchronously and reports its tally; stage failures
// surface as a 500 with the error message.
package server

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// StageResult is the normalized tally every stage reports.
type StageResult struct {
	Processed int      `json:"processed"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// StageRequest is the optional JSON body accepted by stage endpoints.
type StageRequest struct {
	// Language overrides the configured transcription locale for this run.
	Language string `json:"language" validate:"omitempty,alpha,len=2"`
}

// StageFunc runs one pipeline stage.
type StageFunc func(ctx context.Context, req StageRequest) (StageResult, error)

// Runners holds the stage entry points the server dispatches to.
type Runners struct {
	ProcessVideos    StageFunc
	TranscriptAudio  StageFunc
	GenerateMarkdown StageFunc
	InsertWiki       StageFunc
}

// Server is the HTTP surface of the pipeline.
type Server struct {
	app      *fiber.App
	runners  Runners
	validate *validator.Validate
	log      *logrus.Logger
	port     int
}

// New builds the fiber app and registers routes.
func New(runners Runners, port int, log *logrus.Logger) *Server {
	s := &Server{
		app:      fiber.New(fiber.Config{DisableStartupMessage: true}),
		runners:  runners,
		validate: validator.New(),
		log:      log,
		port:     port,
	}

	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	s.app.Post("/process-videos", s.stageHandler("process-videos", runners.ProcessVideos))
	s.app.Post("/transcript-audio", s.stageHandler("transcript-audio", runners.TranscriptAudio))
	s.app.Post("/generate-md", s.stageHandler("generate-md", runners.GenerateMarkdown))
	s.app.Post("/insert-wikijs", s.stageHandler("insert-wikijs", runners.InsertWiki))

	return s
}

// stageHandler adapts a StageFunc to a fiber handler.
func (s *Server) stageHandler(stage string, run StageFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		log := s.log.WithFields(logrus.Fields{
			"stage":   stage,
			"request": uuid.NewString(),
		})

		var req StageRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": fmt.Sprintf("invalid request body: %v", err),
				})
			}
			if err := s.validate.Struct(req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": fmt.Sprintf("validation failed: %v", err),
				})
			}
		}

		log.Info("stage started")
		result, err := run(c.UserContext(), req)
		if err != nil {
			log.Errorf("stage failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		log.WithFields(logrus.Fields{
			"processed": result.Processed,
			"succeeded": result.Succeeded,
			"failed":    result.Failed,
		}).Info("stage finished")

		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":    "ok",
			"message":   fmt.Sprintf("%s completed", stage),
			"processed": result.Processed,
			"succeeded": result.Succeeded,
			"failed":    result.Failed,
			"errors":    result.Errors,
		})
	}
}

// Listen serves until Shutdown is called.
func (s *Server) Listen() error {
	s.log.WithField("port", s.port).Info("http server listening")
	return s.app.Listen(fmt.Sprintf(":%d", s.port))
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the underlying fiber app (for testing).
func (s *Server) App() *fiber.App {
	return s.app
}
