package rest

import (
	"chat-room/errors"
	"chat-room/services"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// IdentityHeader carries the acting participant name on every message and status call.
const IdentityHeader = "User"

// ResponseRecorder is satisfied by *observability.Monitoring.
type ResponseRecorder interface {
	RecordResponse(status int)
}

type Server struct {
	presence services.IPresenceService
	messages services.IMessageService
	log      *slog.Logger
}

// NewApp builds the HTTP surface of the room. recorder may be nil.
func NewApp(
	log *slog.Logger,
	presence services.IPresenceService,
	messages services.IMessageService,
	recorder ResponseRecorder) *fiber.App {
	s := &Server{presence: presence, messages: messages, log: log}

	app := fiber.New(fiber.Config{
		AppName:               "chat-room",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	app.Use(cors.New())
	app.Use(accessLog(log, recorder))
	app.Use(recover.New())

	app.Post("/participants", s.register)
	app.Get("/participants", s.listParticipants)
	app.Post("/messages", s.postMessage)
	app.Get("/messages", s.listMessages)
	app.Get("/messages/search", s.searchMessages)
	app.Post("/status", s.heartbeat)
	return app
}

// handleError turns the error taxonomy into status codes. Validation failures
// carry the list of violations, the others have no body.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if stderrors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
	}

	status := errors.HTTPStatus(err)
	switch status {
	case http.StatusUnprocessableEntity:
		return c.Status(status).JSON(errors.Violations(err))
	case http.StatusInternalServerError:
		s.log.Error("Request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.SendStatus(status)
}

// accessLog resolves the final status itself so failed requests are logged and
// counted with the code the client actually receives.
func accessLog(log *slog.Logger, recorder ResponseRecorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		if chainErr := c.Next(); chainErr != nil {
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		if recorder != nil {
			recorder.RecordResponse(status)
		}
		log.Debug("HTTP request",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"user", c.Get(IdentityHeader),
			"duration", time.Since(start))
		return nil
	}
}
