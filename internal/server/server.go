// Package server exposes the ingestion pipeline and event history over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/shopspring/decimal"

	"github.com/fundsync-dev/fundsync/internal/history"
	"github.com/fundsync-dev/fundsync/internal/ingest"
	"github.com/fundsync-dev/fundsync/internal/model"
)

// Pipeline is the part of ingest.Pipeline the server drives.
type Pipeline interface {
	Ingest(originator, text string) ingest.Result
	AddManual(amount decimal.Decimal, sender string) model.PaymentEvent
}

// History is the part of history.Store the server reads and clears.
type History interface {
	Snapshot() history.Snapshot
	Clear() error
}

// Auth is the part of forward.Forwarder behind the auth routes.
type Auth interface {
	IsAuthenticated() bool
	CompleteAuth(code, state string) error
}

// Server wraps a fiber app with the fundsync routes installed.
type Server struct {
	app      *fiber.App
	pipeline Pipeline
	history  History
	auth     Auth
	logger   *slog.Logger
}

// New builds a Server. A nil logger uses slog.Default().
func New(p Pipeline, h History, a Auth, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		pipeline: p,
		history:  h,
		auth:     a,
		logger:   logger,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "fundsync",
		BodyLimit:             64 * 1024,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(recover.New(), s.logRequests)
	s.InstallRouter(s.app)
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.logger.Info("http server listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for open requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.Debug("http request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration", time.Since(start),
	)
	return err
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("http handler failed", "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": errorKey(code), "message": err.Error()})
}

func errorKey(code int) string {
	switch code {
	case fiber.StatusBadRequest:
		return "bad_request"
	case fiber.StatusNotFound:
		return "not_found"
	case fiber.StatusMethodNotAllowed:
		return "method_not_allowed"
	case fiber.StatusRequestEntityTooLarge:
		return "request_too_large"
	default:
		return "internal_server_error"
	}
}
