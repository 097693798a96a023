package server

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/fundsync-dev/fundsync/internal/forward"
	"github.com/fundsync-dev/fundsync/internal/ingest"
	"github.com/fundsync-dev/fundsync/internal/model"
)

// InstallRouter registers every route on app.
func (s *Server) InstallRouter(app *fiber.App) {
	v1 := app.Group("/v1")
	v1.Post("/notifications", s.handlePostNotification)
	v1.Get("/events", s.handleListEvents)
	v1.Post("/events", s.handleAddEvent)
	v1.Delete("/events", s.handleClearEvents)
	v1.Get("/auth/status", s.handleAuthStatus)

	app.Get("/oauth/callback", s.handleOAuthCallback)
}

type notificationRequest struct {
	Originator string `json:"originator"`
	Text       string `json:"text"`
}

type manualEventRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Sender string          `json:"sender"`
}

type eventsResponse struct {
	Version uint64               `json:"version"`
	Events  []model.PaymentEvent `json:"events"`
}

func (s *Server) handlePostNotification(c *fiber.Ctx) error {
	var req notificationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid notification body")
	}
	if strings.TrimSpace(req.Originator) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "originator is required")
	}

	result := s.pipeline.Ingest(req.Originator, req.Text)
	status := fiber.StatusOK
	switch result {
	case ingest.Forwarding:
		status = fiber.StatusAccepted
	case ingest.Recorded:
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"result": result.String()})
}

func (s *Server) handleListEvents(c *fiber.Ctx) error {
	snap := s.history.Snapshot()
	events := snap.Events
	if limit := c.QueryInt("limit", 0); limit > 0 && limit < len(events) {
		events = events[:limit]
	}
	if events == nil {
		events = []model.PaymentEvent{}
	}
	return c.JSON(eventsResponse{Version: snap.Version, Events: events})
}

func (s *Server) handleAddEvent(c *fiber.Ctx) error {
	var req manualEventRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid event body")
	}
	if !req.Amount.IsPositive() {
		return fiber.NewError(fiber.StatusBadRequest, "amount must be positive")
	}
	ev := s.pipeline.AddManual(req.Amount, req.Sender)
	return c.Status(fiber.StatusCreated).JSON(ev)
}

func (s *Server) handleClearEvents(c *fiber.Ctx) error {
	if err := s.history.Clear(); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleAuthStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"authenticated": s.auth.IsAuthenticated()})
}

func (s *Server) handleOAuthCallback(c *fiber.Ctx) error {
	code, err := forward.CodeFromQuery(c.Query("code"), c.Query("error"))
	if err != nil {
		s.logger.Warn("oauth callback rejected", "error", err)
		if errors.Is(err, forward.ErrAuthorizationDenied) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "authorization_failed", "message": err.Error()})
		}
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := s.auth.CompleteAuth(code, c.Query("state")); err != nil {
		if errors.Is(err, forward.ErrStateMismatch) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_state", "message": err.Error()})
		}
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"message": "authorization code received, exchanging for tokens"})
}
