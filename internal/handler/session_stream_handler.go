package handler

import (
	"strings"

	"property-insight-be/internal/pkg/logger"
	internalWS "property-insight-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type SessionStreamHandler struct {
	hub    *internalWS.Hub
	logger logger.ILogger
}

func NewSessionStreamHandler(hub *internalWS.Hub, log logger.ILogger) *SessionStreamHandler {
	return &SessionStreamHandler{
		hub:    hub,
		logger: log,
	}
}

// ServeWs upgrades the request and streams the session's poll updates.
func (h *SessionStreamHandler) ServeWs(c *fiber.Ctx) error {
	// Params are only valid for the lifetime of the handler.
	sessionID := strings.Clone(strings.TrimSpace(c.Params("sessionId")))
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing sessionId"})
	}

	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.logger.Info("SessionStreamHandler", "Starting session stream", map[string]interface{}{"session_id": sessionID})
			internalWS.ServeWs(h.hub, conn, sessionID)
			h.logger.Info("SessionStreamHandler", "Session stream ended", map[string]interface{}{"session_id": sessionID})
		})(c)
	}
	return fiber.ErrUpgradeRequired
}

func (h *SessionStreamHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/ws/session/:sessionId", h.ServeWs)
}
