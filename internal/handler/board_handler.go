package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/syncboard-api/internal/middleware"
	"github.com/noah-isme/syncboard-api/internal/service"
)

// BoardHandler wires the realtime board channel including the websocket
// upgrade.
type BoardHandler struct {
	hub    *service.BoardHub
	logger zerolog.Logger
}

// NewBoardHandler creates a board handler instance.
func NewBoardHandler(hub *service.BoardHub, logger zerolog.Logger) *BoardHandler {
	return &BoardHandler{
		hub:    hub,
		logger: logger.With().Str("component", "board_handler").Logger(),
	}
}

// Register binds the websocket route under the provided router group.
func (h *BoardHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			ctx := c.UserContext()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
			c.Locals("request_ctx", ctx)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *BoardHandler) handleConnection(conn *websocket.Conn) {
	userID := websocketUserID(conn)
	if userID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusUnauthorized, "user id missing"))
		_ = conn.Close()
		return
	}

	username := fmt.Sprint(conn.Locals("username"))
	correlation := fmt.Sprint(conn.Locals("correlation_id"))
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)

	opts := service.SessionOptions{
		UserID:        userID,
		Username:      username,
		CorrelationID: correlation,
		Context:       baseCtx,
	}

	h.logger.Info().Uint("user_id", userID).Msg("board session connected")
	h.hub.ServeConnection(conn, opts)
	h.logger.Info().Uint("user_id", userID).Msg("board session disconnected")
}

func websocketUserID(conn *websocket.Conn) uint {
	if value := conn.Locals("user_id"); value != nil {
		switch v := value.(type) {
		case uint:
			return v
		case int:
			if v > 0 {
				return uint(v)
			}
		case float64:
			if v > 0 {
				return uint(v)
			}
		case string:
			trimmed := strings.TrimSpace(v)
			var parsed uint
			if _, err := fmt.Sscanf(trimmed, "%d", &parsed); err == nil {
				return parsed
			}
		}
	}
	return 0
}
