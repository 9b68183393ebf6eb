package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/identity"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/logger"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/middleware"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/realtime"
)

// NotificationHandler upgrades /ws/notifications to a websocket that
// streams the caller's events.
type NotificationHandler struct {
	Hub      *realtime.Hub
	Provider identity.Provider
}

// Upgrade authenticates the handshake from ?token= or the session cookie.
func (h *NotificationHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	tok := c.Query("token")
	if tok == "" {
		tok = middleware.TokenFromRequest(c)
	}
	p, err := h.Provider.Authenticate(tok)
	if err != nil {
		return fiber.ErrUnauthorized
	}

	c.Locals("principal", p)
	return c.Next()
}

func (h *NotificationHandler) Serve() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		p, ok := conn.Locals("principal").(identity.Principal)
		if !ok {
			_ = conn.Close()
			return
		}

		logger.Debug("websocket connected", "user_id", p.ID)
		client := realtime.NewClient(p.ID, realtime.NewWebSocketConn(conn))
		realtime.Serve(h.Hub, client)
		logger.Debug("websocket disconnected", "user_id", p.ID)
	})
}
