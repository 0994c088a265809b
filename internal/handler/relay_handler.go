package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/therapy-api/internal/access"
	"github.com/noah-isme/therapy-api/internal/middleware"
	"github.com/noah-isme/therapy-api/internal/observability"
	"github.com/noah-isme/therapy-api/internal/service"
)

// RelayHandler upgrades authenticated requests to relay websockets.
type RelayHandler struct {
	service service.RelayService
	logger  zerolog.Logger
}

// NewRelayHandler creates a relay handler instance.
func NewRelayHandler(service service.RelayService, logger zerolog.Logger) *RelayHandler {
	return &RelayHandler{
		service: service,
		logger:  logger.With().Str("component", "relay_handler").Logger(),
	}
}

// Register binds the websocket route. authenticate must run before the upgrade
// so unauthenticated clients get a plain 401.
func (h *RelayHandler) Register(router fiber.Router, authenticate fiber.Handler) {
	router.Use("/ws", authenticate, func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		ctx := observability.WithCorrelation(context.Background(), middleware.CorrelationID(c))
		c.Locals("request_ctx", ctx)
		return c.Next()
	})

	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *RelayHandler) handleConnection(conn *websocket.Conn) {
	principal, ok := conn.Locals(middleware.PrincipalKey).(access.Principal)
	if !ok || principal.IsZero() {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication required"))
		_ = conn.Close()
		return
	}

	baseCtx, _ := conn.Locals("request_ctx").(context.Context)
	correlation, _ := conn.Locals("correlation_id").(string)

	opts := service.RelayConnectionOptions{
		Principal:     principal,
		CorrelationID: correlation,
		Context:       baseCtx,
	}

	logger := h.logger.With().Str("user_id", principal.UserID.String()).Str("correlation_id", correlation).Logger()
	logger.Info().Msg("relay websocket connected")
	h.service.ServeConnection(conn, opts)
	logger.Info().Msg("relay websocket disconnected")
}
