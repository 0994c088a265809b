package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/therapy-api/internal/dto"
	"github.com/noah-isme/therapy-api/internal/service"
	"github.com/noah-isme/therapy-api/internal/utils"
)

// SessionHandler exposes therapy session routes.
type SessionHandler struct {
	service service.SessionService
	logger  zerolog.Logger
}

// NewSessionHandler constructs the handler.
func NewSessionHandler(service service.SessionService, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		service: service,
		logger:  logger.With().Str("component", "session_handler").Logger(),
	}
}

// Register attaches session routes to the router group.
func (h *SessionHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Put("/:id", h.update)
}

func (h *SessionHandler) list(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	sessions, err := h.service.List(requestContext(c), principal)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "sessions retrieved", sessions)
}

func (h *SessionHandler) create(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	var payload dto.SessionCreateRequest
	if err := bindMutation(c, principal, &payload); err != nil {
		return respondError(c, h.logger, err)
	}

	session, err := h.service.Create(requestContext(c), principal, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "session created", session)
}

func (h *SessionHandler) update(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	var payload dto.SessionUpdateRequest
	if err := bindMutation(c, principal, &payload); err != nil {
		return respondError(c, h.logger, err)
	}

	session, err := h.service.Update(requestContext(c), principal, idParam(c, "id"), payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "session updated", session)
}
