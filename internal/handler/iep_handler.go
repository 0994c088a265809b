package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/therapy-api/internal/dto"
	"github.com/noah-isme/therapy-api/internal/service"
	"github.com/noah-isme/therapy-api/internal/utils"
)

// IEPHandler exposes IEP plan routes.
type IEPHandler struct {
	service service.IEPService
	logger  zerolog.Logger
}

// NewIEPHandler constructs the handler.
func NewIEPHandler(service service.IEPService, logger zerolog.Logger) *IEPHandler {
	return &IEPHandler{
		service: service,
		logger:  logger.With().Str("component", "iep_handler").Logger(),
	}
}

// Register attaches plan routes to the router group.
func (h *IEPHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Put("/:id", h.update)
	router.Delete("/:id", h.delete)
}

func (h *IEPHandler) list(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	plans, err := h.service.List(requestContext(c), principal)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "plans retrieved", plans)
}

func (h *IEPHandler) get(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	plan, err := h.service.Get(requestContext(c), principal, idParam(c, "id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "plan retrieved", plan)
}

func (h *IEPHandler) create(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	var payload dto.IEPPlanCreateRequest
	if err := bindMutation(c, principal, &payload); err != nil {
		return respondError(c, h.logger, err)
	}

	plan, err := h.service.Create(requestContext(c), principal, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "plan created", plan)
}

func (h *IEPHandler) update(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	var payload dto.IEPPlanUpdateRequest
	if err := bindMutation(c, principal, &payload); err != nil {
		return respondError(c, h.logger, err)
	}

	plan, err := h.service.Update(requestContext(c), principal, idParam(c, "id"), payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "plan updated", plan)
}

func (h *IEPHandler) delete(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	if err := h.service.Delete(requestContext(c), principal, idParam(c, "id")); err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "plan deleted", nil)
}
