package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/therapy-api/internal/dto"
	"github.com/noah-isme/therapy-api/internal/service"
	"github.com/noah-isme/therapy-api/internal/utils"
	"github.com/noah-isme/therapy-api/internal/validation"
)

// ActivityHandler exposes the audit log to system administrators.
type ActivityHandler struct {
	service service.ActivityService
	logger  zerolog.Logger
}

// NewActivityHandler constructs the handler.
func NewActivityHandler(service service.ActivityService, logger zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{
		service: service,
		logger:  logger.With().Str("component", "activity_handler").Logger(),
	}
}

// Register attaches activity log routes to the router group.
func (h *ActivityHandler) Register(router fiber.Router) {
	router.Get("", h.list)
}

func (h *ActivityHandler) list(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	page, err := parseQueryInt(c, "page")
	if err != nil {
		return respondError(c, h.logger, validation.FieldError("page", "page must be a number"))
	}

	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return respondError(c, h.logger, validation.FieldError("page_size", "page_size must be a number"))
	}

	req := dto.ActivityListRequest{
		Page:       page,
		PageSize:   pageSize,
		Action:     strings.TrimSpace(c.Query("action")),
		EntityType: strings.TrimSpace(c.Query("entity_type")),
	}

	filters := []struct {
		param  string
		target **uuid.UUID
	}{
		{"actor_id", &req.ActorID},
		{"entity_id", &req.EntityID},
		{"student_id", &req.StudentID},
	}
	for _, f := range filters {
		id, err := optionalQueryUUID(c, f.param)
		if err != nil {
			return respondError(c, h.logger, err)
		}
		*f.target = id
	}

	response, err := h.service.List(requestContext(c), principal, req)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.OK(c, response.Items, "activity logs", response.Pagination)
}

func optionalQueryUUID(c *fiber.Ctx, param string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(c.Query(param))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, validation.FieldError(param, param+" must be a valid UUID")
	}
	return &id, nil
}
