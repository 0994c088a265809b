package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/therapy-api/internal/access"
	"github.com/noah-isme/therapy-api/internal/auth"
	"github.com/noah-isme/therapy-api/internal/middleware"
	"github.com/noah-isme/therapy-api/internal/service"
	"github.com/noah-isme/therapy-api/internal/utils"
	"github.com/noah-isme/therapy-api/internal/validation"
	"github.com/noah-isme/therapy-api/pkg/ai"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

// idParam parses a uuid path parameter. A malformed id cannot match any row,
// so it resolves to uuid.Nil and the service reports not found.
func idParam(c *fiber.Ctx, key string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(c.Params(key)))
	if err != nil {
		return uuid.Nil
	}
	return id
}

func principalFrom(c *fiber.Ctx) (access.Principal, error) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		return access.Principal{}, service.ErrUnauthenticated
	}
	return principal, nil
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// bindMutation decodes a request body for a mutating route. Roles that may not
// mutate are rejected before the body is looked at.
func bindMutation(c *fiber.Ctx, principal access.Principal, target interface{}) error {
	if !access.CanMutate(principal.Role) {
		return service.ErrForbidden
	}
	return bind(c, target)
}

func bind(c *fiber.Ctx, target interface{}) error {
	if err := c.BodyParser(target); err != nil {
		return validation.Invalid("invalid request body")
	}
	return nil
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.CorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

// respondError maps service errors onto the response envelope.
func respondError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	var invalid *validation.Error
	switch {
	case errors.As(err, &invalid):
		if len(invalid.Fields) == 0 {
			return utils.Fail(c, fiber.StatusBadRequest, invalid.Message, nil)
		}
		return utils.Fail(c, fiber.StatusBadRequest, invalid.Message, invalid.Fields)
	case errors.Is(err, service.ErrInvalidCredentials):
		return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrInvalidToken):
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	case errors.Is(err, service.ErrForbidden):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrStudentNotFound),
		errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrPlanNotFound),
		errors.Is(err, service.ErrProfileNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrEmailTaken):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, ai.ErrUpstream):
		requestLogger(logger, c).Warn().Err(err).Msg("ai upstream failed")
		return utils.SendError(c, fiber.StatusBadGateway, "ai service unavailable")
	default:
		requestLogger(logger, c).Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
