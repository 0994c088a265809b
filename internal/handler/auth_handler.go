package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/therapy-api/internal/dto"
	"github.com/noah-isme/therapy-api/internal/service"
	"github.com/noah-isme/therapy-api/internal/utils"
)

// AuthHandler wires signup, signin and profile routes.
type AuthHandler struct {
	service service.AuthService
	logger  zerolog.Logger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(service service.AuthService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		logger:  logger.With().Str("component", "auth_handler").Logger(),
	}
}

// Register attaches auth routes. The limiter guards the credential routes and
// authenticate guards /me.
func (h *AuthHandler) Register(router fiber.Router, limiter, authenticate fiber.Handler) {
	router.Post("/signup", limiter, h.signup)
	router.Post("/signin", limiter, h.signin)
	router.Get("/me", authenticate, h.me)
}

func (h *AuthHandler) signup(c *fiber.Ctx) error {
	var payload dto.SignupRequest
	if err := bind(c, &payload); err != nil {
		return respondError(c, h.logger, err)
	}

	response, err := h.service.Signup(requestContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "account created", response)
}

func (h *AuthHandler) signin(c *fiber.Ctx) error {
	var payload dto.SigninRequest
	if err := bind(c, &payload); err != nil {
		return respondError(c, h.logger, err)
	}

	response, err := h.service.Signin(requestContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "signed in", response)
}

func (h *AuthHandler) me(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	profile, err := h.service.Me(requestContext(c), principal)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "profile retrieved", profile)
}
