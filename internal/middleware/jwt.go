package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/therapy-api/internal/access"
	"github.com/noah-isme/therapy-api/internal/auth"
	"github.com/noah-isme/therapy-api/internal/utils"
)

// PrincipalKey is the locals key holding the authenticated access.Principal.
const PrincipalKey = "principal"

// TokenResolver turns a bearer token into the authenticated principal.
type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (access.Principal, error)
}

// JWTProtected returns a middleware that requires a valid bearer token in the
// Authorization header.
func JWTProtected(resolver TokenResolver) fiber.Handler {
	return authenticate(resolver, false)
}

// WebsocketProtected behaves like JWTProtected but also accepts the token via
// the "token" query parameter, since browsers cannot set headers on upgrades.
func WebsocketProtected(resolver TokenResolver) fiber.Handler {
	return authenticate(resolver, true)
}

func authenticate(resolver TokenResolver, allowQuery bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c)
		if !ok && allowQuery {
			token = strings.TrimSpace(c.Query("token"))
			ok = token != ""
		}
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		principal, err := resolver.ResolveToken(c.UserContext(), token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
			}
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to authenticate request")
		}

		c.Locals(PrincipalKey, principal)
		c.Locals("user_id", principal.UserID.String())
		c.Locals("user_role", principal.Role.String())

		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	authorization := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if authorization == "" {
		return "", false
	}

	const bearer = "bearer "
	if len(authorization) <= len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(authorization[len(bearer):])
	return token, token != ""
}

// PrincipalFrom returns the principal stored by JWTProtected.
func PrincipalFrom(c *fiber.Ctx) (access.Principal, bool) {
	principal, ok := c.Locals(PrincipalKey).(access.Principal)
	if !ok || principal.IsZero() {
		return access.Principal{}, false
	}
	return principal, true
}
