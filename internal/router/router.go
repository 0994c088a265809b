package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/therapy-api/internal/access"
	"github.com/noah-isme/therapy-api/internal/config"
	"github.com/noah-isme/therapy-api/internal/handler"
	"github.com/noah-isme/therapy-api/internal/middleware"
	"github.com/noah-isme/therapy-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler     *handler.AuthHandler
	StudentHandler  *handler.StudentHandler
	SessionHandler  *handler.SessionHandler
	IEPHandler      *handler.IEPHandler
	AnalysisHandler *handler.AnalysisHandler
	RelayHandler    *handler.RelayHandler
	ActivityHandler *handler.ActivityHandler
	HealthProbes    []handler.HealthProbe
	Resolver        middleware.TokenResolver
	AuthLimiter     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	health := handler.HealthCheck(cfg, deps.HealthProbes...)
	app.Get("/health", health)
	app.Get("/metrics", observability.MetricsHandler())

	v1 := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	v1.Get("/health", health)

	if deps.Resolver == nil {
		return
	}

	authenticate := middleware.JWTProtected(deps.Resolver)
	limiter := deps.AuthLimiter
	if limiter == nil {
		limiter = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.AuthHandler != nil {
		deps.AuthHandler.Register(app.Group("/api/auth"), limiter, authenticate)
	}

	if deps.StudentHandler != nil {
		deps.StudentHandler.Register(app.Group("/api/students", authenticate))
	}

	if deps.SessionHandler != nil {
		deps.SessionHandler.Register(app.Group("/api/sessions", authenticate))
	}

	if deps.IEPHandler != nil {
		deps.IEPHandler.Register(app.Group("/api/iep/plans", authenticate))
	}

	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.Register(app.Group("/api/ai", authenticate))
	}

	if deps.ActivityHandler != nil {
		admin := app.Group("/api/admin", authenticate, middleware.RequireRole(access.RoleSystemAdmin))
		deps.ActivityHandler.Register(admin.Group("/activity"))
	}

	if deps.RelayHandler != nil {
		deps.RelayHandler.Register(app.Group("/api/realtime"), middleware.WebsocketProtected(deps.Resolver))
	}
}
