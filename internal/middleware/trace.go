package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/therapy-api/internal/observability"
)

// CorrelationHeader carries the request correlation id in both directions.
const CorrelationHeader = "X-Correlation-ID"

const correlationLocal = "correlation_id"

// Trace assigns every request a correlation id and, for /api routes, records
// request metrics and one log line once the handler chain has returned. The id
// is taken from X-Correlation-ID or X-Request-ID when the caller sent one and
// travels in the user context so audit entries written downstream carry it.
func Trace(logger zerolog.Logger) fiber.Handler {
	observability.RegisterMetrics()

	return func(c *fiber.Ctx) error {
		id := strings.TrimSpace(c.Get(CorrelationHeader))
		if id == "" {
			id = strings.TrimSpace(c.Get(fiber.HeaderXRequestID))
		}
		if id == "" {
			id = uuid.NewString()
		}
		c.Locals(correlationLocal, id)
		c.Set(CorrelationHeader, id)
		c.SetUserContext(observability.WithCorrelation(c.UserContext(), id))

		start := time.Now()
		err := c.Next()
		if !strings.HasPrefix(c.Path(), "/api/") {
			return err
		}

		elapsed := time.Since(start)
		route := c.Path()
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path
		}
		status := c.Response().StatusCode()
		code := strconv.Itoa(status)

		observability.APIRequests().WithLabelValues(c.Method(), route, code).Inc()
		observability.APILatency().WithLabelValues(c.Method(), route).Observe(elapsed.Seconds())
		if status >= fiber.StatusBadRequest {
			observability.APIErrors().WithLabelValues(c.Method(), route, code).Inc()
		}

		event := logger.Info()
		switch {
		case status >= fiber.StatusInternalServerError:
			event = logger.Error()
		case status >= fiber.StatusBadRequest:
			event = logger.Warn()
		}
		event = event.
			Str("correlation_id", id).
			Str("method", c.Method()).
			Str("route", route).
			Int("status", status).
			Dur("latency", elapsed)
		if principal, ok := PrincipalFrom(c); ok {
			event = event.Str("user_id", principal.UserID.String()).Str("role", principal.Role.String())
		}
		event.Msg("request completed")

		return err
	}
}

// CorrelationID returns the correlation id assigned to the request by Trace.
func CorrelationID(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	if id, ok := c.Locals(correlationLocal).(string); ok {
		return id
	}
	return observability.CorrelationFrom(c.UserContext())
}
