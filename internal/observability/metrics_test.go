package observability

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerExposesCollectors(t *testing.T) {
	APIRequests().WithLabelValues("GET", "/api/students", "200").Inc()
	RelayMessages().WithLabelValues("join-room").Inc()

	app := fiber.New()
	app.Get("/metrics", MetricsHandler())

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), "therapy_api_requests_total"))
	require.True(t, strings.Contains(string(body), "therapy_relay_messages_total"))
}

func TestCorrelationContext(t *testing.T) {
	require.Empty(t, CorrelationFrom(context.Background()))

	ctx := WithCorrelation(context.Background(), " req-1 ")
	require.Equal(t, "req-1", CorrelationFrom(ctx))
	require.Equal(t, "req-1", CorrelationFrom(WithCorrelation(ctx, "  ")))
}
