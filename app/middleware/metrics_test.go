package middleware

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsUsesRouteTemplates(t *testing.T) {
	app := fiber.New()
	app.Use(Metrics("/metrics"))
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/items/:id", func(c fiber.Ctx) error {
		return c.SendString(c.Params("id"))
	})

	for _, path := range []string{"/items/1", "/items/2", "/nope"} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
		_ = resp.Body.Close()
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := string(body)
	assert.Contains(t, out, `leadflow_http_requests_total{method="GET",route="/items/:id",status="200"} 2`)
	assert.Contains(t, out, `leadflow_http_requests_total{method="GET",route="unmatched",status="404"} 1`)
	assert.NotContains(t, out, `route="/metrics"`)
	assert.NotContains(t, out, `route="/items/1"`)
}
