package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-gradebook/internal/observability"
)

func newCorrelationApp() *fiber.App {
	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"local":   GetCorrelationID(c),
			"context": observability.CorrelationIDFromContext(c.UserContext()),
		})
	})
	return app
}

func TestCorrelationIDPropagatesIncomingHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(fiber.HeaderXRequestID, " scan-77 ")

	resp, err := newCorrelationApp().Test(req)
	require.NoError(t, err)
	require.Equal(t, "scan-77", resp.Header.Get(HeaderCorrelationID))

	var body map[string]string
	decodeJSON(t, resp, &body)
	require.Equal(t, "scan-77", body["local"])
	require.Equal(t, "scan-77", body["context"])
}

func TestCorrelationIDGeneratesWhenMissing(t *testing.T) {
	resp, err := newCorrelationApp().Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.Len(t, resp.Header.Get(HeaderCorrelationID), 36)
}
