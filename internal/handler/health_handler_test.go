package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-gradebook/internal/config"
	"github.com/noah-isme/gema-gradebook/internal/handler"
)

func TestHealthCheckHealthy(t *testing.T) {
	cfg := config.Config{AppName: "gradebook", AppEnv: "test"}
	app := fiber.New()
	app.Get("/health", handler.HealthCheck(cfg, map[string]handler.HealthCheckFunc{
		"postgres": func(context.Context) error { return nil },
	}))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body envelope[handler.HealthResponse]
	decodeResponse(t, resp, &body)
	require.Equal(t, "service healthy", body.Message)
	require.Equal(t, "ok", body.Data.Status)
	require.Equal(t, "gradebook", body.Data.Service)
	require.Equal(t, "ok", body.Data.Dependencies["postgres"])
}

func TestHealthCheckDegraded(t *testing.T) {
	app := fiber.New()
	app.Get("/health", handler.HealthCheck(config.Config{}, map[string]handler.HealthCheckFunc{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("dial tcp: connection refused") },
	}))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	var body envelope[handler.HealthResponse]
	decodeResponse(t, resp, &body)
	require.Equal(t, "service degraded", body.Message)
	require.Equal(t, "degraded", body.Data.Status)
	require.Equal(t, "dial tcp: connection refused", body.Data.Dependencies["redis"])
}

func TestHealthCheckWithoutDependencies(t *testing.T) {
	app := fiber.New()
	app.Get("/health", handler.HealthCheck(config.Config{}, nil))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}
