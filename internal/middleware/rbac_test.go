package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func guardedApp(role interface{}, guard fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if role != nil {
			c.Locals("user_role", role)
		}
		return c.Next()
	})
	app.Use(guard)
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestRequireRole(t *testing.T) {
	cases := []struct {
		name   string
		role   interface{}
		guard  fiber.Handler
		status int
	}{
		{"admin on audit", "admin", RequireRole(RoleAdmin), fiber.StatusOK},
		{"teacher on audit", "teacher", RequireRole(RoleAdmin), fiber.StatusForbidden},
		{"grader teacher", " Teacher ", RequireGrader(), fiber.StatusOK},
		{"grader admin", "admin", RequireGrader(), fiber.StatusOK},
		{"grader student", "student", RequireGrader(), fiber.StatusForbidden},
		{"role list", []interface{}{"", "teacher"}, RequireGrader(), fiber.StatusOK},
		{"string list", []string{"student"}, RequireGrader(), fiber.StatusForbidden},
		{"anonymous", nil, RequireGrader(), fiber.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := guardedApp(tc.role, tc.guard).Test(httptest.NewRequest(http.MethodGet, "/", nil))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestRequireRoleForbiddenEnvelope(t *testing.T) {
	resp, err := guardedApp("student", RequireGrader()).Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	decodeJSON(t, resp, &body)
	require.False(t, body.Success)
	require.Equal(t, "insufficient permissions", body.Message)
}

func decodeJSON(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}
