package utils_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-gradebook/internal/utils"
)

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    map[string]string `json:"data"`
}

func perform(t *testing.T, handler fiber.Handler) (int, envelope, map[string]json.RawMessage) {
	t.Helper()
	app := fiber.New()
	app.Get("/", handler)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	var raw map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))

	var body envelope
	encoded, err := json.Marshal(raw)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(encoded, &body))
	return resp.StatusCode, body, raw
}

func TestSendSuccessDefaultsMessage(t *testing.T) {
	status, body, _ := perform(t, func(c *fiber.Ctx) error {
		return utils.SendSuccess(c, "", map[string]string{"rubric": "ok"})
	})

	require.Equal(t, fiber.StatusOK, status)
	require.True(t, body.Success)
	require.Equal(t, "success", body.Message)
	require.Equal(t, "ok", body.Data["rubric"])
}

func TestSendCreated(t *testing.T) {
	status, body, _ := perform(t, func(c *fiber.Ctx) error {
		return utils.SendCreated(c, "activity template created", map[string]string{"id": "1"})
	})

	require.Equal(t, fiber.StatusCreated, status)
	require.Equal(t, "activity template created", body.Message)
}

func TestSendErrorOmitsData(t *testing.T) {
	status, body, raw := perform(t, func(c *fiber.Ctx) error {
		return utils.SendError(c, fiber.StatusUnprocessableEntity, "")
	})

	require.Equal(t, fiber.StatusUnprocessableEntity, status)
	require.False(t, body.Success)
	require.Equal(t, "error", body.Message)
	_, hasData := raw["data"]
	require.False(t, hasData)

	status, _, _ = perform(t, func(c *fiber.Ctx) error {
		return utils.SendError(c, fiber.StatusOK, "boom")
	})
	require.Equal(t, fiber.StatusInternalServerError, status)
}
