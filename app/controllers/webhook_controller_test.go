package controllers

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleWebhookVerify(t *testing.T) {
	t.Setenv("STRAVA_VERIFY_TOKEN", "verify-secret")

	app := fiber.New()
	app.Get("/strava/webhook", HandleWebhookVerify)

	t.Run("echoes challenge on valid token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/strava/webhook?hub.mode=subscribe&hub.challenge=abc123&hub.verify_token=verify-secret", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "abc123", body["hub.challenge"])
	})

	t.Run("withholds challenge on wrong token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/strava/webhook?hub.mode=subscribe&hub.challenge=abc123&hub.verify_token=wrong", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)

		// Still a 200: a non-200 would make Strava drop the subscription
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Empty(t, body["hub.challenge"])
	})
}
