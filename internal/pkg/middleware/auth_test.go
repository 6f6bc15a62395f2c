package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appWith(admin bool, guards ...fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(KeyIsAdmin, admin)
		return c.Next()
	})
	handlers := append(guards, func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/", handlers...)
	return app
}

func status(t *testing.T, app *fiber.App, header, value string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestRequireAdmin(t *testing.T) {
	assert.Equal(t, fiber.StatusOK, status(t, appWith(true, RequireAdmin), "", ""))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := appWith(false, RequireAdmin).Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/admin/login", resp.Header.Get("Location"))
}

func TestRequireAdminAPI(t *testing.T) {
	assert.Equal(t, fiber.StatusOK, status(t, appWith(true, RequireAdminAPI), "", ""))
	assert.Equal(t, fiber.StatusUnauthorized, status(t, appWith(false, RequireAdminAPI), "", ""))
}

func TestRequireAdminOrCron(t *testing.T) {
	guard := RequireAdminOrCron("cron-123")

	assert.Equal(t, fiber.StatusOK, status(t, appWith(true, guard), "", ""))
	assert.Equal(t, fiber.StatusOK, status(t, appWith(false, guard), "x-cron-secret", "cron-123"))
	assert.Equal(t, fiber.StatusUnauthorized, status(t, appWith(false, guard), "x-cron-secret", "cron-124"))
	assert.Equal(t, fiber.StatusUnauthorized, status(t, appWith(false, guard), "", ""))

	noSecret := RequireAdminOrCron("")
	assert.Equal(t, fiber.StatusUnauthorized, status(t, appWith(false, noSecret), "x-cron-secret", ""))
}
