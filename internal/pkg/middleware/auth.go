package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/wandernook/wandernook/internal/pkg/constants"
	"github.com/wandernook/wandernook/internal/pkg/security"
	"github.com/wandernook/wandernook/internal/pkg/session"
)

// KeyIsAdmin is the Locals key set by LoadAdmin.
const KeyIsAdmin = "isAdmin"

// LoadAdmin resolves the admin session once per request and stores the
// result in Locals for the guards and templates.
func LoadAdmin(sessions *session.AdminSessions) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(KeyIsAdmin, sessions.IsAdmin(c))
		return c.Next()
	}
}

func IsAdmin(c *fiber.Ctx) bool {
	v, ok := c.Locals(KeyIsAdmin).(bool)
	return ok && v
}

// RequireAdmin ensures an admin session for pages; redirects to the login page otherwise.
func RequireAdmin(c *fiber.Ctx) error {
	if !IsAdmin(c) {
		return c.Redirect(constants.AdminLoginRoute, fiber.StatusSeeOther)
	}
	return c.Next()
}

// RequireAdminAPI is RequireAdmin for JSON routes.
func RequireAdminAPI(c *fiber.Ctx) error {
	if !IsAdmin(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}
	return c.Next()
}

// RequireAdminOrCron accepts an admin session or an x-cron-secret header
// matching cronSecret.
func RequireAdminOrCron(cronSecret string) fiber.Handler {
	secret := strings.TrimSpace(cronSecret)
	return func(c *fiber.Ctx) error {
		if IsAdmin(c) {
			return c.Next()
		}
		if security.SecretsEqual(secret, strings.TrimSpace(c.Get("x-cron-secret"))) {
			return c.Next()
		}
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}
}
