package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"

	"github.com/wandernook/wandernook/internal/pkg/constants"
	"github.com/wandernook/wandernook/internal/pkg/middleware"
)

// registerCSRFProtectedRoutes mounts the server rendered admin pages. Login
// stays outside RequireAdmin so signed out visitors can reach it.
func (r HttpRouter) registerCSRFProtectedRoutes(app *fiber.App) {
	csrfConf := csrf.Config{
		KeyLookup:      "form:_csrf",
		ContextKey:     "csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		CookieHTTPOnly: true,
		Expiration:     1 * time.Hour,
		CookieSecure:   r.h.SecureCookies,
	}

	admin := app.Group(constants.AdminRoute, csrf.New(csrfConf))
	admin.Get("/login", r.h.Admin.HandleLoginPage)
	admin.Post("/login", r.h.Admin.HandleLoginForm)
	admin.Post("/logout", r.h.Admin.HandleLogoutForm)
	admin.Get("/", middleware.RequireAdmin, r.h.Admin.HandleInvoicesPage)
	admin.Post("/invoices/:id/send", middleware.RequireAdmin, r.h.Admin.HandleResendForm)
}
