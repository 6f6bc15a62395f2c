package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/wandernook/wandernook/app/controllers"
	"github.com/wandernook/wandernook/internal/pkg/session"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// Handlers is everything the routers mount. It is assembled once in main.
type Handlers struct {
	Autopay    *controllers.AutopayController
	Shopify    *controllers.ShopifyController
	Invoice    *controllers.InvoiceController
	Admin      *controllers.AdminController
	Newsletter *controllers.NewsletterController
	Conversion *controllers.ConversionController
	Sample     *controllers.SampleController

	Sessions   *session.AdminSessions
	CronSecret string
	Health     map[string]controllers.HealthCheck

	// LimiterStorage backs the API rate limiter. Nil keeps counters in memory.
	LimiterStorage fiber.Storage
	SecureCookies  bool
	// AllowOrigins is the storefront origin allowed to call the API.
	AllowOrigins string
}

func InstallRouter(app *fiber.App, h Handlers) {
	// The http router installs the admin session loader, which the API
	// routes rely on, so it has to go first.
	setup(app, NewHttpRouter(h), NewApiRouter(h))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
