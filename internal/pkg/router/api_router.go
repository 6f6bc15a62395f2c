package router

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/wandernook/wandernook/internal/pkg/middleware"
)

const (
	apiRateLimit  = 60
	apiRateWindow = time.Minute
)

type ApiRouter struct {
	h Handlers
}

func (r ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", cors.New(cors.Config{
		AllowOrigins:     r.h.AllowOrigins,
		AllowCredentials: r.h.AllowOrigins != "" && r.h.AllowOrigins != "*",
	}), limiter.New(limiter.Config{
		Max:        apiRateLimit,
		Expiration: apiRateWindow,
		Storage:    r.h.LimiterStorage,
		// Provider webhooks retry on 429 and arrive in bursts.
		Next: func(c *fiber.Ctx) bool {
			return strings.Contains(c.Path(), "/webhook")
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "Too many requests"})
		},
	}))

	rzp := api.Group("/razorpay/autopay")
	rzp.Post("/create", r.h.Autopay.HandleCreate)
	rzp.Post("/verify", r.h.Autopay.HandleVerify)
	rzp.Post("/webhook", r.h.Autopay.HandleWebhook)

	api.Post("/shopify/webhooks/orders", r.h.Shopify.HandleOrdersWebhook)

	api.Post("/newsletter", r.h.Newsletter.HandleSubscribe)
	api.Post("/newsletter/dispatch", middleware.RequireAdminOrCron(r.h.CronSecret), r.h.Newsletter.HandleDispatch)

	api.Post("/conversion/track", r.h.Conversion.HandleTrack)

	api.Post("/sample", r.h.Sample.HandleRequestSample)
	api.Get("/sample/download", r.h.Sample.HandleDownload)
	api.Post("/submit", r.h.Sample.HandleSubmit)
	api.Get("/submit", r.h.Sample.HandleSubmitMethodNotAllowed)

	admin := api.Group("/admin")
	admin.Post("/login", r.h.Admin.HandleLogin)
	admin.Post("/logout", r.h.Admin.HandleLogout)
	admin.Get("/me", r.h.Admin.HandleMe)
	admin.Get("/invoices", middleware.RequireAdminAPI, r.h.Admin.HandleInvoices)
	admin.Get("/customers", middleware.RequireAdminAPI, r.h.Admin.HandleCustomers)
	admin.Post("/invoices/:id/send", middleware.RequireAdminAPI, r.h.Admin.HandleSendInvoice)
}

func NewApiRouter(h Handlers) *ApiRouter {
	return &ApiRouter{h: h}
}
