package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/wandernook/wandernook/app/controllers"
	"github.com/wandernook/wandernook/internal/pkg/constants"
	"github.com/wandernook/wandernook/internal/pkg/middleware"
)

type HttpRouter struct {
	h Handlers
}

func (r HttpRouter) InstallRouter(app *fiber.App) {
	app.Use(middleware.LoadAdmin(r.h.Sessions))

	app.Get("/healthz", controllers.HandleHealthz(r.h.Health))

	// Public invoice documents, addressed by their unguessable token
	app.Get(constants.InvoiceRoute+"/:token", r.h.Invoice.HandlePage)
	app.Get(constants.InvoiceRoute+"/:token/print", r.h.Invoice.HandlePrint)
	app.Get(constants.InvoiceRoute+"/:token/pdf", r.h.Invoice.HandlePDF)

	r.registerCSRFProtectedRoutes(app)
}

func NewHttpRouter(h Handlers) *HttpRouter {
	return &HttpRouter{h: h}
}
