package controllers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/wandernook/wandernook/app/models"
	"github.com/wandernook/wandernook/internal/pkg/constants"
	"github.com/wandernook/wandernook/internal/pkg/flash"
	"github.com/wandernook/wandernook/internal/pkg/invoice"
	"github.com/wandernook/wandernook/internal/pkg/security"
	"github.com/wandernook/wandernook/internal/pkg/session"
)

// InvoiceAdmin is what the admin area needs from the invoice service.
type InvoiceAdmin interface {
	ListInvoices(ctx context.Context, query string) ([]models.Invoice, error)
	ListCustomers(ctx context.Context, query string) ([]models.Customer, error)
	ResendInvoiceEmail(ctx context.Context, invoiceID string) (*invoice.DeliveryResult, error)
}

// AdminController handles the admin login and the invoice back office, both
// as JSON endpoints and as server rendered pages.
type AdminController struct {
	sessions *session.AdminSessions
	password string
	invoices InvoiceAdmin
}

func NewAdminController(sessions *session.AdminSessions, password string, invoices InvoiceAdmin) *AdminController {
	return &AdminController{
		sessions: sessions,
		password: strings.TrimSpace(password),
		invoices: invoices,
	}
}

type loginRequest struct {
	Password string `json:"password" form:"password"`
}

// HandleLogin starts an admin session for the configured password.
func (ac *AdminController) HandleLogin(c *fiber.Ctx) error {
	var req loginRequest
	_ = c.BodyParser(&req)

	if ac.password == "" {
		log.Error("[Admin] ADMIN_PASSWORD is not set")
		return jsonError(c, fiber.StatusInternalServerError, "Server not configured")
	}
	if !security.CheckPassword(ac.password, req.Password) {
		log.Warnf("[Admin] Failed login from %s", c.IP())
		return jsonError(c, fiber.StatusUnauthorized, "Invalid password")
	}
	if err := ac.sessions.Login(c); err != nil {
		log.Errorf("[Admin] Failed to start session: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "Failed to start session")
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (ac *AdminController) HandleLogout(c *fiber.Ctx) error {
	if err := ac.sessions.Logout(c); err != nil {
		log.Warnf("[Admin] Failed to end session: %v", err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (ac *AdminController) HandleMe(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"isAdmin": ac.sessions.IsAdmin(c)})
}

func (ac *AdminController) HandleInvoices(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	invoices, err := ac.invoices.ListInvoices(ctx, c.Query("q"))
	if err != nil {
		log.Errorf("[Admin] Failed to list invoices: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "Failed to load invoices.")
	}
	if invoices == nil {
		invoices = []models.Invoice{}
	}
	return c.JSON(fiber.Map{"invoices": invoices})
}

func (ac *AdminController) HandleCustomers(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	customers, err := ac.invoices.ListCustomers(ctx, c.Query("q"))
	if err != nil {
		log.Errorf("[Admin] Failed to list customers: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "Failed to load customers.")
	}
	if customers == nil {
		customers = []models.Customer{}
	}
	return c.JSON(fiber.Map{"customers": customers, "total": len(customers)})
}

// HandleSendInvoice emails an invoice again, regardless of earlier deliveries.
func (ac *AdminController) HandleSendInvoice(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	res, err := ac.invoices.ResendInvoiceEmail(ctx, c.Params("id"))
	switch {
	case errors.Is(err, invoice.ErrIDRequired):
		return jsonError(c, fiber.StatusBadRequest, "Invoice id is required.")
	case errors.Is(err, invoice.ErrNotFound):
		return jsonError(c, fiber.StatusNotFound, "Invoice not found.")
	case err != nil:
		log.Errorf("[Admin] Failed to resend invoice %s: %v", c.Params("id"), err)
		return jsonError(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{
		"ok":                 true,
		"emailSent":          res.EmailSent,
		"emailSkippedReason": res.EmailSkippedReason,
	})
}

// HandleLoginPage renders the login form, or skips it for a signed in admin.
func (ac *AdminController) HandleLoginPage(c *fiber.Ctx) error {
	if ac.sessions.IsAdmin(c) {
		return c.Redirect(constants.AdminRoute, fiber.StatusSeeOther)
	}
	kind, msg := flash.Message(c)
	return c.Render("admin/login", fiber.Map{
		"Title":     "Admin login",
		"FlashType": kind,
		"Flash":     msg,
	}, "layouts/admin")
}

func (ac *AdminController) HandleLoginForm(c *fiber.Ctx) error {
	var req loginRequest
	_ = c.BodyParser(&req)

	if ac.password == "" {
		return flash.Error(c, "Admin login is not configured.").Redirect(constants.AdminLoginRoute, fiber.StatusSeeOther)
	}
	if !security.CheckPassword(ac.password, req.Password) {
		log.Warnf("[Admin] Failed login from %s", c.IP())
		return flash.Error(c, "Invalid password").Redirect(constants.AdminLoginRoute, fiber.StatusSeeOther)
	}
	if err := ac.sessions.Login(c); err != nil {
		log.Errorf("[Admin] Failed to start session: %v", err)
		return flash.Error(c, "Failed to start session").Redirect(constants.AdminLoginRoute, fiber.StatusSeeOther)
	}
	return c.Redirect(constants.AdminRoute, fiber.StatusSeeOther)
}

func (ac *AdminController) HandleLogoutForm(c *fiber.Ctx) error {
	if err := ac.sessions.Logout(c); err != nil {
		log.Warnf("[Admin] Failed to end session: %v", err)
	}
	return c.Redirect(constants.AdminLoginRoute, fiber.StatusSeeOther)
}

// HandleInvoicesPage lists invoices with an optional search.
func (ac *AdminController) HandleInvoicesPage(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	query := c.Query("q")
	invoices, err := ac.invoices.ListInvoices(ctx, query)
	if err != nil {
		log.Errorf("[Admin] Failed to list invoices: %v", err)
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to load invoices")
	}
	kind, msg := flash.Message(c)
	return c.Render("admin/invoices", fiber.Map{
		"Title":     "Invoices",
		"Query":     query,
		"Invoices":  invoices,
		"FlashType": kind,
		"Flash":     msg,
	}, "layouts/admin")
}

// HandleResendForm resends an invoice and reports the outcome on the list page.
func (ac *AdminController) HandleResendForm(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	res, err := ac.invoices.ResendInvoiceEmail(ctx, c.Params("id"))
	switch {
	case errors.Is(err, invoice.ErrNotFound):
		return flash.Error(c, "Invoice not found.").Redirect(constants.AdminRoute, fiber.StatusSeeOther)
	case err != nil:
		log.Errorf("[Admin] Failed to resend invoice %s: %v", c.Params("id"), err)
		return flash.Error(c, "Failed to send invoice: "+err.Error()).Redirect(constants.AdminRoute, fiber.StatusSeeOther)
	case !res.EmailSent:
		return flash.Error(c, "Invoice email skipped: "+res.EmailSkippedReason).Redirect(constants.AdminRoute, fiber.StatusSeeOther)
	}
	return flash.Success(c, "Invoice email sent.").Redirect(constants.AdminRoute, fiber.StatusSeeOther)
}
