package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// InvoiceDocuments renders invoices addressed by their public token. Unknown
// tokens yield an empty document and no error.
type InvoiceDocuments interface {
	RenderDocument(ctx context.Context, token string, printable bool) (string, error)
	RenderPDF(ctx context.Context, token string) ([]byte, error)
}

type InvoiceController struct {
	documents InvoiceDocuments
}

func NewInvoiceController(documents InvoiceDocuments) *InvoiceController {
	return &InvoiceController{documents: documents}
}

func (ic *InvoiceController) HandlePage(c *fiber.Ctx) error {
	return ic.renderHTML(c, false)
}

func (ic *InvoiceController) HandlePrint(c *fiber.Ctx) error {
	return ic.renderHTML(c, true)
}

func (ic *InvoiceController) HandlePDF(c *fiber.Ctx) error {
	token := c.Params("token")
	c.Set(fiber.HeaderCacheControl, "private, no-store")

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	data, err := ic.documents.RenderPDF(ctx, token)
	if err != nil {
		log.Errorf("[Invoice] Failed to render PDF for %s: %v", token, err)
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to render invoice")
	}
	if data == nil {
		return c.Status(fiber.StatusNotFound).SendString("Invoice not found")
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `inline; filename=invoice-`+token+`.pdf`)
	return c.Send(data)
}

func (ic *InvoiceController) renderHTML(c *fiber.Ctx, printable bool) error {
	token := c.Params("token")
	c.Set(fiber.HeaderCacheControl, "private, no-store")

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	page, err := ic.documents.RenderDocument(ctx, token, printable)
	if err != nil {
		log.Errorf("[Invoice] Failed to render %s: %v", token, err)
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to render invoice")
	}
	if page == "" {
		return c.Status(fiber.StatusNotFound).SendString("Invoice not found")
	}
	c.Type("html", "utf-8")
	return c.SendString(page)
}
