package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/wandernook/wandernook/internal/pkg/leads"
)

const sampleFilename = "Wander Nook Launch.pdf"

// SampleController serves the sample issue lead form and the contact form.
type SampleController struct {
	leads *leads.Service
}

func NewSampleController(l *leads.Service) *SampleController {
	return &SampleController{leads: l}
}

// HandleRequestSample stores the lead and hands back the launch issue path.
func (sc *SampleController) HandleRequestSample(c *fiber.Ctx) error {
	var in leads.SampleRequestInput
	if err := c.BodyParser(&in); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "Name and email are required")
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	downloadPath, err := sc.leads.RequestSample(ctx, in)
	switch {
	case errors.Is(err, leads.ErrMissingDetails):
		return jsonError(c, fiber.StatusBadRequest, "Name and email are required")
	case err != nil:
		log.Errorf("[Leads] Failed to save sample request: %v", err)
		return c.JSON(fiber.Map{"ok": false, "downloadPath": downloadPath})
	}
	return c.JSON(fiber.Map{"ok": true, "downloadPath": downloadPath})
}

// HandleDownload proxies a sample PDF so browsers save it instead of
// opening it from the CDN.
func (sc *SampleController) HandleDownload(c *fiber.Ctx) error {
	target := c.Query("url")
	if target == "" {
		return c.Status(fiber.StatusBadRequest).SendString("Missing url")
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	pdf, err := sc.leads.FetchSample(ctx, target)
	if errors.Is(err, leads.ErrDownloadNotAllowed) {
		return c.Status(fiber.StatusBadRequest).SendString("URL not allowed")
	}
	if err != nil {
		log.Warnf("[Leads] Sample download from %s failed: %v", target, err)
		return c.Status(fiber.StatusBadGateway).SendString("Failed to fetch file")
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+sampleFilename+`"`)
	return c.Send(pdf)
}

// HandleSubmit forwards the contact form to the lead spreadsheet.
func (sc *SampleController) HandleSubmit(c *fiber.Ctx) error {
	var in leads.SampleRequestInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Invalid request body"})
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	answer, err := sc.leads.Submit(ctx, in)
	if err != nil {
		log.Errorf("[Leads] Contact form forward failed: %v", err)
		resp := fiber.Map{"success": false, "error": err.Error()}
		var upstream *leads.UpstreamError
		if errors.As(err, &upstream) {
			resp["error"] = "Non-JSON response from Google"
			resp["details"] = upstream.Details
		}
		return c.Status(fiber.StatusInternalServerError).JSON(resp)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(answer)
}

// HandleSubmitMethodNotAllowed answers GET on the contact form endpoint.
func (sc *SampleController) HandleSubmitMethodNotAllowed(c *fiber.Ctx) error {
	return c.Status(fiber.StatusMethodNotAllowed).JSON(fiber.Map{"success": false, "message": "Method not allowed"})
}
