package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/wandernook/wandernook/internal/pkg/billing"
	"github.com/wandernook/wandernook/internal/pkg/tracking"
)

type ConversionController struct {
	tracker ConversionTracker
}

func NewConversionController(tracker ConversionTracker) *ConversionController {
	return &ConversionController{tracker: tracker}
}

type trackRequest struct {
	EventName              string         `json:"eventName"`
	PlanID                 string         `json:"planId"`
	CustomerEmail          string         `json:"customerEmail"`
	RazorpayPaymentID      string         `json:"razorpayPaymentId"`
	RazorpaySubscriptionID string         `json:"razorpaySubscriptionId"`
	Metadata               map[string]any `json:"metadata"`
}

// HandleTrack records a funnel event sent by the storefront. Storage failures
// are reported by the tracker and never fail the request.
func (cc *ConversionController) HandleTrack(c *fiber.Ctx) error {
	var req trackRequest
	_ = c.BodyParser(&req)

	name := billing.SanitizeText(req.EventName, 100)
	if name == "" {
		return jsonError(c, fiber.StatusBadRequest, "eventName is required")
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	out := cc.tracker.Track(ctx, tracking.Event{
		Name:                   name,
		PlanID:                 req.PlanID,
		CustomerEmail:          req.CustomerEmail,
		RazorpayPaymentID:      req.RazorpayPaymentID,
		RazorpaySubscriptionID: req.RazorpaySubscriptionID,
		Metadata:               req.Metadata,
	})
	return c.JSON(fiber.Map{"ok": true, "recorded": out.Recorded})
}
