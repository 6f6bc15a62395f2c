package controllers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/wandernook/wandernook/internal/pkg/billing"
	"github.com/wandernook/wandernook/internal/pkg/config"
	"github.com/wandernook/wandernook/internal/pkg/invoice"
	"github.com/wandernook/wandernook/internal/pkg/metrics"
	"github.com/wandernook/wandernook/internal/pkg/tracking"
)

const (
	verifySourceEvent = "autopay_verify"
	webhookOrderNote  = "Order created from Razorpay webhook fallback after payment capture."
)

// InvoiceIssuer creates (or returns) the invoice for a captured payment.
type InvoiceIssuer interface {
	EnsureInvoiceForAutopayPayment(ctx context.Context, in invoice.EnsureInput) (*invoice.EnsureResult, error)
}

type ConversionTracker interface {
	Track(ctx context.Context, ev tracking.Event) tracking.Outcome
}

// AutopayController serves the Razorpay autopay checkout, its client side
// verification and the gateway webhook.
type AutopayController struct {
	billing  *billing.Service
	invoices InvoiceIssuer
	tracker  ConversionTracker
	cfg      config.RazorpayConfig
}

func NewAutopayController(b *billing.Service, invoices InvoiceIssuer, tracker ConversionTracker, cfg config.RazorpayConfig) *AutopayController {
	return &AutopayController{
		billing:  b,
		invoices: invoices,
		tracker:  tracker,
		cfg:      cfg,
	}
}

type createAutopayRequest struct {
	PlanID   string                  `json:"planId"`
	Customer billing.CustomerDetails `json:"customer"`
}

type paymentProof struct {
	PaymentID      string `json:"paymentId"`
	SubscriptionID string `json:"subscriptionId"`
	Signature      string `json:"signature"`
}

type verifyAutopayRequest struct {
	PlanID   string                   `json:"planId"`
	Customer *billing.CustomerDetails `json:"customer"`
	Payment  paymentProof             `json:"payment"`
}

// HandleCreate opens a gateway subscription for the selected plan.
func (ac *AutopayController) HandleCreate(c *fiber.Ctx) error {
	var req createAutopayRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "Invalid request body.")
	}

	ctx, cancel := requestContext(c, reconcileTimeout)
	defer cancel()

	res, err := ac.billing.CreateAutopaySubscription(ctx, req.PlanID, req.Customer)
	if err != nil {
		if !billing.IsClientError(err) {
			log.Errorf("[Autopay] Failed to create subscription for %s: %v", req.PlanID, err)
		}
		return jsonError(c, billingStatus(err), err.Error())
	}
	return c.JSON(res)
}

// HandleVerify checks the checkout signature, reconciles the commerce order
// and issues the invoice.
func (ac *AutopayController) HandleVerify(c *fiber.Ctx) error {
	var req verifyAutopayRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "Invalid request body.")
	}

	planID := billing.SanitizeText(req.PlanID, 40)
	plan, err := ac.billing.Plans().Resolve(planID)
	if err != nil {
		log.Errorf("[Autopay] Plan %s is not configured: %v", planID, err)
		return jsonError(c, fiber.StatusInternalServerError, err.Error())
	}
	if plan == nil {
		return jsonError(c, fiber.StatusBadRequest, "Invalid autopay plan selected.")
	}

	paymentID := billing.SanitizeText(req.Payment.PaymentID, 80)
	subscriptionID := billing.SanitizeText(req.Payment.SubscriptionID, 80)
	signature := billing.SanitizeText(req.Payment.Signature, 200)
	if paymentID == "" || subscriptionID == "" || signature == "" {
		return jsonError(c, fiber.StatusBadRequest, "Missing Razorpay payment verification details.")
	}

	valid, err := billing.VerifySubscriptionPaymentSignature(paymentID, subscriptionID, signature, ac.cfg.KeySecret)
	if err != nil {
		log.Error("[Autopay] RAZORPAY_KEY_SECRET is not set")
		return jsonError(c, fiber.StatusInternalServerError, "Razorpay key configuration is missing.")
	}
	if !valid {
		return jsonError(c, fiber.StatusUnauthorized, "Invalid payment signature.")
	}

	ctx, cancel := requestContext(c, reconcileTimeout)
	defer cancel()

	res, err := ac.billing.EnsureAutopayOrder(ctx, billing.EnsureOrderInput{
		PaymentID:      paymentID,
		SubscriptionID: subscriptionID,
		ExpectedPlanID: plan.ID,
		Customer:       req.Customer,
	})
	if err != nil {
		log.Warnf("[Autopay] Verify failed for payment %s: %v", paymentID, err)
		return jsonError(c, billingStatus(err), err.Error())
	}
	if res.Status == billing.OrderPaymentNotCaptured {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":         "Payment is not captured yet. Order will be created only after successful debit.",
			"paymentStatus": res.PaymentStatus,
		})
	}

	resp := fiber.Map{
		"ok":            true,
		"alreadyExists": res.Status == billing.OrderAlreadyExists,
		"order":         res.Order,
	}
	issued := ac.attachInvoice(ctx, resp, invoice.EnsureInput{
		PaymentID:      paymentID,
		SubscriptionID: subscriptionID,
		SourceEvent:    verifySourceEvent,
		Customer:       &res.Customer,
		Order:          res.Order,
	})

	if ac.tracker != nil {
		meta := map[string]any{"alreadyExists": res.Status == billing.OrderAlreadyExists}
		if res.Order != nil {
			meta["orderName"] = res.Order.Name
		}
		if issued != nil {
			meta["invoiceNumber"] = issued.InvoiceNumber
		}
		ac.tracker.Track(ctx, tracking.Event{
			Name:                   tracking.EventAutopayVerified,
			PlanID:                 plan.ID,
			CustomerEmail:          res.Customer.Email,
			RazorpayPaymentID:      paymentID,
			RazorpaySubscriptionID: subscriptionID,
			Metadata:               meta,
		})
	}
	return c.JSON(resp)
}

// HandleWebhook is the server side fallback for payments the browser never
// verified.
func (ac *AutopayController) HandleWebhook(c *fiber.Ctx) error {
	secret := strings.TrimSpace(ac.cfg.WebhookSecret)
	if secret == "" {
		log.Error("[Webhook] RAZORPAY_WEBHOOK_SECRET is not set")
		return jsonError(c, fiber.StatusInternalServerError, "Razorpay webhook secret configuration is missing.")
	}
	signature := c.Get("x-razorpay-signature")
	if signature == "" {
		metrics.WebhooksReceived.WithLabelValues("razorpay", "unsigned").Inc()
		return jsonError(c, fiber.StatusUnauthorized, "Missing webhook signature.")
	}

	body := copyBody(c)
	if ok, _ := billing.VerifyWebhookSignature(body, signature, secret, billing.SignatureHex); !ok {
		metrics.WebhooksReceived.WithLabelValues("razorpay", "invalid_signature").Inc()
		return jsonError(c, fiber.StatusUnauthorized, "Invalid webhook signature.")
	}

	hook, err := billing.ParseRazorpayWebhook(body)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "Invalid webhook payload.")
	}
	if !hook.Handled() {
		metrics.WebhooksReceived.WithLabelValues("razorpay", "ignored").Inc()
		return c.JSON(fiber.Map{"ok": true, "ignored": true, "event": hook.Event})
	}

	ctx, cancel := requestContext(c, reconcileTimeout)
	defer cancel()

	inserted, stored, err := ac.billing.RecordWebhookEvent(ctx, billing.WebhookEventInput{
		Provider:        "razorpay",
		ProviderEventID: c.Get("x-razorpay-event-id"),
		EventType:       hook.Event,
		PayloadJSON:     string(body),
		SignatureValid:  true,
	})
	if err != nil {
		log.Warnf("[Webhook] Failed to record %s delivery: %v", hook.Event, err)
		stored = nil
	}
	if !inserted && stored != nil && stored.ProcessedAt != nil && stored.ProcessingError == "" {
		metrics.WebhooksReceived.WithLabelValues("razorpay", "duplicate").Inc()
		return c.JSON(fiber.Map{"ok": true, "duplicate": true, "event": hook.Event})
	}

	resp, procErr := ac.processWebhook(ctx, hook)
	if stored != nil {
		if err := ac.billing.MarkWebhookProcessed(ctx, stored.ID, procErr); err != nil {
			log.Warnf("[Webhook] Failed to mark delivery %d processed: %v", stored.ID, err)
		}
	}
	if procErr != nil {
		metrics.WebhooksReceived.WithLabelValues("razorpay", "failed").Inc()
		log.Errorf("[Webhook] Processing %s failed: %v", hook.Event, procErr)
		return jsonError(c, fiber.StatusInternalServerError, procErr.Error())
	}
	metrics.WebhooksReceived.WithLabelValues("razorpay", "processed").Inc()
	return c.JSON(resp)
}

func (ac *AutopayController) processWebhook(ctx context.Context, hook *billing.RazorpayWebhook) (fiber.Map, error) {
	refs, err := ac.billing.ResolveWebhookReferences(ctx, hook)
	if err != nil {
		return nil, err
	}
	if refs == nil {
		return fiber.Map{"ok": true, "event": hook.Event, "skipped": "missing_payment_or_subscription_reference"}, nil
	}

	res, err := ac.billing.EnsureAutopayOrder(ctx, billing.EnsureOrderInput{
		PaymentID:      refs.PaymentID,
		SubscriptionID: refs.SubscriptionID,
		Customer:       refs.Customer,
		OrderNote:      webhookOrderNote,
	})
	if err != nil {
		return nil, err
	}
	if res.Status == billing.OrderPaymentNotCaptured {
		return fiber.Map{
			"ok":            true,
			"event":         hook.Event,
			"skipped":       "payment_not_captured",
			"paymentStatus": res.PaymentStatus,
		}, nil
	}

	resp := fiber.Map{
		"ok":            true,
		"event":         hook.Event,
		"alreadyExists": res.Status == billing.OrderAlreadyExists,
		"order":         res.Order,
	}
	ac.attachInvoice(ctx, resp, invoice.EnsureInput{
		PaymentID:         refs.PaymentID,
		SubscriptionID:    refs.SubscriptionID,
		SourceEvent:       hook.Event,
		Customer:          &res.Customer,
		Order:             res.Order,
		RazorpayInvoiceID: refs.RazorpayInvoiceID,
	})
	return resp, nil
}

// attachInvoice adds the invoice outcome to resp. An invoice failure never
// fails the order response.
func (ac *AutopayController) attachInvoice(ctx context.Context, resp fiber.Map, in invoice.EnsureInput) *invoice.EnsureResult {
	if ac.invoices == nil {
		return nil
	}
	res, err := ac.invoices.EnsureInvoiceForAutopayPayment(ctx, in)
	if err != nil {
		log.Errorf("[Invoice] Failed to issue invoice for payment %s: %v", in.PaymentID, err)
		resp["invoiceError"] = err.Error()
		return nil
	}
	resp["invoice"] = res
	return res
}
