package controllers

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/wandernook/wandernook/app/models"
	"github.com/wandernook/wandernook/internal/pkg/billing"
	"github.com/wandernook/wandernook/internal/pkg/metrics"
	"github.com/wandernook/wandernook/internal/pkg/shopify"
)

type OrderCanceller interface {
	Configured() bool
	CancelOrder(ctx context.Context, orderID int64) error
}

// WebhookRecorder keeps the delivery log used to drop redelivered webhooks.
type WebhookRecorder interface {
	RecordWebhookEvent(ctx context.Context, in billing.WebhookEventInput) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error
}

// ShopifyController receives the order webhooks and cancels autopay orders
// that Shopify reports as unpaid.
type ShopifyController struct {
	orders        OrderCanceller
	events        WebhookRecorder
	webhookSecret string
}

func NewShopifyController(orders OrderCanceller, events WebhookRecorder, webhookSecret string) *ShopifyController {
	return &ShopifyController{
		orders:        orders,
		events:        events,
		webhookSecret: strings.TrimSpace(webhookSecret),
	}
}

// orderWebhookError carries the HTTP answer for a delivery that could not be
// handled.
type orderWebhookError struct {
	status  int
	message string
	cause   error
}

func (e *orderWebhookError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (sc *ShopifyController) HandleOrdersWebhook(c *fiber.Ctx) error {
	if sc.orders == nil || !sc.orders.Configured() || sc.webhookSecret == "" {
		log.Error("[Shopify] Order webhook received but Shopify is not configured")
		return jsonError(c, fiber.StatusInternalServerError, "Missing Shopify webhook configuration")
	}

	signature := c.Get("x-shopify-hmac-sha256")
	if signature == "" {
		metrics.WebhooksReceived.WithLabelValues("shopify", "unsigned").Inc()
		return jsonError(c, fiber.StatusUnauthorized, "Missing webhook signature")
	}
	body := copyBody(c)
	if ok, _ := billing.VerifyWebhookSignature(body, signature, sc.webhookSecret, billing.SignatureBase64); !ok {
		metrics.WebhooksReceived.WithLabelValues("shopify", "invalid_signature").Inc()
		return jsonError(c, fiber.StatusUnauthorized, "Invalid webhook signature")
	}

	topic := c.Get("x-shopify-topic")
	if topic != "orders/create" && topic != "orders/updated" {
		metrics.WebhooksReceived.WithLabelValues("shopify", "ignored").Inc()
		return c.JSON(fiber.Map{"ok": true})
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	var stored *models.BillingWebhookEvent
	if sc.events != nil {
		inserted, ev, err := sc.events.RecordWebhookEvent(ctx, billing.WebhookEventInput{
			Provider:        models.WebhookProviderShopify,
			ProviderEventID: c.Get("x-shopify-webhook-id"),
			EventType:       topic,
			PayloadJSON:     string(body),
			SignatureValid:  true,
		})
		if err != nil {
			log.Warnf("[Shopify] Failed to record %s delivery: %v", topic, err)
		} else {
			stored = ev
		}
		if !inserted && stored != nil && stored.ProcessedAt != nil && stored.ProcessingError == "" {
			metrics.WebhooksReceived.WithLabelValues("shopify", "duplicate").Inc()
			return c.JSON(fiber.Map{"ok": true, "duplicate": true})
		}
	}

	resp, procErr := sc.processOrder(ctx, body)
	if stored != nil {
		var markErr error
		if procErr != nil {
			markErr = procErr
		}
		if err := sc.events.MarkWebhookProcessed(ctx, stored.ID, markErr); err != nil {
			log.Warnf("[Shopify] Failed to mark delivery %d processed: %v", stored.ID, err)
		}
	}
	if procErr != nil {
		return jsonError(c, procErr.status, procErr.message)
	}
	return c.JSON(resp)
}

func (sc *ShopifyController) processOrder(ctx context.Context, body []byte) (fiber.Map, *orderWebhookError) {
	order, err := shopify.ParseOrderWebhook(body)
	if err != nil {
		return nil, &orderWebhookError{status: fiber.StatusBadRequest, message: "Invalid webhook payload", cause: err}
	}
	if !order.IsAutopayOrder() || !order.ShouldCancelForUnpaidStatus() {
		metrics.WebhooksReceived.WithLabelValues("shopify", "ignored").Inc()
		return fiber.Map{"ok": true}, nil
	}

	orderID, ok := order.OrderID()
	if !ok {
		return nil, &orderWebhookError{status: fiber.StatusBadRequest, message: "Invalid order id in webhook payload"}
	}

	if err := sc.orders.CancelOrder(ctx, orderID); err != nil {
		metrics.WebhooksReceived.WithLabelValues("shopify", "failed").Inc()
		log.Errorf("[Shopify] Failed to cancel unpaid autopay order %d: %v", orderID, err)
		return nil, &orderWebhookError{status: fiber.StatusInternalServerError, message: "Webhook processing failed", cause: err}
	}

	metrics.WebhooksReceived.WithLabelValues("shopify", "processed").Inc()
	log.Infof("[Shopify] Cancelled unpaid autopay order %d", orderID)
	return fiber.Map{
		"ok":          true,
		"action":      "cancelled_unpaid_autopay_order",
		"orderId":     orderID,
		"orderNumber": order.OrderNumberValue(),
	}, nil
}
