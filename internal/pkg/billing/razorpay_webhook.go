package billing

import (
	"context"
	"encoding/json"
)

var handledWebhookEvents = map[string]struct{}{
	"invoice.paid":         {},
	"subscription.charged": {},
	"payment.captured":     {},
}

type RazorpayWebhook struct {
	Event   string `json:"event"`
	Payload struct {
		Invoice *struct {
			Entity *RazorpayInvoice `json:"entity"`
		} `json:"invoice"`
		Payment *struct {
			Entity *Payment `json:"entity"`
		} `json:"payment"`
		Subscription *struct {
			Entity *Subscription `json:"entity"`
		} `json:"subscription"`
	} `json:"payload"`
}

func ParseRazorpayWebhook(body []byte) (*RazorpayWebhook, error) {
	var w RazorpayWebhook
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, err
	}
	w.Event = SanitizeText(w.Event, 80)
	return &w, nil
}

// Handled reports whether the event can carry a captured subscription charge.
func (w *RazorpayWebhook) Handled() bool {
	_, ok := handledWebhookEvents[w.Event]
	return ok
}

func (w *RazorpayWebhook) invoiceEntity() *RazorpayInvoice {
	if w.Payload.Invoice == nil {
		return nil
	}
	return w.Payload.Invoice.Entity
}

func (w *RazorpayWebhook) paymentEntity() *Payment {
	if w.Payload.Payment == nil {
		return nil
	}
	return w.Payload.Payment.Entity
}

func (w *RazorpayWebhook) subscriptionEntity() *Subscription {
	if w.Payload.Subscription == nil {
		return nil
	}
	return w.Payload.Subscription.Entity
}

// WebhookReferences identifies the charge a webhook talks about.
type WebhookReferences struct {
	PaymentID         string
	SubscriptionID    string
	RazorpayInvoiceID string
	Customer          *CustomerDetails
}

// ResolveWebhookReferences extracts payment and subscription ids from the
// webhook entities, fetching the gateway invoice when the payment only links
// to one. It returns nil when either id stays unknown.
func (s *Service) ResolveWebhookReferences(ctx context.Context, w *RazorpayWebhook) (*WebhookReferences, error) {
	inv := w.invoiceEntity()
	pay := w.paymentEntity()
	sub := w.subscriptionEntity()

	var invPaymentID, invSubID, invID, payID, payInvoiceID, subID string
	var customer *CustomerDetails
	if inv != nil {
		invPaymentID, invSubID, invID = inv.PaymentID, inv.SubscriptionID, inv.ID
		customer = CustomerFromInvoice(inv.CustomerDetails)
	}
	if pay != nil {
		payID, payInvoiceID = pay.ID, pay.InvoiceID
	}
	if sub != nil {
		subID = sub.ID
	}

	refs := &WebhookReferences{
		PaymentID:         SanitizeText(firstNonEmpty(invPaymentID, payID), 80),
		SubscriptionID:    SanitizeText(firstNonEmpty(invSubID, subID), 80),
		RazorpayInvoiceID: SanitizeText(firstNonEmpty(invID, payInvoiceID), 80),
		Customer:          customer,
	}

	if refs.PaymentID == "" || refs.SubscriptionID == "" {
		if invoiceID := SanitizeText(payInvoiceID, 80); invoiceID != "" {
			fetched, err := s.gateway.FetchInvoice(ctx, invoiceID)
			if err != nil {
				return nil, err
			}
			if refs.PaymentID == "" {
				refs.PaymentID = SanitizeText(firstNonEmpty(fetched.PaymentID, payID), 80)
			}
			if refs.SubscriptionID == "" {
				refs.SubscriptionID = SanitizeText(fetched.SubscriptionID, 80)
			}
			if refs.Customer == nil {
				refs.Customer = CustomerFromInvoice(fetched.CustomerDetails)
			}
		}
	}

	if refs.PaymentID == "" || refs.SubscriptionID == "" {
		return nil, nil
	}
	return refs, nil
}
