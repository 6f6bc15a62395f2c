package billing

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/wandernook/wandernook/internal/pkg/shopify"
)

// Notes is the gateway's free-form key/value bag. Razorpay serialises an
// empty bag as [] instead of {}.
type Notes map[string]string

func (n *Notes) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || trimmed[0] == '[' {
		*n = Notes{}
		return nil
	}
	raw := map[string]any{}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}
	out := make(Notes, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		case nil:
		default:
			b, _ := json.Marshal(val)
			out[k] = string(b)
		}
	}
	*n = out
	return nil
}

type Subscription struct {
	ID              string `json:"id"`
	PlanID          string `json:"plan_id"`
	Status          string `json:"status"`
	CustomerEmail   string `json:"customer_email"`
	CustomerContact string `json:"customer_contact"`
	Notes           Notes  `json:"notes"`
	CurrentStart    *int64 `json:"current_start"`
	CurrentEnd      *int64 `json:"current_end"`
	TotalCount      int    `json:"total_count"`
}

type Payment struct {
	ID        string `json:"id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
	Method    string `json:"method"`
	Email     string `json:"email"`
	Contact   string `json:"contact"`
	InvoiceID string `json:"invoice_id"`
	CreatedAt int64  `json:"created_at"`
}

// CreatedTime returns the payment creation time, or zero when unknown.
func (p *Payment) CreatedTime() time.Time {
	if p == nil || p.CreatedAt <= 0 {
		return time.Time{}
	}
	return time.Unix(p.CreatedAt, 0)
}

type InvoiceAddress struct {
	Line1   string `json:"line1"`
	Line2   string `json:"line2"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zipcode string `json:"zipcode"`
	Country string `json:"country"`
}

type InvoiceCustomerDetails struct {
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	Contact         string          `json:"contact"`
	CustomerName    string          `json:"customer_name"`
	CustomerEmail   string          `json:"customer_email"`
	CustomerContact string          `json:"customer_contact"`
	BillingAddress  *InvoiceAddress `json:"billing_address"`
	ShippingAddress *InvoiceAddress `json:"shipping_address"`
}

// RazorpayInvoice is the gateway's invoice entity for a subscription charge.
type RazorpayInvoice struct {
	ID              string                  `json:"id"`
	Status          string                  `json:"status"`
	PaymentID       string                  `json:"payment_id"`
	SubscriptionID  string                  `json:"subscription_id"`
	CustomerDetails *InvoiceCustomerDetails `json:"customer_details"`
}

// CreateSubscriptionRequest is the body of POST /subscriptions.
type CreateSubscriptionRequest struct {
	PlanID         string `json:"plan_id"`
	TotalCount     int    `json:"total_count"`
	Quantity       int    `json:"quantity"`
	CustomerNotify int    `json:"customer_notify"`
	Notes          Notes  `json:"notes"`
}

// OrderStatus tags the three outcomes of EnsureAutopayOrder.
type OrderStatus string

const (
	OrderPaymentNotCaptured OrderStatus = "payment_not_captured"
	OrderAlreadyExists      OrderStatus = "already_exists"
	OrderCreated            OrderStatus = "created"
)

// OrderResult carries PaymentStatus only for OrderPaymentNotCaptured and
// Order only for the two order outcomes.
type OrderResult struct {
	Status        OrderStatus
	PaymentStatus string
	Order         *shopify.OrderRef
	Plan          *PlanConfig
	Customer      CustomerDetails
}

type EnsureOrderInput struct {
	PaymentID      string
	SubscriptionID string
	ExpectedPlanID string
	Customer       *CustomerDetails
	OrderNote      string
}

// CheckoutResult is returned to the browser to open the gateway checkout.
type CheckoutResult struct {
	KeyID          string          `json:"keyId"`
	SubscriptionID string          `json:"subscriptionId"`
	Plan           CheckoutPlanRef `json:"plan"`
}

type CheckoutPlanRef struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	AmountInr  int64  `json:"amountInr"`
	Cycle      Cycle  `json:"cycle"`
	TotalCount int    `json:"totalCount"`
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}
