package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wandernook/wandernook/internal/pkg/config"
	"github.com/wandernook/wandernook/internal/pkg/metrics"
)

const defaultRazorpayAPIBaseURL = "https://api.razorpay.com/v1"

// Gateway is the subset of the Razorpay API the billing flows depend on.
type Gateway interface {
	KeyID() string
	FetchSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	FetchPayment(ctx context.Context, paymentID string) (*Payment, error)
	FetchInvoice(ctx context.Context, invoiceID string) (*RazorpayInvoice, error)
	CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*Subscription, error)
}

type RazorpayClient struct {
	KeyIDValue string
	KeySecret  string
	APIBaseURL string

	HTTPClient *http.Client
}

func NewRazorpayClient(cfg config.RazorpayConfig) *RazorpayClient {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = defaultRazorpayAPIBaseURL
	}
	return &RazorpayClient{
		KeyIDValue: strings.TrimSpace(cfg.KeyID),
		KeySecret:  strings.TrimSpace(cfg.KeySecret),
		APIBaseURL: strings.TrimRight(base, "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *RazorpayClient) KeyID() string {
	return c.KeyIDValue
}

func (c *RazorpayClient) FetchSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	var out Subscription
	if err := c.do(ctx, http.MethodGet, "/subscriptions/"+url.PathEscape(subscriptionID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *RazorpayClient) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var out Payment
	if err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(paymentID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *RazorpayClient) FetchInvoice(ctx context.Context, invoiceID string) (*RazorpayInvoice, error) {
	var out RazorpayInvoice
	if err := c.do(ctx, http.MethodGet, "/invoices/"+url.PathEscape(invoiceID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *RazorpayClient) CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*Subscription, error) {
	var out Subscription
	if err := c.do(ctx, http.MethodPost, "/subscriptions", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type razorpayErrorBody struct {
	Error *struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (c *RazorpayClient) do(ctx context.Context, method, path string, payload any, out any) error {
	if c.KeyIDValue == "" {
		return &ConfigurationError{Message: "Missing required environment variable: RAZORPAY_KEY_ID"}
	}
	if c.KeySecret == "" {
		return &ConfigurationError{Message: "Missing required environment variable: RAZORPAY_KEY_SECRET"}
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.APIBaseURL+path, body)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.KeyIDValue, c.KeySecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	defer metrics.ObserveUpstream("razorpay", time.Now())
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("razorpay %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		upstream := &UpstreamError{
			Service: "razorpay",
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("Razorpay request failed with status %d", resp.StatusCode),
		}
		var eb razorpayErrorBody
		if json.Unmarshal(respBody, &eb) == nil && eb.Error != nil {
			if d := strings.TrimSpace(eb.Error.Description); d != "" {
				upstream.Message = d
			} else if code := strings.TrimSpace(eb.Error.Code); code != "" {
				upstream.Message = code
			}
		}
		return upstream
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &UpstreamError{
			Service: "razorpay",
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("Razorpay request failed with status %d", resp.StatusCode),
		}
	}
	return nil
}
