package controllers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/wandernook/wandernook/app/models"
	"github.com/wandernook/wandernook/internal/pkg/billing"
	"github.com/wandernook/wandernook/internal/pkg/config"
	"github.com/wandernook/wandernook/internal/pkg/invoice"
	"github.com/wandernook/wandernook/internal/pkg/mail"
	"github.com/wandernook/wandernook/internal/pkg/shopify"
	"github.com/wandernook/wandernook/internal/pkg/tracking"
)

const (
	testKeySecret     = "rzp_key_secret"
	testWebhookSecret = "rzp_webhook_secret"
	testShopifySecret = "shopify_secret"
)

func testRazorpayConfig() config.RazorpayConfig {
	return config.RazorpayConfig{
		KeyID:         "rzp_test_key",
		KeySecret:     testKeySecret,
		WebhookSecret: testWebhookSecret,
	}
}

func testPlans() *billing.PlanRegistry {
	return billing.NewPlanRegistry(map[string]config.PlanMapping{
		config.PlanMonthlyAutopay: {RazorpayPlanID: "plan_monthly", ShopifyVariantID: "111"},
		config.PlanAnnualAutopay:  {RazorpayPlanID: "plan_annual", ShopifyVariantID: "gid://shopify/ProductVariant/222"},
	})
}

func testInvoiceConfig() config.InvoiceConfig {
	return config.InvoiceConfig{
		Company: config.CompanyProfile{
			CompanyName:  "Wander Stamps",
			TradeName:    "Wander Stamps",
			AddressLines: []string{"Grant Road (W), Mumbai 400007"},
			Email:        "support@wondernook.in",
			GSTNumber:    "27FQTPS4280J2ZU",
		},
		PublicDir: "testdata/missing",
		Timezone:  "Asia/Kolkata",
	}
}

// signHex signs payload the way Razorpay does.
func signHex(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func signBase64(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var r io.Reader
	switch v := body.(type) {
	case nil:
	case []byte:
		r = bytes.NewReader(v)
	default:
		b, err := json.Marshal(v)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func doJSON(t *testing.T, app *fiber.App, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

// billing fakes

type memOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*models.AutopayOrder
	events map[string]*models.BillingWebhookEvent
	nextID uint
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{
		orders: map[string]*models.AutopayOrder{},
		events: map[string]*models.BillingWebhookEvent{},
	}
}

func (r *memOrderRepo) FindAutopayOrder(ctx context.Context, paymentID string) (*models.AutopayOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[paymentID]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (r *memOrderRepo) ClaimAutopayOrder(ctx context.Context, order *models.AutopayOrder) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.RazorpayPaymentID]; ok {
		return false, nil
	}
	cp := *order
	r.orders[order.RazorpayPaymentID] = &cp
	return true, nil
}

func (r *memOrderRepo) TakeOverStaleClaim(ctx context.Context, paymentID string, staleBefore, now time.Time) (bool, error) {
	return false, nil
}

func (r *memOrderRepo) CompleteAutopayOrder(ctx context.Context, paymentID, orderID, orderName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[paymentID]
	if !ok {
		o = &models.AutopayOrder{RazorpayPaymentID: paymentID}
		r.orders[paymentID] = o
	}
	o.Status = models.AutopayOrderStatusCreated
	o.ShopifyOrderID = &orderID
	o.ShopifyOrderName = &orderName
	return nil
}

func (r *memOrderRepo) ReleaseAutopayOrder(ctx context.Context, paymentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.orders, paymentID)
	return nil
}

func (r *memOrderRepo) CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := event.Provider + "/" + event.ProviderEventID
	if stored, ok := r.events[key]; ok {
		cp := *stored
		return false, &cp, nil
	}
	r.nextID++
	event.ID = r.nextID
	cp := *event
	r.events[key] = &cp
	return true, event, nil
}

func (r *memOrderRepo) MarkWebhookProcessed(ctx context.Context, id uint, processingError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.ID == id {
			now := time.Now()
			e.ProcessedAt = &now
			e.ProcessingError = processingError
			return nil
		}
	}
	return errors.New("webhook event not found")
}

func (r *memOrderRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

type fakeGateway struct {
	mu            sync.Mutex
	subscriptions map[string]*billing.Subscription
	payments      map[string]*billing.Payment
	created       int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		subscriptions: map[string]*billing.Subscription{},
		payments:      map[string]*billing.Payment{},
	}
}

func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

func (g *fakeGateway) FetchSubscription(ctx context.Context, id string) (*billing.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.subscriptions[id]
	if !ok {
		return nil, &billing.UpstreamError{Service: "razorpay", Status: 400, Message: "The id provided does not exist"}
	}
	cp := *s
	return &cp, nil
}

func (g *fakeGateway) FetchPayment(ctx context.Context, id string) (*billing.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.payments[id]
	if !ok {
		return nil, &billing.UpstreamError{Service: "razorpay", Status: 400, Message: "The id provided does not exist"}
	}
	cp := *p
	return &cp, nil
}

func (g *fakeGateway) FetchInvoice(ctx context.Context, id string) (*billing.RazorpayInvoice, error) {
	return nil, &billing.UpstreamError{Service: "razorpay", Status: 400, Message: "The id provided does not exist"}
}

// CreateSubscription keeps the subscription so later fetches see the
// checkout notes, like the real gateway.
func (g *fakeGateway) CreateSubscription(ctx context.Context, req billing.CreateSubscriptionRequest) (*billing.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created++
	sub := &billing.Subscription{
		ID:     "sub_" + strconv.Itoa(g.created),
		PlanID: req.PlanID,
		Status: "created",
		Notes:  req.Notes,
	}
	g.subscriptions[sub.ID] = sub
	cp := *sub
	return &cp, nil
}

func (g *fakeGateway) capture(paymentID, subscriptionID string, amount int64, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if sub, ok := g.subscriptions[subscriptionID]; ok {
		sub.Status = "active"
	}
	g.payments[paymentID] = &billing.Payment{
		ID:        paymentID,
		Amount:    amount,
		Currency:  "INR",
		Status:    status,
		CreatedAt: 1767259800,
	}
}

type fakeShop struct {
	mu        sync.Mutex
	orders    []shopify.OrderInput
	cancelled []int64
	cancelErr error
}

func (s *fakeShop) Configured() bool { return true }

func (s *fakeShop) FindOrderByTag(ctx context.Context, tag string) (*shopify.OrderRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, o := range s.orders {
		for _, t := range strings.Split(o.Tags, ", ") {
			if t == tag {
				return &shopify.OrderRef{ID: strconv.Itoa(5001 + i), Name: "#" + strconv.Itoa(1001+i)}, nil
			}
		}
	}
	return nil, nil
}

func (s *fakeShop) CreateOrder(ctx context.Context, in shopify.OrderInput) (*shopify.OrderRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, in)
	n := len(s.orders)
	return &shopify.OrderRef{ID: strconv.Itoa(5000 + n), Name: "#" + strconv.Itoa(1000+n)}, nil
}

func (s *fakeShop) CancelOrder(ctx context.Context, orderID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelErr != nil {
		return s.cancelErr
	}
	s.cancelled = append(s.cancelled, orderID)
	return nil
}

func (s *fakeShop) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// invoice fakes

type memInvoiceRepo struct {
	mu        sync.Mutex
	invoices  map[string]*models.Invoice
	customers map[string]*models.Customer
	seq       int
}

func newMemInvoiceRepo() *memInvoiceRepo {
	return &memInvoiceRepo{
		invoices:  map[string]*models.Invoice{},
		customers: map[string]*models.Customer{},
	}
}

func (r *memInvoiceRepo) find(match func(*models.Invoice) bool) *models.Invoice {
	for _, inv := range r.invoices {
		if match(inv) {
			cp := *inv
			if c, ok := r.customers[inv.CustomerID]; ok {
				cp.Customer = *c
			}
			return &cp
		}
	}
	return nil
}

func (r *memInvoiceRepo) FindByPaymentID(ctx context.Context, paymentID string) (*models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(i *models.Invoice) bool { return i.RazorpayPaymentID == paymentID }), nil
}

func (r *memInvoiceRepo) FindByID(ctx context.Context, id string) (*models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(i *models.Invoice) bool { return i.ID == id }), nil
}

func (r *memInvoiceRepo) FindByPublicToken(ctx context.Context, token string) (*models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(i *models.Invoice) bool { return i.PublicToken == token }), nil
}

func (r *memInvoiceRepo) UpsertCustomer(ctx context.Context, c *models.Customer) (*models.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.customers {
		if existing.Email == c.Email {
			id := existing.ID
			*existing = *c
			existing.ID = id
			cp := *existing
			return &cp, nil
		}
	}
	r.seq++
	cp := *c
	cp.ID = "cust-" + strconv.Itoa(r.seq)
	r.customers[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *memInvoiceRepo) Create(ctx context.Context, inv *models.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.invoices {
		if existing.RazorpayPaymentID == inv.RazorpayPaymentID {
			return invoice.ErrDuplicate
		}
	}
	r.seq++
	inv.ID = "inv-" + strconv.Itoa(r.seq)
	cp := *inv
	cp.Customer = models.Customer{}
	r.invoices[inv.ID] = &cp
	return nil
}

func (r *memInvoiceRepo) MarkEmailSent(ctx context.Context, id string, at time.Time, providerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inv, ok := r.invoices[id]; ok {
		inv.EmailSentAt = &at
		inv.EmailProviderID = &providerID
	}
	return nil
}

func (r *memInvoiceRepo) MarkArchived(ctx context.Context, id string, at time.Time, key string) error {
	return nil
}

func (r *memInvoiceRepo) List(ctx context.Context, query string, limit int) ([]models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Invoice
	for _, inv := range r.invoices {
		if query == "" || strings.Contains(inv.InvoiceNumber, query) {
			out = append(out, *r.find(func(i *models.Invoice) bool { return i.ID == inv.ID }))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memInvoiceRepo) ListCustomers(ctx context.Context, query string, limit int) ([]models.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Customer
	for _, c := range r.customers {
		if query == "" || strings.Contains(c.Email, query) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *memInvoiceRepo) ListUnarchived(ctx context.Context, limit int) ([]models.Invoice, error) {
	return nil, nil
}

func (r *memInvoiceRepo) all() []models.Invoice {
	out, _ := r.List(context.Background(), "", 0)
	return out
}

type fakeMailer struct {
	mu     sync.Mutex
	sent   []mail.Message
	result mail.Result
	err    error
}

func (m *fakeMailer) Send(ctx context.Context, msg mail.Message) (mail.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return mail.Result{}, m.err
	}
	if m.result.Sent {
		m.sent = append(m.sent, msg)
	}
	return m.result, nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type recordingTracker struct {
	mu     sync.Mutex
	events []tracking.Event
}

func (r *recordingTracker) Track(ctx context.Context, ev tracking.Event) tracking.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return tracking.Outcome{Recorded: true}
}

func (r *recordingTracker) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		out = append(out, ev.Name)
	}
	return out
}
