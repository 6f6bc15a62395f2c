package billing

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/wandernook/wandernook/app/models"
	"github.com/wandernook/wandernook/internal/pkg/config"
	"github.com/wandernook/wandernook/internal/pkg/shopify"
)

func testPlans() *PlanRegistry {
	return NewPlanRegistry(map[string]config.PlanMapping{
		config.PlanMonthlyAutopay: {RazorpayPlanID: "plan_monthly", ShopifyVariantID: "gid://shopify/ProductVariant/111"},
		config.PlanAnnualAutopay:  {RazorpayPlanID: "plan_annual", ShopifyVariantID: "222"},
	})
}

type memRepo struct {
	mu     sync.Mutex
	orders map[string]*models.AutopayOrder
	events map[string]*models.BillingWebhookEvent
	nextID uint
}

func newMemRepo() *memRepo {
	return &memRepo{
		orders: map[string]*models.AutopayOrder{},
		events: map[string]*models.BillingWebhookEvent{},
	}
}

func (r *memRepo) FindAutopayOrder(ctx context.Context, paymentID string) (*models.AutopayOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[paymentID]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (r *memRepo) ClaimAutopayOrder(ctx context.Context, order *models.AutopayOrder) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.RazorpayPaymentID]; ok {
		return false, nil
	}
	cp := *order
	r.orders[order.RazorpayPaymentID] = &cp
	return true, nil
}

func (r *memRepo) TakeOverStaleClaim(ctx context.Context, paymentID string, staleBefore, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[paymentID]
	if !ok || o.Status != models.AutopayOrderStatusPending || !o.ClaimedAt.Before(staleBefore) {
		return false, nil
	}
	o.ClaimedAt = now
	return true, nil
}

func (r *memRepo) CompleteAutopayOrder(ctx context.Context, paymentID, orderID, orderName string) error {
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

func (r *memRepo) ReleaseAutopayOrder(ctx context.Context, paymentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[paymentID]; ok && o.Status == models.AutopayOrderStatusPending {
		delete(r.orders, paymentID)
	}
	return nil
}

func (r *memRepo) CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := event.Provider + "/" + event.ProviderEventID
	if stored, ok := r.events[key]; ok {
		return false, stored, nil
	}
	r.nextID++
	event.ID = r.nextID
	r.events[key] = event
	return true, event, nil
}

func (r *memRepo) MarkWebhookProcessed(ctx context.Context, id uint, processingError string) error {
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
	return errors.New("not found")
}

type fakeGateway struct {
	mu            sync.Mutex
	subscriptions map[string]*Subscription
	payments      map[string]*Payment
	invoices      map[string]*RazorpayInvoice
	created       []CreateSubscriptionRequest
	err           error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		subscriptions: map[string]*Subscription{},
		payments:      map[string]*Payment{},
		invoices:      map[string]*RazorpayInvoice{},
	}
}

func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

func (g *fakeGateway) FetchSubscription(ctx context.Context, id string) (*Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	s, ok := g.subscriptions[id]
	if !ok {
		return nil, &UpstreamError{Service: "razorpay", Status: 400, Message: "The id provided does not exist"}
	}
	return s, nil
}

func (g *fakeGateway) FetchPayment(ctx context.Context, id string) (*Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.payments[id]
	if !ok {
		return nil, &UpstreamError{Service: "razorpay", Status: 400, Message: "The id provided does not exist"}
	}
	return p, nil
}

func (g *fakeGateway) FetchInvoice(ctx context.Context, id string) (*RazorpayInvoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	inv, ok := g.invoices[id]
	if !ok {
		return nil, &UpstreamError{Service: "razorpay", Status: 400, Message: "The id provided does not exist"}
	}
	return inv, nil
}

func (g *fakeGateway) CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created = append(g.created, req)
	return &Subscription{ID: "sub_new_" + strconv.Itoa(len(g.created)), PlanID: req.PlanID, Status: "created"}, nil
}

type fakeOrders struct {
	mu        sync.Mutex
	orders    []shopify.OrderInput
	byTag     map[string]*shopify.OrderRef
	createErr error
	searches  int
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{byTag: map[string]*shopify.OrderRef{}}
}

func (o *fakeOrders) Configured() bool { return true }

func (o *fakeOrders) FindOrderByTag(ctx context.Context, tag string) (*shopify.OrderRef, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.searches++
	return o.byTag[tag], nil
}

func (o *fakeOrders) CreateOrder(ctx context.Context, in shopify.OrderInput) (*shopify.OrderRef, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.createErr != nil {
		return nil, o.createErr
	}
	o.orders = append(o.orders, in)
	n := len(o.orders)
	return &shopify.OrderRef{ID: strconv.Itoa(5000 + n), Name: "#" + strconv.Itoa(1000+n)}, nil
}

func (o *fakeOrders) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.orders)
}

// seedCapturedAnnual registers an annual subscription with a captured payment
// carrying full customer notes.
func seedCapturedAnnual(g *fakeGateway, paymentID, subscriptionID string, amount int64) {
	g.subscriptions[subscriptionID] = &Subscription{
		ID:     subscriptionID,
		PlanID: "plan_annual",
		Status: "active",
		Notes: Notes{
			"customer_name":      "Asha Rao",
			"customer_email":     "Asha@Example.com",
			"customer_phone":     "+91 98200-11111",
			"customer_address_1": "12 Park Street",
			"customer_city":      "Mumbai",
			"customer_state":     "Maharashtra",
			"customer_pincode":   "400001",
		},
	}
	g.payments[paymentID] = &Payment{
		ID:        paymentID,
		Amount:    amount,
		Currency:  "INR",
		Status:    "captured",
		CreatedAt: 1735689600,
	}
}
