package invoice

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/wandernook/wandernook/app/models"
	"github.com/wandernook/wandernook/internal/pkg/billing"
	"github.com/wandernook/wandernook/internal/pkg/config"
	"github.com/wandernook/wandernook/internal/pkg/mail"
)

func testConfig() config.InvoiceConfig {
	return config.InvoiceConfig{
		Company: config.CompanyProfile{
			CompanyName: "Wander Stamps",
			TradeName:   "Wander Stamps",
			AddressLines: []string{
				"2nd Floor, New Building",
				"Grant Road (W), Mumbai 400007",
			},
			Email:     "support@wondernook.in",
			Phone:     "+91 98200 67074",
			GSTNumber: "27FQTPS4280J2ZU",
			BankName:  "ICICI Bank",
			BankIFSC:  "ICIC0001216",
		},
		PublicDir: "testdata/missing",
		Timezone:  "Asia/Kolkata",
	}
}

func testRenderer() *Renderer {
	r := NewRenderer(testConfig(), "https://wondernook.in")
	r.compress = false
	return r
}

type memRepo struct {
	mu        sync.Mutex
	invoices  map[string]*models.Invoice
	customers map[string]*models.Customer

	// raceWith is inserted by the next Create to simulate a concurrent writer.
	raceWith *models.Invoice
	seq      int
}

func newMemRepo() *memRepo {
	return &memRepo{
		invoices:  map[string]*models.Invoice{},
		customers: map[string]*models.Customer{},
	}
}

func (r *memRepo) withCustomer(inv *models.Invoice) *models.Invoice {
	cp := *inv
	if c, ok := r.customers[inv.CustomerID]; ok {
		cp.Customer = *c
	}
	return &cp
}

func (r *memRepo) find(match func(*models.Invoice) bool) *models.Invoice {
	for _, inv := range r.invoices {
		if match(inv) {
			return r.withCustomer(inv)
		}
	}
	return nil
}

func (r *memRepo) FindByPaymentID(ctx context.Context, paymentID string) (*models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(i *models.Invoice) bool { return i.RazorpayPaymentID == paymentID }), nil
}

func (r *memRepo) FindByID(ctx context.Context, id string) (*models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(i *models.Invoice) bool { return i.ID == id }), nil
}

func (r *memRepo) FindByPublicToken(ctx context.Context, token string) (*models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(i *models.Invoice) bool { return i.PublicToken == token }), nil
}

func (r *memRepo) UpsertCustomer(ctx context.Context, c *models.Customer) (*models.Customer, error) {
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

func (r *memRepo) Create(ctx context.Context, inv *models.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.raceWith != nil {
		r.invoices[r.raceWith.ID] = r.raceWith
		r.raceWith = nil
	}
	for _, existing := range r.invoices {
		if existing.RazorpayPaymentID == inv.RazorpayPaymentID || existing.InvoiceNumber == inv.InvoiceNumber {
			return ErrDuplicate
		}
	}
	r.seq++
	inv.ID = "inv-" + strconv.Itoa(r.seq)
	cp := *inv
	cp.Customer = models.Customer{}
	r.invoices[inv.ID] = &cp
	return nil
}

func (r *memRepo) MarkEmailSent(ctx context.Context, id string, at time.Time, providerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return errors.New("missing invoice")
	}
	inv.EmailSentAt = &at
	inv.EmailProviderID = &providerID
	return nil
}

func (r *memRepo) MarkArchived(ctx context.Context, id string, at time.Time, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return errors.New("missing invoice")
	}
	inv.ArchivedAt = &at
	inv.ArchiveKey = &key
	return nil
}

func (r *memRepo) List(ctx context.Context, query string, limit int) ([]models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Invoice
	for _, inv := range r.invoices {
		full := r.withCustomer(inv)
		if query == "" || strings.Contains(full.InvoiceNumber, query) || strings.Contains(full.Customer.Email, query) {
			out = append(out, *full)
		}
	}
	return out, nil
}

func (r *memRepo) ListCustomers(ctx context.Context, query string, limit int) ([]models.Customer, error) {
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

func (r *memRepo) ListUnarchived(ctx context.Context, limit int) ([]models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Invoice
	for _, inv := range r.invoices {
		if inv.ArchivedAt == nil {
			out = append(out, *inv)
		}
	}
	return out, nil
}

type fakeBilling struct {
	plans *billing.PlanRegistry
	sub   *billing.Subscription
	pay   *billing.Payment
	err   error
	calls int
}

func newFakeBilling() *fakeBilling {
	start, end := int64(1767225600), int64(1798761600) // 2026-01-01 .. 2027-01-01 UTC
	return &fakeBilling{
		plans: billing.NewPlanRegistry(map[string]config.PlanMapping{
			config.PlanMonthlyAutopay: {RazorpayPlanID: "plan_monthly", ShopifyVariantID: "111"},
			config.PlanAnnualAutopay:  {RazorpayPlanID: "plan_annual", ShopifyVariantID: "222"},
		}),
		sub: &billing.Subscription{
			ID:     "sub_1",
			PlanID: "plan_annual",
			Status: "active",
			Notes: billing.Notes{
				"customer_name":      "Asha Rao",
				"customer_email":     "Asha@Example.com",
				"customer_phone":     "+91 98765 43210",
				"customer_address_1": "12 MG Road",
				"customer_city":      "Pune",
				"customer_state":     "Maharashtra",
				"customer_pincode":   "411001",
			},
			CurrentStart: &start,
			CurrentEnd:   &end,
		},
		pay: &billing.Payment{
			ID:        "pay_Nx7Qa1",
			Amount:    230000,
			Currency:  "INR",
			Status:    "captured",
			CreatedAt: 1767259800, // 2026-01-01 09:30 UTC
			InvoiceID: "inv_R1",
		},
	}
}

func (f *fakeBilling) FetchSubscriptionAndPayment(ctx context.Context, subscriptionID, paymentID string) (*billing.Subscription, *billing.Payment, error) {
	f.calls++
	if f.err != nil {
		return nil, nil, f.err
	}
	sub, pay := *f.sub, *f.pay
	return &sub, &pay, nil
}

func (f *fakeBilling) Plans() *billing.PlanRegistry { return f.plans }

type fakeMailer struct {
	mu       sync.Mutex
	sent     []mail.Message
	result   mail.Result
	err      error
	attempts int
}

func sentMailer() *fakeMailer {
	return &fakeMailer{result: mail.Result{Sent: true, ProviderID: "msg_1"}}
}

func (m *fakeMailer) Send(ctx context.Context, msg mail.Message) (mail.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if m.err != nil {
		return mail.Result{}, m.err
	}
	if m.result.Sent {
		m.sent = append(m.sent, msg)
	}
	return m.result, nil
}

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func (c *mapCache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *mapCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = map[string][]byte{}
	}
	c.data[key] = data
	c.sets++
}

// fakeArchive keeps one live job per invoice until finish is called.
type fakeArchive struct {
	queued  []string
	live    map[string]bool
	objects map[string][]byte
}

func (a *fakeArchive) EnqueueInvoiceArchive(ctx context.Context, invoiceID string) (bool, error) {
	if a.live[invoiceID] {
		return false, nil
	}
	if a.live == nil {
		a.live = map[string]bool{}
	}
	a.live[invoiceID] = true
	a.queued = append(a.queued, invoiceID)
	return true, nil
}

func (a *fakeArchive) finish(invoiceID string) { delete(a.live, invoiceID) }

func (a *fakeArchive) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	if a.objects == nil {
		a.objects = map[string][]byte{}
	}
	a.objects[key] = body
	return nil
}
