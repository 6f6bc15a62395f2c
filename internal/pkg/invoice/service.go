package invoice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/wandernook/wandernook/app/models"
	"github.com/wandernook/wandernook/internal/pkg/billing"
	"github.com/wandernook/wandernook/internal/pkg/mail"
	"github.com/wandernook/wandernook/internal/pkg/metrics"
	"github.com/wandernook/wandernook/internal/pkg/shopify"
)

var (
	ErrNotFound   = errors.New("invoice not found")
	ErrIDRequired = errors.New("invoice id is required")
)

const (
	listLimit      = 200
	maxQueryLength = 80
	unknownEvent   = "unknown_event"
)

// Billing is the part of the billing service invoices depend on.
type Billing interface {
	FetchSubscriptionAndPayment(ctx context.Context, subscriptionID, paymentID string) (*billing.Subscription, *billing.Payment, error)
	Plans() *billing.PlanRegistry
}

// PDFCache stores rendered PDFs by key. Misses and failures are both
// reported as not found.
type PDFCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration)
}

// ArchiveQueue queues archive uploads. queued is false when a job for the
// invoice is already waiting or retrying.
type ArchiveQueue interface {
	EnqueueInvoiceArchive(ctx context.Context, invoiceID string) (queued bool, err error)
}

type ObjectStore interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
}

type Service struct {
	repo     Repository
	billing  Billing
	mailer   mail.Sender
	renderer *Renderer

	cache    PDFCache
	cacheTTL time.Duration
	archive  ArchiveQueue
	store    ObjectStore

	now func() time.Time
}

func NewService(repo Repository, b Billing, mailer mail.Sender, renderer *Renderer) *Service {
	return &Service{
		repo:     repo,
		billing:  b,
		mailer:   mailer,
		renderer: renderer,
		now:      time.Now,
	}
}

// UsePDFCache enables caching of rendered PDFs by public token.
func (s *Service) UsePDFCache(c PDFCache, ttl time.Duration) {
	s.cache = c
	s.cacheTTL = ttl
}

// UseArchive enables archiving of new invoices to object storage.
func (s *Service) UseArchive(q ArchiveQueue, store ObjectStore) {
	s.archive = q
	s.store = store
}

func (s *Service) Renderer() *Renderer { return s.renderer }

type EnsureInput struct {
	PaymentID         string
	SubscriptionID    string
	SourceEvent       string
	Customer          *billing.CustomerDetails
	Order             *shopify.OrderRef
	RazorpayInvoiceID string
}

type EnsureResult struct {
	InvoiceID          string `json:"invoiceId"`
	InvoiceNumber      string `json:"invoiceNumber"`
	PublicToken        string `json:"publicToken"`
	Created            bool   `json:"created"`
	EmailSent          bool   `json:"emailSent"`
	EmailSkippedReason string `json:"emailSkippedReason,omitempty"`
	EmailError         string `json:"emailError,omitempty"`
}

type DeliveryResult struct {
	EmailSent          bool   `json:"emailSent"`
	EmailSkippedReason string `json:"emailSkippedReason,omitempty"`
}

// EnsureInvoiceForAutopayPayment creates the single invoice for a captured
// payment and emails it. Repeated calls return the stored invoice and only
// retry delivery while no email has been confirmed.
func (s *Service) EnsureInvoiceForAutopayPayment(ctx context.Context, in EnsureInput) (*EnsureResult, error) {
	paymentID := billing.SanitizeText(in.PaymentID, 80)
	subscriptionID := billing.SanitizeText(in.SubscriptionID, 80)
	if paymentID == "" || subscriptionID == "" {
		return nil, &billing.ValidationError{Message: "Missing payment/subscription details for invoice creation."}
	}

	existing, err := s.repo.FindByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.resultForExisting(ctx, existing), nil
	}

	sub, pay, err := s.billing.FetchSubscriptionAndPayment(ctx, subscriptionID, paymentID)
	if err != nil {
		return nil, err
	}
	if pay.Status != billing.PaymentCaptured {
		return nil, fmt.Errorf("invoice can only be created for captured payments, got: %s", pay.Status)
	}
	plan := s.billing.Plans().ResolveByRazorpayPlanID(sub.PlanID)
	if plan == nil {
		return nil, errors.New("unable to map subscription plan for invoice creation")
	}

	details := billing.MergeCustomerDetails(in.Customer, sub, pay)
	if details.Name == "" {
		details.Name = "Customer"
	}
	if !details.Complete() {
		return nil, errors.New("cannot generate invoice without complete customer billing details")
	}

	customer, err := s.repo.UpsertCustomer(ctx, customerModel(details))
	if err != nil {
		return nil, fmt.Errorf("upsert customer: %w", err)
	}

	token, err := NewPublicToken(PublicTokenLength)
	if err != nil {
		return nil, err
	}
	window := DeriveBillingWindow(plan, pay, sub, s.now())
	capturedAt := window.IssuedAt

	inv := &models.Invoice{
		InvoiceNumber:          BuildInvoiceNumber(pay.ID, window.IssuedAt, s.renderer.Location()),
		CustomerID:             customer.ID,
		PlanID:                 plan.ID,
		PlanLabel:              plan.DisplayName,
		BillingCycle:           string(plan.Cycle),
		AmountPaise:            pay.Amount,
		Currency:               pay.Currency,
		PeriodStart:            window.PeriodStart,
		PeriodEnd:              window.PeriodEnd,
		IssuedAt:               window.IssuedAt,
		PaymentCapturedAt:      &capturedAt,
		RazorpayPaymentID:      pay.ID,
		RazorpaySubscriptionID: sub.ID,
		RazorpayInvoiceID:      optional(billing.SanitizeText(firstNonEmpty(in.RazorpayInvoiceID, pay.InvoiceID), 80)),
		SourceEvent:            firstNonEmpty(billing.SanitizeText(in.SourceEvent, 120), unknownEvent),
		PublicToken:            token,
	}
	if in.Order != nil {
		inv.ShopifyOrderID = optional(in.Order.ID)
		inv.ShopifyOrderName = optional(billing.SanitizeText(in.Order.Name, 40))
	}

	if err := s.repo.Create(ctx, inv); err != nil {
		if errors.Is(err, ErrDuplicate) {
			raced, findErr := s.repo.FindByPaymentID(ctx, pay.ID)
			if findErr != nil {
				return nil, findErr
			}
			if raced != nil {
				return s.resultForExisting(ctx, raced), nil
			}
		}
		return nil, err
	}
	inv.Customer = *customer
	metrics.InvoicesCreated.Inc()
	log.Infof("[Invoice] Created %s for payment %s (%s)", inv.InvoiceNumber, inv.RazorpayPaymentID, inv.SourceEvent)

	s.enqueueArchive(ctx, inv)

	res := &EnsureResult{
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		PublicToken:   inv.PublicToken,
		Created:       true,
	}
	s.applyDelivery(ctx, inv, res)
	return res, nil
}

func (s *Service) resultForExisting(ctx context.Context, inv *models.Invoice) *EnsureResult {
	res := &EnsureResult{
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		PublicToken:   inv.PublicToken,
		Created:       false,
	}
	if inv.EmailSentAt != nil {
		res.EmailSent = true
		return res
	}
	s.applyDelivery(ctx, inv, res)
	return res
}

// applyDelivery never fails the surrounding invoice operation.
func (s *Service) applyDelivery(ctx context.Context, inv *models.Invoice, res *EnsureResult) {
	d, err := s.deliver(ctx, inv)
	if err != nil {
		log.Errorf("[Invoice] Email for %s failed: %v", inv.InvoiceNumber, err)
		res.EmailSent = false
		res.EmailError = err.Error()
		return
	}
	res.EmailSent = d.EmailSent
	res.EmailSkippedReason = d.EmailSkippedReason
}

func (s *Service) deliver(ctx context.Context, inv *models.Invoice) (*DeliveryResult, error) {
	input := TemplateInputFromInvoice(inv)
	url := s.renderer.PublicURL(inv.PublicToken)

	pdf, err := s.pdfFor(ctx, inv)
	if err != nil {
		metrics.InvoiceEmails.WithLabelValues("failed").Inc()
		return nil, err
	}
	html, err := s.renderer.RenderEmailHTML(input, url)
	if err != nil {
		metrics.InvoiceEmails.WithLabelValues("failed").Inc()
		return nil, err
	}

	sent, err := s.mailer.Send(ctx, mail.Message{
		To:      inv.Customer.Email,
		Subject: fmt.Sprintf("Invoice %s - Wander Nook", inv.InvoiceNumber),
		HTML:    html,
		Text:    s.renderer.RenderEmailText(input, url),
		Attachments: []mail.Attachment{{
			Filename:    inv.InvoiceNumber + ".pdf",
			Content:     pdf,
			ContentType: "application/pdf",
		}},
	})
	if err != nil {
		metrics.InvoiceEmails.WithLabelValues("failed").Inc()
		return nil, err
	}
	if !sent.Sent {
		metrics.InvoiceEmails.WithLabelValues("skipped").Inc()
		return &DeliveryResult{EmailSent: false, EmailSkippedReason: sent.SkippedReason}, nil
	}

	if err := s.repo.MarkEmailSent(ctx, inv.ID, s.now(), sent.ProviderID); err != nil {
		log.Errorf("[Invoice] Sent %s but failed to record delivery: %v", inv.InvoiceNumber, err)
	}
	metrics.InvoiceEmails.WithLabelValues("sent").Inc()
	return &DeliveryResult{EmailSent: true}, nil
}

// ResendInvoiceEmail always sends, regardless of earlier deliveries.
func (s *Service) ResendInvoiceEmail(ctx context.Context, invoiceID string) (*DeliveryResult, error) {
	id := billing.SanitizeText(invoiceID, 80)
	if id == "" {
		return nil, ErrIDRequired
	}
	inv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, ErrNotFound
	}
	return s.deliver(ctx, inv)
}

// GetInvoiceByPublicToken returns nil, nil for an unknown or empty token.
func (s *Service) GetInvoiceByPublicToken(ctx context.Context, token string) (*models.Invoice, error) {
	t := billing.SanitizeText(token, 80)
	if t == "" {
		return nil, nil
	}
	return s.repo.FindByPublicToken(ctx, t)
}

// RenderDocument renders the invoice page for a token, or "" when unknown.
func (s *Service) RenderDocument(ctx context.Context, token string, printable bool) (string, error) {
	inv, err := s.GetInvoiceByPublicToken(ctx, token)
	if err != nil || inv == nil {
		return "", err
	}
	return s.renderer.RenderHTML(TemplateInputFromInvoice(inv), PageOptions{Token: inv.PublicToken, Print: printable})
}

// RenderPDF returns the PDF for a token, or nil when unknown.
func (s *Service) RenderPDF(ctx context.Context, token string) ([]byte, error) {
	inv, err := s.GetInvoiceByPublicToken(ctx, token)
	if err != nil || inv == nil {
		return nil, err
	}
	return s.pdfFor(ctx, inv)
}

func (s *Service) pdfFor(ctx context.Context, inv *models.Invoice) ([]byte, error) {
	key := "invoice:pdf:" + inv.PublicToken
	if s.cache != nil {
		if data, ok := s.cache.Get(ctx, key); ok {
			return data, nil
		}
	}
	data, err := s.renderer.RenderPDF(TemplateInputFromInvoice(inv))
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, key, data, s.cacheTTL)
	}
	return data, nil
}

func (s *Service) ListInvoices(ctx context.Context, query string) ([]models.Invoice, error) {
	return s.repo.List(ctx, billing.SanitizeText(query, maxQueryLength), listLimit)
}

func (s *Service) ListCustomers(ctx context.Context, query string) ([]models.Customer, error) {
	return s.repo.ListCustomers(ctx, billing.SanitizeText(query, maxQueryLength), listLimit)
}

func customerModel(d billing.CustomerDetails) *models.Customer {
	return &models.Customer{
		FullName:     d.Name,
		Email:        d.Email,
		Phone:        d.Phone,
		AddressLine1: d.AddressLine1,
		AddressLine2: optional(d.AddressLine2),
		City:         d.City,
		State:        d.State,
		Pincode:      d.Pincode,
		Country:      firstNonEmpty(d.Country, billing.DefaultCountry),
	}
}

func optional(v string) *string {
	if v = strings.TrimSpace(v); v == "" {
		return nil
	}
	return &v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
