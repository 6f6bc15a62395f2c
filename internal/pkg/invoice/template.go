package invoice

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/wandernook/wandernook/app/models"
	"github.com/wandernook/wandernook/internal/pkg/config"
	"github.com/wandernook/wandernook/internal/pkg/constants"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const supportEmail = "support@wondernook.in"

type TemplateCustomer struct {
	FullName     string
	Email        string
	Phone        string
	AddressLine1 string
	AddressLine2 string
	City         string
	State        string
	Pincode      string
	Country      string
}

// Address joins the non-empty address parts.
func (c TemplateCustomer) Address() string {
	var parts []string
	for _, p := range []string{c.AddressLine1, c.AddressLine2, c.City, c.State, c.Pincode, c.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// TemplateInput feeds every rendering of an invoice: page, print, PDF and email.
type TemplateInput struct {
	InvoiceNumber          string
	IssuedAt               time.Time
	PaymentCapturedAt      *time.Time
	PeriodStart            *time.Time
	PeriodEnd              *time.Time
	AmountPaise            int64
	Currency               string
	BillingCycle           string
	PlanLabel              string
	RazorpayPaymentID      string
	RazorpaySubscriptionID string
	RazorpayInvoiceID      string
	ShopifyOrderName       string
	Customer               TemplateCustomer
}

func TemplateInputFromInvoice(inv *models.Invoice) TemplateInput {
	start, end := inv.PeriodStart, inv.PeriodEnd
	in := TemplateInput{
		InvoiceNumber:          inv.InvoiceNumber,
		IssuedAt:               inv.IssuedAt,
		PaymentCapturedAt:      inv.PaymentCapturedAt,
		PeriodStart:            &start,
		PeriodEnd:              &end,
		AmountPaise:            inv.AmountPaise,
		Currency:               inv.Currency,
		BillingCycle:           inv.BillingCycle,
		PlanLabel:              inv.PlanLabel,
		RazorpayPaymentID:      inv.RazorpayPaymentID,
		RazorpaySubscriptionID: inv.RazorpaySubscriptionID,
		RazorpayInvoiceID:      deref(inv.RazorpayInvoiceID),
		ShopifyOrderName:       deref(inv.ShopifyOrderName),
		Customer: TemplateCustomer{
			FullName:     inv.Customer.FullName,
			Email:        inv.Customer.Email,
			Phone:        inv.Customer.Phone,
			AddressLine1: inv.Customer.AddressLine1,
			AddressLine2: deref(inv.Customer.AddressLine2),
			City:         inv.Customer.City,
			State:        inv.Customer.State,
			Pincode:      inv.Customer.Pincode,
			Country:      inv.Customer.Country,
		},
	}
	return in
}

// Renderer produces the HTML, email and PDF forms of an invoice.
type Renderer struct {
	company   config.CompanyProfile
	siteURL   string
	loc       *time.Location
	logos     Logos
	publicDir string
	fontPath  string

	// compress is switched off in tests to inspect PDF text.
	compress bool
}

func NewRenderer(cfg config.InvoiceConfig, siteURL string) *Renderer {
	siteURL = config.NormalizeSiteURL(siteURL)
	return &Renderer{
		company:   cfg.Company,
		siteURL:   siteURL,
		loc:       LoadLocation(cfg.Timezone),
		logos:     ResolveLogos(cfg.BrandLogo, cfg.StampLogo, siteURL),
		publicDir: cfg.PublicDir,
		fontPath:  cfg.PDFFontPath,
		compress:  true,
	}
}

func (r *Renderer) Location() *time.Location { return r.loc }

// PublicURL is the customer-facing link for an invoice token.
func (r *Renderer) PublicURL(token string) string {
	return r.siteURL + constants.InvoiceRoute + "/" + token
}

// PageOptions controls the web page variant. Print renders the standalone
// printable document.
type PageOptions struct {
	Token string
	Print bool
}

type pageView struct {
	Number            string
	IssueDate         string
	PaymentDate       string
	Period            string
	Amount            string
	PlanLabel         string
	BillingCycle      string
	PaymentID         string
	SubscriptionID    string
	RazorpayInvoiceID string
	ShopifyOrderName  string
	Customer          TemplateCustomer
	Address           string
	Company           config.CompanyProfile
	Logos             Logos
	SupportEmail      string
	Print             bool
	PDFURL            string
	PrintURL          string
}

func (r *Renderer) RenderHTML(in TemplateInput, opts PageOptions) (string, error) {
	view := pageView{
		Number:            in.InvoiceNumber,
		IssueDate:         FormatDate(&in.IssuedAt, r.loc),
		PaymentDate:       FormatDate(paymentDate(in), r.loc),
		Period:            r.period(in),
		Amount:            FormatCurrency(in.AmountPaise, in.Currency),
		PlanLabel:         in.PlanLabel,
		BillingCycle:      in.BillingCycle,
		PaymentID:         in.RazorpayPaymentID,
		SubscriptionID:    in.RazorpaySubscriptionID,
		RazorpayInvoiceID: in.RazorpayInvoiceID,
		ShopifyOrderName:  in.ShopifyOrderName,
		Customer:          in.Customer,
		Address:           in.Customer.Address(),
		Company:           r.company,
		Logos:             r.logos,
		SupportEmail:      supportEmail,
		Print:             opts.Print,
	}
	if opts.Token != "" {
		view.PDFURL = constants.InvoiceRoute + "/" + opts.Token + "/pdf"
		view.PrintURL = constants.InvoiceRoute + "/" + opts.Token + "/print"
	}
	return execute("invoice", view)
}

type emailView struct {
	CustomerName  string
	InvoiceNumber string
	InvoiceURL    string
	Amount        string
	PlanLabel     string
	BillingCycle  string
	IssueDate     string
	Logos         Logos
	SupportEmail  string
}

func (r *Renderer) RenderEmailHTML(in TemplateInput, invoiceURL string) (string, error) {
	return execute("email", emailView{
		CustomerName:  in.Customer.FullName,
		InvoiceNumber: in.InvoiceNumber,
		InvoiceURL:    invoiceURL,
		Amount:        FormatCurrency(in.AmountPaise, in.Currency),
		PlanLabel:     in.PlanLabel,
		BillingCycle:  in.BillingCycle,
		IssueDate:     FormatDate(&in.IssuedAt, r.loc),
		Logos:         r.logos,
		SupportEmail:  supportEmail,
	})
}

func (r *Renderer) RenderEmailText(in TemplateInput, invoiceURL string) string {
	return strings.Join([]string{
		fmt.Sprintf("Hi %s,", in.Customer.FullName),
		"",
		"Thanks for your payment. Your Wander Nook invoice is ready.",
		"Invoice: " + in.InvoiceNumber,
		fmt.Sprintf("Plan: %s (%s)", in.PlanLabel, in.BillingCycle),
		"Amount: " + FormatCurrency(in.AmountPaise, in.Currency),
		"View invoice: " + invoiceURL,
		"",
		"Regards,",
		"Wander Nook",
	}, "\n")
}

func (r *Renderer) period(in TemplateInput) string {
	return FormatDate(in.PeriodStart, r.loc) + " - " + FormatDate(in.PeriodEnd, r.loc)
}

func paymentDate(in TemplateInput) *time.Time {
	if in.PaymentCapturedAt != nil && !in.PaymentCapturedAt.IsZero() {
		return in.PaymentCapturedAt
	}
	return &in.IssuedAt
}

func execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
