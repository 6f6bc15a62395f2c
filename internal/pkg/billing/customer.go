package billing

import (
	"errors"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const DefaultCountry = "India"

// CustomerDetails is the shipping/billing identity attached to an autopay
// subscription. The validate tags describe the checkout form.
type CustomerDetails struct {
	Name         string `json:"name" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"required,numeric,min=10,max=15"`
	AddressLine1 string `json:"addressLine1" validate:"required"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city" validate:"required"`
	State        string `json:"state" validate:"required"`
	Pincode      string `json:"pincode" validate:"required"`
	Country      string `json:"country,omitempty"`
}

var customerValidator = validator.New()

// Sanitized applies the trim and length caps used everywhere customer data
// enters the system.
func (c CustomerDetails) Sanitized() CustomerDetails {
	return CustomerDetails{
		Name:         SanitizeText(c.Name, 120),
		Email:        strings.ToLower(SanitizeText(c.Email, 120)),
		Phone:        NormalizePhone(c.Phone),
		AddressLine1: SanitizeText(c.AddressLine1, 120),
		AddressLine2: SanitizeText(c.AddressLine2, 120),
		City:         SanitizeText(c.City, 80),
		State:        SanitizeText(c.State, 80),
		Pincode:      SanitizeText(c.Pincode, 20),
		Country:      SanitizeText(firstNonEmpty(c.Country, DefaultCountry), 60),
	}
}

// Complete reports whether every field needed for an order is present.
func (c CustomerDetails) Complete() bool {
	return len(c.MissingFields()) == 0
}

func (c CustomerDetails) MissingFields() []string {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"name", c.Name},
		{"email", c.Email},
		{"phone", c.Phone},
		{"addressLine1", c.AddressLine1},
		{"city", c.City},
		{"state", c.State},
		{"pincode", c.Pincode},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// ValidateCheckout runs the checkout form rules and returns a
// *ValidationError with the message shown to the customer.
func (c CustomerDetails) ValidateCheckout() error {
	err := customerValidator.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ValidationError{Message: err.Error()}
	}
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			return &ValidationError{
				Message: "Please provide all required customer details (name, email, phone, address, city, state, pincode).",
			}
		}
	}
	for _, fe := range fieldErrs {
		if fe.Field() == "Email" {
			return &ValidationError{Message: "Please enter a valid email address."}
		}
	}
	return &ValidationError{Message: "Please enter a valid phone number (10-15 digits)."}
}

// MergeCustomerDetails picks each field from the caller input, then the
// subscription notes, then the gateway's own contact fields.
func MergeCustomerDetails(input *CustomerDetails, sub *Subscription, pay *Payment) CustomerDetails {
	var in CustomerDetails
	if input != nil {
		in = *input
	}
	notes := Notes{}
	var subEmail, subContact string
	if sub != nil {
		if sub.Notes != nil {
			notes = sub.Notes
		}
		subEmail, subContact = sub.CustomerEmail, sub.CustomerContact
	}
	var payEmail, payContact string
	if pay != nil {
		payEmail, payContact = pay.Email, pay.Contact
	}

	return CustomerDetails{
		Name:         SanitizeText(firstNonEmpty(in.Name, notes["customer_name"]), 120),
		Email:        SanitizeText(strings.ToLower(firstNonEmpty(in.Email, notes["customer_email"], subEmail, payEmail)), 120),
		Phone:        NormalizePhone(firstNonEmpty(in.Phone, notes["customer_phone"], subContact, payContact)),
		AddressLine1: SanitizeText(firstNonEmpty(in.AddressLine1, notes["customer_address_1"]), 120),
		AddressLine2: SanitizeText(firstNonEmpty(in.AddressLine2, notes["customer_address_2"]), 120),
		City:         SanitizeText(firstNonEmpty(in.City, notes["customer_city"]), 80),
		State:        SanitizeText(firstNonEmpty(in.State, notes["customer_state"]), 80),
		Pincode:      SanitizeText(firstNonEmpty(in.Pincode, notes["customer_pincode"]), 20),
		Country:      SanitizeText(firstNonEmpty(in.Country, notes["customer_country"], DefaultCountry), 60),
	}
}

// CustomerFromInvoice maps the gateway invoice's customer block, preferring
// the billing address over the shipping address.
func CustomerFromInvoice(details *InvoiceCustomerDetails) *CustomerDetails {
	if details == nil {
		return nil
	}
	addr := details.BillingAddress
	if addr == nil {
		addr = details.ShippingAddress
	}
	if addr == nil {
		addr = &InvoiceAddress{}
	}
	return &CustomerDetails{
		Name:         SanitizeText(firstNonEmpty(details.Name, details.CustomerName), 120),
		Email:        SanitizeText(strings.ToLower(firstNonEmpty(details.Email, details.CustomerEmail)), 120),
		Phone:        NormalizePhone(firstNonEmpty(details.Contact, details.CustomerContact)),
		AddressLine1: SanitizeText(addr.Line1, 120),
		AddressLine2: SanitizeText(addr.Line2, 120),
		City:         SanitizeText(addr.City, 80),
		State:        SanitizeText(addr.State, 80),
		Pincode:      SanitizeText(addr.Zipcode, 20),
		Country:      SanitizeText(firstNonEmpty(addr.Country, DefaultCountry), 60),
	}
}

// SplitName derives order first/last names from a full name.
func SplitName(fullName string) (string, string) {
	parts := strings.Fields(fullName)
	switch len(parts) {
	case 0:
		return "Customer", "Autopay"
	case 1:
		return parts[0], "Autopay"
	default:
		return parts[0], truncate(strings.Join(parts[1:], " "), 60)
	}
}

// SanitizeText trims v and caps it at max runes.
func SanitizeText(v string, max int) string {
	return truncate(strings.TrimSpace(v), max)
}

// NormalizePhone keeps only the digits of the first 30 characters.
func NormalizePhone(v string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			return r
		}
		return -1
	}, SanitizeText(v, 30))
}

func truncate(v string, max int) string {
	if max <= 0 {
		return v
	}
	r := []rune(v)
	if len(r) <= max {
		return v
	}
	return string(r[:max])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if t := strings.TrimSpace(v); t != "" {
			return t
		}
	}
	return ""
}
