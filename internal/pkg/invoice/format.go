package invoice

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var currencySymbols = map[string]string{
	"INR": "₹",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
}

// FormatCurrency renders a minor-unit amount with two decimals and en-IN
// digit grouping, e.g. ₹1,00,000.00.
func FormatCurrency(amountMinor int64, currency string) string {
	code := strings.ToUpper(strings.TrimSpace(currency))
	symbol, ok := currencySymbols[code]
	if !ok {
		symbol = code + " "
	}
	return formatWithPrefix(amountMinor, symbol)
}

// FormatCurrencyASCII is FormatCurrency with the ISO code in place of the
// symbol, for output that cannot draw non-Latin-1 glyphs.
func FormatCurrencyASCII(amountMinor int64, currency string) string {
	code := strings.ToUpper(strings.TrimSpace(currency))
	return formatWithPrefix(amountMinor, code+" ")
}

func formatWithPrefix(amountMinor int64, prefix string) string {
	amount := decimal.New(amountMinor, -2)
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Abs()
	}
	fixed := amount.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")
	return sign + prefix + groupIndian(whole) + "." + frac
}

// groupIndian groups the last three digits, then every two.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var parts []string
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	if head != "" {
		parts = append([]string{head}, parts...)
	}
	return strings.Join(parts, ",") + "," + tail
}

const dateLayout = "02 Jan 2006"

// FormatDate renders t in loc, or "-" for a nil or zero time.
func FormatDate(t *time.Time, loc *time.Location) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(dateLayout)
}

// LoadLocation falls back to a fixed +05:30 zone when tzdata is unavailable.
func LoadLocation(name string) *time.Location {
	if name == "" {
		name = "Asia/Kolkata"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("IST", 5*60*60+30*60)
	}
	return loc
}
