package invoice

import (
	"fmt"
	"strings"
	"time"

	"github.com/wandernook/wandernook/internal/pkg/billing"
)

// BuildInvoiceNumber returns WN-YYYYMM-<payment id without "pay_">, with the
// month taken in loc so the number is stable across regenerations.
func BuildInvoiceNumber(paymentID string, issuedAt time.Time, loc *time.Location) string {
	suffix := paymentID
	if len(suffix) >= 4 && strings.EqualFold(suffix[:4], "pay_") {
		suffix = suffix[4:]
	}
	local := issuedAt.In(loc)
	return fmt.Sprintf("WN-%04d%02d-%s", local.Year(), int(local.Month()), strings.ToUpper(suffix))
}

type BillingWindow struct {
	PeriodStart time.Time
	PeriodEnd   time.Time
	IssuedAt    time.Time
}

// DeriveBillingWindow prefers the subscription's current cycle. Without it
// the period runs one cycle from the payment time.
func DeriveBillingWindow(plan *billing.PlanConfig, pay *billing.Payment, sub *billing.Subscription, now time.Time) BillingWindow {
	issuedAt := pay.CreatedTime()
	if issuedAt.IsZero() {
		issuedAt = now
	}

	if sub != nil && sub.CurrentStart != nil && sub.CurrentEnd != nil && *sub.CurrentStart > 0 && *sub.CurrentEnd > 0 {
		return BillingWindow{
			PeriodStart: time.Unix(*sub.CurrentStart, 0),
			PeriodEnd:   time.Unix(*sub.CurrentEnd, 0),
			IssuedAt:    issuedAt,
		}
	}

	end := issuedAt.AddDate(1, 0, 0)
	if plan.Cycle == billing.CycleMonthly {
		end = issuedAt.AddDate(0, 1, 0)
	}
	return BillingWindow{PeriodStart: issuedAt, PeriodEnd: end, IssuedAt: issuedAt}
}
