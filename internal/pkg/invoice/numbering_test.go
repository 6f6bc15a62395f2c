package invoice

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wandernook/wandernook/internal/pkg/billing"
)

func TestBuildInvoiceNumber(t *testing.T) {
	loc := LoadLocation("Asia/Kolkata")
	issued := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, "WN-202603-NX7QA1", BuildInvoiceNumber("pay_Nx7Qa1", issued, loc))
	assert.Equal(t, "WN-202603-ABC", BuildInvoiceNumber("PAY_abc", issued, loc))
	assert.Equal(t, "WN-202603-XYZ", BuildInvoiceNumber("xyz", issued, loc))

	// month boundary follows the invoice timezone
	endOfMonthUTC := time.Date(2026, 3, 31, 19, 0, 0, 0, time.UTC)
	assert.Equal(t, "WN-202604-ABC", BuildInvoiceNumber("pay_abc", endOfMonthUTC, loc))
}

func TestBuildInvoiceNumber_Stable(t *testing.T) {
	loc := LoadLocation("Asia/Kolkata")
	issued := time.Unix(1767259800, 0)
	first := BuildInvoiceNumber("pay_Nx7Qa1", issued, loc)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, BuildInvoiceNumber("pay_Nx7Qa1", issued, loc))
	}
}

func TestDeriveBillingWindow(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	monthly := &billing.PlanConfig{ID: "monthly-autopay", Cycle: billing.CycleMonthly}
	annual := &billing.PlanConfig{ID: "annual-autopay", Cycle: billing.CycleYearly}
	created := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	pay := &billing.Payment{CreatedAt: created.Unix()}

	t.Run("subscription cycle wins", func(t *testing.T) {
		start, end := int64(1767225600), int64(1798761600)
		w := DeriveBillingWindow(annual, pay, &billing.Subscription{CurrentStart: &start, CurrentEnd: &end}, now)
		assert.Equal(t, time.Unix(start, 0), w.PeriodStart)
		assert.Equal(t, time.Unix(end, 0), w.PeriodEnd)
		assert.True(t, w.IssuedAt.Equal(created))
	})

	t.Run("monthly fallback", func(t *testing.T) {
		w := DeriveBillingWindow(monthly, pay, &billing.Subscription{}, now)
		assert.True(t, w.PeriodStart.Equal(created))
		assert.True(t, w.PeriodEnd.Equal(created.AddDate(0, 1, 0)))
	})

	t.Run("annual fallback without payment time", func(t *testing.T) {
		w := DeriveBillingWindow(annual, &billing.Payment{}, nil, now)
		assert.True(t, w.IssuedAt.Equal(now))
		assert.True(t, w.PeriodEnd.Equal(now.AddDate(1, 0, 0)))
	})
}

func TestNewPublicToken(t *testing.T) {
	_, err := NewPublicToken(0)
	require.Error(t, err)

	seen := map[string]struct{}{}
	for i := 0; i < 100; i++ {
		tok, err := NewPublicToken(PublicTokenLength)
		require.NoError(t, err)
		require.Len(t, tok, 32)
		for _, c := range tok {
			require.True(t, strings.ContainsRune(tokenAlphabet, c), "unexpected %q", c)
		}
		_, dup := seen[tok]
		require.False(t, dup)
		seen[tok] = struct{}{}
	}
}
