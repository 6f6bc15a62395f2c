package invoice

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wandernook/wandernook/app/models"
	"github.com/wandernook/wandernook/internal/pkg/billing"
	"github.com/wandernook/wandernook/internal/pkg/mail"
	"github.com/wandernook/wandernook/internal/pkg/shopify"
)

func newTestService(repo *memRepo, b *fakeBilling, m *fakeMailer) *Service {
	s := NewService(repo, b, m, testRenderer())
	s.now = func() time.Time { return time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC) }
	return s
}

func ensureInput() EnsureInput {
	return EnsureInput{
		PaymentID:      "pay_Nx7Qa1",
		SubscriptionID: "sub_1",
		SourceEvent:    "autopay_verify",
		Order:          &shopify.OrderRef{ID: "5001", Name: "#1001"},
	}
}

func TestEnsureInvoice_CreatesAndEmails(t *testing.T) {
	repo, b, m := newMemRepo(), newFakeBilling(), sentMailer()
	s := newTestService(repo, b, m)

	res, err := s.EnsureInvoiceForAutopayPayment(context.Background(), ensureInput())
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.True(t, res.EmailSent)
	assert.Equal(t, "WN-202601-NX7QA1", res.InvoiceNumber)
	assert.Len(t, res.PublicToken, PublicTokenLength)

	stored, err := repo.FindByID(context.Background(), res.InvoiceID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "annual-autopay", stored.PlanID)
	assert.Equal(t, "Annual Autopay", stored.PlanLabel)
	assert.Equal(t, "yearly", stored.BillingCycle)
	assert.Equal(t, int64(230000), stored.AmountPaise)
	assert.Equal(t, "inv_R1", *stored.RazorpayInvoiceID)
	assert.Equal(t, "#1001", *stored.ShopifyOrderName)
	assert.Equal(t, "autopay_verify", stored.SourceEvent)
	assert.Equal(t, "asha@example.com", stored.Customer.Email)
	assert.Equal(t, "919876543210", stored.Customer.Phone)
	require.NotNil(t, stored.EmailSentAt)
	assert.Equal(t, "msg_1", *stored.EmailProviderID)

	require.Len(t, m.sent, 1)
	msg := m.sent[0]
	assert.Equal(t, "asha@example.com", msg.To)
	assert.Equal(t, "Invoice WN-202601-NX7QA1 - Wander Nook", msg.Subject)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "WN-202601-NX7QA1.pdf", msg.Attachments[0].Filename)
	assert.True(t, strings.HasPrefix(string(msg.Attachments[0].Content), "%PDF"))
	assert.Contains(t, msg.Text, "https://wondernook.in/invoice/"+res.PublicToken)
	assert.Contains(t, msg.HTML, "₹2,300.00")
}

func TestEnsureInvoice_Idempotent(t *testing.T) {
	repo, b, m := newMemRepo(), newFakeBilling(), sentMailer()
	s := newTestService(repo, b, m)

	first, err := s.EnsureInvoiceForAutopayPayment(context.Background(), ensureInput())
	require.NoError(t, err)
	second, err := s.EnsureInvoiceForAutopayPayment(context.Background(), ensureInput())
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.True(t, second.EmailSent)
	assert.Equal(t, first.InvoiceID, second.InvoiceID)
	assert.Equal(t, first.InvoiceNumber, second.InvoiceNumber)
	assert.Equal(t, first.PublicToken, second.PublicToken)
	assert.Len(t, m.sent, 1, "confirmed delivery is not repeated")
	assert.Equal(t, 1, b.calls, "existing invoices skip the gateway")
}

func TestEnsureInvoice_UnconfiguredMailerRetriesLater(t *testing.T) {
	repo, b := newMemRepo(), newFakeBilling()
	m := &fakeMailer{result: mail.Result{Sent: false, SkippedReason: mail.SkippedMissingProvider}}
	s := newTestService(repo, b, m)

	res, err := s.EnsureInvoiceForAutopayPayment(context.Background(), ensureInput())
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.False(t, res.EmailSent)
	assert.Equal(t, "missing_email_provider_config", res.EmailSkippedReason)

	m.result = mail.Result{Sent: true, ProviderID: "msg_2"}
	again, err := s.EnsureInvoiceForAutopayPayment(context.Background(), ensureInput())
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.True(t, again.EmailSent)
	assert.Equal(t, 2, m.attempts)
}

func TestEnsureInvoice_MailerErrorDoesNotFailCreation(t *testing.T) {
	repo, b := newMemRepo(), newFakeBilling()
	m := &fakeMailer{err: errors.New("smtp: connection refused")}
	s := newTestService(repo, b, m)

	res, err := s.EnsureInvoiceForAutopayPayment(context.Background(), ensureInput())
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.False(t, res.EmailSent)
	assert.Equal(t, "smtp: connection refused", res.EmailError)

	stored, _ := repo.FindByID(context.Background(), res.InvoiceID)
	assert.Nil(t, stored.EmailSentAt)
}

func TestEnsureInvoice_Rejections(t *testing.T) {
	t.Run("missing ids", func(t *testing.T) {
		s := newTestService(newMemRepo(), newFakeBilling(), sentMailer())
		_, err := s.EnsureInvoiceForAutopayPayment(context.Background(), EnsureInput{PaymentID: " "})
		var ve *billing.ValidationError
		require.ErrorAs(t, err, &ve)
	})

	t.Run("not captured", func(t *testing.T) {
		repo, b := newMemRepo(), newFakeBilling()
		b.pay.Status = "authorized"
		s := newTestService(repo, b, sentMailer())
		_, err := s.EnsureInvoiceForAutopayPayment(context.Background(), ensureInput())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "authorized")
		assert.Empty(t, repo.invoices)
	})

	t.Run("unmappable plan", func(t *testing.T) {
		repo, b := newMemRepo(), newFakeBilling()
		b.sub.PlanID = "plan_other"
		s := newTestService(repo, b, sentMailer())
		_, err := s.EnsureInvoiceForAutopayPayment(context.Background(), ensureInput())
		require.Error(t, err)
		assert.Empty(t, repo.invoices)
	})

	t.Run("incomplete customer", func(t *testing.T) {
		repo, b := newMemRepo(), newFakeBilling()
		delete(b.sub.Notes, "customer_pincode")
		s := newTestService(repo, b, sentMailer())
		_, err := s.EnsureInvoiceForAutopayPayment(context.Background(), ensureInput())
		require.Error(t, err)
		assert.Empty(t, repo.customers)
	})
}

func TestEnsureInvoice_NameDefaultsToCustomer(t *testing.T) {
	repo, b := newMemRepo(), newFakeBilling()
	delete(b.sub.Notes, "customer_name")
	s := newTestService(repo, b, sentMailer())

	res, err := s.EnsureInvoiceForAutopayPayment(context.Background(), ensureInput())
	require.NoError(t, err)
	stored, _ := repo.FindByID(context.Background(), res.InvoiceID)
	assert.Equal(t, "Customer", stored.Customer.FullName)
}

func TestEnsureInvoice_LosesInsertRace(t *testing.T) {
	repo, b, m := newMemRepo(), newFakeBilling(), sentMailer()
	sentAt := time.Now()
	repo.raceWith = &models.Invoice{
		ID:                "inv-race",
		InvoiceNumber:     "WN-202601-NX7QA1",
		RazorpayPaymentID: "pay_Nx7Qa1",
		PublicToken:       "racetoken",
		EmailSentAt:       &sentAt,
	}
	s := newTestService(repo, b, m)

	res, err := s.EnsureInvoiceForAutopayPayment(context.Background(), ensureInput())
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.True(t, res.EmailSent)
	assert.Equal(t, "inv-race", res.InvoiceID)
	assert.Empty(t, m.sent)
}

func TestEnsureInvoice_EnqueuesArchive(t *testing.T) {
	repo, b := newMemRepo(), newFakeBilling()
	s := newTestService(repo, b, sentMailer())
	archive := &fakeArchive{}
	s.UseArchive(archive, archive)

	res, err := s.EnsureInvoiceForAutopayPayment(context.Background(), ensureInput())
	require.NoError(t, err)
	assert.Equal(t, []string{res.InvoiceID}, archive.queued)

	require.NoError(t, s.ArchiveInvoice(context.Background(), res.InvoiceID))
	key := "invoices/2026/01/WN-202601-NX7QA1.pdf"
	assert.Contains(t, archive.objects, key)

	stored, _ := repo.FindByID(context.Background(), res.InvoiceID)
	require.NotNil(t, stored.ArchiveKey)
	assert.Equal(t, key, *stored.ArchiveKey)

	n, err := s.EnqueueArchiveBacklog(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestEnqueueArchiveBacklog_SkipsInvoicesWithLiveJob(t *testing.T) {
	repo, b := newMemRepo(), newFakeBilling()
	s := newTestService(repo, b, sentMailer())
	archive := &fakeArchive{}
	s.UseArchive(archive, archive)

	res, err := s.EnsureInvoiceForAutopayPayment(context.Background(), ensureInput())
	require.NoError(t, err)
	require.Equal(t, []string{res.InvoiceID}, archive.queued)

	// The upload is still waiting or retrying.
	n, err := s.EnqueueArchiveBacklog(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, archive.queued, 1)

	// The job gave up without archiving; the next sweep queues it again.
	archive.finish(res.InvoiceID)
	n, err = s.EnqueueArchiveBacklog(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{res.InvoiceID, res.InvoiceID}, archive.queued)
}

func TestResendInvoiceEmail(t *testing.T) {
	repo, b, m := newMemRepo(), newFakeBilling(), sentMailer()
	s := newTestService(repo, b, m)
	res, err := s.EnsureInvoiceForAutopayPayment(context.Background(), ensureInput())
	require.NoError(t, err)

	d, err := s.ResendInvoiceEmail(context.Background(), res.InvoiceID)
	require.NoError(t, err)
	assert.True(t, d.EmailSent)
	assert.Len(t, m.sent, 2)

	_, err = s.ResendInvoiceEmail(context.Background(), "")
	assert.ErrorIs(t, err, ErrIDRequired)
	_, err = s.ResendInvoiceEmail(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	m.err = errors.New("provider down")
	_, err = s.ResendInvoiceEmail(context.Background(), res.InvoiceID)
	assert.EqualError(t, err, "provider down")
}

func TestPublicTokenReads(t *testing.T) {
	repo, b := newMemRepo(), newFakeBilling()
	s := newTestService(repo, b, sentMailer())
	cache := &mapCache{}
	s.UsePDFCache(cache, time.Hour)

	res, err := s.EnsureInvoiceForAutopayPayment(context.Background(), ensureInput())
	require.NoError(t, err)
	setsAfterCreate := cache.sets

	inv, err := s.GetInvoiceByPublicToken(context.Background(), "  "+res.PublicToken+" ")
	require.NoError(t, err)
	require.NotNil(t, inv)

	missing, err := s.GetInvoiceByPublicToken(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, missing)

	page, err := s.RenderDocument(context.Background(), res.PublicToken, false)
	require.NoError(t, err)
	assert.Contains(t, page, "WN-202601-NX7QA1")
	assert.Contains(t, page, "/invoice/"+res.PublicToken+"/pdf")

	pdf, err := s.RenderPDF(context.Background(), res.PublicToken)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf), "%PDF"))
	assert.Equal(t, setsAfterCreate, cache.sets, "pdf served from cache")

	none, err := s.RenderPDF(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, none)
}
