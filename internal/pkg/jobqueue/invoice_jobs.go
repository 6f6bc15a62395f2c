package jobqueue

import (
	"context"
	"fmt"
	"strings"
)

// InvoiceArchiver uploads one invoice PDF to object storage.
type InvoiceArchiver interface {
	ArchiveInvoice(ctx context.Context, invoiceID string) error
}

type InvoiceArchivePayload struct {
	InvoiceID string `json:"invoice_id"`
}

// EnqueueInvoiceArchive queues the archive upload for an invoice, keyed by
// the invoice id. It reports false when an upload for the invoice is already
// waiting, running or retrying.
func (q *Queue) EnqueueInvoiceArchive(ctx context.Context, invoiceID string) (bool, error) {
	invoiceID = strings.TrimSpace(invoiceID)
	if invoiceID == "" {
		return false, fmt.Errorf("invoice id is required")
	}
	_, queued, err := q.EnqueueUnique(ctx, JobTypeInvoiceArchive, invoiceID, InvoiceArchivePayload{InvoiceID: invoiceID})
	return queued, err
}

// InvoiceArchiveHandler runs invoice archive jobs against archiver.
func InvoiceArchiveHandler(archiver InvoiceArchiver) Handler {
	return func(ctx context.Context, job *Job) error {
		var payload InvoiceArchivePayload
		if err := job.Decode(&payload); err != nil {
			return fmt.Errorf("invalid invoice archive payload: %w", err)
		}
		id := strings.TrimSpace(payload.InvoiceID)
		if id == "" {
			return fmt.Errorf("invoice archive job %s has no invoice id", job.ID)
		}
		return archiver.ArchiveInvoice(ctx, id)
	}
}
