package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/wandernook/wandernook/app/models"
)

// ArchiveKey is invoices/YYYY/MM/<number>.pdf, dated in loc.
func ArchiveKey(inv *models.Invoice, loc *time.Location) string {
	issued := inv.IssuedAt.In(loc)
	return fmt.Sprintf("invoices/%04d/%02d/%s.pdf", issued.Year(), int(issued.Month()), inv.InvoiceNumber)
}

func (s *Service) enqueueArchive(ctx context.Context, inv *models.Invoice) {
	if s.archive == nil {
		return
	}
	if _, err := s.archive.EnqueueInvoiceArchive(ctx, inv.ID); err != nil {
		log.Errorf("[Invoice] Failed to enqueue archive of %s: %v", inv.InvoiceNumber, err)
	}
}

// ArchiveInvoice uploads the invoice PDF and records the object key. Already
// archived invoices are left alone.
func (s *Service) ArchiveInvoice(ctx context.Context, invoiceID string) error {
	if s.store == nil {
		return fmt.Errorf("invoice archive storage is not configured")
	}
	inv, err := s.repo.FindByID(ctx, invoiceID)
	if err != nil {
		return err
	}
	if inv == nil {
		return ErrNotFound
	}
	if inv.ArchivedAt != nil {
		return nil
	}

	pdf, err := s.pdfFor(ctx, inv)
	if err != nil {
		return err
	}
	key := ArchiveKey(inv, s.renderer.Location())
	if err := s.store.PutObject(ctx, key, pdf, "application/pdf"); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	if err := s.repo.MarkArchived(ctx, inv.ID, s.now(), key); err != nil {
		return err
	}
	log.Infof("[Invoice] Archived %s to %s", inv.InvoiceNumber, key)
	return nil
}

// EnqueueArchiveBacklog queues up to limit invoices that have no archive
// copy yet and returns how many were queued. Invoices with a live job are
// skipped.
func (s *Service) EnqueueArchiveBacklog(ctx context.Context, limit int) (int, error) {
	if s.archive == nil {
		return 0, nil
	}
	pending, err := s.repo.ListUnarchived(ctx, limit)
	if err != nil {
		return 0, err
	}
	queued := 0
	for i := range pending {
		ok, err := s.archive.EnqueueInvoiceArchive(ctx, pending[i].ID)
		if err != nil {
			log.Errorf("[Invoice] Failed to enqueue archive of %s: %v", pending[i].InvoiceNumber, err)
			continue
		}
		if ok {
			queued++
		}
	}
	return queued, nil
}
