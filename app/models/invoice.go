package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Invoice is created once per captured gateway payment. Only the email and
// archive fields change after creation.
type Invoice struct {
	ID                     string     `gorm:"type:char(36);primaryKey" json:"id"`
	InvoiceNumber          string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"invoiceNumber"`
	CustomerID             string     `gorm:"type:char(36);not null;index" json:"customerId"`
	Customer               Customer   `gorm:"foreignKey:CustomerID" json:"customer"`
	PlanID                 string     `gorm:"type:varchar(40);not null" json:"planId"`
	PlanLabel              string     `gorm:"type:varchar(80);not null" json:"planLabel"`
	BillingCycle           string     `gorm:"type:varchar(16);not null" json:"billingCycle"`
	AmountPaise            int64      `gorm:"not null" json:"amountPaise"`
	Currency               string     `gorm:"type:varchar(3);not null;default:'INR'" json:"currency"`
	PeriodStart            time.Time  `gorm:"not null" json:"periodStart"`
	PeriodEnd              time.Time  `gorm:"not null" json:"periodEnd"`
	IssuedAt               time.Time  `gorm:"not null;index" json:"issuedAt"`
	PaymentCapturedAt      *time.Time `gorm:"default:null" json:"paymentCapturedAt"`
	RazorpayPaymentID      string     `gorm:"type:varchar(80);not null;uniqueIndex" json:"razorpayPaymentId"`
	RazorpaySubscriptionID string     `gorm:"type:varchar(80);not null;index" json:"razorpaySubscriptionId"`
	RazorpayInvoiceID      *string    `gorm:"type:varchar(80);default:null" json:"razorpayInvoiceId"`
	SourceEvent            string     `gorm:"type:varchar(120);not null" json:"sourceEvent"`
	ShopifyOrderID         *string    `gorm:"type:varchar(80);default:null" json:"shopifyOrderId"`
	ShopifyOrderName       *string    `gorm:"type:varchar(80);default:null" json:"shopifyOrderName"`
	PublicToken            string     `gorm:"type:varchar(80);not null;uniqueIndex" json:"publicToken"`
	EmailSentAt            *time.Time `gorm:"default:null" json:"emailSentAt"`
	EmailProviderID        *string    `gorm:"type:varchar(191);default:null" json:"emailProviderId"`
	ArchivedAt             *time.Time `gorm:"default:null" json:"archivedAt"`
	ArchiveKey             *string    `gorm:"type:varchar(255);default:null" json:"archiveKey"`
	CreatedAt              time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}
