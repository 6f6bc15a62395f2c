package models

import "time"

const (
	AutopayOrderStatusPending = "pending"
	AutopayOrderStatusCreated = "created"
)

// AutopayOrder maps a captured gateway payment to the single commerce order
// created for it. The unique payment id is the claim that serializes
// concurrent reconcilers.
type AutopayOrder struct {
	ID                     uint      `gorm:"primaryKey" json:"id"`
	RazorpayPaymentID      string    `gorm:"type:varchar(80);not null;uniqueIndex" json:"razorpayPaymentId"`
	RazorpaySubscriptionID string    `gorm:"type:varchar(80);not null;index" json:"razorpaySubscriptionId"`
	PlanID                 string    `gorm:"type:varchar(40);not null" json:"planId"`
	ShopifyOrderID         *string   `gorm:"type:varchar(80);default:null" json:"shopifyOrderId"`
	ShopifyOrderName       *string   `gorm:"type:varchar(80);default:null" json:"shopifyOrderName"`
	Status                 string    `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	ClaimedAt              time.Time `gorm:"not null" json:"claimedAt"`
	CreatedAt              time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt              time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}
