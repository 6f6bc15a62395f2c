package models

import "time"

// ConversionEvent is an append-only analytics record.
type ConversionEvent struct {
	ID                     uint      `gorm:"primaryKey" json:"id"`
	EventName              string    `gorm:"type:varchar(100);not null;index" json:"eventName"`
	PlanID                 *string   `gorm:"type:varchar(40);default:null" json:"planId"`
	CustomerEmail          *string   `gorm:"type:varchar(120);default:null;index" json:"customerEmail"`
	RazorpayPaymentID      *string   `gorm:"type:varchar(80);default:null" json:"razorpayPaymentId"`
	RazorpaySubscriptionID *string   `gorm:"type:varchar(80);default:null" json:"razorpaySubscriptionId"`
	Metadata               *string   `gorm:"type:json;default:null" json:"metadata"`
	CreatedAt              time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}
