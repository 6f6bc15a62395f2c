package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Customer is the billed party of an invoice, upserted by email.
type Customer struct {
	ID           string    `gorm:"type:char(36);primaryKey" json:"id"`
	FullName     string    `gorm:"type:varchar(120);not null" json:"fullName"`
	Email        string    `gorm:"type:varchar(120);not null;uniqueIndex" json:"email"`
	Phone        string    `gorm:"type:varchar(30);not null" json:"phone"`
	AddressLine1 string    `gorm:"type:varchar(120);not null" json:"addressLine1"`
	AddressLine2 *string   `gorm:"type:varchar(120);default:null" json:"addressLine2"`
	City         string    `gorm:"type:varchar(80);not null" json:"city"`
	State        string    `gorm:"type:varchar(80);not null" json:"state"`
	Pincode      string    `gorm:"type:varchar(20);not null" json:"pincode"`
	Country      string    `gorm:"type:varchar(60);not null;default:'India'" json:"country"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
