package models

import "time"

// SampleRequest is a lead captured by the sample issue download form.
type SampleRequest struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"type:varchar(120);not null" json:"name"`
	Email      string    `gorm:"type:varchar(120);not null;index" json:"email"`
	ContactNo  string    `gorm:"type:varchar(20);not null;default:''" json:"contactNo"`
	City       string    `gorm:"type:varchar(80);not null;default:''" json:"city"`
	SchoolName string    `gorm:"type:varchar(160);not null;default:''" json:"schoolName"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}
