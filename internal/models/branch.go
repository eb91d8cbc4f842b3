package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Branch is a physical location of a brand
type Branch struct {
	ID         uuid.UUID      `gorm:"type:text;primary_key" json:"id"`
	BrandID    uuid.UUID      `gorm:"type:text;not null;index" json:"brand_id"`
	Brand      *Brand         `gorm:"foreignKey:BrandID" json:"brand,omitempty"`
	BranchName string         `gorm:"not null;index" json:"branch_name"`
	Logo       string         `json:"logo,omitempty"`
	SGKNumber  string         `gorm:"column:sgk_number" json:"sgk_number,omitempty"` // social security workplace number
	Country    string         `json:"country,omitempty"`
	City       string         `json:"city,omitempty"`
	District   string         `json:"district,omitempty"`
	Address    string         `gorm:"type:text" json:"address,omitempty"`
	Phones     []string       `gorm:"serializer:json" json:"phones,omitempty"`
	Emails     []string       `gorm:"serializer:json" json:"emails,omitempty"`
	IBAN       string         `gorm:"column:iban" json:"iban,omitempty"`
	Status     EntityStatus   `gorm:"not null;default:'ACTIVE'" json:"status"`
	CreatedBy  uuid.UUID      `gorm:"type:text" json:"created_by"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate hook to generate UUID
func (b *Branch) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
