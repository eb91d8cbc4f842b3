package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Brand belongs to a company and owns branches
type Brand struct {
	ID         uuid.UUID      `gorm:"type:text;primary_key" json:"id"`
	CompanyID  uuid.UUID      `gorm:"type:text;not null;index" json:"company_id"`
	Company    *Company       `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
	BrandName  string         `gorm:"not null;index" json:"brand_name"`
	Logo       string         `json:"logo,omitempty"`
	TaxNumber  string         `json:"tax_number,omitempty"`
	Country    string         `json:"country,omitempty"`
	City       string         `json:"city,omitempty"`
	District   string         `json:"district,omitempty"`
	Address    string         `gorm:"type:text" json:"address,omitempty"`
	Phones     []string       `gorm:"serializer:json" json:"phones,omitempty"`
	Emails     []string       `gorm:"serializer:json" json:"emails,omitempty"`
	IBAN       string         `gorm:"column:iban" json:"iban,omitempty"`
	ThemeColor string         `json:"theme_color,omitempty"`
	Status     EntityStatus   `gorm:"not null;default:'ACTIVE'" json:"status"`
	CreatedBy  uuid.UUID      `gorm:"type:text" json:"created_by"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate hook to generate UUID
func (b *Brand) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
