package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EntityStatus is the lifecycle state of a business record
type EntityStatus string

const (
	EntityStatusActive   EntityStatus = "ACTIVE"
	EntityStatusPassive  EntityStatus = "PASSIVE"
	EntityStatusArchived EntityStatus = "ARCHIVED"
)

// Company is the root of the Company -> Brand -> Branch hierarchy
type Company struct {
	ID          uuid.UUID      `gorm:"type:text;primary_key" json:"id"`
	CompanyName string         `gorm:"not null;index" json:"company_name"`
	TaxNumber   string         `json:"tax_number,omitempty"`
	Country     string         `json:"country,omitempty"`
	City        string         `json:"city,omitempty"`
	District    string         `json:"district,omitempty"`
	Address     string         `gorm:"type:text" json:"address,omitempty"`
	Phones      []string       `gorm:"serializer:json" json:"phones,omitempty"`
	Emails      []string       `gorm:"serializer:json" json:"emails,omitempty"`
	ThemeColor  string         `json:"theme_color,omitempty"`
	Status      EntityStatus   `gorm:"not null;default:'ACTIVE'" json:"status"`
	CreatedBy   uuid.UUID      `gorm:"type:text" json:"created_by"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate hook to generate UUID
func (c *Company) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
