package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Template is a stored text body with {{key}} placeholders used to generate documents
type Template struct {
	ID          uuid.UUID `gorm:"type:text;primary_key" json:"id"`
	Name        string    `gorm:"not null;index" json:"name"`
	Type        string    `gorm:"index" json:"type"`
	Category    string    `gorm:"index" json:"category,omitempty"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	Body        string    `gorm:"type:text;not null" json:"body"`

	// Declared placeholder keys mapped to free-form metadata (label, sample, ...).
	// Bodies may reference keys that are not declared here.
	Placeholders datatypes.JSONMap `json:"placeholders,omitempty"`

	UsageCount int64     `gorm:"not null;default:0" json:"usage_count"`
	Version    int       `gorm:"not null;default:1" json:"version"` // bumped on body edits
	IsActive   bool      `gorm:"not null;default:true;index" json:"is_active"`
	CreatedBy  uuid.UUID `gorm:"type:text" json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName ensures GORM uses the "templates" table
func (Template) TableName() string {
	return "templates"
}

// BeforeCreate hook to generate UUID
func (t *Template) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
