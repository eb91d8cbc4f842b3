package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DocumentChain groups all versions of one logical document.
// HeadVersion is the highest version number handed out so far and is only
// ever advanced by a conditional update on its previous value.
type DocumentChain struct {
	ID          uuid.UUID `gorm:"type:text;primary_key" json:"id"`
	Name        string    `gorm:"not null;index:idx_chain_identity" json:"name"`
	EntityType  string    `gorm:"not null;index:idx_chain_identity" json:"entity_type"`
	EntityID    string    `gorm:"type:text;not null;index:idx_chain_identity" json:"entity_id"`
	HeadVersion int       `gorm:"not null;default:0" json:"head_version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName ensures GORM uses the "document_chains" table
func (DocumentChain) TableName() string {
	return "document_chains"
}

// BeforeCreate hook to generate UUID
func (c *DocumentChain) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
