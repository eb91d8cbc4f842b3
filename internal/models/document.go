package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DocumentStatus represents the lifecycle state of a document
type DocumentStatus string

const (
	DocStatusDraft    DocumentStatus = "DRAFT"
	DocStatusActive   DocumentStatus = "ACTIVE"
	DocStatusArchived DocumentStatus = "ARCHIVED"
)

// Valid reports whether s is a known status
func (s DocumentStatus) Valid() bool {
	switch s {
	case DocStatusDraft, DocStatusActive, DocStatusArchived:
		return true
	}
	return false
}

// CanTransition reports whether a document may move from s to next.
// DRAFT -> ACTIVE -> ARCHIVED, DRAFT -> ARCHIVED; ARCHIVED is terminal.
func (s DocumentStatus) CanTransition(next DocumentStatus) bool {
	switch s {
	case DocStatusDraft:
		return next == DocStatusActive || next == DocStatusArchived
	case DocStatusActive:
		return next == DocStatusArchived
	}
	return false
}

// Document is one physical version of a logical document.
// Every version is its own row; content is never rewritten once a version
// leaves DRAFT.
type Document struct {
	ID      uuid.UUID      `gorm:"type:text;primary_key" json:"id"`
	ChainID uuid.UUID      `gorm:"type:text;not null;uniqueIndex:idx_doc_chain_version" json:"chain_id"`
	Chain   *DocumentChain `gorm:"foreignKey:ChainID" json:"-"`

	// Logical identity: (name, entity_type, entity_id)
	Name       string `gorm:"not null;index:idx_doc_identity" json:"name"`
	EntityType string `gorm:"not null;index:idx_doc_identity" json:"entity_type"`
	EntityID   string `gorm:"type:text;not null;index:idx_doc_identity" json:"entity_id"`

	Type         string            `gorm:"index" json:"type,omitempty"`
	DocumentDate *time.Time        `json:"document_date,omitempty"`
	TemplateID   *uuid.UUID        `gorm:"type:text;index" json:"template_id,omitempty"`
	Template     *Template         `gorm:"foreignKey:TemplateID" json:"template,omitempty"`
	Content      string            `gorm:"type:text" json:"content"`
	Metadata     datatypes.JSONMap `json:"metadata,omitempty"`
	Version      int               `gorm:"not null;uniqueIndex:idx_doc_chain_version" json:"version"`
	Status       DocumentStatus    `gorm:"not null;default:'DRAFT';index" json:"status"`
	CreatedBy    uuid.UUID         `gorm:"type:text" json:"created_by"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// TableName ensures GORM uses the "documents" table
func (Document) TableName() string {
	return "documents"
}

// BeforeCreate hook to generate UUID
func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
