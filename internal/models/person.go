package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Person is an individual, optionally employed at a branch
type Person struct {
	ID         uuid.UUID      `gorm:"type:text;primary_key" json:"id"`
	BranchID   *uuid.UUID     `gorm:"type:text;index" json:"branch_id,omitempty"`
	Branch     *Branch        `gorm:"foreignKey:BranchID" json:"branch,omitempty"`
	FirstName  string         `gorm:"not null" json:"first_name"`
	LastName   string         `gorm:"not null" json:"last_name"`
	NationalID string         `gorm:"column:national_id" json:"national_id,omitempty"`
	Photo      string         `json:"photo,omitempty"`
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

// TableName keeps the table plural as "people"
func (Person) TableName() string {
	return "people"
}

// BeforeCreate hook to generate UUID
func (p *Person) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// FullName joins first and last name
func (p *Person) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}
