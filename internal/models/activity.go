package models

import (
	"time"

	"github.com/google/uuid"
)

// Activity is an audit record of an action performed on a CRM record
type Activity struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	EntityType  string    `gorm:"not null;index:idx_activity_entity" json:"entity_type"` // e.g. "DOCUMENT", "TEMPLATE"
	EntityID    string    `gorm:"type:text;not null;index:idx_activity_entity" json:"entity_id"`
	Action      string    `gorm:"not null" json:"action"` // e.g. "CREATE", "CREATE_VERSION"
	Description string    `gorm:"type:text" json:"description"`
	PerformedBy uuid.UUID `gorm:"type:text;index" json:"performed_by"`
	DetailsJSON string    `gorm:"type:text" json:"details_json,omitempty"` // Additional context in JSON
	Timestamp   time.Time `gorm:"not null;index" json:"timestamp"`
}

// TableName ensures GORM uses the "activities" table
func (Activity) TableName() string {
	return "activities"
}
