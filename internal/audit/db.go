package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/tahakubilay/Full-CRM-Claude/internal/models"
	"gorm.io/gorm"
)

// DBSink stores entries in the activities table
type DBSink struct {
	db *gorm.DB
}

// NewDBSink creates a DBSink
func NewDBSink(db *gorm.DB) *DBSink {
	return &DBSink{db: db}
}

// Record implements Sink
func (s *DBSink) Record(ctx context.Context, e Entry) error {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	row := models.Activity{
		EntityType:  e.EntityType,
		EntityID:    e.EntityID,
		Action:      e.Action,
		Description: e.Description,
		PerformedBy: e.ActorID,
		DetailsJSON: detailsJSON(e.Details),
		Timestamp:   ts,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("record activity: %w", err)
	}
	return nil
}

// List returns the activity of one record, newest first
func (s *DBSink) List(ctx context.Context, entityType, entityID string) ([]models.Activity, error) {
	var rows []models.Activity
	err := s.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("timestamp DESC").
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return rows, nil
}

// Name implements Named
func (s *DBSink) Name() string { return "db" }
