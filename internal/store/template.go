package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tahakubilay/Full-CRM-Claude/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TemplateFilter narrows template listings.
type TemplateFilter struct {
	Paging
	Search    string // matched against name, type and body
	Type      string
	Category  string
	IsActive  *bool
	SortBy    string // "createdAt", "updatedAt", "name", "usageCount"
	SortOrder string // "asc" or "desc"
}

var templateSortColumns = map[string]string{
	"createdAt":  "created_at",
	"updatedAt":  "updated_at",
	"name":       "name",
	"usageCount": "usage_count",
	"version":    "version",
}

// TemplateStore persists templates.
type TemplateStore struct {
	db *gorm.DB
}

// NewTemplateStore creates a TemplateStore.
func NewTemplateStore(db *gorm.DB) *TemplateStore {
	return &TemplateStore{db: db}
}

// GetByID loads a template.
func (s *TemplateStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Template, error) {
	var t models.Template
	if err := Conn(ctx, s.db).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, notFound(err, "get template")
	}
	return &t, nil
}

// IncrementUsage adds one to the usage counter with a single UPDATE so
// concurrent generations never lose an increment.
func (s *TemplateStore) IncrementUsage(ctx context.Context, id uuid.UUID) error {
	res := Conn(ctx, s.db).Model(&models.Template{}).
		Where("id = ?", id).
		UpdateColumn("usage_count", gorm.Expr("usage_count + ?", 1))
	if res.Error != nil {
		return fmt.Errorf("increment template usage: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Create inserts a template.
func (s *TemplateStore) Create(ctx context.Context, t *models.Template) error {
	if err := Conn(ctx, s.db).Create(t).Error; err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

// Update writes the given columns of a template.
func (s *TemplateStore) Update(ctx context.Context, t *models.Template, fields map[string]any) error {
	res := Conn(ctx, s.db).Model(t).Omit(clause.Associations).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update template: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a template.
func (s *TemplateStore) Delete(ctx context.Context, id uuid.UUID) error {
	res := Conn(ctx, s.db).Where("id = ?", id).Delete(&models.Template{})
	if res.Error != nil {
		return fmt.Errorf("delete template: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMany removes templates and returns how many rows went away.
func (s *TemplateStore) DeleteMany(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := Conn(ctx, s.db).Where("id IN ?", ids).Delete(&models.Template{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete templates: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// SetActive flips the activation flag of the given templates.
func (s *TemplateStore) SetActive(ctx context.Context, ids []uuid.UUID, active bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := Conn(ctx, s.db).Model(&models.Template{}).
		Where("id IN ?", ids).
		Update("is_active", active)
	if res.Error != nil {
		return 0, fmt.Errorf("set template activation: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// List returns one page of templates and the total match count.
func (s *TemplateStore) List(ctx context.Context, f TemplateFilter) ([]models.Template, int64, error) {
	q := Conn(ctx, s.db).Model(&models.Template{})
	if f.Search != "" {
		p := likePattern(f.Search)
		q = q.Where(`(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(type) LIKE ? ESCAPE '\' OR LOWER(body) LIKE ? ESCAPE '\')`, p, p, p)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.IsActive != nil {
		q = q.Where("is_active = ?", *f.IsActive)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count templates: %w", err)
	}

	page := f.Paging.Normalize()
	var templates []models.Template
	err := q.Order(orderClause(f.SortBy, f.SortOrder, templateSortColumns, "createdAt")).
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&templates).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list templates: %w", err)
	}
	return templates, total, nil
}
