package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tahakubilay/Full-CRM-Claude/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentFilter narrows document listings.
type DocumentFilter struct {
	Paging
	Search     string // matched against name, type and content
	Type       string
	Status     models.DocumentStatus
	EntityType string
	EntityID   string
	TemplateID *uuid.UUID
	StartDate  *time.Time // document_date lower bound, inclusive
	EndDate    *time.Time // document_date upper bound, inclusive
	SortBy     string     // "createdAt", "updatedAt", "name", "documentDate", "version"
	SortOrder  string
}

var documentSortColumns = map[string]string{
	"createdAt":    "created_at",
	"updatedAt":    "updated_at",
	"name":         "name",
	"documentDate": "document_date",
	"version":      "version",
}

// DocumentStore persists documents and their version chains.
type DocumentStore struct {
	db *gorm.DB
}

// NewDocumentStore creates a DocumentStore.
func NewDocumentStore(db *gorm.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Insert creates a new document row.
func (s *DocumentStore) Insert(ctx context.Context, doc *models.Document) error {
	if err := Conn(ctx, s.db).Omit(clause.Associations).Create(doc).Error; err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// FindByID loads a document with its template summary.
func (s *DocumentStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	var doc models.Document
	err := Conn(ctx, s.db).
		Preload("Template", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "name", "type", "placeholders")
		}).
		Where("id = ?", id).
		First(&doc).Error
	if err != nil {
		return nil, notFound(err, "get document")
	}
	return &doc, nil
}

// FindByLogicalIdentity returns every document sharing (name, entity type,
// entity id), highest version first.
func (s *DocumentStore) FindByLogicalIdentity(ctx context.Context, name, entityType, entityID string) ([]models.Document, error) {
	var docs []models.Document
	err := Conn(ctx, s.db).
		Where("name = ? AND entity_type = ? AND entity_id = ?", name, entityType, entityID).
		Order("version DESC").
		Order("created_at DESC").
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("find documents by identity: %w", err)
	}
	return docs, nil
}

// FindByChain returns the versions of a chain, highest first.
func (s *DocumentStore) FindByChain(ctx context.Context, chainID uuid.UUID) ([]models.Document, error) {
	var docs []models.Document
	err := Conn(ctx, s.db).
		Where("chain_id = ?", chainID).
		Order("version DESC").
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("find documents by chain: %w", err)
	}
	return docs, nil
}

// CountByTemplateID counts documents generated from or linked to a template.
func (s *DocumentStore) CountByTemplateID(ctx context.Context, templateID uuid.UUID) (int64, error) {
	return s.CountByTemplateIDs(ctx, []uuid.UUID{templateID})
}

// CountByTemplateIDs counts documents referencing any of the templates.
func (s *DocumentStore) CountByTemplateIDs(ctx context.Context, templateIDs []uuid.UUID) (int64, error) {
	if len(templateIDs) == 0 {
		return 0, nil
	}
	var count int64
	err := Conn(ctx, s.db).Model(&models.Document{}).
		Where("template_id IN ?", templateIDs).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count documents by template: %w", err)
	}
	return count, nil
}

// RecentByTemplateID returns the newest documents of a template.
func (s *DocumentStore) RecentByTemplateID(ctx context.Context, templateID uuid.UUID, limit int) ([]models.Document, error) {
	var docs []models.Document
	err := Conn(ctx, s.db).
		Select("id", "name", "entity_type", "entity_id", "version", "status", "created_at").
		Where("template_id = ?", templateID).
		Order("created_at DESC").
		Limit(limit).
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("recent documents by template: %w", err)
	}
	return docs, nil
}

// Update writes the given columns of a document.
func (s *DocumentStore) Update(ctx context.Context, doc *models.Document, fields map[string]any) error {
	res := Conn(ctx, s.db).Model(doc).Omit(clause.Associations).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update document: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus moves a document to status `to` only if its current status is
// one of `from`. It reports whether the row changed.
func (s *DocumentStore) UpdateStatus(ctx context.Context, id uuid.UUID, from []models.DocumentStatus, to models.DocumentStatus) (bool, error) {
	n, err := s.UpdateStatusMany(ctx, []uuid.UUID{id}, from, to)
	return n == 1, err
}

// UpdateStatusMany is UpdateStatus for several documents; it returns the
// number of rows that changed.
func (s *DocumentStore) UpdateStatusMany(ctx context.Context, ids []uuid.UUID, from []models.DocumentStatus, to models.DocumentStatus) (int64, error) {
	if len(ids) == 0 || len(from) == 0 {
		return 0, nil
	}
	res := Conn(ctx, s.db).Model(&models.Document{}).
		Where("id IN ? AND status IN ?", ids, from).
		Update("status", to)
	if res.Error != nil {
		return 0, fmt.Errorf("update document status: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Delete removes a document row.
func (s *DocumentStore) Delete(ctx context.Context, id uuid.UUID) error {
	res := Conn(ctx, s.db).Where("id = ?", id).Delete(&models.Document{})
	if res.Error != nil {
		return fmt.Errorf("delete document: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns one page of documents and the total match count.
func (s *DocumentStore) List(ctx context.Context, f DocumentFilter) ([]models.Document, int64, error) {
	q := Conn(ctx, s.db).Model(&models.Document{})
	if f.Search != "" {
		p := likePattern(f.Search)
		q = q.Where(`(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(type) LIKE ? ESCAPE '\' OR LOWER(content) LIKE ? ESCAPE '\')`, p, p, p)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID != "" {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	if f.TemplateID != nil {
		q = q.Where("template_id = ?", *f.TemplateID)
	}
	if f.StartDate != nil {
		q = q.Where("document_date >= ?", *f.StartDate)
	}
	if f.EndDate != nil {
		q = q.Where("document_date <= ?", *f.EndDate)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}

	page := f.Paging.Normalize()
	var docs []models.Document
	err := q.Order(orderClause(f.SortBy, f.SortOrder, documentSortColumns, "createdAt")).
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&docs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}
	return docs, total, nil
}

// CreateChain inserts a new version chain.
func (s *DocumentStore) CreateChain(ctx context.Context, chain *models.DocumentChain) error {
	if err := Conn(ctx, s.db).Create(chain).Error; err != nil {
		return fmt.Errorf("create document chain: %w", err)
	}
	return nil
}

// GetChain loads a version chain.
func (s *DocumentStore) GetChain(ctx context.Context, id uuid.UUID) (*models.DocumentChain, error) {
	var chain models.DocumentChain
	if err := Conn(ctx, s.db).Where("id = ?", id).First(&chain).Error; err != nil {
		return nil, notFound(err, "get document chain")
	}
	return &chain, nil
}

// AdvanceHead moves a chain's head from expected to expected+1. It reports
// false when another writer moved the head first.
func (s *DocumentStore) AdvanceHead(ctx context.Context, chainID uuid.UUID, expected int) (bool, error) {
	return s.moveHead(ctx, chainID, expected, expected+1)
}

// RetreatHead moves a chain's head from expected to expected-1.
func (s *DocumentStore) RetreatHead(ctx context.Context, chainID uuid.UUID, expected int) (bool, error) {
	return s.moveHead(ctx, chainID, expected, expected-1)
}

func (s *DocumentStore) moveHead(ctx context.Context, chainID uuid.UUID, expected, next int) (bool, error) {
	res := Conn(ctx, s.db).Model(&models.DocumentChain{}).
		Where("id = ? AND head_version = ?", chainID, expected).
		Update("head_version", next)
	if res.Error != nil {
		return false, fmt.Errorf("move chain head: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// DeleteChain removes an empty chain.
func (s *DocumentStore) DeleteChain(ctx context.Context, id uuid.UUID) error {
	res := Conn(ctx, s.db).Where("id = ?", id).Delete(&models.DocumentChain{})
	if res.Error != nil {
		return fmt.Errorf("delete document chain: %w", res.Error)
	}
	return nil
}
