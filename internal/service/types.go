package service

import (
	"time"

	"github.com/google/uuid"
)

// GenerateRequest holds parameters for generating a document from a template.
type GenerateRequest struct {
	TemplateID uuid.UUID
	EntityType string
	EntityID   string
	Data       map[string]any // caller values; stored as the document metadata
	Name       string         // used when Data["name"] is empty; falls back to "<template> - <date>"
}

// CreateDocumentRequest holds parameters for a hand-authored document.
// When TemplateID is set and Content is empty, the raw template body is copied.
type CreateDocumentRequest struct {
	Name         string
	Type         string
	EntityType   string
	EntityID     string
	TemplateID   *uuid.UUID
	Content      string
	Metadata     map[string]any
	DocumentDate *time.Time
	Status       string // defaults to DRAFT
}

// UpdateDocumentRequest lists the fields to change; nil means unchanged.
type UpdateDocumentRequest struct {
	Name         *string
	Type         *string
	Content      *string
	DocumentDate *time.Time
	Metadata     map[string]any
}

// CreateTemplateRequest holds parameters for creating a template.
type CreateTemplateRequest struct {
	Name         string
	Type         string
	Category     string
	Description  string
	Body         string
	Placeholders map[string]any
	IsActive     *bool // defaults to true
}

// UpdateTemplateRequest lists the fields to change; nil means unchanged.
type UpdateTemplateRequest struct {
	Name         *string
	Type         *string
	Category     *string
	Description  *string
	Body         *string
	Placeholders map[string]any
	IsActive     *bool
}

// BulkAction is an action applied to several records at once.
type BulkAction string

const (
	BulkDelete   BulkAction = "delete"
	BulkArchive  BulkAction = "archive"
	BulkActivate BulkAction = "activate"
)

// BulkResult reports how many of the requested records were changed.
type BulkResult struct {
	Action    BulkAction
	Requested int
	Affected  int64
	Skipped   []uuid.UUID // missing records, or records the action does not apply to
}

// Page is one page of a listing.
type Page[T any] struct {
	Items      []T
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

func newPage[T any](items []T, total int64, page, limit int) *Page[T] {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return &Page[T]{Items: items, Total: total, Page: page, Limit: limit, TotalPages: pages}
}

// UsageStatistics summarizes how a template has been used.
type UsageStatistics struct {
	TemplateID       uuid.UUID
	Name             string
	UsageCount       int64
	DocumentsCreated int64
	RecentDocuments  []RecentDocument
}

// RecentDocument is a short view of a document produced from a template.
type RecentDocument struct {
	ID         uuid.UUID
	Name       string
	EntityType string
	EntityID   string
	Version    int
	Status     string
	CreatedAt  time.Time
}

// PreviewResult is a template body rendered with sample data.
type PreviewResult struct {
	Content  string
	Declared []string // keys listed in the template's placeholders
	Keys     []string // keys referenced by the body
	Missing  []string // referenced keys with no sample value
}
