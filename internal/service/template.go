package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/tahakubilay/Full-CRM-Claude/internal/audit"
	"github.com/tahakubilay/Full-CRM-Claude/internal/config"
	"github.com/tahakubilay/Full-CRM-Claude/internal/models"
	"github.com/tahakubilay/Full-CRM-Claude/internal/placeholder"
	"github.com/tahakubilay/Full-CRM-Claude/internal/store"
	"github.com/tahakubilay/Full-CRM-Claude/internal/templatefile"
	"gorm.io/gorm"
)

const (
	maxNameLength   = 200
	maxTypeLength   = 100
	recentDocuments = 10
)

// TemplateService contains the business logic of template management.
type TemplateService struct {
	tx        Transactor
	templates TemplateRepository
	documents DocumentRepository
	resolver  placeholder.Resolver
	audit     recorder
	now       func() time.Time
}

// NewTemplateService creates a TemplateService.
func NewTemplateService(
	tx Transactor,
	templates TemplateRepository,
	documents DocumentRepository,
	sink audit.Sink,
	cfg config.DocgenConfig,
	opts ...Option,
) (*TemplateService, error) {
	resolver, err := newResolver(cfg)
	if err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return &TemplateService{
		tx:        tx,
		templates: templates,
		documents: documents,
		resolver:  resolver,
		audit:     recorder{sink: sink, logger: o.logger},
		now:       o.now,
	}, nil
}

func validateTemplate(name, typ, body string, placeholders map[string]any) error {
	err := validation.Errors{
		"name":         validation.Validate(name, validation.Required, validation.Length(1, maxNameLength)),
		"type":         validation.Validate(typ, validation.Length(0, maxTypeLength)),
		"body":         validation.Validate(body, validation.Required),
		"placeholders": validation.Validate(placeholders, validation.By(validPlaceholderKeys)),
	}.Filter()
	if err != nil {
		return &ValidationError{Message: err.Error()}
	}
	return nil
}

// validPlaceholderKeys rejects declared keys that could never appear in a body.
func validPlaceholderKeys(value any) error {
	m, _ := value.(map[string]any)
	for key := range m {
		segs := placeholder.Parse("{{" + key + "}}")
		if len(segs) != 1 || !segs[0].Placeholder {
			return fmt.Errorf("invalid placeholder key %q", key)
		}
	}
	return nil
}

// Create validates and stores a new template at version 1.
func (s *TemplateService) Create(ctx context.Context, req CreateTemplateRequest, actor uuid.UUID) (*models.Template, error) {
	if err := validateTemplate(req.Name, req.Type, req.Body, req.Placeholders); err != nil {
		return nil, err
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	tpl := &models.Template{
		Name:         req.Name,
		Type:         req.Type,
		Category:     req.Category,
		Description:  req.Description,
		Body:         req.Body,
		Placeholders: jsonMap(req.Placeholders),
		Version:      1,
		IsActive:     active,
		CreatedBy:    actor,
	}
	// is_active defaults to true in the schema, so an explicit false is a
	// second write in the same transaction.
	err := s.tx.ExecTx(ctx, func(ctx context.Context) error {
		if err := s.templates.Create(ctx, tpl); err != nil {
			return err
		}
		if active {
			return nil
		}
		_, err := s.templates.SetActive(ctx, []uuid.UUID{tpl.ID}, false)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}

	s.audit.record(ctx, audit.Entry{
		EntityType:  audit.EntityTemplate,
		EntityID:    tpl.ID.String(),
		Action:      audit.ActionCreate,
		Description: fmt.Sprintf("Template %q created", tpl.Name),
		ActorID:     actor,
	})
	return tpl, nil
}

// Get returns a single template.
func (s *TemplateService) Get(ctx context.Context, id uuid.UUID) (*models.Template, error) {
	tpl, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "template", id)
	}
	return tpl, nil
}

// List returns one page of templates.
func (s *TemplateService) List(ctx context.Context, f store.TemplateFilter) (*Page[models.Template], error) {
	items, total, err := s.templates.List(ctx, f)
	if err != nil {
		return nil, err
	}
	p := f.Paging.Normalize()
	return newPage(items, total, p.Page, p.Limit), nil
}

// Update changes template fields. A body change bumps the template version.
func (s *TemplateService) Update(ctx context.Context, id uuid.UUID, req UpdateTemplateRequest, actor uuid.UUID) (*models.Template, error) {
	tpl, err := s.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("update template: %w", err)
	}

	name, typ, body, placeholders := tpl.Name, tpl.Type, tpl.Body, map[string]any(tpl.Placeholders)
	fields := map[string]any{}
	if req.Name != nil {
		name = *req.Name
		fields["name"] = name
	}
	if req.Type != nil {
		typ = *req.Type
		fields["type"] = typ
	}
	if req.Category != nil {
		fields["category"] = *req.Category
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Placeholders != nil {
		placeholders = req.Placeholders
		fields["placeholders"] = jsonMap(req.Placeholders)
	}
	if req.IsActive != nil {
		fields["is_active"] = *req.IsActive
	}
	if req.Body != nil && *req.Body != tpl.Body {
		body = *req.Body
		fields["body"] = body
		fields["version"] = gorm.Expr("version + ?", 1)
	}
	if err := validateTemplate(name, typ, body, placeholders); err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return tpl, nil
	}

	if err := s.templates.Update(ctx, tpl, fields); err != nil {
		return nil, fmt.Errorf("update template: %w", storeErr(err, "template", id))
	}

	s.audit.record(ctx, audit.Entry{
		EntityType:  audit.EntityTemplate,
		EntityID:    id.String(),
		Action:      audit.ActionUpdate,
		Description: fmt.Sprintf("Template %q updated", name),
		ActorID:     actor,
	})
	return s.Get(ctx, id)
}

// Archive hides a template from selection. Existing documents are untouched
// and the template can still be used for generation.
func (s *TemplateService) Archive(ctx context.Context, id uuid.UUID, actor uuid.UUID) (*models.Template, error) {
	return s.setActive(ctx, id, false, actor)
}

// Activate makes a template selectable again.
func (s *TemplateService) Activate(ctx context.Context, id uuid.UUID, actor uuid.UUID) (*models.Template, error) {
	return s.setActive(ctx, id, true, actor)
}

func (s *TemplateService) setActive(ctx context.Context, id uuid.UUID, active bool, actor uuid.UUID) (*models.Template, error) {
	n, err := s.templates.SetActive(ctx, []uuid.UUID{id}, active)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, &NotFoundError{Resource: "template", ID: id.String()}
	}
	tpl, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	action, verb := audit.ActionArchive, "archived"
	if active {
		action, verb = audit.ActionActivate, "activated"
	}
	s.audit.record(ctx, audit.Entry{
		EntityType:  audit.EntityTemplate,
		EntityID:    id.String(),
		Action:      action,
		Description: fmt.Sprintf("Template %q %s", tpl.Name, verb),
		ActorID:     actor,
	})
	return tpl, nil
}

// Duplicate copies a template as "<name> (Copy)" at version 1 with no usage.
func (s *TemplateService) Duplicate(ctx context.Context, id uuid.UUID, actor uuid.UUID) (*models.Template, error) {
	src, err := s.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("duplicate template: %w", err)
	}
	tpl := &models.Template{
		Name:         src.Name + " (Copy)",
		Type:         src.Type,
		Category:     src.Category,
		Description:  src.Description,
		Body:         src.Body,
		Placeholders: jsonMap(src.Placeholders),
		Version:      1,
		IsActive:     true,
		CreatedBy:    actor,
	}
	if err := s.templates.Create(ctx, tpl); err != nil {
		return nil, fmt.Errorf("duplicate template: %w", err)
	}
	s.audit.record(ctx, audit.Entry{
		EntityType:  audit.EntityTemplate,
		EntityID:    tpl.ID.String(),
		Action:      audit.ActionDuplicate,
		Description: fmt.Sprintf("Template %q duplicated from %q", tpl.Name, src.Name),
		ActorID:     actor,
		Details:     map[string]any{"source_id": id.String()},
	})
	return tpl, nil
}

// Delete removes a template that no document references. The reference count
// and the delete run in one transaction.
func (s *TemplateService) Delete(ctx context.Context, id uuid.UUID, actor uuid.UUID) error {
	var name string
	err := s.tx.ExecTx(ctx, func(ctx context.Context) error {
		tpl, err := s.templates.GetByID(ctx, id)
		if err != nil {
			return storeErr(err, "template", id)
		}
		name = tpl.Name
		count, err := s.documents.CountByTemplateID(ctx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return templateInUse(count)
		}
		return storeErr(s.templates.Delete(ctx, id), "template", id)
	})
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	s.audit.record(ctx, audit.Entry{
		EntityType:  audit.EntityTemplate,
		EntityID:    id.String(),
		Action:      audit.ActionDelete,
		Description: fmt.Sprintf("Template %q deleted", name),
		ActorID:     actor,
	})
	return nil
}

func templateInUse(count int64) error {
	return &ConflictError{Message: fmt.Sprintf("Cannot delete template. It is being used by %d document(s)", count)}
}

// BulkAction applies delete, archive or activate to several templates.
// Delete is all or nothing: it is rejected when any of the templates is in use.
func (s *TemplateService) BulkAction(ctx context.Context, action string, ids []uuid.UUID, actor uuid.UUID) (*BulkResult, error) {
	a, err := parseBulkAction(action)
	if err != nil {
		return nil, err
	}
	result := &BulkResult{Action: a, Requested: len(ids)}

	var auditAction string
	switch a {
	case BulkDelete:
		auditAction = audit.ActionBulkDelete
		err = s.tx.ExecTx(ctx, func(ctx context.Context) error {
			count, err := s.documents.CountByTemplateIDs(ctx, ids)
			if err != nil {
				return err
			}
			if count > 0 {
				return &ConflictError{Message: fmt.Sprintf(
					"Cannot delete templates. %d document(s) are using the selected templates", count)}
			}
			result.Affected, err = s.templates.DeleteMany(ctx, ids)
			return err
		})
	case BulkArchive:
		auditAction = audit.ActionBulkArchive
		result.Affected, err = s.templates.SetActive(ctx, ids, false)
	case BulkActivate:
		auditAction = audit.ActionBulkActivate
		result.Affected, err = s.templates.SetActive(ctx, ids, true)
	}
	if err != nil {
		return nil, fmt.Errorf("bulk %s: %w", a, err)
	}

	for _, id := range ids {
		s.audit.record(ctx, audit.Entry{
			EntityType:  audit.EntityTemplate,
			EntityID:    id.String(),
			Action:      auditAction,
			Description: fmt.Sprintf("Template bulk %s", a),
			ActorID:     actor,
		})
	}
	return result, nil
}

// UsageStatistics reports how often a template was used and its most recent
// documents.
func (s *TemplateService) UsageStatistics(ctx context.Context, id uuid.UUID) (*UsageStatistics, error) {
	tpl, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	count, err := s.documents.CountByTemplateID(ctx, id)
	if err != nil {
		return nil, err
	}
	docs, err := s.documents.RecentByTemplateID(ctx, id, recentDocuments)
	if err != nil {
		return nil, err
	}
	stats := &UsageStatistics{
		TemplateID:       tpl.ID,
		Name:             tpl.Name,
		UsageCount:       tpl.UsageCount,
		DocumentsCreated: count,
	}
	for _, d := range docs {
		stats.RecentDocuments = append(stats.RecentDocuments, RecentDocument{
			ID:         d.ID,
			Name:       d.Name,
			EntityType: d.EntityType,
			EntityID:   d.EntityID,
			Version:    d.Version,
			Status:     string(d.Status),
			CreatedAt:  d.CreatedAt,
		})
	}
	return stats, nil
}

// Preview renders a template with sample values. Declared placeholders that
// carry a "sample" entry fill in for keys the caller leaves out.
func (s *TemplateService) Preview(ctx context.Context, id uuid.UUID, sample map[string]any) (*PreviewResult, error) {
	tpl, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	values := map[string]any{}
	declared := make([]string, 0, len(tpl.Placeholders))
	for key, meta := range tpl.Placeholders {
		declared = append(declared, key)
		if m, ok := meta.(map[string]any); ok {
			if v, ok := m["sample"]; ok {
				values[key] = v
			}
		}
	}
	sort.Strings(declared)
	for k, v := range sample {
		values[k] = v
	}

	return &PreviewResult{
		Content:  s.resolver.Resolve(tpl.Body, nil, values, s.now()),
		Declared: declared,
		Keys:     placeholder.Keys(tpl.Body),
		Missing:  s.resolver.Missing(tpl.Body, nil, values),
	}, nil
}

// Export returns the template in an interchange format.
func (s *TemplateService) Export(ctx context.Context, id uuid.UUID, format templatefile.Format) ([]byte, error) {
	tpl, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	active := tpl.IsActive
	data, err := templatefile.Encode(templatefile.File{
		Name:         tpl.Name,
		Type:         tpl.Type,
		Category:     tpl.Category,
		Description:  tpl.Description,
		Body:         tpl.Body,
		Placeholders: tpl.Placeholders,
		IsActive:     &active,
	}, format)
	if err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	return data, nil
}

// Import creates a template from an interchange file.
func (s *TemplateService) Import(ctx context.Context, data []byte, format templatefile.Format, actor uuid.UUID) (*models.Template, error) {
	f, err := templatefile.Decode(data, format)
	if err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	tpl, err := s.Create(ctx, CreateTemplateRequest{
		Name:         f.Name,
		Type:         f.Type,
		Category:     f.Category,
		Description:  f.Description,
		Body:         f.Body,
		Placeholders: f.Placeholders,
		IsActive:     f.IsActive,
	}, actor)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return nil, &ValidationError{Message: "import template: " + verr.Message}
		}
		return nil, fmt.Errorf("import template: %w", err)
	}
	s.audit.record(ctx, audit.Entry{
		EntityType:  audit.EntityTemplate,
		EntityID:    tpl.ID.String(),
		Action:      audit.ActionImport,
		Description: fmt.Sprintf("Template %q imported", tpl.Name),
		ActorID:     actor,
		Details:     map[string]any{"format": string(format)},
	})
	return tpl, nil
}
