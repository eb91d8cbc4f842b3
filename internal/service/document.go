package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/tahakubilay/Full-CRM-Claude/internal/audit"
	"github.com/tahakubilay/Full-CRM-Claude/internal/config"
	"github.com/tahakubilay/Full-CRM-Claude/internal/entity"
	"github.com/tahakubilay/Full-CRM-Claude/internal/metrics"
	"github.com/tahakubilay/Full-CRM-Claude/internal/models"
	"github.com/tahakubilay/Full-CRM-Claude/internal/placeholder"
	"github.com/tahakubilay/Full-CRM-Claude/internal/store"
	"gorm.io/datatypes"
)

// DocumentService generates documents from templates and maintains their
// version chains.
type DocumentService struct {
	tx         Transactor
	templates  TemplateRepository
	documents  DocumentRepository
	entities   entity.Provider
	resolver   placeholder.Resolver
	audit      recorder
	now        func() time.Time
	maxRetries int
}

// NewDocumentService creates a DocumentService.
func NewDocumentService(
	tx Transactor,
	templates TemplateRepository,
	documents DocumentRepository,
	entities entity.Provider,
	sink audit.Sink,
	cfg config.DocgenConfig,
	opts ...Option,
) (*DocumentService, error) {
	resolver, err := newResolver(cfg)
	if err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return &DocumentService{
		tx:         tx,
		templates:  templates,
		documents:  documents,
		entities:   entities,
		resolver:   resolver,
		audit:      recorder{sink: sink, logger: o.logger},
		now:        o.now,
		maxRetries: cfg.MaxRetries,
	}, nil
}

func newResolver(cfg config.DocgenConfig) (placeholder.Resolver, error) {
	loc, err := cfg.Location()
	if err != nil {
		return placeholder.Resolver{}, err
	}
	return placeholder.Resolver{Format: placeholder.Format{
		Location:   loc,
		DateLayout: cfg.DateLayout,
		TimeLayout: cfg.TimeLayout,
	}}, nil
}

// GenerateFromTemplate renders a template against an entity and stores the
// result as version 1 of a new document chain. The template's usage count is
// incremented in the same transaction as the insert.
func (s *DocumentService) GenerateFromTemplate(ctx context.Context, req GenerateRequest, actor uuid.UUID) (*models.Document, error) {
	tpl, err := s.templates.GetByID(ctx, req.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("generate document: %w", storeErr(err, "template", req.TemplateID))
	}

	entityType, attrs, err := s.entityAttributes(ctx, req.EntityType, req.EntityID)
	if err != nil {
		return nil, fmt.Errorf("generate document: %w", err)
	}

	now := s.now()
	doc := &models.Document{
		Name:         s.generatedName(req, tpl, now),
		EntityType:   string(entityType),
		EntityID:     req.EntityID,
		Type:         tpl.Type,
		DocumentDate: &now,
		TemplateID:   &tpl.ID,
		Content:      s.resolver.Resolve(tpl.Body, attrs, req.Data, now),
		Metadata:     jsonMap(req.Data),
		Version:      1,
		Status:       models.DocStatusActive,
		CreatedBy:    actor,
	}

	err = s.tx.ExecTx(ctx, func(ctx context.Context) error {
		if err := s.startChain(ctx, doc); err != nil {
			return err
		}
		if err := s.templates.IncrementUsage(ctx, tpl.ID); err != nil {
			return storeErr(err, "template", tpl.ID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("generate document: %w", err)
	}

	metrics.DocumentsGenerated.WithLabelValues(doc.EntityType).Inc()
	s.audit.record(ctx, audit.Entry{
		EntityType:  audit.EntityDocument,
		EntityID:    doc.ID.String(),
		Action:      audit.ActionCreate,
		Description: fmt.Sprintf("Document %q generated from template %q", doc.Name, tpl.Name),
		ActorID:     actor,
		Details: map[string]any{
			"template_id": tpl.ID.String(),
			"entity_type": doc.EntityType,
			"entity_id":   doc.EntityID,
		},
	})
	return doc, nil
}

// CreateVersion copies a document into the next version of its chain. The
// copy starts as DRAFT whatever the source status is.
//
// The version number comes from a compare-and-swap on the chain head, so
// concurrent calls on one chain never hand out the same number. A lost race
// retries the whole transaction.
func (s *DocumentService) CreateVersion(ctx context.Context, id uuid.UUID, actor uuid.UUID) (*models.Document, error) {
	var created *models.Document
	err := retryOnConflict(ctx, "create_version", s.maxRetries, func() error {
		return s.tx.ExecTx(ctx, func(ctx context.Context) error {
			src, err := s.documents.FindByID(ctx, id)
			if err != nil {
				return storeErr(err, "document", id)
			}
			chain, err := s.documents.GetChain(ctx, src.ChainID)
			if err != nil {
				return fmt.Errorf("load version chain: %w", err)
			}
			ok, err := s.documents.AdvanceHead(ctx, chain.ID, chain.HeadVersion)
			if err != nil {
				return err
			}
			if !ok {
				return errHeadMoved
			}

			doc := &models.Document{
				ChainID:      chain.ID,
				Name:         src.Name,
				EntityType:   src.EntityType,
				EntityID:     src.EntityID,
				Type:         src.Type,
				DocumentDate: src.DocumentDate,
				TemplateID:   src.TemplateID,
				Content:      src.Content,
				Metadata:     jsonMap(src.Metadata),
				Version:      chain.HeadVersion + 1,
				Status:       models.DocStatusDraft,
				CreatedBy:    actor,
			}
			if err := s.documents.Insert(ctx, doc); err != nil {
				return err
			}
			created = doc
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("create version: %w", err)
	}

	metrics.VersionsCreated.Inc()
	s.audit.record(ctx, audit.Entry{
		EntityType:  audit.EntityDocument,
		EntityID:    created.ID.String(),
		Action:      audit.ActionCreateVersion,
		Description: fmt.Sprintf("Version %d of document %q created", created.Version, created.Name),
		ActorID:     actor,
		Details: map[string]any{
			"source_id": id.String(),
			"version":   created.Version,
		},
	})
	return created, nil
}

// GetVersions returns every version of the document's chain, head first.
func (s *DocumentService) GetVersions(ctx context.Context, id uuid.UUID) ([]models.Document, error) {
	doc, err := s.documents.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get versions: %w", storeErr(err, "document", id))
	}
	docs, err := s.documents.FindByChain(ctx, doc.ChainID)
	if err != nil {
		return nil, fmt.Errorf("get versions: %w", err)
	}
	return docs, nil
}

// History returns the documents sharing a (name, entity type, entity id)
// tuple, highest version first. Unlike GetVersions it can span chains.
func (s *DocumentService) History(ctx context.Context, name, entityType, entityID string) ([]models.Document, error) {
	t, err := entity.ParseType(entityType)
	if err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	docs, err := s.documents.FindByLogicalIdentity(ctx, name, string(t), entityID)
	if err != nil {
		return nil, fmt.Errorf("document history: %w", err)
	}
	return docs, nil
}

// Create stores a hand-authored document as version 1 of a new chain. With
// a template and no content, the raw template body is copied and the
// template's usage count is incremented.
func (s *DocumentService) Create(ctx context.Context, req CreateDocumentRequest, actor uuid.UUID) (*models.Document, error) {
	if err := validateCreateDocument(req); err != nil {
		return nil, err
	}
	status := models.DocStatusDraft
	if req.Status != "" {
		status = models.DocumentStatus(req.Status)
	}

	entityType, _, err := s.entityAttributes(ctx, req.EntityType, req.EntityID)
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	doc := &models.Document{
		Name:         req.Name,
		EntityType:   string(entityType),
		EntityID:     req.EntityID,
		Type:         req.Type,
		DocumentDate: req.DocumentDate,
		Content:      req.Content,
		Metadata:     jsonMap(req.Metadata),
		Version:      1,
		Status:       status,
		CreatedBy:    actor,
	}

	var tpl *models.Template
	if req.TemplateID != nil {
		tpl, err = s.templates.GetByID(ctx, *req.TemplateID)
		if err != nil {
			return nil, fmt.Errorf("create document: %w", storeErr(err, "template", *req.TemplateID))
		}
		doc.TemplateID = &tpl.ID
		if doc.Content == "" {
			doc.Content = tpl.Body
		}
		if doc.Type == "" {
			doc.Type = tpl.Type
		}
	}

	err = s.tx.ExecTx(ctx, func(ctx context.Context) error {
		if err := s.startChain(ctx, doc); err != nil {
			return err
		}
		if tpl == nil {
			return nil
		}
		return storeErr(s.templates.IncrementUsage(ctx, tpl.ID), "template", tpl.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	s.audit.record(ctx, audit.Entry{
		EntityType:  audit.EntityDocument,
		EntityID:    doc.ID.String(),
		Action:      audit.ActionCreate,
		Description: fmt.Sprintf("Document %q created", doc.Name),
		ActorID:     actor,
	})
	return doc, nil
}

func validateCreateDocument(req CreateDocumentRequest) error {
	err := validation.ValidateStruct(&req,
		validation.Field(&req.Name, validation.Required, validation.Length(1, maxNameLength)),
		validation.Field(&req.EntityType, validation.Required),
		validation.Field(&req.EntityID, validation.Required),
		validation.Field(&req.Status, validation.In(
			string(models.DocStatusDraft),
			string(models.DocStatusActive),
			string(models.DocStatusArchived),
		)),
	)
	if err != nil {
		return &ValidationError{Message: err.Error()}
	}
	return nil
}

// Get returns a single document with its template summary.
func (s *DocumentService) Get(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	doc, err := s.documents.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "document", id)
	}
	return doc, nil
}

// List returns one page of documents.
func (s *DocumentService) List(ctx context.Context, f store.DocumentFilter) (*Page[models.Document], error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, &ValidationError{Message: fmt.Sprintf("invalid status %q", f.Status)}
	}
	if f.EntityType != "" {
		t, err := entity.ParseType(f.EntityType)
		if err != nil {
			return nil, &ValidationError{Message: err.Error()}
		}
		f.EntityType = string(t)
	}
	docs, total, err := s.documents.List(ctx, f)
	if err != nil {
		return nil, err
	}
	p := f.Paging.Normalize()
	return newPage(docs, total, p.Page, p.Limit), nil
}

// Update changes document fields. Content can only change while the document
// is a DRAFT.
func (s *DocumentService) Update(ctx context.Context, id uuid.UUID, req UpdateDocumentRequest, actor uuid.UUID) (*models.Document, error) {
	doc, err := s.documents.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("update document: %w", storeErr(err, "document", id))
	}

	fields := map[string]any{}
	if req.Name != nil {
		if *req.Name == "" {
			return nil, &ValidationError{Message: "name cannot be blank"}
		}
		fields["name"] = *req.Name
	}
	if req.Type != nil {
		fields["type"] = *req.Type
	}
	if req.DocumentDate != nil {
		fields["document_date"] = *req.DocumentDate
	}
	if req.Metadata != nil {
		fields["metadata"] = jsonMap(req.Metadata)
	}
	if req.Content != nil && *req.Content != doc.Content {
		if doc.Status != models.DocStatusDraft {
			return nil, &ConflictError{Message: fmt.Sprintf("content of a %s document cannot change; create a new version instead", doc.Status)}
		}
		fields["content"] = *req.Content
	}
	if len(fields) == 0 {
		return doc, nil
	}

	if err := s.documents.Update(ctx, doc, fields); err != nil {
		return nil, fmt.Errorf("update document: %w", storeErr(err, "document", id))
	}

	s.audit.record(ctx, audit.Entry{
		EntityType:  audit.EntityDocument,
		EntityID:    id.String(),
		Action:      audit.ActionUpdate,
		Description: fmt.Sprintf("Document %q updated", doc.Name),
		ActorID:     actor,
	})
	return s.Get(ctx, id)
}

// Transition moves a document to another status. Allowed moves are
// DRAFT -> ACTIVE, DRAFT -> ARCHIVED and ACTIVE -> ARCHIVED. Moving to the
// current status writes nothing.
func (s *DocumentService) Transition(ctx context.Context, id uuid.UUID, to models.DocumentStatus, actor uuid.UUID) (*models.Document, error) {
	if !to.Valid() {
		return nil, &ValidationError{Message: fmt.Sprintf("invalid status %q", to)}
	}
	doc, err := s.documents.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "document", id)
	}
	if doc.Status == to {
		return doc, nil
	}
	if !doc.Status.CanTransition(to) {
		return nil, &ConflictError{Message: fmt.Sprintf("document cannot move from %s to %s", doc.Status, to)}
	}
	ok, err := s.documents.UpdateStatus(ctx, id, []models.DocumentStatus{doc.Status}, to)
	if err != nil {
		return nil, fmt.Errorf("transition document: %w", err)
	}
	if !ok {
		return nil, &ConflictError{Message: "document status changed while updating; reload and try again"}
	}

	s.audit.record(ctx, audit.Entry{
		EntityType:  audit.EntityDocument,
		EntityID:    id.String(),
		Action:      statusAction(to),
		Description: fmt.Sprintf("Document %q moved from %s to %s", doc.Name, doc.Status, to),
		ActorID:     actor,
	})
	doc.Status = to
	return doc, nil
}

// Activate promotes a DRAFT document to ACTIVE.
func (s *DocumentService) Activate(ctx context.Context, id uuid.UUID, actor uuid.UUID) (*models.Document, error) {
	return s.Transition(ctx, id, models.DocStatusActive, actor)
}

// Archive retires a document.
func (s *DocumentService) Archive(ctx context.Context, id uuid.UUID, actor uuid.UUID) (*models.Document, error) {
	return s.Transition(ctx, id, models.DocStatusArchived, actor)
}

func statusAction(to models.DocumentStatus) string {
	switch to {
	case models.DocStatusActive:
		return audit.ActionActivate
	case models.DocStatusArchived:
		return audit.ActionArchive
	}
	return audit.ActionUpdate
}

// Duplicate copies a document into a new chain as a DRAFT named "<name> (Copy)".
func (s *DocumentService) Duplicate(ctx context.Context, id uuid.UUID, actor uuid.UUID) (*models.Document, error) {
	src, err := s.documents.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("duplicate document: %w", storeErr(err, "document", id))
	}
	doc := &models.Document{
		Name:         src.Name + " (Copy)",
		EntityType:   src.EntityType,
		EntityID:     src.EntityID,
		Type:         src.Type,
		DocumentDate: src.DocumentDate,
		TemplateID:   src.TemplateID,
		Content:      src.Content,
		Metadata:     jsonMap(src.Metadata),
		Version:      1,
		Status:       models.DocStatusDraft,
		CreatedBy:    actor,
	}
	if err := s.tx.ExecTx(ctx, func(ctx context.Context) error {
		return s.startChain(ctx, doc)
	}); err != nil {
		return nil, fmt.Errorf("duplicate document: %w", err)
	}

	s.audit.record(ctx, audit.Entry{
		EntityType:  audit.EntityDocument,
		EntityID:    doc.ID.String(),
		Action:      audit.ActionDuplicate,
		Description: fmt.Sprintf("Document %q duplicated from %q", doc.Name, src.Name),
		ActorID:     actor,
		Details:     map[string]any{"source_id": id.String()},
	})
	return doc, nil
}

// Delete removes the head version of a chain. Older versions stay put so the
// chain never has gaps; the chain itself goes away with its last version.
func (s *DocumentService) Delete(ctx context.Context, id uuid.UUID, actor uuid.UUID) error {
	doc, err := s.deleteHead(ctx, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	s.audit.record(ctx, audit.Entry{
		EntityType:  audit.EntityDocument,
		EntityID:    id.String(),
		Action:      audit.ActionDelete,
		Description: fmt.Sprintf("Document %q version %d deleted", doc.Name, doc.Version),
		ActorID:     actor,
	})
	return nil
}

func (s *DocumentService) deleteHead(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	var deleted *models.Document
	err := retryOnConflict(ctx, "delete", s.maxRetries, func() error {
		return s.tx.ExecTx(ctx, func(ctx context.Context) error {
			doc, err := s.documents.FindByID(ctx, id)
			if err != nil {
				return storeErr(err, "document", id)
			}
			chain, err := s.documents.GetChain(ctx, doc.ChainID)
			if err != nil {
				return fmt.Errorf("load version chain: %w", err)
			}
			if doc.Version != chain.HeadVersion {
				return &ConflictError{Message: fmt.Sprintf(
					"only the latest version (v%d) of %q can be deleted", chain.HeadVersion, doc.Name)}
			}
			ok, err := s.documents.RetreatHead(ctx, chain.ID, chain.HeadVersion)
			if err != nil {
				return err
			}
			if !ok {
				return errHeadMoved
			}
			if err := s.documents.Delete(ctx, id); err != nil {
				return storeErr(err, "document", id)
			}
			if chain.HeadVersion == 1 {
				if err := s.documents.DeleteChain(ctx, chain.ID); err != nil {
					return err
				}
			}
			deleted = doc
			return nil
		})
	})
	return deleted, err
}

// BulkAction applies delete, archive or activate to several documents.
// Documents that are missing or cannot take the action are skipped.
func (s *DocumentService) BulkAction(ctx context.Context, action string, ids []uuid.UUID, actor uuid.UUID) (*BulkResult, error) {
	a, err := parseBulkAction(action)
	if err != nil {
		return nil, err
	}
	result := &BulkResult{Action: a, Requested: len(ids)}

	var docs []*models.Document
	for _, id := range ids {
		doc, err := s.documents.FindByID(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			result.Skipped = append(result.Skipped, id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("bulk %s: %w", a, err)
		}
		docs = append(docs, doc)
	}

	switch a {
	case BulkDelete:
		// Heads first so a chain can be unwound within one request.
		sort.SliceStable(docs, func(i, j int) bool { return docs[i].Version > docs[j].Version })
		for _, doc := range docs {
			_, err := s.deleteHead(ctx, doc.ID)
			var conflict *ConflictError
			switch {
			case errors.As(err, &conflict), errors.Is(err, ErrNotFound):
				result.Skipped = append(result.Skipped, doc.ID)
				continue
			case err != nil:
				return result, fmt.Errorf("bulk delete: %w", err)
			}
			result.Affected++
			s.audit.record(ctx, audit.Entry{
				EntityType:  audit.EntityDocument,
				EntityID:    doc.ID.String(),
				Action:      audit.ActionBulkDelete,
				Description: fmt.Sprintf("Document %q version %d deleted", doc.Name, doc.Version),
				ActorID:     actor,
			})
		}
		return result, nil
	}

	to, from, auditAction := models.DocStatusArchived, []models.DocumentStatus{models.DocStatusDraft, models.DocStatusActive}, audit.ActionBulkArchive
	if a == BulkActivate {
		to, from, auditAction = models.DocStatusActive, []models.DocumentStatus{models.DocStatusDraft}, audit.ActionBulkActivate
	}
	var eligible []*models.Document
	var eligibleIDs []uuid.UUID
	for _, doc := range docs {
		if !doc.Status.CanTransition(to) {
			result.Skipped = append(result.Skipped, doc.ID)
			continue
		}
		eligible = append(eligible, doc)
		eligibleIDs = append(eligibleIDs, doc.ID)
	}
	n, err := s.documents.UpdateStatusMany(ctx, eligibleIDs, from, to)
	if err != nil {
		return nil, fmt.Errorf("bulk %s: %w", a, err)
	}
	result.Affected = n
	for _, doc := range eligible {
		s.audit.record(ctx, audit.Entry{
			EntityType:  audit.EntityDocument,
			EntityID:    doc.ID.String(),
			Action:      auditAction,
			Description: fmt.Sprintf("Document %q moved from %s to %s", doc.Name, doc.Status, to),
			ActorID:     actor,
		})
	}
	return result, nil
}

// startChain creates a chain with head 1 and inserts doc as its first version.
func (s *DocumentService) startChain(ctx context.Context, doc *models.Document) error {
	chain := &models.DocumentChain{
		Name:        doc.Name,
		EntityType:  doc.EntityType,
		EntityID:    doc.EntityID,
		HeadVersion: 1,
	}
	if err := s.documents.CreateChain(ctx, chain); err != nil {
		return err
	}
	doc.ChainID = chain.ID
	doc.Version = 1
	return s.documents.Insert(ctx, doc)
}

// entityAttributes validates the entity reference and loads its attributes.
func (s *DocumentService) entityAttributes(ctx context.Context, rawType, id string) (entity.Type, map[string]any, error) {
	t, err := entity.ParseType(rawType)
	if err != nil {
		return "", nil, &ValidationError{Message: err.Error()}
	}
	attrs, err := s.entities.Attributes(ctx, t, id)
	var unsupported *entity.UnsupportedTypeError
	switch {
	case errors.Is(err, entity.ErrNotFound):
		return "", nil, &NotFoundError{Resource: "entity", ID: fmt.Sprintf("%s/%s", t, id)}
	case errors.As(err, &unsupported):
		return "", nil, &ValidationError{Message: err.Error()}
	case err != nil:
		return "", nil, fmt.Errorf("load %s %s: %w", t, id, err)
	}
	return t, attrs, nil
}

func (s *DocumentService) generatedName(req GenerateRequest, tpl *models.Template, now time.Time) string {
	if name, ok := req.Data["name"].(string); ok && name != "" {
		return name
	}
	if req.Name != "" {
		return req.Name
	}
	return fmt.Sprintf("%s - %s", tpl.Name, s.resolver.Date(now))
}

// jsonMap copies m so stored metadata never aliases caller maps.
func jsonMap(m map[string]any) datatypes.JSONMap {
	if m == nil {
		return nil
	}
	return datatypes.JSONMap(maps.Clone(m))
}
