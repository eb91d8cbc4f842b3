// Package service contains the business logic of document generation,
// document versioning and the template lifecycle.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tahakubilay/Full-CRM-Claude/internal/audit"
	"github.com/tahakubilay/Full-CRM-Claude/internal/config"
	"github.com/tahakubilay/Full-CRM-Claude/internal/entity"
	"github.com/tahakubilay/Full-CRM-Claude/internal/metrics"
	"github.com/tahakubilay/Full-CRM-Claude/internal/models"
	"github.com/tahakubilay/Full-CRM-Claude/internal/store"
	"gorm.io/gorm"
)

// Transactor runs fn in one database transaction carried by the context.
type Transactor interface {
	ExecTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TemplateRepository is the template persistence used by the services.
type TemplateRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Template, error)
	IncrementUsage(ctx context.Context, id uuid.UUID) error
	Create(ctx context.Context, t *models.Template) error
	Update(ctx context.Context, t *models.Template, fields map[string]any) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteMany(ctx context.Context, ids []uuid.UUID) (int64, error)
	SetActive(ctx context.Context, ids []uuid.UUID, active bool) (int64, error)
	List(ctx context.Context, f store.TemplateFilter) ([]models.Template, int64, error)
}

// DocumentRepository is the document and version chain persistence used by
// the services.
type DocumentRepository interface {
	Insert(ctx context.Context, doc *models.Document) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	FindByLogicalIdentity(ctx context.Context, name, entityType, entityID string) ([]models.Document, error)
	FindByChain(ctx context.Context, chainID uuid.UUID) ([]models.Document, error)
	CountByTemplateID(ctx context.Context, templateID uuid.UUID) (int64, error)
	CountByTemplateIDs(ctx context.Context, templateIDs []uuid.UUID) (int64, error)
	RecentByTemplateID(ctx context.Context, templateID uuid.UUID, limit int) ([]models.Document, error)
	Update(ctx context.Context, doc *models.Document, fields map[string]any) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from []models.DocumentStatus, to models.DocumentStatus) (bool, error)
	UpdateStatusMany(ctx context.Context, ids []uuid.UUID, from []models.DocumentStatus, to models.DocumentStatus) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f store.DocumentFilter) ([]models.Document, int64, error)
	CreateChain(ctx context.Context, chain *models.DocumentChain) error
	GetChain(ctx context.Context, id uuid.UUID) (*models.DocumentChain, error)
	AdvanceHead(ctx context.Context, chainID uuid.UUID, expected int) (bool, error)
	RetreatHead(ctx context.Context, chainID uuid.UUID, expected int) (bool, error)
	DeleteChain(ctx context.Context, id uuid.UUID) error
}

// Option configures a service.
type Option func(*options)

type options struct {
	logger *slog.Logger
	now    func() time.Time
}

// WithLogger sets the logger used for best-effort failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// recorder writes activity entries without ever failing the caller.
type recorder struct {
	sink   audit.Sink
	logger *slog.Logger
}

func (r recorder) record(ctx context.Context, e audit.Entry) {
	if r.sink == nil {
		return
	}
	// The write this entry describes has already committed.
	if err := r.sink.Record(context.WithoutCancel(ctx), e); err != nil {
		metrics.AuditFailures.WithLabelValues(audit.NameOf(r.sink)).Inc()
		r.logger.Warn("Failed to record activity",
			"entity_type", e.EntityType,
			"entity_id", e.EntityID,
			"action", e.Action,
			"error", err)
	}
}

// errHeadMoved signals a lost compare-and-swap on a chain head.
var errHeadMoved = errors.New("version chain head moved")

// retryOnConflict runs fn until it stops returning errHeadMoved, at most
// attempts times.
func retryOnConflict(ctx context.Context, operation string, attempts int, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	for i := 1; ; i++ {
		err := fn()
		if !errors.Is(err, errHeadMoved) {
			return err
		}
		if i >= attempts {
			return &TransientConflictError{Operation: operation, Attempts: i}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		metrics.ConflictRetries.WithLabelValues(operation).Inc()
	}
}

// storeErr maps store.ErrNotFound to a NotFoundError for resource.
func storeErr(err error, resource string, id uuid.UUID) error {
	if errors.Is(err, store.ErrNotFound) {
		return &NotFoundError{Resource: resource, ID: id.String()}
	}
	return err
}

// ParseID parses a record id, reporting a malformed one as a ValidationError.
func ParseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, &ValidationError{Message: fmt.Sprintf("invalid id %q", s)}
	}
	return id, nil
}

func parseBulkAction(action string) (BulkAction, error) {
	switch a := BulkAction(action); a {
	case BulkDelete, BulkArchive, BulkActivate:
		return a, nil
	}
	return "", &ValidationError{Message: fmt.Sprintf("invalid bulk action %q", action)}
}

// Services bundles the services that share one database.
type Services struct {
	Documents *DocumentService
	Templates *TemplateService
}

// NewServices wires both services over GORM stores on db.
func NewServices(db *gorm.DB, entities entity.Provider, sink audit.Sink, cfg config.DocgenConfig, opts ...Option) (*Services, error) {
	tx := store.NewTransactor(db)
	templates := store.NewTemplateStore(db)
	documents := store.NewDocumentStore(db)

	docs, err := NewDocumentService(tx, templates, documents, entities, sink, cfg, opts...)
	if err != nil {
		return nil, err
	}
	tpls, err := NewTemplateService(tx, templates, documents, sink, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Services{Documents: docs, Templates: tpls}, nil
}
