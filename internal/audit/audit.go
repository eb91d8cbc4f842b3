// Package audit records who did what to which CRM record.
//
// Recording is best effort: callers log and count a failed Record but never
// fail the operation that triggered it.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Entity types recorded in the activity log
const (
	EntityDocument = "DOCUMENT"
	EntityTemplate = "TEMPLATE"
)

// Audit action constants
const (
	ActionCreate        = "CREATE"
	ActionUpdate        = "UPDATE"
	ActionDelete        = "DELETE"
	ActionArchive       = "ARCHIVE"
	ActionActivate      = "ACTIVATE"
	ActionDuplicate     = "DUPLICATE"
	ActionCreateVersion = "CREATE_VERSION"
	ActionImport        = "IMPORT"
	ActionBulkDelete    = "BULK_DELETE"
	ActionBulkArchive   = "BULK_ARCHIVE"
	ActionBulkActivate  = "BULK_ACTIVATE"
)

// Entry is one activity record
type Entry struct {
	EntityType  string         `json:"entity_type"`
	EntityID    string         `json:"entity_id"`
	Action      string         `json:"action"`
	Description string         `json:"description"`
	ActorID     uuid.UUID      `json:"actor_id"`
	Details     map[string]any `json:"details,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Sink receives activity records
type Sink interface {
	Record(ctx context.Context, e Entry) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, e Entry) error

// Record implements Sink
func (f SinkFunc) Record(ctx context.Context, e Entry) error { return f(ctx, e) }

// Nop discards every entry
var Nop Sink = SinkFunc(func(context.Context, Entry) error { return nil })

type multi []Sink

// Multi fans an entry out to every sink and joins their errors
func Multi(sinks ...Sink) Sink {
	return multi(sinks)
}

func (m multi) Record(ctx context.Context, e Entry) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func detailsJSON(details map[string]any) string {
	if len(details) == 0 {
		return ""
	}
	b, err := json.Marshal(details)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Named is implemented by sinks that report a name for metrics and logs.
type Named interface {
	Name() string
}

// NameOf returns the sink's name, or "custom" for unnamed sinks.
func NameOf(s Sink) string {
	if n, ok := s.(Named); ok {
		return n.Name()
	}
	return "custom"
}

func (m multi) Name() string { return "multi" }
