// Package entity resolves CRM records into flat attribute maps for
// placeholder resolution.
package entity

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Type identifies the kind of business record a document is about.
type Type string

const (
	TypeCompany Type = "COMPANY"
	TypeBrand   Type = "BRAND"
	TypeBranch  Type = "BRANCH"
	TypePerson  Type = "PERSON"
)

// Types lists every supported entity type.
var Types = []Type{TypeCompany, TypeBrand, TypeBranch, TypePerson}

// ErrNotFound is returned when an entity id does not resolve.
var ErrNotFound = errors.New("entity not found")

// UnsupportedTypeError is returned for an entity type outside Types.
type UnsupportedTypeError struct {
	Type string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported entity type %q", e.Type)
}

// ParseType accepts any casing of a supported entity type.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Types {
		if t == known {
			return t, nil
		}
	}
	return "", &UnsupportedTypeError{Type: s}
}

// Provider returns the attribute map of an entity.
type Provider interface {
	Attributes(ctx context.Context, t Type, id string) (map[string]any, error)
}

// StaticProvider serves attributes from memory, keyed by type and id.
type StaticProvider map[Type]map[string]map[string]any

// Attributes implements Provider.
func (p StaticProvider) Attributes(_ context.Context, t Type, id string) (map[string]any, error) {
	if _, err := ParseType(string(t)); err != nil {
		return nil, err
	}
	attrs, ok := p[t][id]
	if !ok {
		return nil, ErrNotFound
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out, nil
}
