package service

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested resource was not found.
var ErrNotFound = errors.New("not found")

// NotFoundError names the missing resource ("template", "document", "entity").
// It matches ErrNotFound with errors.Is.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ValidationError represents a bad-request condition (HTTP 400).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError represents a conflict condition (HTTP 409).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// TransientConflictError is returned when a write kept losing a race for the
// same version chain. Callers may retry the whole request.
type TransientConflictError struct {
	Operation string
	Attempts  int
}

func (e *TransientConflictError) Error() string {
	return fmt.Sprintf("%s: gave up after %d conflicting attempts", e.Operation, e.Attempts)
}
