package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write violates a uniqueness constraint.
var ErrConflict = errors.New("conflict")

// ErrReferenced is returned when a write breaks a foreign key, either by
// pointing at a missing row or by deleting a row still referenced.
var ErrReferenced = errors.New("referenced")

// ConflictError names the field whose uniqueness was violated.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	if e.Field == "" {
		return ErrConflict.Error()
	}
	return fmt.Sprintf("%s already exists", e.Field)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// ConflictField returns the violated field carried by err, if any.
func ConflictField(err error) string {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return conflict.Field
	}
	return ""
}

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// translate maps driver errors onto the package's sentinel errors.
func translate(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch string(pqErr.Code) {
	case pqUniqueViolation:
		return &ConflictError{Field: constraintField(pqErr.Constraint)}
	case pqForeignKeyViolation:
		return fmt.Errorf("%w: %s", ErrReferenced, pqErr.Constraint)
	}
	return err
}

func constraintField(constraint string) string {
	switch {
	case strings.Contains(constraint, "username"):
		return "username"
	case strings.Contains(constraint, "email"):
		return "email"
	case strings.Contains(constraint, "google_id"):
		return "googleId"
	case strings.Contains(constraint, "name"):
		return "name"
	case strings.HasSuffix(constraint, "_pkey"):
		return "id"
	}
	return ""
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
