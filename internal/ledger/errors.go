package ledger

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a record does not exist or belongs to
	// another profile.
	ErrNotFound = errors.New("not found")

	// ErrImmutable is returned when an update touches an immutable field.
	ErrImmutable = errors.New("immutable field")
)

// FieldError describes one invalid field of a record.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) String() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError is returned when a record fails field validation.
type ValidationError struct {
	Entity string
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return fmt.Sprintf("invalid %s: %s", e.Entity, strings.Join(parts, "; "))
}

// IsValidationError reports whether err wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

type fieldChecker struct {
	entity string
	fields []FieldError
}

func (c *fieldChecker) check(ok bool, field, msg string) {
	if !ok {
		c.fields = append(c.fields, FieldError{Field: field, Message: msg})
	}
}

func (c *fieldChecker) err() error {
	if len(c.fields) == 0 {
		return nil
	}
	return &ValidationError{Entity: c.entity, Fields: c.fields}
}
