package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/pageza/extended-accounts/backend/internal/store"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrConfiguration      = errors.New("multiple capability backends are configured, a backend must be named")
	ErrInvalidBackend     = errors.New("backend must be a dotted identifier")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// ValidationError carries per-field messages for form re-rendering.
type ValidationError struct {
	Fields map[string]string
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// add records message for field, keeping the first message per field.
func (e *ValidationError) add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = message
	}
}

func (e *ValidationError) orNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// ConflictError reports a write rejected by a uniqueness constraint.
type ConflictError struct {
	Field string
	Err   error
}

func (e *ConflictError) Error() string {
	if e.Field == "" {
		return "account conflicts with an existing account"
	}
	return fmt.Sprintf("an account with that %s already exists", strings.ReplaceAll(e.Field, "_", " "))
}

func (e *ConflictError) Unwrap() error { return e.Err }

// translateStoreError lifts store errors into the service taxonomy.
func translateStoreError(err error) error {
	if err == nil {
		return nil
	}
	var (
		translated *ConflictError
		conflict   *store.ConflictError
	)
	switch {
	case errors.As(err, &translated):
		return err
	case errors.As(err, &conflict):
		return &ConflictError{Field: conflict.Field, Err: err}
	case errors.Is(err, store.ErrConflict):
		return &ConflictError{Err: err}
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrActive):
		return newValidationError("is_active", msgActiveIsFinal)
	}
	return err
}
