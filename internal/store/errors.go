package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("unique constraint violated")
	// ErrActive rejects a write that would deactivate an active identity.
	ErrActive = errors.New("identity is already active")
)

// ConflictError reports which unique column rejected a write.
type ConflictError struct {
	Field string
	Err   error
}

func (e *ConflictError) Error() string {
	if e.Field == "" {
		return ErrConflict.Error()
	}
	return fmt.Sprintf("%s: %s", ErrConflict.Error(), e.Field)
}

func (e *ConflictError) Unwrap() []error { return []error{ErrConflict, e.Err} }

// uniqueColumns are matched against constraint names and driver messages.
var uniqueColumns = []string{"phone_number", "username", "email", "codename"}

// translate maps driver errors onto the store taxonomy. Unique violations are
// recognised from lib/pq's SQLSTATE 23505 or the driver message, which also
// names the offending column. gorm's TranslateError is left off because it
// drops that message.
func translate(err error) error {
	if err == nil || errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}

	var pqErr *pq.Error
	switch {
	case errors.As(err, &pqErr) && pqErr.Code == "23505":
		return &ConflictError{Field: conflictField(pqErr.Constraint + " " + pqErr.Message), Err: err}
	case errors.Is(err, gorm.ErrDuplicatedKey),
		strings.Contains(err.Error(), "UNIQUE constraint failed"),
		strings.Contains(err.Error(), "duplicate key value"):
		return &ConflictError{Field: conflictField(err.Error()), Err: err}
	}
	return err
}

func conflictField(msg string) string {
	for _, col := range uniqueColumns {
		if strings.Contains(msg, col) {
			return col
		}
	}
	return ""
}
