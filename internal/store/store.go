// Package store persists account identities and profiles with gorm.
package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Transact runs fn inside a single database transaction. The transaction is
// rolled back when fn returns an error; the error is returned translated.
func Transact(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return translate(db.WithContext(ctx).Transaction(fn))
}

// omitAssociations keeps gorm from upserting related rows implicitly; the
// coordinator always writes identity and profile explicitly.
func omitAssociations(db *gorm.DB) *gorm.DB {
	return db.Omit(clause.Associations)
}

func contains(columns []string, name string) bool {
	for _, c := range columns {
		if c == name {
			return true
		}
	}
	return false
}
