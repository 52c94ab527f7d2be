package database

import (
	"fmt"

	"github.com/pageza/extended-accounts/backend/internal/models"
	"gorm.io/gorm"
)

// RunMigrations creates or updates the account schema.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
