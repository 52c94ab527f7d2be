package store

import (
	"context"

	"github.com/pageza/extended-accounts/backend/internal/models"
	"gorm.io/gorm"
)

// PermissionStore owns per-account permission grants.
type PermissionStore struct {
	db *gorm.DB
}

// NewPermissionStore creates a new PermissionStore instance
func NewPermissionStore(db *gorm.DB) *PermissionStore {
	return &PermissionStore{db: db}
}

// Grant gives codename to accountID.
func (s *PermissionStore) Grant(ctx context.Context, accountID uint, codename string) error {
	return translate(s.db.WithContext(ctx).Create(&models.AccountPermission{
		AccountID: accountID,
		Codename:  codename,
	}).Error)
}

// AccountsWith returns accounts holding codename, optionally only active ones,
// and optionally every superuser regardless of grants.
func (s *PermissionStore) AccountsWith(ctx context.Context, codename string, activeOnly, includeSuperusers bool) ([]models.Account, error) {
	granted := s.db.Model(&models.AccountPermission{}).Select("account_id").Where("codename = ?", codename)

	q := s.db.WithContext(ctx).Model(&models.Account{})
	if includeSuperusers {
		q = q.Where(s.db.Where("id IN (?)", granted).Or("is_superuser = ?", true))
	} else {
		q = q.Where("id IN (?)", granted)
	}
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}

	var accounts []models.Account
	if err := q.Order("username").Find(&accounts).Error; err != nil {
		return nil, translate(err)
	}
	return accounts, nil
}
