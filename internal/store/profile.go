package store

import (
	"context"

	"github.com/pageza/extended-accounts/backend/internal/models"
	"gorm.io/gorm"
)

// ProfileStore owns the profiles table.
type ProfileStore struct {
	db *gorm.DB
}

// NewProfileStore creates a new ProfileStore instance
func NewProfileStore(db *gorm.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

// WithTx returns a store bound to tx.
func (s *ProfileStore) WithTx(tx *gorm.DB) *ProfileStore {
	return &ProfileStore{db: tx}
}

func (s *ProfileStore) Create(ctx context.Context, profile *models.Profile) error {
	return translate(s.db.WithContext(ctx).Create(profile).Error)
}

// Update writes the named columns of an existing profile. A missing row is
// ErrNotFound; nothing is ever inserted.
func (s *ProfileStore) Update(ctx context.Context, profile *models.Profile, columns ...string) error {
	if len(columns) == 0 {
		return nil
	}
	res := s.db.WithContext(ctx).Model(&models.Profile{}).
		Where("id = ? AND account_id = ?", profile.ID, profile.AccountID).
		Select(columns).Updates(profile)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateImage writes only the image reference column.
func (s *ProfileStore) UpdateImage(ctx context.Context, profileID uint, ref *string) error {
	res := s.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", profileID).Update("profile_image", ref)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByAccount loads the profile linked to accountID.
func (s *ProfileStore) GetByAccount(ctx context.Context, accountID uint) (*models.Profile, error) {
	var profile models.Profile
	if err := s.db.WithContext(ctx).Where("account_id = ?", accountID).First(&profile).Error; err != nil {
		return nil, translate(err)
	}
	return &profile, nil
}

// GetByPhone loads the profile holding phone.
func (s *ProfileStore) GetByPhone(ctx context.Context, phone int64) (*models.Profile, error) {
	var profile models.Profile
	if err := s.db.WithContext(ctx).Where("phone_number = ?", phone).First(&profile).Error; err != nil {
		return nil, translate(err)
	}
	return &profile, nil
}

// ListByAccounts returns the profiles of ids keyed by account id.
func (s *ProfileStore) ListByAccounts(ctx context.Context, ids []uint) (map[uint]*models.Profile, error) {
	var profiles []models.Profile
	if len(ids) > 0 {
		if err := s.db.WithContext(ctx).Where("account_id IN ?", ids).Find(&profiles).Error; err != nil {
			return nil, translate(err)
		}
	}
	out := make(map[uint]*models.Profile, len(profiles))
	for i := range profiles {
		out[profiles[i].AccountID] = &profiles[i]
	}
	return out, nil
}

// Reload overwrites profile in place with its persisted state.
func (s *ProfileStore) Reload(ctx context.Context, profile *models.Profile) error {
	var fresh models.Profile
	if err := s.db.WithContext(ctx).First(&fresh, profile.ID).Error; err != nil {
		return translate(err)
	}
	*profile = fresh
	return nil
}

// DeleteByAccount removes the profile of accountID, if any.
func (s *ProfileStore) DeleteByAccount(ctx context.Context, accountID uint) error {
	return translate(s.db.WithContext(ctx).Where("account_id = ?", accountID).Delete(&models.Profile{}).Error)
}
