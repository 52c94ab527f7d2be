package store

import (
	"context"
	"time"

	"github.com/pageza/extended-accounts/backend/internal/models"
	"gorm.io/gorm"
)

// IdentityStore owns the accounts table.
type IdentityStore struct {
	db *gorm.DB
}

// NewIdentityStore creates a new IdentityStore instance
func NewIdentityStore(db *gorm.DB) *IdentityStore {
	return &IdentityStore{db: db}
}

// WithTx returns a store bound to tx.
func (s *IdentityStore) WithTx(tx *gorm.DB) *IdentityStore {
	return &IdentityStore{db: tx}
}

// Create inserts a new identity.
func (s *IdentityStore) Create(ctx context.Context, account *models.Account) error {
	return translate(omitAssociations(s.db.WithContext(ctx)).Create(account).Error)
}

// Update writes the named columns of an existing identity. It never inserts:
// a missing row is ErrNotFound. Writing is_active=false over an active row is
// ErrActive, so a stale copy cannot undo a confirmation.
func (s *IdentityStore) Update(ctx context.Context, account *models.Account, columns ...string) error {
	columns = append(columns[:len(columns):len(columns)], "updated_at")
	account.UpdatedAt = time.Now()
	q := s.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", account.ID)
	if contains(columns, "is_active") && !account.IsActive {
		q = q.Where("is_active = ?", false)
	}
	res := q.Select(columns).Updates(account)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	if _, err := s.Get(ctx, account.ID); err != nil {
		return err
	}
	return ErrActive
}

// Get loads an identity by primary key.
func (s *IdentityStore) Get(ctx context.Context, id uint) (*models.Account, error) {
	var account models.Account
	if err := s.db.WithContext(ctx).First(&account, id).Error; err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

// GetByUsername loads an identity by its normalized username.
func (s *IdentityStore) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	return s.getBy(ctx, "username = ?", username)
}

// GetByEmail loads an identity by its normalized email.
func (s *IdentityStore) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.getBy(ctx, "email = ?", email)
}

func (s *IdentityStore) getBy(ctx context.Context, query string, arg interface{}) (*models.Account, error) {
	var account models.Account
	if err := s.db.WithContext(ctx).Where(query, arg).First(&account).Error; err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

// List returns all identities ordered by username.
func (s *IdentityStore) List(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	if err := s.db.WithContext(ctx).Order("username").Find(&accounts).Error; err != nil {
		return nil, translate(err)
	}
	return accounts, nil
}

// Reload overwrites account in place with its persisted state.
func (s *IdentityStore) Reload(ctx context.Context, account *models.Account) error {
	fresh, err := s.Get(ctx, account.ID)
	if err != nil {
		return err
	}
	*account = *fresh
	return nil
}

// Delete removes an identity. Its profile and permissions cascade.
func (s *IdentityStore) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Account{}, id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Activate flips is_active for an inactive identity. It reports false when
// the identity is missing or already active.
func (s *IdentityStore) Activate(ctx context.Context, id uint) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ? AND is_active = ?", id, false).
		Update("is_active", true)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// DeleteInactive removes the identity only while it is still inactive.
func (s *IdentityStore) DeleteInactive(ctx context.Context, id uint) (bool, error) {
	res := s.db.WithContext(ctx).Where("is_active = ?", false).Delete(&models.Account{}, id)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// TouchLastLogin records a successful login.
func (s *IdentityStore) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	return translate(s.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", id).
		Update("last_login", at).Error)
}
