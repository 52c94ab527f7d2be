package models

import (
	"time"
)

// Account is the authentication identity. Everything that is not needed to
// authenticate lives in Profile.
type Account struct {
	ID           uint       `gorm:"primarykey" json:"id"`
	Username     string     `gorm:"size:150;not null;uniqueIndex" json:"username"`
	Email        string     `gorm:"size:254;not null;uniqueIndex" json:"email"`
	PasswordHash string     `gorm:"size:128;not null" json:"-"`
	IsStaff      bool       `gorm:"not null;default:false" json:"is_staff"`
	IsSuperuser  bool       `gorm:"not null;default:false" json:"is_superuser"`
	IsActive     bool       `gorm:"not null;default:false" json:"is_active"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	Profile     *Profile            `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"-"`
	Permissions []AccountPermission `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"-"`
}

// Profile holds the non-authentication attributes of an account.
type Profile struct {
	ID        uint   `gorm:"primarykey" json:"id"`
	AccountID uint   `gorm:"not null;uniqueIndex" json:"account_id"`
	FirstName string `gorm:"size:150;not null;default:''" json:"first_name"`
	LastName  string `gorm:"size:150;not null;default:''" json:"last_name"`
	// PhoneNumber is only NULL for accounts created outside the registration form.
	PhoneNumber *int64 `gorm:"uniqueIndex" json:"phone_number"`
	// ProfileImage is the extension-less image reference once normalized.
	ProfileImage *string   `gorm:"size:100" json:"profile_image"`
	DateJoined   time.Time `gorm:"not null" json:"date_joined"`
}

// AccountPermission grants a single "app_label.codename" permission to an account.
type AccountPermission struct {
	ID        uint   `gorm:"primarykey" json:"id"`
	AccountID uint   `gorm:"not null;uniqueIndex:idx_account_permission" json:"account_id"`
	Codename  string `gorm:"size:255;not null;uniqueIndex:idx_account_permission" json:"codename"`
}

// ImageRef returns the profile image reference or "" when unset.
func (p *Profile) ImageRef() string {
	if p == nil || p.ProfileImage == nil {
		return ""
	}
	return *p.ProfileImage
}

// All lists every model managed by migrations, in dependency order.
func All() []interface{} {
	return []interface{}{
		&Account{},
		&Profile{},
		&AccountPermission{},
	}
}
