package types

import "time"

// AccountResponse is the public representation of an account.
type AccountResponse struct {
	ID          uint       `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	PhoneNumber *int64     `json:"phone_number"`
	IsActive    bool       `json:"is_active"`
	IsStaff     bool       `json:"is_staff"`
	DateJoined  time.Time  `json:"date_joined"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
	// Images lists the URLs of every stored variant of the profile image.
	Images []string `json:"images,omitempty"`
}

// AccountListResponse wraps a list of accounts.
type AccountListResponse struct {
	Accounts []AccountResponse `json:"accounts"`
	Count    int               `json:"count"`
}

// RegisterResponse is returned after a successful registration.
type RegisterResponse struct {
	Message string          `json:"message"`
	Account AccountResponse `json:"account"`
}
