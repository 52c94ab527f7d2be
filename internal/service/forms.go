package service

import (
	"context"
	"errors"
	"strconv"

	"github.com/pageza/extended-accounts/backend/internal/store"
)

// NewAccountForm is the registration payload.
type NewAccountForm struct {
	Username    string `form:"username" json:"username" validate:"required,max=150,username"`
	Password1   string `form:"password1" json:"password1" validate:"required,min=8"`
	Password2   string `form:"password2" json:"password2" validate:"required,eqfield=Password1"`
	Email       string `form:"email" json:"email" validate:"required,email,max=254"`
	FirstName   string `form:"first_name" json:"first_name" validate:"required,max=150"`
	LastName    string `form:"last_name" json:"last_name" validate:"required,max=150"`
	PhoneNumber string `form:"phone_number" json:"phone_number" validate:"required,phone"`
}

// Input converts a validated form into CreateAccountInput.
func (f NewAccountForm) Input(imageRef string) CreateAccountInput {
	return CreateAccountInput{
		Username:     f.Username,
		Password:     f.Password2,
		Email:        f.Email,
		FirstName:    f.FirstName,
		LastName:     f.LastName,
		PhoneNumber:  f.PhoneNumber,
		ProfileImage: imageRef,
	}
}

// UpdateAccountForm is the self-service edit payload. Privilege flags are not part of it.
type UpdateAccountForm struct {
	Username    string `form:"username" json:"username" validate:"required,max=150,username"`
	Email       string `form:"email" json:"email" validate:"required,email,max=254"`
	FirstName   string `form:"first_name" json:"first_name" validate:"required,max=150"`
	LastName    string `form:"last_name" json:"last_name" validate:"required,max=150"`
	PhoneNumber string `form:"phone_number" json:"phone_number" validate:"required,phone"`
}

// Fields converts a validated form into an AccountUpdate. A non-empty
// imageRef replaces the profile image.
func (f UpdateAccountForm) Fields(imageRef string) AccountUpdate {
	fields := AccountUpdate{
		"username":     f.Username,
		"email":        f.Email,
		"first_name":   f.FirstName,
		"last_name":    f.LastName,
		"phone_number": f.PhoneNumber,
	}
	if imageRef != "" {
		fields["profile_image"] = imageRef
	}
	return fields
}

const (
	duplicateUsername = "A user with that username already exists."
	duplicateEmail    = "The email provided is already registered by another user."
	duplicatePhone    = "The phone number provided is already registered by another user."
)

// ValidateNewAccount checks a registration form, duplicate email and phone included.
// The unique indexes remain authoritative; this only produces friendlier messages.
func (s *AccountService) ValidateNewAccount(ctx context.Context, form NewAccountForm) error {
	verr := &ValidationError{}
	if err := validate.Struct(form); err != nil {
		var fieldErrs *ValidationError
		if !errors.As(toValidationError(err), &fieldErrs) {
			return err
		}
		verr = fieldErrs
	}
	if err := s.checkDuplicates(ctx, 0, form.Username, form.Email, form.PhoneNumber, verr); err != nil {
		return err
	}
	return verr.orNil()
}

// ValidateAccountUpdate checks an edit form for account. Its own email and
// phone number are accepted.
func (s *AccountService) ValidateAccountUpdate(ctx context.Context, account *Account, form UpdateAccountForm) error {
	verr := &ValidationError{}
	if err := validate.Struct(form); err != nil {
		var fieldErrs *ValidationError
		if !errors.As(toValidationError(err), &fieldErrs) {
			return err
		}
		verr = fieldErrs
	}
	if err := s.checkDuplicates(ctx, account.Identity.ID, form.Username, form.Email, form.PhoneNumber, verr); err != nil {
		return err
	}
	return verr.orNil()
}

// checkDuplicates records duplicate username, email and phone against any account other than self.
func (s *AccountService) checkDuplicates(ctx context.Context, self uint, username, email, phone string, verr *ValidationError) error {
	if _, bad := verr.Fields["username"]; !bad && username != "" {
		other, err := s.identities.GetByUsername(ctx, normalizeUsername(username))
		switch {
		case err == nil && other.ID != self:
			verr.add("username", duplicateUsername)
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return err
		}
	}
	if _, bad := verr.Fields["email"]; !bad && email != "" {
		other, err := s.identities.GetByEmail(ctx, normalizeEmail(email))
		switch {
		case err == nil && other.ID != self:
			verr.add("email", duplicateEmail)
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return err
		}
	}
	if _, bad := verr.Fields["phone_number"]; !bad && phone != "" {
		n, convErr := strconv.ParseInt(phone, 10, 64)
		if convErr != nil {
			verr.add("phone_number", "Enter a whole number.")
			return nil
		}
		other, err := s.profiles.GetByPhone(ctx, n)
		switch {
		case err == nil && other.AccountID != self:
			verr.add("phone_number", duplicatePhone)
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return err
		}
	}
	return nil
}
