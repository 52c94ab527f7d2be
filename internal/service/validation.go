package service

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/unicode/norm"
)

var (
	usernamePattern = regexp.MustCompile(`^[\p{L}\p{N}_.@+-]+$`)
	phonePattern    = regexp.MustCompile(`^[0-9]{9}$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return v
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return fmt.Sprintf("Ensure this value has at most %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Ensure this value has at least %s characters.", fe.Param())
	case "email":
		return "Enter a valid email address."
	case "username":
		return "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	case "phone":
		return "Phone number must contain 9 digits"
	case "eqfield":
		return "The two password fields didn't match."
	}
	return "Enter a valid value."
}

// toValidationError converts validator output into per-field messages.
func toValidationError(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err
	}
	out := &ValidationError{}
	for _, fe := range errs {
		out.add(fe.Field(), fieldMessage(fe))
	}
	return out.orNil()
}

// normalizeUsername applies NFKC so visually identical names collide.
func normalizeUsername(username string) string {
	return norm.NFKC.String(username)
}

// normalizeEmail lower-cases the domain part and leaves the local part untouched.
func normalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}

func validateUsername(username string) error {
	if err := validate.Var(username, "required,max=150,username"); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) && len(errs) > 0 {
			return newValidationError("username", fieldMessage(errs[0]))
		}
		return err
	}
	return nil
}

// parsePhone accepts an empty value as "no phone" and otherwise requires an integer.
func parsePhone(raw string) (*int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, newValidationError("phone_number", "Enter a whole number.")
	}
	return &n, nil
}

const unusablePrefix = "!"

// hashPassword bcrypt-hashes password. An empty password yields a hash that
// never matches.
func hashPassword(password string) (string, error) {
	if password == "" {
		buf := make([]byte, 20)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate unusable password: %w", err)
		}
		return unusablePrefix + hex.EncodeToString(buf), nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", newValidationError("password", "Ensure this value has at most 72 bytes.")
		}
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func usablePassword(hash string) bool {
	return hash != "" && !strings.HasPrefix(hash, unusablePrefix)
}
