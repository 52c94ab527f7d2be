package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/pageza/extended-accounts/backend/internal/models"
	"github.com/pageza/extended-accounts/backend/internal/store"
)

// Backend is a named authentication backend.
type Backend interface {
	Name() string
}

// Authenticator is implemented by backends that can check credentials.
// A nil account with a nil error means the backend did not recognise them.
type Authenticator interface {
	Authenticate(ctx context.Context, login, password string) (*models.Account, error)
}

// CapabilityQuerier is implemented by backends that can list the accounts
// holding a permission.
type CapabilityQuerier interface {
	WithPermission(ctx context.Context, perm string, activeOnly, includePrivileged bool) ([]models.Account, error)
}

var backendName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// BackendRegistry holds the configured backends in priority order.
type BackendRegistry struct {
	backends []Backend
}

func NewBackendRegistry(backends ...Backend) *BackendRegistry {
	return &BackendRegistry{backends: backends}
}

// All returns the configured backends in order.
func (r *BackendRegistry) All() []Backend {
	return r.backends
}

// Resolve picks the backend to use. An empty name is only allowed when a
// single backend is configured.
func (r *BackendRegistry) Resolve(name string) (Backend, error) {
	if name == "" {
		if len(r.backends) != 1 {
			return nil, ErrConfiguration
		}
		return r.backends[0], nil
	}
	if !backendName.MatchString(name) {
		return nil, ErrInvalidBackend
	}
	for _, b := range r.backends {
		if b.Name() == name {
			return b, nil
		}
	}
	return nil, ErrNotFound
}

// ModelBackend authenticates by username and answers permission queries
// from the account_permissions table.
type ModelBackend struct {
	identities *store.IdentityStore
	perms      *store.PermissionStore
}

func NewModelBackend(identities *store.IdentityStore, perms *store.PermissionStore) *ModelBackend {
	return &ModelBackend{identities: identities, perms: perms}
}

func (b *ModelBackend) Name() string { return "accounts.backends.ModelBackend" }

func (b *ModelBackend) Authenticate(ctx context.Context, login, password string) (*models.Account, error) {
	account, err := b.identities.GetByUsername(ctx, normalizeUsername(login))
	return checkCredentials(account, err, password)
}

func (b *ModelBackend) WithPermission(ctx context.Context, perm string, activeOnly, includePrivileged bool) ([]models.Account, error) {
	return b.perms.AccountsWith(ctx, perm, activeOnly, includePrivileged)
}

// EmailBackend authenticates by email address. It cannot answer permission queries.
type EmailBackend struct {
	identities *store.IdentityStore
}

func NewEmailBackend(identities *store.IdentityStore) *EmailBackend {
	return &EmailBackend{identities: identities}
}

func (b *EmailBackend) Name() string { return "accounts.backends.EmailBackend" }

func (b *EmailBackend) Authenticate(ctx context.Context, login, password string) (*models.Account, error) {
	if !strings.Contains(login, "@") {
		return nil, nil
	}
	account, err := b.identities.GetByEmail(ctx, normalizeEmail(login))
	return checkCredentials(account, err, password)
}

var (
	dummyOnce sync.Once
	dummy     []byte
)

// dummyHash keeps the cost of a miss close to the cost of a wrong password.
// It is generated on the first miss.
func dummyHash() []byte {
	dummyOnce.Do(func() {
		dummy, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	})
	return dummy
}

func checkCredentials(account *models.Account, lookupErr error, password string) (*models.Account, error) {
	if lookupErr != nil {
		if errors.Is(lookupErr, store.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
			return nil, nil
		}
		return nil, lookupErr
	}
	if !usablePassword(account.PasswordHash) {
		return nil, nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, nil
	}
	if !account.IsActive {
		return nil, nil
	}
	return account, nil
}
