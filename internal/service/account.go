package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pageza/extended-accounts/backend/internal/models"
	"github.com/pageza/extended-accounts/backend/internal/store"
)

// Account is the unified view of an identity and its profile.
type Account struct {
	Identity *models.Account
	Profile  *models.Profile
}

func (a *Account) Username() string { return a.Identity.Username }

// CreateAccountInput describes a new account. Nil flags take their defaults.
type CreateAccountInput struct {
	Username     string
	Password     string
	Email        string
	FirstName    string
	LastName     string
	PhoneNumber  string
	ProfileImage string
	IsStaff      *bool
	IsSuperuser  *bool
	IsActive     *bool
}

// AccountUpdate maps field names to new values. Keys are split between the
// identity and the profile by the static schema below.
type AccountUpdate map[string]interface{}

var (
	profileFields  = map[string]bool{"first_name": true, "last_name": true, "phone_number": true, "profile_image": true}
	identityFields = map[string]bool{"username": true, "email": true, "is_active": true, "is_staff": true, "is_superuser": true}
	readOnlyFields = map[string]bool{"id": true, "account_id": true, "date_joined": true}
)

// Scheduler schedules the cleanup of a freshly created account.
type Scheduler interface {
	Schedule(ctx context.Context, username string) error
}

// AccountService coordinates identity and profile writes together with the
// image hooks and the unconfirmed-account sweeper.
type AccountService struct {
	db         *gorm.DB
	identities *store.IdentityStore
	profiles   *store.ProfileStore
	images     *ImageService
	scheduler  Scheduler
	backends   *BackendRegistry
	tokens     *TokenGenerator
	log        *zap.SugaredLogger
	now        func() time.Time
}

// NewAccountService creates a new AccountService instance
func NewAccountService(db *gorm.DB, images *ImageService, scheduler Scheduler, backends *BackendRegistry, tokens *TokenGenerator, log *zap.SugaredLogger) *AccountService {
	return &AccountService{
		db:         db,
		identities: store.NewIdentityStore(db),
		profiles:   store.NewProfileStore(db),
		images:     images,
		scheduler:  scheduler,
		backends:   backends,
		tokens:     tokens,
		log:        log,
		now:        time.Now,
	}
}

// CreateAccount registers a regular account. It starts inactive.
func (s *AccountService) CreateAccount(ctx context.Context, in CreateAccountInput) (*Account, error) {
	in.IsStaff = orDefault(in.IsStaff, false)
	in.IsSuperuser = orDefault(in.IsSuperuser, false)
	return s.create(ctx, in)
}

// CreateSuperuser registers an account with staff and superuser rights.
func (s *AccountService) CreateSuperuser(ctx context.Context, in CreateAccountInput) (*Account, error) {
	in.IsStaff = orDefault(in.IsStaff, true)
	in.IsSuperuser = orDefault(in.IsSuperuser, true)
	if !*in.IsStaff {
		return nil, newValidationError("is_staff", "Superuser must have is_staff=True.")
	}
	if !*in.IsSuperuser {
		return nil, newValidationError("is_superuser", "Superuser must have is_superuser=True.")
	}
	return s.create(ctx, in)
}

func orDefault(v *bool, def bool) *bool {
	if v != nil {
		return v
	}
	return &def
}

func (s *AccountService) create(ctx context.Context, in CreateAccountInput) (*Account, error) {
	if in.Username == "" {
		return nil, newValidationError("username", "The given username must be set.")
	}
	username := normalizeUsername(in.Username)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	email := normalizeEmail(in.Email)
	if len(email) > 254 {
		return nil, newValidationError("email", "Ensure this value has at most 254 characters.")
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	identity := &models.Account{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsStaff:      *in.IsStaff,
		IsSuperuser:  *in.IsSuperuser,
		IsActive:     in.IsActive != nil && *in.IsActive,
	}
	var profile *models.Profile

	err = store.Transact(ctx, s.db, func(tx *gorm.DB) error {
		if err := s.identities.WithTx(tx).Create(ctx, identity); err != nil {
			return err
		}
		phone, err := parsePhone(in.PhoneNumber)
		if err != nil {
			return err
		}
		profile = &models.Profile{
			AccountID:   identity.ID,
			FirstName:   in.FirstName,
			LastName:    in.LastName,
			PhoneNumber: phone,
			DateJoined:  s.now(),
		}
		if in.ProfileImage != "" {
			ref := in.ProfileImage
			profile.ProfileImage = &ref
		}
		if err := validateProfile(profile); err != nil {
			return err
		}
		return s.profiles.WithTx(tx).Create(ctx, profile)
	})
	if err != nil {
		return nil, translateStoreError(err)
	}

	account := &Account{Identity: identity, Profile: profile}
	s.log.Infow("account created", "username", username, "account_id", identity.ID)

	if err := s.scheduleSweep(ctx, username); err != nil {
		s.log.Errorw("failed to schedule unconfirmed account cleanup", "username", username, "error", err)
	}
	if err := s.normalizeImage(ctx, account); err != nil {
		return account, err
	}
	return account, nil
}

func validateProfile(p *models.Profile) error {
	verr := &ValidationError{}
	if len([]rune(p.FirstName)) > 150 {
		verr.add("first_name", "Ensure this value has at most 150 characters.")
	}
	if len([]rune(p.LastName)) > 150 {
		verr.add("last_name", "Ensure this value has at most 150 characters.")
	}
	if p.ProfileImage != nil && len(*p.ProfileImage) > 100 {
		verr.add("profile_image", "Ensure this filename has at most 100 characters.")
	}
	return verr.orNil()
}

func (s *AccountService) scheduleSweep(ctx context.Context, username string) error {
	if s.scheduler == nil {
		return nil
	}
	return s.scheduler.Schedule(ctx, username)
}

// normalizeImage runs the post-write image hook and persists the stripped reference.
func (s *AccountService) normalizeImage(ctx context.Context, account *Account) error {
	if s.images == nil {
		return nil
	}
	ref, changed, err := s.images.AfterSave(ctx, account.Profile.ImageRef())
	if err != nil {
		return fmt.Errorf("failed to convert profile image: %w", err)
	}
	if !changed {
		return nil
	}
	if err := s.profiles.UpdateImage(ctx, account.Profile.ID, &ref); err != nil {
		return fmt.Errorf("failed to store normalized image reference: %w", translateStoreError(err))
	}
	account.Profile.ProfileImage = &ref
	return nil
}

// accountPatch is an AccountUpdate decoded into typed values.
type accountPatch struct {
	username, email                *string
	isActive, isStaff, isSuperuser *bool
	firstName, lastName            *string
	phoneSet                       bool
	phone                          *int64
	imageSet                       bool
	image                          *string
}

func decodeUpdate(fields AccountUpdate) (*accountPatch, error) {
	p := &accountPatch{}
	verr := &ValidationError{}

	str := func(key string, v interface{}) *string {
		s, ok := v.(string)
		if !ok {
			verr.add(key, "Enter a valid value.")
			return nil
		}
		return &s
	}
	boolean := func(key string, v interface{}) *bool {
		b, ok := v.(bool)
		if !ok {
			verr.add(key, "Enter a valid boolean.")
			return nil
		}
		return &b
	}

	for key, v := range fields {
		switch {
		case readOnlyFields[key]:
			verr.add(key, "This field cannot be updated.")
			continue
		case !profileFields[key] && !identityFields[key]:
			verr.add(key, "Unknown field.")
			continue
		}
		switch key {
		case "username":
			p.username = str(key, v)
		case "email":
			p.email = str(key, v)
		case "is_active":
			p.isActive = boolean(key, v)
		case "is_staff":
			p.isStaff = boolean(key, v)
		case "is_superuser":
			p.isSuperuser = boolean(key, v)
		case "first_name":
			p.firstName = str(key, v)
		case "last_name":
			p.lastName = str(key, v)
		case "phone_number":
			p.phoneSet = true
			phone, err := phoneValue(v)
			if err != nil {
				verr.add(key, "Enter a whole number.")
			}
			p.phone = phone
		case "profile_image":
			p.imageSet = true
			if v == nil {
				continue
			}
			if ref := str(key, v); ref != nil && *ref != "" {
				p.image = ref
			}
		}
	}

	if p.username != nil && *p.username == "" {
		verr.add("username", "username cannot be empty")
	}
	if p.email != nil && *p.email == "" {
		verr.add("email", "email cannot be empty")
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}
	return p, nil
}

func phoneValue(v interface{}) (*int64, error) {
	switch n := v.(type) {
	case nil:
		return nil, nil
	case int64:
		return &n, nil
	case int:
		x := int64(n)
		return &x, nil
	case float64:
		if n != float64(int64(n)) {
			return nil, errors.New("not an integer")
		}
		x := int64(n)
		return &x, nil
	case string:
		return parsePhone(n)
	}
	return nil, errors.New("unsupported phone type")
}

// UpdateAccount applies fields to account and persists identity and profile
// together. When persisting fails account is reloaded from the store so the
// caller never keeps the rejected values, and the original error is returned.
func (s *AccountService) UpdateAccount(ctx context.Context, account *Account, fields AccountUpdate) (*Account, error) {
	if account == nil || account.Identity == nil || account.Profile == nil {
		return nil, errors.New("update requires a loaded account")
	}
	patch, err := decodeUpdate(fields)
	if err != nil {
		return nil, err
	}
	if patch.username != nil {
		if err := validateUsername(normalizeUsername(*patch.username)); err != nil {
			return nil, err
		}
	}
	if patch.isActive != nil && !*patch.isActive && account.Identity.IsActive {
		return nil, newValidationError("is_active", msgActiveIsFinal)
	}

	previousImage := account.Profile.ImageRef()
	patch.apply(account)

	err = store.Transact(ctx, s.db, func(tx *gorm.DB) error {
		if err := validateProfile(account.Profile); err != nil {
			return err
		}
		identityCols, profileCols := patch.columns()
		if err := s.identities.WithTx(tx).Update(ctx, account.Identity, identityCols...); err != nil {
			return err
		}
		if err := s.profiles.WithTx(tx).Update(ctx, account.Profile, profileCols...); err != nil {
			return err
		}
		if s.images != nil {
			s.images.BeforeSave(ctx, previousImage, account.Profile.ImageRef())
		}
		return nil
	})
	if err != nil {
		s.reload(ctx, account)
		return nil, translateStoreError(err)
	}

	if err := s.normalizeImage(ctx, account); err != nil {
		return account, err
	}
	return account, nil
}

// columns lists the identity and profile columns the patch touches. Only
// these are written, so fields the caller did not send keep their stored value.
func (p *accountPatch) columns() (identity, profile []string) {
	add := func(cols []string, set bool, name string) []string {
		if set {
			cols = append(cols, name)
		}
		return cols
	}
	identity = add(identity, p.username != nil, "username")
	identity = add(identity, p.email != nil, "email")
	identity = add(identity, p.isActive != nil, "is_active")
	identity = add(identity, p.isStaff != nil, "is_staff")
	identity = add(identity, p.isSuperuser != nil, "is_superuser")
	profile = add(profile, p.firstName != nil, "first_name")
	profile = add(profile, p.lastName != nil, "last_name")
	profile = add(profile, p.phoneSet, "phone_number")
	profile = add(profile, p.imageSet, "profile_image")
	return identity, profile
}

func (p *accountPatch) apply(account *Account) {
	id, prof := account.Identity, account.Profile
	if p.firstName != nil {
		prof.FirstName = *p.firstName
	}
	if p.lastName != nil {
		prof.LastName = *p.lastName
	}
	if p.phoneSet {
		prof.PhoneNumber = p.phone
	}
	if p.imageSet {
		prof.ProfileImage = p.image
	}
	if p.username != nil {
		id.Username = normalizeUsername(*p.username)
	}
	if p.email != nil {
		id.Email = normalizeEmail(*p.email)
	}
	if p.isActive != nil {
		id.IsActive = *p.isActive
	}
	if p.isStaff != nil {
		id.IsStaff = *p.isStaff
	}
	if p.isSuperuser != nil {
		id.IsSuperuser = *p.isSuperuser
	}
}

func (s *AccountService) reload(ctx context.Context, account *Account) {
	if err := s.identities.Reload(ctx, account.Identity); err != nil {
		s.log.Errorw("failed to reload identity after failed update", "account_id", account.Identity.ID, "error", err)
	}
	if err := s.profiles.Reload(ctx, account.Profile); err != nil {
		s.log.Errorw("failed to reload profile after failed update", "account_id", account.Identity.ID, "error", err)
	}
}

// DeleteAccount removes identity and profile, then the profile image files.
func (s *AccountService) DeleteAccount(ctx context.Context, account *Account) error {
	ref := account.Profile.ImageRef()
	err := store.Transact(ctx, s.db, func(tx *gorm.DB) error {
		if err := s.profiles.WithTx(tx).DeleteByAccount(ctx, account.Identity.ID); err != nil {
			return err
		}
		return s.identities.WithTx(tx).Delete(ctx, account.Identity.ID)
	})
	if err != nil {
		return translateStoreError(err)
	}
	s.log.Infow("account deleted", "username", account.Identity.Username)
	if s.images != nil {
		s.images.AfterDelete(ctx, ref)
	}
	return nil
}

var errAlreadyActive = errors.New("account became active")

const msgActiveIsFinal = "An active account cannot be deactivated."

// DeleteIfUnconfirmed removes the named account only while it is inactive.
// Missing and active accounts are left alone without error.
func (s *AccountService) DeleteIfUnconfirmed(ctx context.Context, username string) error {
	identity, err := s.identities.GetByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		s.log.Debugw("unconfirmed account already gone", "username", username)
		return nil
	}
	if err != nil {
		return err
	}
	if identity.IsActive {
		return nil
	}

	var ref string
	if profile, err := s.profiles.GetByAccount(ctx, identity.ID); err == nil {
		ref = profile.ImageRef()
	}

	err = store.Transact(ctx, s.db, func(tx *gorm.DB) error {
		if err := s.profiles.WithTx(tx).DeleteByAccount(ctx, identity.ID); err != nil {
			return err
		}
		deleted, err := s.identities.WithTx(tx).DeleteInactive(ctx, identity.ID)
		if err != nil {
			return err
		}
		if !deleted {
			return errAlreadyActive
		}
		return nil
	})
	if errors.Is(err, errAlreadyActive) {
		return nil
	}
	if err != nil {
		return translateStoreError(err)
	}

	s.log.Infow("deleted unconfirmed account", "username", username)
	if s.images != nil {
		s.images.AfterDelete(ctx, ref)
	}
	return nil
}

// ActivateAccount confirms the named account with token. Every failure is
// reported as ErrNotFound.
func (s *AccountService) ActivateAccount(ctx context.Context, username, token string) (*Account, error) {
	identity, err := s.identities.GetByUsername(ctx, normalizeUsername(username))
	if err != nil {
		return nil, ErrNotFound
	}
	if identity.IsActive || !s.tokens.Check(identity, token) {
		return nil, ErrNotFound
	}
	ok, err := s.identities.Activate(ctx, identity.ID)
	if err != nil {
		return nil, translateStoreError(err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	s.log.Infow("account activated", "username", identity.Username)
	return s.GetAccount(ctx, identity.Username)
}

// ConfirmationToken issues a confirmation token for account in its current state.
func (s *AccountService) ConfirmationToken(account *Account) (string, error) {
	return s.tokens.Make(account.Identity)
}

// GetAccount loads the account with username.
func (s *AccountService) GetAccount(ctx context.Context, username string) (*Account, error) {
	identity, err := s.identities.GetByUsername(ctx, normalizeUsername(username))
	if err != nil {
		return nil, translateStoreError(err)
	}
	return s.withProfile(ctx, identity)
}

// GetAccountByID loads the account with id.
func (s *AccountService) GetAccountByID(ctx context.Context, id uint) (*Account, error) {
	identity, err := s.identities.Get(ctx, id)
	if err != nil {
		return nil, translateStoreError(err)
	}
	return s.withProfile(ctx, identity)
}

func (s *AccountService) withProfile(ctx context.Context, identity *models.Account) (*Account, error) {
	profile, err := s.profiles.GetByAccount(ctx, identity.ID)
	if err != nil {
		return nil, fmt.Errorf("account %s has no profile: %w", identity.Username, translateStoreError(err))
	}
	return &Account{Identity: identity, Profile: profile}, nil
}

// ListAccounts returns every account ordered by username.
func (s *AccountService) ListAccounts(ctx context.Context) ([]*Account, error) {
	identities, err := s.identities.List(ctx)
	if err != nil {
		return nil, translateStoreError(err)
	}
	return s.attachProfiles(ctx, identities)
}

func (s *AccountService) attachProfiles(ctx context.Context, identities []models.Account) ([]*Account, error) {
	ids := make([]uint, len(identities))
	for i := range identities {
		ids[i] = identities[i].ID
	}
	profiles, err := s.profiles.ListByAccounts(ctx, ids)
	if err != nil {
		return nil, translateStoreError(err)
	}
	out := make([]*Account, 0, len(identities))
	for i := range identities {
		out = append(out, &Account{Identity: &identities[i], Profile: profiles[identities[i].ID]})
	}
	return out, nil
}

// QueryOptions narrows QueryByCapability.
type QueryOptions struct {
	ActiveOnly        bool
	IncludePrivileged bool
	// Backend names the backend to ask. Required when more than one is configured.
	Backend string
}

// DefaultQueryOptions returns active accounts, superusers included, from the only backend.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{ActiveOnly: true, IncludePrivileged: true}
}

// QueryByCapability lists accounts holding perm ("app_label.codename").
func (s *AccountService) QueryByCapability(ctx context.Context, perm string, opts QueryOptions) ([]*Account, error) {
	if s.backends == nil {
		return nil, ErrConfiguration
	}
	backend, err := s.backends.Resolve(opts.Backend)
	if err != nil {
		return nil, err
	}
	if parts := strings.Split(perm, "."); len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, newValidationError("perm", "Permission must be in the form app_label.codename.")
	}
	querier, ok := backend.(CapabilityQuerier)
	if !ok {
		return []*Account{}, nil
	}
	identities, err := querier.WithPermission(ctx, perm, opts.ActiveOnly, opts.IncludePrivileged)
	if err != nil {
		return nil, translateStoreError(err)
	}
	return s.attachProfiles(ctx, identities)
}
