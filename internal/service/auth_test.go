package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageza/extended-accounts/backend/internal/logging"
	"github.com/pageza/extended-accounts/backend/internal/models"
	"github.com/pageza/extended-accounts/backend/internal/service"
	"github.com/pageza/extended-accounts/backend/internal/store"
	"github.com/pageza/extended-accounts/backend/internal/testhelpers"
)

func TestConfirmationToken_InvalidatedByStateChange(t *testing.T) {
	tokens := service.NewTokenGenerator("secret", time.Minute)
	account := &models.Account{ID: 7, Username: "jdoe", PasswordHash: "hash"}

	token, err := tokens.Make(account)
	require.NoError(t, err)
	assert.True(t, tokens.Check(account, token))

	other := *account
	other.Username = "someone"
	assert.False(t, tokens.Check(&other, token), "token is bound to the username")

	activated := *account
	activated.IsActive = true
	assert.False(t, tokens.Check(&activated, token), "activation invalidates the token")

	rehashed := *account
	rehashed.PasswordHash = "other"
	assert.False(t, tokens.Check(&rehashed, token))

	assert.False(t, service.NewTokenGenerator("different", time.Minute).Check(account, token))
	assert.False(t, tokens.Check(account, token+"x"))
	assert.False(t, tokens.Check(account, ""))
}

func TestConfirmationToken_DefaultTTL(t *testing.T) {
	tokens := service.NewTokenGenerator("secret", -time.Minute)
	account := &models.Account{ID: 1, Username: "jdoe"}

	token, err := tokens.Make(account)
	require.NoError(t, err)
	assert.True(t, tokens.Check(account, token))
}

func TestActivateAccount(t *testing.T) {
	env := testhelpers.NewAccountEnv(t, false)
	ctx := context.Background()

	account, err := env.Accounts.CreateAccount(ctx, validInput("jdoe", "jdoe@mail.com", ""))
	require.NoError(t, err)
	token, err := env.Accounts.ConfirmationToken(account)
	require.NoError(t, err)

	_, err = env.Accounts.ActivateAccount(ctx, "jdoe", "tampered")
	assert.ErrorIs(t, err, service.ErrNotFound)
	_, err = env.Accounts.ActivateAccount(ctx, "nobody", token)
	assert.ErrorIs(t, err, service.ErrNotFound)

	activated, err := env.Accounts.ActivateAccount(ctx, "jdoe", token)
	require.NoError(t, err)
	assert.True(t, activated.Identity.IsActive)

	_, err = env.Accounts.ActivateAccount(ctx, "jdoe", token)
	assert.ErrorIs(t, err, service.ErrNotFound, "a used link must not reveal the account is active")
}

func TestLogin(t *testing.T) {
	env := testhelpers.NewAccountEnv(t, false)
	ctx := context.Background()

	_, err := env.Accounts.CreateAccount(ctx, validInput("inactive", "inactive@mail.com", ""))
	require.NoError(t, err)
	in := validInput("active", "active@mail.com", "")
	in.IsActive = testhelpers.Bool(true)
	_, err = env.Accounts.CreateAccount(ctx, in)
	require.NoError(t, err)

	_, err = env.Auth.Login(ctx, "inactive", "s3cret-pass")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
	_, err = env.Auth.Login(ctx, "active", "wrong")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
	_, err = env.Auth.Login(ctx, "ghost", "s3cret-pass")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)

	token, err := env.Auth.Login(ctx, "active", "s3cret-pass")
	require.NoError(t, err)
	claims, err := env.Auth.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "active", claims.Username)

	loaded, err := env.Accounts.GetAccount(ctx, "active")
	require.NoError(t, err)
	assert.NotNil(t, loaded.Identity.LastLogin)

	_, err = env.Auth.ValidateToken(ctx, "not.a.token")
	assert.ErrorIs(t, err, service.ErrInvalidToken)
}

func TestLogin_EmailBackend(t *testing.T) {
	env := testhelpers.NewAccountEnv(t, false)
	ctx := context.Background()
	in := validInput("jdoe", "jdoe@mail.com", "")
	in.IsActive = testhelpers.Bool(true)
	_, err := env.Accounts.CreateAccount(ctx, in)
	require.NoError(t, err)

	identities := store.NewIdentityStore(env.DB)
	backends := service.NewBackendRegistry(
		service.NewModelBackend(identities, env.Perms),
		service.NewEmailBackend(identities),
	)
	auth := service.NewAuthService(backends, identities, testhelpers.TestJWTSecret, logging.Nop())

	_, err = auth.Login(ctx, "jdoe@MAIL.COM", "s3cret-pass")
	assert.NoError(t, err)
}

func TestQueryByCapability(t *testing.T) {
	env := testhelpers.NewAccountEnv(t, false)
	ctx := context.Background()

	viewer := validInput("viewer", "viewer@mail.com", "")
	viewer.IsActive = testhelpers.Bool(true)
	v, err := env.Accounts.CreateAccount(ctx, viewer)
	require.NoError(t, err)
	require.NoError(t, env.Perms.Grant(ctx, v.Identity.ID, "accounts.view_account"))

	root := validInput("root", "root@mail.com", "")
	root.IsActive = testhelpers.Bool(true)
	_, err = env.Accounts.CreateSuperuser(ctx, root)
	require.NoError(t, err)

	got, err := env.Accounts.QueryByCapability(ctx, "accounts.view_account", service.DefaultQueryOptions())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "root", got[0].Username())
	assert.Equal(t, "viewer", got[1].Username())
	assert.NotNil(t, got[0].Profile)

	got, err = env.Accounts.QueryByCapability(ctx, "accounts.view_account", service.QueryOptions{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, got, 1)

	_, err = env.Accounts.QueryByCapability(ctx, "view_account", service.DefaultQueryOptions())
	var verr *service.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestQueryByCapability_BackendSelection(t *testing.T) {
	db := testhelpers.SetupTestDatabase(t)
	identities := store.NewIdentityStore(db)
	model := service.NewModelBackend(identities, store.NewPermissionStore(db))
	email := service.NewEmailBackend(identities)
	accounts := service.NewAccountService(db, nil, nil, service.NewBackendRegistry(model, email), nil, logging.Nop())
	ctx := context.Background()

	_, err := accounts.QueryByCapability(ctx, "accounts.view_account", service.DefaultQueryOptions())
	assert.ErrorIs(t, err, service.ErrConfiguration)

	opts := service.DefaultQueryOptions()
	opts.Backend = email.Name()
	got, err := accounts.QueryByCapability(ctx, "accounts.view_account", opts)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	opts.Backend = "not a backend!"
	_, err = accounts.QueryByCapability(ctx, "accounts.view_account", opts)
	assert.ErrorIs(t, err, service.ErrInvalidBackend)

	opts.Backend = "accounts.backends.Missing"
	_, err = accounts.QueryByCapability(ctx, "accounts.view_account", opts)
	assert.ErrorIs(t, err, service.ErrNotFound)

	opts.Backend = model.Name()
	got, err = accounts.QueryByCapability(ctx, "accounts.view_account", opts)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestValidateToken_FollowsRenameAndRejectsDeleted(t *testing.T) {
	env := testhelpers.NewAccountEnv(t, false)
	ctx := context.Background()

	account, err := env.Accounts.CreateAccount(ctx, validInput("jdoe", "jdoe@mail.com", "123456789"))
	require.NoError(t, err)
	token, err := env.Auth.IssueToken(account.Identity)
	require.NoError(t, err)

	_, err = env.Accounts.UpdateAccount(ctx, account, service.AccountUpdate{"username": "johnny"})
	require.NoError(t, err)

	claims, err := env.Auth.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "johnny", claims.Username)
	assert.Equal(t, account.Identity.ID, claims.AccountID)

	require.NoError(t, env.Accounts.DeleteAccount(ctx, account))
	_, err = env.Auth.ValidateToken(ctx, token)
	assert.ErrorIs(t, err, service.ErrInvalidToken)
}
