package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pageza/extended-accounts/backend/internal/models"
	"github.com/pageza/extended-accounts/backend/internal/store"
	"github.com/pageza/extended-accounts/backend/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func phone(n int64) *int64 { return &n }

func seed(t *testing.T, db *gorm.DB, username, email string, tel *int64) (*models.Account, *models.Profile) {
	t.Helper()
	ctx := context.Background()
	account := &models.Account{Username: username, Email: email, PasswordHash: "x"}
	require.NoError(t, store.NewIdentityStore(db).Create(ctx, account))
	profile := &models.Profile{AccountID: account.ID, FirstName: "F", LastName: "L", PhoneNumber: tel, DateJoined: time.Now()}
	require.NoError(t, store.NewProfileStore(db).Create(ctx, profile))
	return account, profile
}

func TestIdentityUniqueness(t *testing.T) {
	db := testhelpers.SetupTestDatabase(t)
	ctx := context.Background()
	seed(t, db, "alice", "alice@example.com", phone(111111111))
	identities := store.NewIdentityStore(db)

	err := identities.Create(ctx, &models.Account{Username: "alice", Email: "other@example.com", PasswordHash: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrConflict))
	var conflict *store.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "username", conflict.Field)

	err = identities.Create(ctx, &models.Account{Username: "bob", Email: "alice@example.com", PasswordHash: "x"})
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "email", conflict.Field)
}

func TestProfilePhoneUniqueness(t *testing.T) {
	db := testhelpers.SetupTestDatabase(t)
	seed(t, db, "alice", "alice@example.com", phone(111111111))
	seed(t, db, "nophone1", "n1@example.com", nil)
	seed(t, db, "nophone2", "n2@example.com", nil)

	bob := &models.Account{Username: "bob", Email: "bob@example.com", PasswordHash: "x"}
	require.NoError(t, store.NewIdentityStore(db).Create(context.Background(), bob))
	err := store.NewProfileStore(db).Create(context.Background(), &models.Profile{AccountID: bob.ID, PhoneNumber: phone(111111111), DateJoined: time.Now()})

	var conflict *store.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "phone_number", conflict.Field)
}

func TestTransactRollsBack(t *testing.T) {
	db := testhelpers.SetupTestDatabase(t)
	ctx := context.Background()
	seed(t, db, "alice", "alice@example.com", phone(111111111))

	err := store.Transact(ctx, db, func(tx *gorm.DB) error {
		account := &models.Account{Username: "carol", Email: "carol@example.com", PasswordHash: "x"}
		if err := store.NewIdentityStore(db).WithTx(tx).Create(ctx, account); err != nil {
			return err
		}
		return store.NewProfileStore(db).WithTx(tx).Create(ctx, &models.Profile{AccountID: account.ID, PhoneNumber: phone(111111111), DateJoined: time.Now()})
	})
	require.ErrorIs(t, err, store.ErrConflict)

	_, err = store.NewIdentityStore(db).GetByUsername(ctx, "carol")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteCascadesProfile(t *testing.T) {
	db := testhelpers.SetupTestDatabase(t)
	ctx := context.Background()
	account, _ := seed(t, db, "alice", "alice@example.com", phone(111111111))

	require.NoError(t, store.NewIdentityStore(db).Delete(ctx, account.ID))

	_, err := store.NewProfileStore(db).GetByAccount(ctx, account.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, store.NewIdentityStore(db).Delete(ctx, account.ID), store.ErrNotFound)
}

func TestReloadDiscardsInMemoryChanges(t *testing.T) {
	db := testhelpers.SetupTestDatabase(t)
	ctx := context.Background()
	account, profile := seed(t, db, "alice", "alice@example.com", phone(111111111))

	account.Email = "changed@example.com"
	profile.FirstName = "Changed"
	require.NoError(t, store.NewIdentityStore(db).Reload(ctx, account))
	require.NoError(t, store.NewProfileStore(db).Reload(ctx, profile))

	assert.Equal(t, "alice@example.com", account.Email)
	assert.Equal(t, "F", profile.FirstName)
}

func TestUpdateImage(t *testing.T) {
	db := testhelpers.SetupTestDatabase(t)
	ctx := context.Background()
	_, profile := seed(t, db, "alice", "alice@example.com", nil)
	profiles := store.NewProfileStore(db)

	ref := "abc"
	require.NoError(t, profiles.UpdateImage(ctx, profile.ID, &ref))
	require.NoError(t, profiles.Reload(ctx, profile))
	assert.Equal(t, "abc", profile.ImageRef())

	require.NoError(t, profiles.UpdateImage(ctx, profile.ID, nil))
	require.NoError(t, profiles.Reload(ctx, profile))
	assert.Equal(t, "", profile.ImageRef())
}

func TestAccountsWithPermission(t *testing.T) {
	db := testhelpers.SetupTestDatabase(t)
	ctx := context.Background()
	perms := store.NewPermissionStore(db)
	identities := store.NewIdentityStore(db)

	alice, _ := seed(t, db, "alice", "alice@example.com", nil)
	bob, _ := seed(t, db, "bob", "bob@example.com", nil)
	root, _ := seed(t, db, "root", "root@example.com", nil)

	alice.IsActive = true
	require.NoError(t, identities.Update(ctx, alice, "is_active"))
	root.IsActive, root.IsSuperuser = true, true
	require.NoError(t, identities.Update(ctx, root, "is_active", "is_superuser"))

	require.NoError(t, perms.Grant(ctx, alice.ID, "accounts.view_account"))
	require.NoError(t, perms.Grant(ctx, bob.ID, "accounts.view_account"))

	usernames := func(accounts []models.Account) []string {
		var out []string
		for _, a := range accounts {
			out = append(out, a.Username)
		}
		return out
	}

	got, err := perms.AccountsWith(ctx, "accounts.view_account", true, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "root"}, usernames(got))

	got, err = perms.AccountsWith(ctx, "accounts.view_account", false, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, usernames(got))
}

func TestActivateIsOneWay(t *testing.T) {
	db := testhelpers.SetupTestDatabase(t)
	ctx := context.Background()
	account, _ := seed(t, db, "alice", "alice@example.com", nil)
	identities := store.NewIdentityStore(db)

	ok, err := identities.Activate(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = identities.Activate(ctx, account.ID)
	require.NoError(t, err)
	assert.False(t, ok, "second activation must be a no-op")

	deleted, err := identities.DeleteInactive(ctx, account.ID)
	require.NoError(t, err)
	assert.False(t, deleted, "active accounts are never swept")
}

func TestDeleteInactive(t *testing.T) {
	db := testhelpers.SetupTestDatabase(t)
	ctx := context.Background()
	account, _ := seed(t, db, "bob", "bob@example.com", nil)
	identities := store.NewIdentityStore(db)

	deleted, err := identities.DeleteInactive(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = identities.Get(ctx, account.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateNeverInserts(t *testing.T) {
	db := testhelpers.SetupTestDatabase(t)
	ctx := context.Background()
	account, profile := seed(t, db, "alice", "alice@example.com", phone(111111111))
	identities := store.NewIdentityStore(db)
	profiles := store.NewProfileStore(db)

	account.Email = "renamed@example.com"
	require.NoError(t, identities.Update(ctx, account, "email"))
	require.NoError(t, identities.Delete(ctx, account.ID))

	account.Email = "again@example.com"
	assert.ErrorIs(t, identities.Update(ctx, account, "email"), store.ErrNotFound)
	profile.FirstName = "Zed"
	assert.ErrorIs(t, profiles.Update(ctx, profile, "first_name"), store.ErrNotFound)

	var count int64
	require.NoError(t, db.Model(&models.Account{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestUpdateWritesOnlyNamedColumns(t *testing.T) {
	db := testhelpers.SetupTestDatabase(t)
	ctx := context.Background()
	account, _ := seed(t, db, "bob", "bob@example.com", nil)
	identities := store.NewIdentityStore(db)

	ok, err := identities.Activate(ctx, account.ID)
	require.NoError(t, err)
	require.True(t, ok)

	// account still holds is_active=false from before the activation.
	account.Email = "bobby@example.com"
	require.NoError(t, identities.Update(ctx, account, "email"))

	fresh, err := identities.Get(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, fresh.IsActive)
	assert.Equal(t, "bobby@example.com", fresh.Email)

	assert.ErrorIs(t, identities.Update(ctx, account, "is_active"), store.ErrActive)
}
