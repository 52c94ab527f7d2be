package testhelpers

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/spf13/afero"
	"gorm.io/gorm"

	"github.com/pageza/extended-accounts/backend/config"
	"github.com/pageza/extended-accounts/backend/internal/logging"
	"github.com/pageza/extended-accounts/backend/internal/queue"
	"github.com/pageza/extended-accounts/backend/internal/service"
	"github.com/pageza/extended-accounts/backend/internal/storage"
	"github.com/pageza/extended-accounts/backend/internal/store"
)

// TestJWTSecret signs every token issued in tests.
const TestJWTSecret = "test-secret"

// AccountEnv bundles a fully wired account stack on SQLite and in-memory storage.
type AccountEnv struct {
	DB       *gorm.DB
	Fs       afero.Fs
	Storage  storage.Storage
	Queue    *queue.MemoryQueue
	Images   *service.ImageService
	Sweeper  *service.Sweeper
	Tokens   *service.TokenGenerator
	Backends *service.BackendRegistry
	Accounts *service.AccountService
	Auth     *service.AuthService
	Perms    *store.PermissionStore
}

// NewAccountEnv builds an AccountEnv. dispatch toggles sweeper scheduling.
func NewAccountEnv(t *testing.T, dispatch bool) *AccountEnv {
	t.Helper()

	db := SetupTestDatabase(t)
	log := logging.Nop()
	fs := afero.NewMemMapFs()
	blobs := storage.NewFsStorage(fs)
	q := queue.NewMemoryQueue()

	identities := store.NewIdentityStore(db)
	perms := store.NewPermissionStore(db)
	backends := service.NewBackendRegistry(service.NewModelBackend(identities, perms))
	tokens := service.NewTokenGenerator(TestJWTSecret, service.ConfirmationTTL)
	images := service.NewImageService(blobs, log)
	sweeper := service.NewSweeper(q, config.SweeperConfig{Dispatch: dispatch, Delay: config.DefaultSweeperDelay}, log)

	return &AccountEnv{
		DB:       db,
		Fs:       fs,
		Storage:  blobs,
		Queue:    q,
		Images:   images,
		Sweeper:  sweeper,
		Tokens:   tokens,
		Backends: backends,
		Accounts: service.NewAccountService(db, images, sweeper, backends, tokens, log),
		Auth:     service.NewAuthService(backends, identities, TestJWTSecret, log),
		Perms:    perms,
	}
}

// PNG returns an encoded w×h image with a diagonal gradient.
func PNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }
