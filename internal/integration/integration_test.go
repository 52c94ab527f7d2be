package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pageza/extended-accounts/backend/config"
	"github.com/pageza/extended-accounts/backend/internal/api"
	"github.com/pageza/extended-accounts/backend/internal/logging"
	"github.com/pageza/extended-accounts/backend/internal/queue"
	"github.com/pageza/extended-accounts/backend/internal/service"
	"github.com/pageza/extended-accounts/backend/internal/storage"
	"github.com/pageza/extended-accounts/backend/internal/store"
	"github.com/pageza/extended-accounts/backend/internal/testhelpers"
)

type stack struct {
	accounts *service.AccountService
	worker   *queue.Worker
	queue    *queue.RedisQueue
	router   *gin.Engine
}

// newStack wires the real Postgres and Redis backends behind the HTTP API.
func newStack(t *testing.T) *stack {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-based test in short mode")
	}
	gin.SetMode(gin.TestMode)

	db := testhelpers.SetupPostgresDatabase(t)
	rdb := testhelpers.SetupRedis(t)
	log := logging.Nop()

	q := queue.NewRedisQueue(rdb, "it:jobs", time.Minute)
	identities := store.NewIdentityStore(db)
	backends := service.NewBackendRegistry(
		service.NewModelBackend(identities, store.NewPermissionStore(db)),
		service.NewEmailBackend(identities),
	)
	tokens := service.NewTokenGenerator(testhelpers.TestJWTSecret, service.ConfirmationTTL)
	images := service.NewImageService(storage.NewFsStorage(afero.NewMemMapFs()), log)
	sweeper := service.NewSweeper(q, config.SweeperConfig{Dispatch: true, Delay: config.DefaultSweeperDelay}, log)
	accounts := service.NewAccountService(db, images, sweeper, backends, tokens, log)
	auth := service.NewAuthService(backends, identities, testhelpers.TestJWTSecret, log)

	worker := queue.NewWorker(q, queue.WorkerConfig{}, log)
	sweeper.Register(worker, accounts)

	mailer := new(testhelpers.MockMailer)
	mailer.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	r := gin.New()
	api.RegisterRoutes(r, api.Deps{
		DB:          db,
		Redis:       rdb,
		Accounts:    accounts,
		Images:      images,
		Auth:        auth,
		Mailer:      mailer,
		FrontendURL: "https://example.com",
		Logger:      log,
	})
	return &stack{accounts: accounts, worker: worker, queue: q, router: r}
}

func (s *stack) post(t *testing.T, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *stack) register(t *testing.T, username, email, phone string) {
	t.Helper()
	w := s.post(t, "/api/v1/accounts", map[string]string{
		"username":     username,
		"password1":    "s3cret-pass",
		"password2":    "s3cret-pass",
		"email":        email,
		"first_name":   "Test",
		"last_name":    "User",
		"phone_number": phone,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestUnconfirmedAccountsAreSwept(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	s.register(t, "alice", "alice@mail.com", "111111111")
	s.register(t, "bob", "bob@mail.com", "222222222")

	pending, err := s.queue.Pending(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, pending)

	bob, err := s.accounts.GetAccount(ctx, "bob")
	require.NoError(t, err)
	token, err := s.accounts.ConfirmationToken(bob)
	require.NoError(t, err)
	_, err = s.accounts.ActivateAccount(ctx, "bob", token)
	require.NoError(t, err)

	n, err := s.worker.RunOnce(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n, "nothing is due before the delay elapses")

	n, err = s.worker.RunOnce(ctx, time.Now().Add(config.DefaultSweeperDelay+time.Second))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.accounts.GetAccount(ctx, "alice")
	assert.ErrorIs(t, err, service.ErrNotFound)
	_, err = s.accounts.GetAccount(ctx, "bob")
	assert.NoError(t, err)

	w := s.post(t, "/api/v1/auth/login", map[string]string{"login": "bob@mail.com", "password": "s3cret-pass"})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestPostgresConflictNamesField(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	in := service.CreateAccountInput{Username: "first", Password: "pw", Email: "first@mail.com", PhoneNumber: "123456789"}
	_, err := s.accounts.CreateAccount(ctx, in)
	require.NoError(t, err)

	in.Username, in.Email = "second", "second@mail.com"
	_, err = s.accounts.CreateAccount(ctx, in)
	var conflict *service.ConflictError
	require.True(t, errors.As(err, &conflict), "got %v", err)
	assert.Equal(t, "phone_number", conflict.Field)

	_, err = s.accounts.GetAccount(ctx, "second")
	assert.ErrorIs(t, err, service.ErrNotFound)
}
