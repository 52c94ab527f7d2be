package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pageza/extended-accounts/backend/internal/models"
	"github.com/pageza/extended-accounts/backend/internal/service"
	"github.com/pageza/extended-accounts/backend/internal/testhelpers"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubValidator struct{}

func (stubValidator) ValidateToken(_ context.Context, token string) (*service.SessionClaims, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return &service.SessionClaims{AccountID: 4, Username: "jdoe"}, nil
}

func TestAuthMiddleware(t *testing.T) {
	r := gin.New()
	r.GET("/me", AuthMiddleware(stubValidator{}), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"username": c.GetString(UsernameKey), "id": c.GetUint(AccountIDKey)})
	})

	cases := map[string]struct {
		header string
		status int
	}{
		"missing":    {"", http.StatusUnauthorized},
		"bad format": {"Token good", http.StatusUnauthorized},
		"bad token":  {"Bearer nope", http.StatusUnauthorized},
		"valid":      {"Bearer good", http.StatusOK},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

type stubAccounts map[string]uint

func (s stubAccounts) GetAccount(_ context.Context, username string) (*service.Account, error) {
	id, ok := s[username]
	if !ok {
		return nil, service.ErrNotFound
	}
	return &service.Account{Identity: &models.Account{ID: id, Username: username}}, nil
}

func TestRequireOwner(t *testing.T) {
	// Account 4 is the caller. "jdoe" was its old name and now belongs to account 9.
	accounts := stubAccounts{"johnny": 4, "jdoe": 9, "alice": 5}

	r := gin.New()
	r.DELETE("/accounts/:username", AuthMiddleware(stubValidator{}), RequireOwner("username", accounts), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": OwnedAccount(c).Identity.ID})
	})

	for path, status := range map[string]int{
		"/accounts/johnny":  http.StatusOK,
		"/accounts/jdoe":    http.StatusNotFound,
		"/accounts/alice":   http.StatusNotFound,
		"/accounts/missing": http.StatusNotFound,
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodDelete, path, nil)
		req.Header.Set("Authorization", "Bearer good")
		r.ServeHTTP(w, req)
		assert.Equal(t, status, w.Code, path)
	}
}

func TestErrorHandlerRecoversPanics(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(zap.NewNop().Sugar()))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal Server Error"}`, w.Body.String())
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	r := gin.New()
	r.Use(CORS("https://app.example.com"))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://app.example.com")
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimiterByClientIP(t *testing.T) {
	client := testhelpers.SetupRedis(t)
	rl := NewRateLimiter(client, RateLimitConfig{Window: time.Hour, Limit: 2, KeyPrefix: "test"}, zap.NewNop().Sugar())

	r := gin.New()
	r.POST("/register", rl.ByClientIP(), func(c *gin.Context) { c.Status(http.StatusCreated) })

	var codes []int
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/register", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	require.Len(t, codes, 3)
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)
}

func TestRateLimiterWithoutRedisPassesThrough(t *testing.T) {
	var rl *RateLimiter
	r := gin.New()
	r.POST("/register", rl.ByClientIP(), func(c *gin.Context) { c.Status(http.StatusCreated) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/register", nil))
	assert.Equal(t, http.StatusCreated, w.Code)
}
