package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pageza/extended-accounts/backend/internal/models"
)

// ConfirmationTTL is how long an emailed confirmation link stays valid.
const ConfirmationTTL = 15 * time.Minute

type confirmationClaims struct {
	State string `json:"st"`
	jwt.RegisteredClaims
}

// TokenGenerator issues confirmation tokens bound to the mutable state of an
// identity. Any change to that state, activation included, invalidates them.
type TokenGenerator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenGenerator(secret string, ttl time.Duration) *TokenGenerator {
	if ttl <= 0 {
		ttl = ConfirmationTTL
	}
	return &TokenGenerator{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Make returns a signed confirmation token for account.
func (g *TokenGenerator) Make(account *models.Account) (string, error) {
	now := g.now()
	claims := confirmationClaims{
		State: g.state(account),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign confirmation token: %w", err)
	}
	return token, nil
}

// Check reports whether token was issued for account in its current state and has not expired.
func (g *TokenGenerator) Check(account *models.Account, token string) bool {
	if account == nil || token == "" {
		return false
	}
	var claims confirmationClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject(account.Username),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(claims.State), []byte(g.state(account)))
}

func (g *TokenGenerator) state(account *models.Account) string {
	lastLogin := ""
	if account.LastLogin != nil {
		lastLogin = account.LastLogin.UTC().Truncate(time.Second).Format(time.RFC3339)
	}
	mac := hmac.New(sha256.New, g.secret)
	fmt.Fprintf(mac, "%d|%s|%t|%s", account.ID, account.PasswordHash, account.IsActive, lastLogin)
	return hex.EncodeToString(mac.Sum(nil))
}

// SessionClaims identify the caller of an authenticated request.
type SessionClaims struct {
	AccountID uint   `json:"account_id"`
	Username  string `json:"username"`
	IsStaff   bool   `json:"is_staff"`
	jwt.RegisteredClaims
}

// SessionTTL is the lifetime of a login token.
const SessionTTL = 24 * time.Hour

func signSession(secret []byte, account *models.Account, now time.Time) (string, error) {
	claims := SessionClaims{
		AccountID: account.ID,
		Username:  account.Username,
		IsStaff:   account.IsStaff,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func parseSession(secret []byte, token string) (*SessionClaims, error) {
	var claims SessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
