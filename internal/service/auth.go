package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/pageza/extended-accounts/backend/internal/models"
	"github.com/pageza/extended-accounts/backend/internal/store"
)

// AuthService checks credentials against the configured backends and issues session tokens.
type AuthService struct {
	backends   *BackendRegistry
	identities *store.IdentityStore
	secret     []byte
	log        *zap.SugaredLogger
	now        func() time.Time
}

func NewAuthService(backends *BackendRegistry, identities *store.IdentityStore, jwtSecret string, log *zap.SugaredLogger) *AuthService {
	return &AuthService{
		backends:   backends,
		identities: identities,
		secret:     []byte(jwtSecret),
		log:        log,
		now:        time.Now,
	}
}

// Login tries each authenticating backend in order and returns a session token.
func (s *AuthService) Login(ctx context.Context, login, password string) (string, error) {
	for _, b := range s.backends.All() {
		auth, ok := b.(Authenticator)
		if !ok {
			continue
		}
		account, err := auth.Authenticate(ctx, login, password)
		if err != nil {
			return "", err
		}
		if account == nil {
			continue
		}

		now := s.now()
		if err := s.identities.TouchLastLogin(ctx, account.ID, now); err != nil {
			s.log.Warnw("failed to record last login", "account_id", account.ID, "error", err)
		}
		token, err := signSession(s.secret, account, now)
		if err != nil {
			return "", err
		}
		s.log.Infow("login succeeded", "username", account.Username, "backend", b.Name())
		return token, nil
	}
	return "", ErrInvalidCredentials
}

// ValidateToken parses a session token and checks that its account still
// exists. The returned claims carry the account's current username, which
// may differ from the one the token was issued under.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*SessionClaims, error) {
	claims, err := parseSession(s.secret, token)
	if err != nil {
		return nil, err
	}
	identity, err := s.identities.Get(ctx, claims.AccountID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	claims.Username = identity.Username
	claims.IsStaff = identity.IsStaff
	return claims, nil
}

// IssueToken signs a session token for account without checking credentials,
// used right after a successful confirmation.
func (s *AuthService) IssueToken(account *models.Account) (string, error) {
	return signSession(s.secret, account, s.now())
}
