package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pageza/extended-accounts/backend/internal/service"
)

// Context keys set by AuthMiddleware and RequireOwner.
const (
	AccountIDKey    = "account_id"
	UsernameKey     = "username"
	OwnedAccountKey = "owned_account"
)

// TokenValidator is an interface for validating JWT tokens
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*service.SessionClaims, error)
}

// AccountLoader resolves the account named in a route.
type AccountLoader interface {
	GetAccount(ctx context.Context, username string) (*service.Account, error)
}

// AuthMiddleware creates a middleware that validates JWT tokens
func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			return
		}

		claims, err := validator.ValidateToken(c.Request.Context(), parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(AccountIDKey, claims.AccountID)
		c.Set(UsernameKey, claims.Username)
		c.Next()
	}
}

// RequireOwner only lets the caller through to routes about their own
// account, matched by account id. Everyone else gets a 404 so other accounts
// are not revealed. The loaded account is stored under OwnedAccountKey.
func RequireOwner(param string, accounts AccountLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		account, err := accounts.GetAccount(c.Request.Context(), c.Param(param))
		if err != nil || account.Identity.ID != c.GetUint(AccountIDKey) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.Set(OwnedAccountKey, account)
		c.Next()
	}
}

// OwnedAccount returns the account loaded by RequireOwner.
func OwnedAccount(c *gin.Context) *service.Account {
	account, _ := c.MustGet(OwnedAccountKey).(*service.Account)
	return account
}
