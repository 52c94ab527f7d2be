package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pageza/extended-accounts/backend/internal/service"
	"github.com/pageza/extended-accounts/backend/internal/types"
)

// AuthHandler handles session endpoints
type AuthHandler struct {
	auth *service.AuthService
	log  *zap.SugaredLogger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(auth *service.AuthService, log *zap.SugaredLogger) *AuthHandler {
	return &AuthHandler{auth: auth, log: log}
}

// Login exchanges credentials for a session token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req types.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid request"})
		return
	}

	token, err := h.auth.Login(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, types.TokenResponse{Token: token})
}
