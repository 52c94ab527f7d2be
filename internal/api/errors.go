package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pageza/extended-accounts/backend/internal/service"
	"github.com/pageza/extended-accounts/backend/internal/types"
)

// respondError maps service errors onto HTTP statuses.
func respondError(c *gin.Context, log *zap.SugaredLogger, err error) {
	var verr *service.ValidationError
	var conflict *service.ConflictError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "validation failed", Fields: verr.Fields})
	case errors.As(err, &conflict):
		resp := types.ErrorResponse{Error: "conflict"}
		if conflict.Field != "" {
			resp.Fields = map[string]string{conflict.Field: "already in use"}
		}
		c.JSON(http.StatusConflict, resp)
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, types.ErrorResponse{Error: "not found"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, types.ErrorResponse{Error: "invalid credentials"})
	case errors.Is(err, service.ErrConfiguration), errors.Is(err, service.ErrInvalidBackend):
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
	default:
		log.Errorw("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: "internal server error"})
	}
}
