package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pageza/extended-accounts/backend/internal/service"
	"github.com/pageza/extended-accounts/backend/internal/storage"
	"github.com/pageza/extended-accounts/backend/internal/types"
)

// MediaHandler serves stored profile images.
type MediaHandler struct {
	images *service.ImageService
}

func NewMediaHandler(images *service.ImageService) *MediaHandler {
	return &MediaHandler{images: images}
}

const signedURLTTL = 15 * time.Minute

// Serve streams the named blob, or redirects to a signed link when the
// backend supports one.
func (h *MediaHandler) Serve(c *gin.Context) {
	name := path.Base(c.Param("name"))
	if signer, ok := h.images.Storage().(storage.URLSigner); ok {
		url, err := signer.SignedURL(c.Request.Context(), name, signedURLTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: "internal server error"})
			return
		}
		c.Redirect(http.StatusFound, url)
		return
	}

	rc, err := h.images.Storage().Get(c.Request.Context(), name)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, types.ErrorResponse{Error: "not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: "internal server error"})
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Status(http.StatusOK)
	c.Header("Content-Type", contentType)
	_, _ = io.Copy(c.Writer, rc)
}
