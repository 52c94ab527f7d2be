package api

import (
	"context"
	"errors"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pageza/extended-accounts/backend/internal/middleware"
	"github.com/pageza/extended-accounts/backend/internal/service"
	"github.com/pageza/extended-accounts/backend/internal/storage"
	"github.com/pageza/extended-accounts/backend/internal/types"
)

// AccountHandler handles account registration, confirmation and self-service edits.
type AccountHandler struct {
	accounts    *service.AccountService
	images      *service.ImageService
	auth        *service.AuthService
	mailer      service.Mailer
	frontendURL string
	log         *zap.SugaredLogger
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(accounts *service.AccountService, images *service.ImageService, auth *service.AuthService,
	mailer service.Mailer, frontendURL string, log *zap.SugaredLogger) *AccountHandler {
	return &AccountHandler{
		accounts:    accounts,
		images:      images,
		auth:        auth,
		mailer:      mailer,
		frontendURL: frontendURL,
		log:         log,
	}
}

// Register creates an inactive account and mails its confirmation link.
func (h *AccountHandler) Register(c *gin.Context) {
	ctx := c.Request.Context()

	var form service.NewAccountForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid request"})
		return
	}
	if err := h.accounts.ValidateNewAccount(ctx, form); err != nil {
		respondError(c, h.log, err)
		return
	}

	ref, ok := h.uploadImage(c)
	if !ok {
		return
	}

	account, err := h.accounts.CreateAccount(ctx, form.Input(ref))
	if err != nil {
		if ref != "" {
			h.images.AfterDelete(ctx, ref)
		}
		respondError(c, h.log, err)
		return
	}

	if h.mailer != nil {
		token, err := h.accounts.ConfirmationToken(account)
		if err == nil {
			err = service.SendConfirmation(ctx, h.mailer, h.frontendURL, account, token)
		}
		if err != nil {
			h.log.Errorw("failed to send confirmation email", "username", account.Username(), "error", err)
		}
	}

	c.JSON(http.StatusCreated, types.RegisterResponse{
		Message: "Account created. Check your email to confirm it.",
		Account: h.toResponse(account, h.storedImages(ctx, account)),
	})
}

// Confirm activates the account named in the link and starts a session.
func (h *AccountHandler) Confirm(c *gin.Context) {
	account, err := h.accounts.ActivateAccount(c.Request.Context(), c.Param("username"), c.Param("token"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	token, err := h.auth.IssueToken(account.Identity)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, types.TokenResponse{Token: token, Message: "Your account has been confirmed."})
}

// List returns every account.
func (h *AccountHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	accounts, err := h.accounts.ListAccounts(ctx)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	images := h.storedImages(ctx, accounts...)
	resp := types.AccountListResponse{Accounts: make([]types.AccountResponse, 0, len(accounts))}
	for _, a := range accounts {
		resp.Accounts = append(resp.Accounts, h.toResponse(a, images))
	}
	resp.Count = len(resp.Accounts)
	c.JSON(http.StatusOK, resp)
}

// Detail returns one account by username.
func (h *AccountHandler) Detail(c *gin.Context) {
	ctx := c.Request.Context()
	account, err := h.accounts.GetAccount(ctx, c.Param("username"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, h.toResponse(account, h.storedImages(ctx, account)))
}

// Me redirects to the caller's own account.
func (h *AccountHandler) Me(c *gin.Context) {
	c.Redirect(http.StatusFound, "/api/v1/accounts/"+c.GetString(middleware.UsernameKey))
}

// Update edits the caller's own account. A multipart profile_image replaces the image.
func (h *AccountHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()
	account := middleware.OwnedAccount(c)

	var form service.UpdateAccountForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid request"})
		return
	}
	if err := h.accounts.ValidateAccountUpdate(ctx, account, form); err != nil {
		respondError(c, h.log, err)
		return
	}

	ref, ok := h.uploadImage(c)
	if !ok {
		return
	}

	updated, err := h.accounts.UpdateAccount(ctx, account, form.Fields(ref))
	if err != nil {
		if ref != "" && updated == nil {
			h.images.AfterDelete(ctx, ref)
		}
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, h.toResponse(updated, h.storedImages(ctx, updated)))
}

// Delete removes the caller's own account.
func (h *AccountHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	account := middleware.OwnedAccount(c)
	if err := h.accounts.DeleteAccount(ctx, account); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteImage clears the caller's profile image.
func (h *AccountHandler) DeleteImage(c *gin.Context) {
	ctx := c.Request.Context()
	account := middleware.OwnedAccount(c)
	updated, err := h.accounts.UpdateAccount(ctx, account, service.AccountUpdate{"profile_image": nil})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, h.toResponse(updated, h.storedImages(ctx, updated)))
}

// uploadImage stores the optional profile_image part. ok is false once a
// response has been written.
func (h *AccountHandler) uploadImage(c *gin.Context) (ref string, ok bool) {
	file, err := c.FormFile("profile_image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return "", true
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid upload"})
		return "", false
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid upload"})
		return "", false
	}
	defer f.Close()

	ref, err = h.images.Upload(c.Request.Context(), file.Filename, f)
	if err != nil {
		respondError(c, h.log, err)
		return "", false
	}
	return ref, true
}

// storedImages lists the image store once for a whole response. Nothing is
// listed when none of the accounts has an image.
func (h *AccountHandler) storedImages(ctx context.Context, accounts ...*service.Account) []string {
	for _, a := range accounts {
		if a.Profile == nil || a.Profile.ImageRef() == "" {
			continue
		}
		names, err := h.images.Storage().List(ctx)
		if err != nil {
			h.log.Warnw("failed to list profile images", "error", err)
			return nil
		}
		sort.Strings(names)
		return names
	}
	return nil
}

func (h *AccountHandler) toResponse(a *service.Account, images []string) types.AccountResponse {
	resp := types.AccountResponse{
		ID:         a.Identity.ID,
		Username:   a.Identity.Username,
		Email:      a.Identity.Email,
		IsActive:   a.Identity.IsActive,
		IsStaff:    a.Identity.IsStaff,
		DateJoined: a.Identity.CreatedAt,
		LastLogin:  a.Identity.LastLogin,
	}
	if a.Profile == nil {
		return resp
	}
	resp.FirstName = a.Profile.FirstName
	resp.LastName = a.Profile.LastName
	resp.PhoneNumber = a.Profile.PhoneNumber

	for _, name := range storage.Filter(images, a.Profile.ImageRef()) {
		resp.Images = append(resp.Images, "/api/v1/media/"+name)
	}
	return resp
}
