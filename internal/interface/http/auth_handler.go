package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/prasatya/authflow/config"
	"github.com/prasatya/authflow/internal/application"
	"github.com/prasatya/authflow/internal/session"
	"github.com/prasatya/authflow/pkg/helpers"
	"github.com/prasatya/authflow/pkg/response"
	"github.com/prasatya/authflow/pkg/validation"
)

type AuthHandler struct {
	Svc     *application.AuthService
	Store   *session.Store
	Cookies *helpers.Manager
	Cfg     *config.Config
	Logger  *logrus.Logger
}

func NewAuthHandler(svc *application.AuthService, store *session.Store, cookies *helpers.Manager, cfg *config.Config, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{Svc: svc, Store: store, Cookies: cookies, Cfg: cfg, Logger: logger}
}

type loginRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required"`
	Remember   bool   `json:"remember"`
	RedirectTo string `json:"redirect_to"`
}

// Login POST /api/login
// Authenticates against the identity provider. Accounts flagged for a
// forced password change are redirected to the password page instead of
// their requested destination.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	res, err := h.Svc.SignIn(c.Request.Context(), application.SignInInput{
		Email:    req.Email,
		Password: req.Password,
		Remember: req.Remember,
	})
	if err != nil {
		switch {
		case errors.Is(err, application.ErrInvalidCredentials):
			response.Error[any](c, http.StatusUnauthorized, "invalid credentials", nil)
		case errors.Is(err, application.ErrSignInTimeout):
			response.Error[any](c, http.StatusUnauthorized, "sign-in timed out, please try again", nil)
		default:
			h.Logger.WithError(err).Warn("sign-in failed")
			response.Error[any](c, http.StatusBadGateway, "sign-in failed", nil)
		}
		return
	}

	h.Cookies.SetSession(c, res.Session.AccessToken, res.Session.ExpiresAt, res.Session.RefreshToken)

	redirect := req.RedirectTo
	if redirect == "" {
		redirect = h.Cfg.DashboardURL
	}
	if res.RequiresPasswordChange {
		redirect = h.Cfg.PasswordChangeURL
	}

	response.Success(c, http.StatusOK, gin.H{
		"user_id":     res.Identity.ID,
		"email":       res.Identity.Email,
		"redirect_to": redirect,
	}, "signed in", nil)
}

// Logout POST /api/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.Svc.SignOut(c.Request.Context()); err != nil {
		h.Logger.WithError(err).Warn("provider sign-out failed")
	}
	h.Cookies.Clear(c)
	response.Success[any](c, http.StatusOK, nil, "signed out", nil)
}

// ResetInit POST /api/auth/reset/init {email}
// Always returns OK to avoid account enumeration.
func (h *AuthHandler) ResetInit(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if err := h.Svc.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		h.Logger.WithError(err).Warn("password reset request failed")
	}
	response.Success(c, http.StatusOK, gin.H{"sent": true}, "if the account exists, a reset email is on its way", nil)
}

// PasswordChange POST /api/auth/password {password} (auth required)
func (h *AuthHandler) PasswordChange(c *gin.Context) {
	uid := c.GetString("userID")
	if uid == "" {
		response.Error[any](c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req struct {
		Password string `json:"password" binding:"required,pwd"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if err := h.Svc.ChangePassword(c.Request.Context(), uid, req.Password); err != nil {
		h.Logger.WithError(err).WithField("user_id", uid).Error("password change failed")
		response.Error[any](c, http.StatusBadGateway, "password change failed", nil)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"changed": true}, "password updated", nil)
}

// Session GET /api/session (auth required)
// Returns the current session snapshot for the dashboard shell.
func (h *AuthHandler) Session(c *gin.Context) {
	snap := h.Store.Snapshot()
	if snap.Identity == nil {
		response.Error[any](c, http.StatusUnauthorized, "not signed in", nil)
		return
	}
	body := gin.H{
		"user_id":        snap.Identity.ID,
		"email":          snap.Identity.Email,
		"email_verified": snap.Identity.EmailVerified(),
		"loading":        snap.Loading,
	}
	if snap.Profile != nil {
		body["profile"] = profileView(snap.Profile)
	}
	response.Success(c, http.StatusOK, body, "session", nil)
}
