// Package httpapi exposes the authcore service as a JSON HTTP API.
//
// The refresh token never reaches response bodies: login and the two-factor
// confirmation set it as an http-only SameSite=Strict cookie scoped to the
// auth routes, refresh reads it back from there, and logout clears it.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/immolink/authcore"
	"github.com/immolink/authcore/middleware"
)

const refreshCookieName = "refresh_token"

// Config configures the handler.
type Config struct {
	// RefreshTTL bounds the refresh cookie lifetime. Use the same value as
	// the service token config.
	RefreshTTL time.Duration

	// SecureCookies marks the refresh cookie Secure. Enable everywhere TLS
	// terminates in front of the service.
	SecureCookies bool

	Logger *slog.Logger
}

// Handler serves the auth routes.
type Handler struct {
	svc    *authcore.Service
	cfg    Config
	logger *slog.Logger
}

// NewHandler wraps svc.
func NewHandler(svc *authcore.Service, cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	return &Handler{svc: svc, cfg: cfg, logger: logger}
}

// Routes returns a mux with all auth endpoints mounted under /api/auth.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/register", h.handleRegister)
	mux.HandleFunc("POST /api/auth/login", h.handleLogin)
	mux.HandleFunc("POST /api/auth/2fa/verify", h.handleTwoFactorVerify)
	mux.HandleFunc("POST /api/auth/refresh", h.handleRefresh)
	mux.HandleFunc("POST /api/auth/logout", h.handleLogout)
	mux.HandleFunc("GET /api/auth/verify-email", h.handleVerifyEmail)
	mux.HandleFunc("POST /api/auth/forgot-password", h.handleForgotPassword)
	mux.HandleFunc("POST /api/auth/reset-password", h.handleResetPassword)

	guard := middleware.Guard(h.svc)
	protected := func(fn http.HandlerFunc) http.Handler { return guard(fn) }

	mux.Handle("GET /api/auth/me", protected(h.handleProfile))
	mux.Handle("PATCH /api/auth/me", protected(h.handleUpdateProfile))
	mux.Handle("POST /api/auth/change-password", protected(h.handleChangePassword))
	mux.Handle("POST /api/auth/deactivate", protected(h.handleDeactivate))
	mux.Handle("POST /api/auth/2fa/setup", protected(h.handleTwoFactorSetup))
	mux.Handle("POST /api/auth/2fa/enable", protected(h.handleTwoFactorEnable))
	mux.Handle("POST /api/auth/2fa/disable", protected(h.handleTwoFactorDisable))
	mux.Handle("POST /api/auth/2fa/verify-code", protected(h.handleTwoFactorVerifyCode))
	mux.Handle("GET /api/auth/2fa/status", protected(h.handleTwoFactorStatus))

	return mux
}

type registerRequest struct {
	Email       string                `json:"email"`
	Password    string                `json:"password"`
	FirstName   string                `json:"firstName"`
	LastName    string                `json:"lastName"`
	Phone       string                `json:"phone"`
	AccountType string                `json:"accountType"`
	Company     *authcore.CompanyInfo `json:"company"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.svc.Register(r.Context(), authcore.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Phone:       req.Phone,
		AccountType: authcore.AccountType(req.AccountType),
		Company:     req.Company,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]any{
		"user":    user,
		"message": "registration successful, please verify your email",
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx := authcore.ContextWithClientIP(r.Context(), clientIP(r))
	res, err := h.svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if res.TwoFactorRequired {
		h.writeJSON(w, http.StatusOK, map[string]any{
			"twoFactorRequired": true,
			"userId":            res.UserID,
		})
		return
	}

	h.setRefreshCookie(w, res.RefreshToken)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"accessToken": res.AccessToken,
		"user":        res.User,
	})
}

type twoFactorVerifyRequest struct {
	UserID string `json:"userId"`
	Code   string `json:"code"`
}

func (h *Handler) handleTwoFactorVerify(w http.ResponseWriter, r *http.Request) {
	var req twoFactorVerifyRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.svc.VerifyTwoFactorLogin(r.Context(), req.UserID, req.Code)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.setRefreshCookie(w, res.RefreshToken)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"accessToken": res.AccessToken,
		"user":        res.User,
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		h.writeError(w, r, authcore.ErrTokenInvalid)
		return
	}

	res, err := h.svc.Refresh(r.Context(), cookie.Value)
	if err != nil {
		h.clearRefreshCookie(w)
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"accessToken": res.AccessToken,
		"user":        res.User,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	// Best effort: record the logout when the caller still holds a valid
	// access token, clear the cookie either way.
	if token, ok := bearerToken(r); ok {
		if principal, err := h.svc.Authenticate(r.Context(), token); err == nil {
			_ = h.svc.Logout(r.Context(), principal.UserID)
		}
	}

	h.clearRefreshCookie(w)
	h.writeJSON(w, http.StatusOK, map[string]any{"message": "logged out"})
}

func (h *Handler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.VerifyEmail(r.Context(), r.URL.Query().Get("token")); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"message": "email verified"})
}

type emailRequest struct {
	Email string `json:"email"`
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.svc.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"message": "if the account exists, a reset email has been sent",
	})
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.svc.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"message": "password updated"})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, r, authcore.ErrTokenInvalid)
		return
	}

	var req changePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.svc.ChangePassword(r.Context(), principal.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"message": "password updated"})
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, r, authcore.ErrTokenInvalid)
		return
	}

	user, err := h.svc.Profile(r.Context(), principal.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

type updateProfileRequest struct {
	FirstName *string               `json:"firstName"`
	LastName  *string               `json:"lastName"`
	Phone     *string               `json:"phone"`
	Company   *authcore.CompanyInfo `json:"company"`
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, r, authcore.ErrTokenInvalid)
		return
	}

	var req updateProfileRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.svc.UpdateProfile(r.Context(), principal.UserID, authcore.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Company:   req.Company,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, r, authcore.ErrTokenInvalid)
		return
	}

	if err := h.svc.Deactivate(r.Context(), principal.UserID); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.clearRefreshCookie(w)
	h.writeJSON(w, http.StatusOK, map[string]any{"message": "account deactivated"})
}

func (h *Handler) handleTwoFactorSetup(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, r, authcore.ErrTokenInvalid)
		return
	}

	setup, err := h.svc.GenerateTwoFactorSetup(r.Context(), principal.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"secret":          setup.Secret,
		"provisioningUri": setup.ProvisioningURI,
		"backupCodes":     setup.BackupCodes,
	})
}

type codeRequest struct {
	Code string `json:"code"`
}

func (h *Handler) handleTwoFactorEnable(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, r, authcore.ErrTokenInvalid)
		return
	}

	var req codeRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.svc.EnableTwoFactor(r.Context(), principal.UserID, req.Code); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"message": "two-factor authentication enabled"})
}

type passwordRequest struct {
	Password string `json:"password"`
}

func (h *Handler) handleTwoFactorDisable(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, r, authcore.ErrTokenInvalid)
		return
	}

	var req passwordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.svc.DisableTwoFactor(r.Context(), principal.UserID, req.Password); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"message": "two-factor authentication disabled"})
}

// handleTwoFactorVerifyCode re-confirms an already-authenticated session
// with a live TOTP code. Nothing is consumed; backup codes are not accepted
// here.
func (h *Handler) handleTwoFactorVerifyCode(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, r, authcore.ErrTokenInvalid)
		return
	}

	var req codeRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.svc.VerifyTwoFactorCode(r.Context(), principal.UserID, req.Code); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"valid": true})
}

func (h *Handler) handleTwoFactorStatus(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, r, authcore.ErrTokenInvalid)
		return
	}

	status, err := h.svc.TwoFactorStatus(r.Context(), principal.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"enabled":              status.Enabled,
		"backupCodesRemaining": status.BackupCodesRemaining,
	})
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/api/auth",
		MaxAge:   int(h.cfg.RefreshTTL / time.Second),
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/api/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return false
	}
	return true
}

func bearerToken(r *http.Request) (string, bool) {
	const bearer = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) <= len(bearer) || h[:len(bearer)] != bearer {
		return "", false
	}
	return h[len(bearer):], true
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		// First hop only.
		for i := 0; i < len(ip); i++ {
			if ip[i] == ',' {
				return ip[:i]
			}
		}
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("response encode failed", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		h.writeJSON(w, status, map[string]any{"error": "internal error"})
		return
	}
	h.writeJSON(w, status, map[string]any{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, authcore.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, authcore.ErrDuplicateEmail),
		errors.Is(err, authcore.ErrTwoFactorAlreadyEnabled),
		errors.Is(err, authcore.ErrTwoFactorNotEnabled),
		errors.Is(err, authcore.ErrTwoFactorNotConfigured):
		return http.StatusConflict
	case errors.Is(err, authcore.ErrInvalidCredentials),
		errors.Is(err, authcore.ErrTokenInvalid),
		errors.Is(err, authcore.ErrTokenExpired),
		errors.Is(err, authcore.ErrTwoFactorInvalidCode),
		errors.Is(err, authcore.ErrUserInactive):
		return http.StatusUnauthorized
	case errors.Is(err, authcore.ErrEmailNotVerified),
		errors.Is(err, authcore.ErrAccountInactive),
		errors.Is(err, authcore.ErrAccountBlocked):
		return http.StatusForbidden
	case errors.Is(err, authcore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, authcore.ErrLoginRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
