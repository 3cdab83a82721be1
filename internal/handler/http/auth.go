// Package http exposes the service over a chi router.
package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/nortover/accountsvc/internal/domain"
	"github.com/nortover/accountsvc/internal/service"
	"github.com/nortover/accountsvc/pkg/httputil"
	"github.com/nortover/accountsvc/pkg/middleware"
	"github.com/nortover/accountsvc/pkg/validator"
)

// Service is the application surface the handlers sit on. Satisfied by
// service.AccountService.
type Service interface {
	Register(ctx context.Context, input service.RegisterInput) (*domain.Account, error)
	Login(ctx context.Context, input service.LoginInput) (*domain.AuthResult, error)
	ExternalLogin(ctx context.Context, input service.ExternalLoginInput) (*domain.AuthResult, error)
	RefreshSession(ctx context.Context, rawToken, ip string) (*domain.AuthResult, error)
	Logout(ctx context.Context, accountID int64, meta service.ClientMeta) error
	ChangePassword(ctx context.Context, input service.ChangePasswordInput) error

	GetAccount(ctx context.Context, id int64) (*domain.Account, error)
	ListAccounts(ctx context.Context, limit, offset int) ([]domain.Account, int, error)
	UpdateAccount(ctx context.Context, id int64, input service.UpdateAccountInput) (*domain.Account, error)
	DeleteAccount(ctx context.Context, id int64, meta service.ClientMeta) error

	RecordAccess(ctx context.Context, input service.RecordAccessInput) error
	SecurityEvents(ctx context.Context, accountID int64, limit, offset int) ([]domain.SecurityEvent, int, error)
	AccessLogs(ctx context.Context, accountID int64, limit, offset int) ([]domain.AccessLog, int, error)
}

// AuthHandler handles HTTP requests for the auth endpoints.
type AuthHandler struct {
	service Service
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc Service, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// RegisterRequest is the JSON request body for account registration.
type RegisterRequest struct {
	FullName string `json:"full_name" validate:"required,min=1,max=200"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Phone    string `json:"phone" validate:"omitempty,max=20"`
}

// LoginRequest is the JSON request body for a credential login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ExternalLoginRequest is the JSON request body for an external-provider login.
type ExternalLoginRequest struct {
	ExternalID string `json:"external_id" validate:"required,min=1,max=200"`
	Email      string `json:"email" validate:"required,email"`
	FullName   string `json:"full_name" validate:"omitempty,max=200"`
}

// RefreshRequest is the JSON request body for a session refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// ChangePasswordRequest is the JSON request body for a password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// --- Handlers ---

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	account, err := h.service.Register(r.Context(), service.RegisterInput{
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: account})
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	result, err := h.service.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Meta:     clientMeta(r),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// ExternalLogin handles POST /api/v1/auth/external-login
func (h *AuthHandler) ExternalLogin(w http.ResponseWriter, r *http.Request) {
	var req ExternalLoginRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	result, err := h.service.ExternalLogin(r.Context(), service.ExternalLoginInput{
		ExternalID: req.ExternalID,
		Email:      req.Email,
		FullName:   req.FullName,
		Meta:       clientMeta(r),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// Refresh handles POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	result, err := h.service.RefreshSession(r.Context(), req.RefreshToken, clientIP(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	accountID, ok := authenticatedAccountID(w, r)
	if !ok {
		return
	}

	if err := h.service.Logout(r.Context(), accountID, clientMeta(r)); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]string{"message": "logged out"},
	})
}

// ChangePassword handles POST /api/v1/auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	accountID, ok := authenticatedAccountID(w, r)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	if err := h.service.ChangePassword(r.Context(), service.ChangePasswordInput{
		AccountID:       accountID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		Meta:            clientMeta(r),
	}); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]string{"message": "password changed"},
	})
}

// --- Helpers ---

// authenticatedAccountID extracts the caller's account id from the request
// context. Writes a 401 and returns false when the context has no usable id.
func authenticatedAccountID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := middleware.AccountIDFromContext(r.Context())
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "UNAUTHORIZED", Message: "account not authenticated"},
		})
		return 0, false
	}
	return id, true
}

// clientMeta builds the audit metadata for the request.
func clientMeta(r *http.Request) service.ClientMeta {
	return service.ClientMeta{
		IP:     clientIP(r),
		Device: r.UserAgent(),
	}
}

// clientIP returns the originating client IP, preferring the first
// X-Forwarded-For hop over the socket address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
