package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nortover/accountsvc/internal/domain"
	"github.com/nortover/accountsvc/internal/service"
	"github.com/nortover/accountsvc/pkg/httputil"
	"github.com/nortover/accountsvc/pkg/middleware"
	"github.com/nortover/accountsvc/pkg/pagination"
	"github.com/nortover/accountsvc/pkg/validator"
)

// AccountHandler handles HTTP requests for account and audit endpoints.
type AccountHandler struct {
	service Service
	logger  *slog.Logger
}

// NewAccountHandler creates a new account HTTP handler.
func NewAccountHandler(svc Service, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// UpdateAccountRequest is the JSON request body for updating an account.
type UpdateAccountRequest struct {
	FullName *string `json:"full_name" validate:"omitempty,min=1,max=200"`
	Phone    *string `json:"phone" validate:"omitempty,max=20"`
}

// RecordAccessRequest is the JSON request body for appending an access log
// entry.
type RecordAccessRequest struct {
	Kind     string `json:"kind" validate:"required,oneof=view download edit export"`
	Resource string `json:"resource" validate:"omitempty,max=500"`
	Location string `json:"location" validate:"omitempty,max=200"`
}

// --- Handlers ---

// Get handles GET /api/v1/accounts/{id}
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.guardedAccountID(w, r)
	if !ok {
		return
	}

	account, err := h.service.GetAccount(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: account})
}

// List handles GET /api/v1/accounts (admin only, enforced by the router).
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	p := pagination.FromRequest(r)

	accounts, total, err := h.service.ListAccounts(r.Context(), p.PerPage, (p.Page-1)*p.PerPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: httputil.NewPaginatedResponse(accounts, total, p.Page, p.PerPage),
	})
}

// Update handles PUT /api/v1/accounts/{id}
func (h *AccountHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.guardedAccountID(w, r)
	if !ok {
		return
	}

	var req UpdateAccountRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	account, err := h.service.UpdateAccount(r.Context(), id, service.UpdateAccountInput{
		FullName: req.FullName,
		Phone:    req.Phone,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: account})
}

// Delete handles DELETE /api/v1/accounts/{id}
func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.guardedAccountID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteAccount(r.Context(), id, clientMeta(r)); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SecurityEvents handles GET /api/v1/accounts/{id}/security-events
func (h *AccountHandler) SecurityEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := h.guardedAccountID(w, r)
	if !ok {
		return
	}

	p := pagination.FromRequest(r)
	events, total, err := h.service.SecurityEvents(r.Context(), id, p.PerPage, (p.Page-1)*p.PerPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: httputil.NewPaginatedResponse(events, total, p.Page, p.PerPage),
	})
}

// AccessLogs handles GET /api/v1/accounts/{id}/access-logs
func (h *AccountHandler) AccessLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := h.guardedAccountID(w, r)
	if !ok {
		return
	}

	p := pagination.FromRequest(r)
	logs, total, err := h.service.AccessLogs(r.Context(), id, p.PerPage, (p.Page-1)*p.PerPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: httputil.NewPaginatedResponse(logs, total, p.Page, p.PerPage),
	})
}

// RecordAccess handles POST /api/v1/accounts/{id}/access-logs
func (h *AccountHandler) RecordAccess(w http.ResponseWriter, r *http.Request) {
	id, ok := h.guardedAccountID(w, r)
	if !ok {
		return
	}

	var req RecordAccessRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	meta := clientMeta(r)
	if err := h.service.RecordAccess(r.Context(), service.RecordAccessInput{
		AccountID: id,
		Kind:      domain.AccessKind(req.Kind),
		Resource:  req.Resource,
		IP:        meta.IP,
		Device:    meta.Device,
		UserAgent: r.UserAgent(),
		Location:  req.Location,
	}); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{
		Data: map[string]string{"message": "access recorded"},
	})
}

// --- Helpers ---

// guardedAccountID parses the {id} route parameter and enforces the
// self-or-admin rule: a caller may act on their own account, admins on any.
// It writes the error response itself and returns false on failure.
func (h *AccountHandler) guardedAccountID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return 0, false
	}

	callerID, ok := authenticatedAccountID(w, r)
	if !ok {
		return 0, false
	}

	if callerID != id && middleware.RoleFromContext(r.Context()) != domain.RoleAdmin {
		httputil.WriteJSON(w, http.StatusForbidden, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "FORBIDDEN", Message: "insufficient permissions"},
		})
		return 0, false
	}

	return id, true
}
