package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nortover/accountsvc/internal/domain"
	"github.com/nortover/accountsvc/internal/service"
	apperrors "github.com/nortover/accountsvc/pkg/errors"
	"github.com/nortover/accountsvc/pkg/httputil"
	"github.com/nortover/accountsvc/pkg/middleware"
)

// ============================================================================
// Service Mock
// ============================================================================

type mockService struct {
	mock.Mock
}

func (m *mockService) Register(ctx context.Context, input service.RegisterInput) (*domain.Account, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *mockService) Login(ctx context.Context, input service.LoginInput) (*domain.AuthResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AuthResult), args.Error(1)
}

func (m *mockService) ExternalLogin(ctx context.Context, input service.ExternalLoginInput) (*domain.AuthResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AuthResult), args.Error(1)
}

func (m *mockService) RefreshSession(ctx context.Context, rawToken, ip string) (*domain.AuthResult, error) {
	args := m.Called(ctx, rawToken, ip)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AuthResult), args.Error(1)
}

func (m *mockService) Logout(ctx context.Context, accountID int64, meta service.ClientMeta) error {
	args := m.Called(ctx, accountID, meta)
	return args.Error(0)
}

func (m *mockService) ChangePassword(ctx context.Context, input service.ChangePasswordInput) error {
	args := m.Called(ctx, input)
	return args.Error(0)
}

func (m *mockService) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *mockService) ListAccounts(ctx context.Context, limit, offset int) ([]domain.Account, int, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Account), args.Int(1), args.Error(2)
}

func (m *mockService) UpdateAccount(ctx context.Context, id int64, input service.UpdateAccountInput) (*domain.Account, error) {
	args := m.Called(ctx, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *mockService) DeleteAccount(ctx context.Context, id int64, meta service.ClientMeta) error {
	args := m.Called(ctx, id, meta)
	return args.Error(0)
}

func (m *mockService) RecordAccess(ctx context.Context, input service.RecordAccessInput) error {
	args := m.Called(ctx, input)
	return args.Error(0)
}

func (m *mockService) SecurityEvents(ctx context.Context, accountID int64, limit, offset int) ([]domain.SecurityEvent, int, error) {
	args := m.Called(ctx, accountID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.SecurityEvent), args.Int(1), args.Error(2)
}

func (m *mockService) AccessLogs(ctx context.Context, accountID int64, limit, offset int) ([]domain.AccessLog, int, error) {
	args := m.Called(ctx, accountID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.AccessLog), args.Int(1), args.Error(2)
}

// ============================================================================
// Test Helpers
// ============================================================================

func handlerTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeTokenValidator returns a middleware.TokenValidator that always succeeds
// and injects the given account id and role into the request context.
func fakeTokenValidator(accountID, role string) middleware.TokenValidator {
	return func(token string) (*middleware.Claims, error) {
		return &middleware.Claims{AccountID: accountID, Email: "alice@example.com", Role: role}, nil
	}
}

// setupAuthRouter mirrors the production auth routes with a fake validator on
// the authenticated group.
func setupAuthRouter(handler *AuthHandler, accountID string) *chi.Mux {
	r := chi.NewRouter()
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Post("/register", handler.Register)
		r.Post("/login", handler.Login)
		r.Post("/external-login", handler.ExternalLogin)
		r.Post("/refresh", handler.Refresh)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(fakeTokenValidator(accountID, domain.RoleUser)))
			r.Post("/logout", handler.Logout)
			r.Post("/change-password", handler.ChangePassword)
		})
	})
	return r
}

func postJSON(t *testing.T, router http.Handler, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.9:51234"
	req.Header.Set("User-Agent", "handler-test/1.0")
	if authed {
		req.Header.Set("Authorization", "Bearer test-token")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	return resp
}

const handlerTestAccountID int64 = 42

func handlerSampleAccount() *domain.Account {
	now := time.Now().UTC()
	return &domain.Account{
		ID:        handlerTestAccountID,
		FullName:  "Alice Example",
		Email:     "alice@example.com",
		Phone:     "+15550100",
		Role:      domain.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func handlerSampleAuthResult() *domain.AuthResult {
	return &domain.AuthResult{
		TokenPair: domain.TokenPair{
			AccessToken:  "header.payload.signature",
			RefreshToken: strings.Repeat("r", 43),
		},
		ExpiresIn: 900,
		Account:   handlerSampleAccount(),
	}
}

// ============================================================================
// Register Tests
// ============================================================================

func TestRegister_Success(t *testing.T) {
	svc := new(mockService)
	router := setupAuthRouter(NewAuthHandler(svc, handlerTestLogger()), "42")

	svc.On("Register", mock.Anything, service.RegisterInput{
		FullName: "Alice Example",
		Email:    "alice@example.com",
		Password: "Sup3rSecret",
	}).Return(handlerSampleAccount(), nil)

	body := `{"full_name":"Alice Example","email":"alice@example.com","password":"Sup3rSecret"}`
	rec := postJSON(t, router, "/api/v1/auth/register", body, false)

	assert.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)
	assert.NotNil(t, resp.Data)
	svc.AssertExpectations(t)
}

func TestRegister_ValidationError(t *testing.T) {
	svc := new(mockService)
	router := setupAuthRouter(NewAuthHandler(svc, handlerTestLogger()), "42")

	body := `{"full_name":"Alice","email":"not-an-email","password":"short"}`
	rec := postJSON(t, router, "/api/v1/auth/register", body, false)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	svc.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc := new(mockService)
	router := setupAuthRouter(NewAuthHandler(svc, handlerTestLogger()), "42")

	svc.On("Register", mock.Anything, mock.Anything).
		Return(nil, apperrors.AlreadyExists("account", "email", "alice@example.com"))

	body := `{"full_name":"Alice Example","email":"alice@example.com","password":"Sup3rSecret"}`
	rec := postJSON(t, router, "/api/v1/auth/register", body, false)

	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "ALREADY_EXISTS", resp.Error.Code)
}

func TestRegister_RejectsNonJSONContentType(t *testing.T) {
	svc := new(mockService)
	router := setupAuthRouter(NewAuthHandler(svc, handlerTestLogger()), "42")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewBufferString("full_name=Alice"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	svc.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
}

// ============================================================================
// Login Tests
// ============================================================================

func TestLogin_Success(t *testing.T) {
	svc := new(mockService)
	router := setupAuthRouter(NewAuthHandler(svc, handlerTestLogger()), "42")

	svc.On("Login", mock.Anything, service.LoginInput{
		Email:    "alice@example.com",
		Password: "Sup3rSecret",
		Meta:     service.ClientMeta{IP: "203.0.113.9", Device: "handler-test/1.0"},
	}).Return(handlerSampleAuthResult(), nil)

	body := `{"email":"alice@example.com","password":"Sup3rSecret"}`
	rec := postJSON(t, router, "/api/v1/auth/login", body, false)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)
	svc.AssertExpectations(t)
}

func TestLogin_ForwardedForWins(t *testing.T) {
	svc := new(mockService)
	router := setupAuthRouter(NewAuthHandler(svc, handlerTestLogger()), "42")

	svc.On("Login", mock.Anything, mock.MatchedBy(func(in service.LoginInput) bool {
		return in.Meta.IP == "198.51.100.7"
	})).Return(handlerSampleAuthResult(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		bytes.NewBufferString(`{"email":"alice@example.com","password":"Sup3rSecret"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	req.RemoteAddr = "10.0.0.1:9999"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc := new(mockService)
	router := setupAuthRouter(NewAuthHandler(svc, handlerTestLogger()), "42")

	svc.On("Login", mock.Anything, mock.Anything).
		Return(nil, apperrors.Unauthorized("invalid email or password"))

	body := `{"email":"alice@example.com","password":"wrong-password"}`
	rec := postJSON(t, router, "/api/v1/auth/login", body, false)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "UNAUTHORIZED", resp.Error.Code)
	assert.Equal(t, "invalid email or password", resp.Error.Message)
}

func TestLogin_RateLimited(t *testing.T) {
	svc := new(mockService)
	router := setupAuthRouter(NewAuthHandler(svc, handlerTestLogger()), "42")

	svc.On("Login", mock.Anything, mock.Anything).
		Return(nil, apperrors.TooManyRequests("too many login attempts, try again later"))

	body := `{"email":"alice@example.com","password":"Sup3rSecret"}`
	rec := postJSON(t, router, "/api/v1/auth/login", body, false)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "RATE_LIMITED", resp.Error.Code)
}

// ============================================================================
// ExternalLogin Tests
// ============================================================================

func TestExternalLogin_Success(t *testing.T) {
	svc := new(mockService)
	router := setupAuthRouter(NewAuthHandler(svc, handlerTestLogger()), "42")

	svc.On("ExternalLogin", mock.Anything, mock.MatchedBy(func(in service.ExternalLoginInput) bool {
		return in.ExternalID == "idp|7f3a" && in.Email == "alice@example.com"
	})).Return(handlerSampleAuthResult(), nil)

	body := `{"external_id":"idp|7f3a","email":"alice@example.com","full_name":"Alice Example"}`
	rec := postJSON(t, router, "/api/v1/auth/external-login", body, false)

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestExternalLogin_MissingExternalID(t *testing.T) {
	svc := new(mockService)
	router := setupAuthRouter(NewAuthHandler(svc, handlerTestLogger()), "42")

	body := `{"email":"alice@example.com"}`
	rec := postJSON(t, router, "/api/v1/auth/external-login", body, false)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "ExternalLogin", mock.Anything, mock.Anything)
}

// ============================================================================
// Refresh Tests
// ============================================================================

func TestRefresh_Success(t *testing.T) {
	svc := new(mockService)
	router := setupAuthRouter(NewAuthHandler(svc, handlerTestLogger()), "42")

	svc.On("RefreshSession", mock.Anything, "opaque-refresh-token", "203.0.113.9").
		Return(handlerSampleAuthResult(), nil)

	body := `{"refresh_token":"opaque-refresh-token"}`
	rec := postJSON(t, router, "/api/v1/auth/refresh", body, false)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)
	svc.AssertExpectations(t)
}

func TestRefresh_InvalidToken(t *testing.T) {
	svc := new(mockService)
	router := setupAuthRouter(NewAuthHandler(svc, handlerTestLogger()), "42")

	svc.On("RefreshSession", mock.Anything, "stolen-token", mock.Anything).
		Return(nil, apperrors.Unauthorized("invalid refresh token"))

	body := `{"refresh_token":"stolen-token"}`
	rec := postJSON(t, router, "/api/v1/auth/refresh", body, false)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "invalid refresh token", resp.Error.Message)
}

// ============================================================================
// Logout Tests
// ============================================================================

func TestLogout_Success(t *testing.T) {
	svc := new(mockService)
	router := setupAuthRouter(NewAuthHandler(svc, handlerTestLogger()), "42")

	svc.On("Logout", mock.Anything, handlerTestAccountID,
		service.ClientMeta{IP: "203.0.113.9", Device: "handler-test/1.0"}).Return(nil)

	rec := postJSON(t, router, "/api/v1/auth/logout", `{}`, true)

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestLogout_Unauthenticated(t *testing.T) {
	svc := new(mockService)
	router := setupAuthRouter(NewAuthHandler(svc, handlerTestLogger()), "42")

	rec := postJSON(t, router, "/api/v1/auth/logout", `{}`, false)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	svc.AssertNotCalled(t, "Logout", mock.Anything, mock.Anything, mock.Anything)
}

// ============================================================================
// ChangePassword Tests
// ============================================================================

func TestChangePassword_Success(t *testing.T) {
	svc := new(mockService)
	router := setupAuthRouter(NewAuthHandler(svc, handlerTestLogger()), "42")

	svc.On("ChangePassword", mock.Anything, mock.MatchedBy(func(in service.ChangePasswordInput) bool {
		return in.AccountID == handlerTestAccountID &&
			in.CurrentPassword == "OldSecret1" &&
			in.NewPassword == "NewSecret2"
	})).Return(nil)

	body := `{"current_password":"OldSecret1","new_password":"NewSecret2"}`
	rec := postJSON(t, router, "/api/v1/auth/change-password", body, true)

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	svc := new(mockService)
	router := setupAuthRouter(NewAuthHandler(svc, handlerTestLogger()), "42")

	svc.On("ChangePassword", mock.Anything, mock.Anything).
		Return(apperrors.Unauthorized("current password is incorrect"))

	body := `{"current_password":"wrong-one","new_password":"NewSecret2"}`
	rec := postJSON(t, router, "/api/v1/auth/change-password", body, true)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChangePassword_ShortNewPassword(t *testing.T) {
	svc := new(mockService)
	router := setupAuthRouter(NewAuthHandler(svc, handlerTestLogger()), "42")

	body := `{"current_password":"OldSecret1","new_password":"short"}`
	rec := postJSON(t, router, "/api/v1/auth/change-password", body, true)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "ChangePassword", mock.Anything, mock.Anything)
}
