// Package service implements the business logic for account
// authentication, session lifecycle, and the audit trail.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/nortover/accountsvc/internal/audit"
	"github.com/nortover/accountsvc/internal/auth"
	"github.com/nortover/accountsvc/internal/domain"
	"github.com/nortover/accountsvc/internal/rate"
	"github.com/nortover/accountsvc/internal/repository"
	apperrors "github.com/nortover/accountsvc/pkg/errors"
)

// minPasswordLength is the minimum password length required.
const minPasswordLength = 8

// EventPublisher publishes account lifecycle events. Satisfied by
// event.Producer.
type EventPublisher interface {
	PublishAccountRegistered(ctx context.Context, account *domain.Account) error
	PublishAccountPasswordChanged(ctx context.Context, accountID int64, email string) error
	PublishAccountDeleted(ctx context.Context, accountID int64, email string) error
}

// ClientMeta carries request origin details recorded in the audit trail.
type ClientMeta struct {
	IP     string
	Device string
}

// AccountService implements account, session, and audit operations.
type AccountService struct {
	accountRepo repository.AccountRepository
	tokenRepo   repository.RefreshTokenRepository
	recorder    *audit.Recorder
	hasher      *auth.PasswordHasher
	jwtManager  *auth.JWTManager
	limiter     *rate.LoginLimiter
	producer    EventPublisher
	refreshTTL  time.Duration
	logger      *slog.Logger
}

// NewAccountService creates a new account service.
func NewAccountService(
	accountRepo repository.AccountRepository,
	tokenRepo repository.RefreshTokenRepository,
	recorder *audit.Recorder,
	hasher *auth.PasswordHasher,
	jwtManager *auth.JWTManager,
	limiter *rate.LoginLimiter,
	producer EventPublisher,
	refreshTTL time.Duration,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		accountRepo: accountRepo,
		tokenRepo:   tokenRepo,
		recorder:    recorder,
		hasher:      hasher,
		jwtManager:  jwtManager,
		limiter:     limiter,
		producer:    producer,
		refreshTTL:  refreshTTL,
		logger:      logger,
	}
}

// --- Input types ---

// RegisterInput holds the parameters for registering a new account.
type RegisterInput struct {
	FullName string
	Email    string
	Password string
	Phone    string
}

// LoginInput holds the parameters for a credential login.
type LoginInput struct {
	Email    string
	Password string
	Meta     ClientMeta
}

// ExternalLoginInput holds the parameters for an external-provider login.
type ExternalLoginInput struct {
	ExternalID string
	Email      string
	FullName   string
	Meta       ClientMeta
}

// ChangePasswordInput holds the parameters for a password change.
type ChangePasswordInput struct {
	AccountID       int64
	CurrentPassword string
	NewPassword     string
	Meta            ClientMeta
}

// RecordAccessInput holds the parameters for an access log entry.
type RecordAccessInput struct {
	AccountID int64
	Kind      domain.AccessKind
	Resource  string
	IP        string
	Device    string
	UserAgent string
	Location  string
}

// UpdateAccountInput holds the optional fields of an account update.
type UpdateAccountInput struct {
	FullName *string
	Phone    *string
}

// --- Auth operations ---

// Register creates a new account with the default role.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (*domain.Account, error) {
	email := normalizeEmail(input.Email)
	if email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if strings.TrimSpace(input.FullName) == "" {
		return nil, apperrors.InvalidInput("full name is required")
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}

	exists, err := s.accountRepo.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, apperrors.AlreadyExists("account", "email", email)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account := &domain.Account{
		FullName:     strings.TrimSpace(input.FullName),
		Email:        email,
		PasswordHash: hash,
		Phone:        strings.TrimSpace(input.Phone),
		Role:         domain.RoleUser,
	}

	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	// Publish registration event (non-blocking on failure).
	if err := s.producer.PublishAccountRegistered(ctx, account); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish account.registered event",
			slog.Int64("account_id", account.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "account registered",
		slog.Int64("account_id", account.ID),
		slog.String("email", account.Email),
	)

	return account, nil
}

// Login authenticates an account with email and password. Unknown email and
// wrong password are indistinguishable to the caller, both in the error
// returned and in timing: a dummy bcrypt compare runs when no account holds
// the email.
func (s *AccountService) Login(ctx context.Context, input LoginInput) (*domain.AuthResult, error) {
	email := normalizeEmail(input.Email)
	if email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if input.Password == "" {
		return nil, apperrors.InvalidInput("password is required")
	}

	if err := s.limiter.Check(ctx, email, input.Meta.IP); err != nil {
		if errors.Is(err, rate.ErrLimited) {
			return nil, apperrors.TooManyRequests("too many login attempts, try again later")
		}
		return nil, fmt.Errorf("check login budget: %w", err)
	}

	account, err := s.accountRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Burn a bcrypt compare so this path costs the same as a
			// wrong password for an existing account.
			s.hasher.VerifyDummy(input.Password)
			s.recordLoginFailure(ctx, email, input.Meta.IP)
			return nil, apperrors.Unauthorized("invalid email or password")
		}
		return nil, fmt.Errorf("get account by email: %w", err)
	}

	if !account.HasPassword() || !s.hasher.Verify(input.Password, account.PasswordHash) {
		s.recordLoginFailure(ctx, email, input.Meta.IP)
		return nil, apperrors.Unauthorized("invalid email or password")
	}

	result, err := s.completeLogin(ctx, account, input.Meta, "")
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Reset(ctx, email, input.Meta.IP); err != nil {
		s.logger.WarnContext(ctx, "failed to reset login counters",
			slog.Int64("account_id", account.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "account logged in",
		slog.Int64("account_id", account.ID),
		slog.String("email", account.Email),
	)

	return result, nil
}

// ExternalLogin authenticates via an external identity provider id,
// creating a passwordless account on first sight of the id.
func (s *AccountService) ExternalLogin(ctx context.Context, input ExternalLoginInput) (*domain.AuthResult, error) {
	if strings.TrimSpace(input.ExternalID) == "" {
		return nil, apperrors.InvalidInput("external id is required")
	}
	email := normalizeEmail(input.Email)
	if email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}

	account, err := s.accountRepo.GetByExternalID(ctx, input.ExternalID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("get account by external id: %w", err)
		}

		account = &domain.Account{
			FullName:   strings.TrimSpace(input.FullName),
			Email:      email,
			Phone:      "",
			ExternalID: input.ExternalID,
			Role:       domain.RoleUser,
		}
		if err := s.accountRepo.Create(ctx, account); err != nil {
			return nil, fmt.Errorf("create external account: %w", err)
		}

		if err := s.producer.PublishAccountRegistered(ctx, account); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish account.registered event",
				slog.Int64("account_id", account.ID),
				slog.String("error", err.Error()),
			)
		}

		s.logger.InfoContext(ctx, "external account created",
			slog.Int64("account_id", account.ID),
			slog.String("email", account.Email),
		)
	}

	result, err := s.completeLogin(ctx, account, input.Meta, "external")
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "external login",
		slog.Int64("account_id", account.ID),
	)

	return result, nil
}

// RefreshSession redeems a refresh token for a new access+refresh pair.
// The presented token is revoked in the same transaction that persists its
// successor, so each raw token is redeemable exactly once. Expired,
// revoked, unknown, and concurrently-redeemed tokens all fail with the
// same unauthorized error.
func (s *AccountService) RefreshSession(ctx context.Context, rawToken, ip string) (*domain.AuthResult, error) {
	if rawToken == "" {
		return nil, apperrors.InvalidInput("refresh token is required")
	}

	stored, err := s.tokenRepo.GetByHash(ctx, auth.HashRefreshToken(rawToken))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("invalid refresh token")
		}
		return nil, fmt.Errorf("look up refresh token: %w", err)
	}
	if !stored.Active(time.Now().UTC()) {
		return nil, apperrors.Unauthorized("invalid refresh token")
	}

	account, err := s.accountRepo.GetByID(ctx, stored.AccountID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("invalid refresh token")
		}
		return nil, fmt.Errorf("get account for refresh: %w", err)
	}

	raw, hash, err := auth.NewRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("mint refresh token: %w", err)
	}

	now := time.Now().UTC()
	successor := &domain.RefreshToken{
		AccountID: account.ID,
		TokenHash: hash,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.refreshTTL),
	}

	if err := s.tokenRepo.Redeem(ctx, stored.ID, successor); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			// Another redemption of the same token won the race.
			return nil, apperrors.Unauthorized("invalid refresh token")
		}
		return nil, fmt.Errorf("redeem refresh token: %w", err)
	}

	if err := s.recorder.SecurityEvent(ctx, &domain.SecurityEvent{
		AccountID:   account.ID,
		Kind:        domain.SecurityEventLogin,
		Description: "refresh",
		IPAddress:   ip,
	}); err != nil {
		return nil, err
	}

	accessToken, err := s.jwtManager.GenerateAccessToken(account.ID, account.FullName, account.Email, account.Role)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	s.logger.InfoContext(ctx, "session refreshed",
		slog.Int64("account_id", account.ID),
	)

	return &domain.AuthResult{
		TokenPair: domain.TokenPair{
			AccessToken:  accessToken,
			RefreshToken: raw,
		},
		ExpiresIn: int(s.jwtManager.AccessExpiry().Seconds()),
		Account:   account,
	}, nil
}

// Logout revokes every refresh token for the account and records the event.
func (s *AccountService) Logout(ctx context.Context, accountID int64, meta ClientMeta) error {
	if _, err := s.accountRepo.GetByID(ctx, accountID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("account", strconv.FormatInt(accountID, 10))
		}
		return fmt.Errorf("get account for logout: %w", err)
	}

	if err := s.tokenRepo.RevokeAll(ctx, accountID); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}

	if err := s.recorder.SecurityEvent(ctx, &domain.SecurityEvent{
		AccountID: accountID,
		Kind:      domain.SecurityEventLogout,
		IPAddress: meta.IP,
		Device:    meta.Device,
	}); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "account logged out",
		slog.Int64("account_id", accountID),
	)

	return nil
}

// ChangePassword verifies the current password, stores the new hash,
// revokes all sessions, and records the change.
func (s *AccountService) ChangePassword(ctx context.Context, input ChangePasswordInput) error {
	if input.CurrentPassword == "" {
		return apperrors.InvalidInput("current password is required")
	}
	if err := validatePassword(input.NewPassword); err != nil {
		return err
	}
	if input.CurrentPassword == input.NewPassword {
		return apperrors.InvalidInput("new password must be different from current password")
	}

	account, err := s.accountRepo.GetByID(ctx, input.AccountID)
	if err != nil {
		return fmt.Errorf("get account for password change: %w", err)
	}

	if !account.HasPassword() || !s.hasher.Verify(input.CurrentPassword, account.PasswordHash) {
		return apperrors.Unauthorized("current password is incorrect")
	}

	hash, err := s.hasher.Hash(input.NewPassword)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	account.PasswordHash = hash
	if err := s.accountRepo.Update(ctx, account); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	// Force re-login everywhere the account is signed in.
	if err := s.tokenRepo.RevokeAll(ctx, account.ID); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}

	if err := s.recorder.SecurityEvent(ctx, &domain.SecurityEvent{
		AccountID: account.ID,
		Kind:      domain.SecurityEventPasswordChange,
		IPAddress: input.Meta.IP,
		Device:    input.Meta.Device,
	}); err != nil {
		return err
	}

	if err := s.producer.PublishAccountPasswordChanged(ctx, account.ID, account.Email); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish account.password_changed event",
			slog.Int64("account_id", account.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "password changed",
		slog.Int64("account_id", account.ID),
	)

	return nil
}

// --- Audit operations ---

// RecordAccess appends an access log entry for the account.
func (s *AccountService) RecordAccess(ctx context.Context, input RecordAccessInput) error {
	if _, err := s.accountRepo.GetByID(ctx, input.AccountID); err != nil {
		return fmt.Errorf("get account for access log: %w", err)
	}

	return s.recorder.Access(ctx, &domain.AccessLog{
		AccountID: input.AccountID,
		Kind:      input.Kind,
		Resource:  input.Resource,
		IPAddress: input.IP,
		Device:    input.Device,
		UserAgent: input.UserAgent,
		Location:  input.Location,
	})
}

// SecurityEvents lists the account's security events newest first.
func (s *AccountService) SecurityEvents(ctx context.Context, accountID int64, limit, offset int) ([]domain.SecurityEvent, int, error) {
	return s.recorder.SecurityEvents(ctx, accountID, limit, offset)
}

// AccessLogs lists the account's access log entries newest first.
func (s *AccountService) AccessLogs(ctx context.Context, accountID int64, limit, offset int) ([]domain.AccessLog, int, error) {
	return s.recorder.AccessLogs(ctx, accountID, limit, offset)
}

// --- Account CRUD ---

// GetAccount retrieves an account by id.
func (s *AccountService) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	account, err := s.accountRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("account", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}

// ListAccounts returns a page of accounts plus the total count.
func (s *AccountService) ListAccounts(ctx context.Context, limit, offset int) ([]domain.Account, int, error) {
	accounts, total, err := s.accountRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, total, nil
}

// UpdateAccount updates an account's mutable profile fields.
func (s *AccountService) UpdateAccount(ctx context.Context, id int64, input UpdateAccountInput) (*domain.Account, error) {
	account, err := s.accountRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("account", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("get account for update: %w", err)
	}

	if input.FullName != nil {
		if strings.TrimSpace(*input.FullName) == "" {
			return nil, apperrors.InvalidInput("full name must not be empty")
		}
		account.FullName = strings.TrimSpace(*input.FullName)
	}
	if input.Phone != nil {
		account.Phone = strings.TrimSpace(*input.Phone)
	}

	if err := s.accountRepo.Update(ctx, account); err != nil {
		return nil, fmt.Errorf("update account: %w", err)
	}

	s.logger.InfoContext(ctx, "account updated",
		slog.Int64("account_id", account.ID),
	)

	return account, nil
}

// DeleteAccount removes an account. The deletion event is recorded before
// the row disappears, tokens are revoked, and the account.deleted domain
// event is published.
func (s *AccountService) DeleteAccount(ctx context.Context, id int64, meta ClientMeta) error {
	account, err := s.accountRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("account", strconv.FormatInt(id, 10))
		}
		return fmt.Errorf("get account for delete: %w", err)
	}

	if err := s.recorder.SecurityEvent(ctx, &domain.SecurityEvent{
		AccountID: account.ID,
		Kind:      domain.SecurityEventAccountDeletion,
		IPAddress: meta.IP,
		Device:    meta.Device,
	}); err != nil {
		return err
	}

	if err := s.tokenRepo.RevokeAll(ctx, account.ID); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}

	if err := s.accountRepo.Delete(ctx, account.ID); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	if err := s.producer.PublishAccountDeleted(ctx, account.ID, account.Email); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish account.deleted event",
			slog.Int64("account_id", account.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "account deleted",
		slog.Int64("account_id", account.ID),
	)

	return nil
}

// --- Helpers ---

// completeLogin runs the shared success path: stamp last_login_at, append
// the Login security event, mint the token pair, persist the refresh hash.
// A failed event append fails the login.
func (s *AccountService) completeLogin(ctx context.Context, account *domain.Account, meta ClientMeta, description string) (*domain.AuthResult, error) {
	now := time.Now().UTC()

	if err := s.accountRepo.UpdateLastLogin(ctx, account.ID, now); err != nil {
		return nil, fmt.Errorf("update last login: %w", err)
	}
	account.LastLoginAt = &now

	if err := s.recorder.SecurityEvent(ctx, &domain.SecurityEvent{
		AccountID:   account.ID,
		Kind:        domain.SecurityEventLogin,
		Description: description,
		IPAddress:   meta.IP,
		Device:      meta.Device,
	}); err != nil {
		return nil, err
	}

	accessToken, err := s.jwtManager.GenerateAccessToken(account.ID, account.FullName, account.Email, account.Role)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	raw, hash, err := auth.NewRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("mint refresh token: %w", err)
	}

	if err := s.tokenRepo.Insert(ctx, &domain.RefreshToken{
		AccountID: account.ID,
		TokenHash: hash,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.refreshTTL),
	}); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &domain.AuthResult{
		TokenPair: domain.TokenPair{
			AccessToken:  accessToken,
			RefreshToken: raw,
		},
		ExpiresIn: int(s.jwtManager.AccessExpiry().Seconds()),
		Account:   account,
	}, nil
}

func (s *AccountService) recordLoginFailure(ctx context.Context, email, ip string) {
	if err := s.limiter.Failure(ctx, email, ip); err != nil && !errors.Is(err, rate.ErrLimited) {
		s.logger.WarnContext(ctx, "failed to record login failure",
			slog.String("error", err.Error()),
		)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validatePassword checks the password complexity policy.
func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	var hasUpper, hasLower, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return apperrors.InvalidInput("password must contain at least one uppercase letter, one lowercase letter, and one digit")
	}

	return nil
}
