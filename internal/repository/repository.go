package repository

import (
	"context"
	"time"

	"github.com/nortover/accountsvc/internal/domain"
)

// AccountRepository defines the interface for account persistence operations.
type AccountRepository interface {
	// Create inserts a new account and fills in its generated id and timestamps.
	Create(ctx context.Context, account *domain.Account) error

	// GetByID retrieves an account by its unique identifier.
	GetByID(ctx context.Context, id int64) (*domain.Account, error)

	// GetByEmail retrieves an account by email. The match is
	// case-insensitive.
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)

	// GetByExternalID retrieves an account by its external provider id.
	GetByExternalID(ctx context.Context, externalID string) (*domain.Account, error)

	// EmailExists reports whether any account holds the email,
	// case-insensitively.
	EmailExists(ctx context.Context, email string) (bool, error)

	// List returns a page of accounts ordered by id plus the total count.
	List(ctx context.Context, limit, offset int) ([]domain.Account, int, error)

	// Update modifies an existing account.
	Update(ctx context.Context, account *domain.Account) error

	// UpdateLastLogin stamps the account's last successful login.
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error

	// Delete removes an account by its identifier.
	Delete(ctx context.Context, id int64) error
}

// RefreshTokenRepository defines the interface for refresh token persistence.
// Rows are retained after revocation so a redeemed token's chain stays
// reconstructible.
type RefreshTokenRepository interface {
	// Insert stores a new refresh token hash and fills in its generated id.
	Insert(ctx context.Context, token *domain.RefreshToken) error

	// GetByHash retrieves a refresh token record by its SHA-256 hash.
	GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)

	// Redeem atomically revokes the token and inserts its successor. The
	// revocation is conditional on the token not being revoked already;
	// concurrent redemptions of the same token see at most one winner and
	// the losers get ErrConflict.
	Redeem(ctx context.Context, tokenID int64, successor *domain.RefreshToken) error

	// RevokeAll revokes every live refresh token for the account.
	RevokeAll(ctx context.Context, accountID int64) error
}

// AuditRepository defines the interface for the append-only audit trail.
type AuditRepository interface {
	// AppendSecurityEvent stores a security event and fills in its id.
	AppendSecurityEvent(ctx context.Context, event *domain.SecurityEvent) error

	// AppendAccessLog stores an access log entry and fills in its id.
	AppendAccessLog(ctx context.Context, entry *domain.AccessLog) error

	// ListSecurityEvents returns the account's security events newest first.
	ListSecurityEvents(ctx context.Context, accountID int64, limit, offset int) ([]domain.SecurityEvent, int, error)

	// ListAccessLogs returns the account's access logs newest first.
	ListAccessLogs(ctx context.Context, accountID int64, limit, offset int) ([]domain.AccessLog, int, error)
}
