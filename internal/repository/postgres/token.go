package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nortover/accountsvc/internal/domain"
	"github.com/nortover/accountsvc/pkg/database"
	apperrors "github.com/nortover/accountsvc/pkg/errors"
)

// RefreshTokenRepository implements repository.RefreshTokenRepository using
// PostgreSQL. Revoked rows are kept so a token's replacement chain stays
// reconstructible.
type RefreshTokenRepository struct {
	db DB
}

// NewRefreshTokenRepository creates a new PostgreSQL-backed refresh token repository.
func NewRefreshTokenRepository(db DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// Insert stores a new refresh token hash and fills in its generated id.
func (r *RefreshTokenRepository) Insert(ctx context.Context, t *domain.RefreshToken) (err error) {
	query := `
		INSERT INTO refresh_tokens (account_id, token_hash, issued_at, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	ctx, end := database.TraceQuery(ctx, "InsertRefreshToken", query)
	defer func() { end(err) }()

	err = r.db.QueryRow(ctx, query,
		t.AccountID,
		t.TokenHash,
		t.IssuedAt,
		t.ExpiresAt,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}

	return nil
}

// GetByHash retrieves a refresh token record by its SHA-256 hash.
func (r *RefreshTokenRepository) GetByHash(ctx context.Context, tokenHash string) (token *domain.RefreshToken, err error) {
	query := `
		SELECT id, account_id, token_hash, issued_at, expires_at, revoked_at, replaced_by
		FROM refresh_tokens
		WHERE token_hash = $1`

	ctx, end := database.TraceQuery(ctx, "GetRefreshTokenByHash", query)
	defer func() { end(err) }()

	var t domain.RefreshToken
	err = r.db.QueryRow(ctx, query, tokenHash).Scan(
		&t.ID,
		&t.AccountID,
		&t.TokenHash,
		&t.IssuedAt,
		&t.ExpiresAt,
		&t.RevokedAt,
		&t.ReplacedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan refresh token: %w", err)
	}

	return &t, nil
}

// Redeem atomically revokes the token and inserts its successor in one
// transaction. The revoking UPDATE is conditional on revoked_at still being
// NULL, so of N concurrent redemptions of the same token exactly one commits;
// the rest roll back with ErrConflict.
func (r *RefreshTokenRepository) Redeem(ctx context.Context, tokenID int64, successor *domain.RefreshToken) (err error) {
	insertQuery := `
		INSERT INTO refresh_tokens (account_id, token_hash, issued_at, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	revokeQuery := `
		UPDATE refresh_tokens
		SET revoked_at = $1, replaced_by = $2
		WHERE id = $3 AND revoked_at IS NULL`

	ctx, end := database.TraceQuery(ctx, "RedeemRefreshToken", revokeQuery)
	defer func() { end(err) }()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin redeem tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, insertQuery,
		successor.AccountID,
		successor.TokenHash,
		successor.IssuedAt,
		successor.ExpiresAt,
	).Scan(&successor.ID)
	if err != nil {
		return fmt.Errorf("insert successor token: %w", err)
	}

	now := time.Now().UTC()
	ct, err := tx.Exec(ctx, revokeQuery, now, successor.ID, tokenID)
	if err != nil {
		return fmt.Errorf("revoke redeemed token: %w", err)
	}
	if ct.RowsAffected() == 0 {
		// Lost the race: another redemption already revoked this token.
		return apperrors.ErrConflict
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit redeem tx: %w", err)
	}

	return nil
}

// RevokeAll revokes every live refresh token for the account.
func (r *RefreshTokenRepository) RevokeAll(ctx context.Context, accountID int64) (err error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = $1
		WHERE account_id = $2 AND revoked_at IS NULL`

	ctx, end := database.TraceQuery(ctx, "RevokeAllRefreshTokens", query)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, query, time.Now().UTC(), accountID); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return nil
}
