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

const accountColumns = `id, full_name, email, password_hash, phone, COALESCE(external_id, ''), role, last_login_at, created_at, updated_at`

// AccountRepository implements repository.AccountRepository using PostgreSQL.
type AccountRepository struct {
	db DB
}

// NewAccountRepository creates a new PostgreSQL-backed account repository.
func NewAccountRepository(db DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts a new account and fills in its generated id and timestamps.
func (r *AccountRepository) Create(ctx context.Context, a *domain.Account) (err error) {
	query := `
		INSERT INTO accounts (full_name, email, password_hash, phone, external_id, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)
		RETURNING id`

	ctx, end := database.TraceQuery(ctx, "CreateAccount", query)
	defer func() { end(err) }()

	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	err = r.db.QueryRow(ctx, query,
		a.FullName,
		a.Email,
		a.PasswordHash,
		a.Phone,
		a.ExternalID,
		a.Role,
		a.CreatedAt,
		a.UpdatedAt,
	).Scan(&a.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("account", "email", a.Email)
		}
		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

// GetByID retrieves an account by its id.
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.scanAccount(ctx, "GetAccountByID", query, id)
}

// GetByEmail retrieves an account by email, case-insensitively.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE lower(email) = lower($1)`
	return r.scanAccount(ctx, "GetAccountByEmail", query, email)
}

// GetByExternalID retrieves an account by its external provider id.
func (r *AccountRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE external_id = $1`
	return r.scanAccount(ctx, "GetAccountByExternalID", query, externalID)
}

// EmailExists reports whether any account holds the email, case-insensitively.
func (r *AccountRepository) EmailExists(ctx context.Context, email string) (exists bool, err error) {
	query := `SELECT EXISTS(SELECT 1 FROM accounts WHERE lower(email) = lower($1))`

	ctx, end := database.TraceQuery(ctx, "AccountEmailExists", query)
	defer func() { end(err) }()

	if err = r.db.QueryRow(ctx, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("check email exists: %w", err)
	}
	return exists, nil
}

// List returns a page of accounts ordered by id plus the total count.
func (r *AccountRepository) List(ctx context.Context, limit, offset int) (accounts []domain.Account, total int, err error) {
	countQuery := `SELECT COUNT(*) FROM accounts`
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY id LIMIT $1 OFFSET $2`

	ctx, end := database.TraceQuery(ctx, "ListAccounts", query)
	defer func() { end(err) }()

	if err = r.db.QueryRow(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a domain.Account
		if err = rows.Scan(
			&a.ID,
			&a.FullName,
			&a.Email,
			&a.PasswordHash,
			&a.Phone,
			&a.ExternalID,
			&a.Role,
			&a.LastLoginAt,
			&a.CreatedAt,
			&a.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan account row: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate accounts: %w", err)
	}

	return accounts, total, nil
}

// Update modifies an existing account.
func (r *AccountRepository) Update(ctx context.Context, a *domain.Account) (err error) {
	query := `
		UPDATE accounts
		SET full_name = $1, email = $2, password_hash = $3, phone = $4,
		    external_id = NULLIF($5, ''), role = $6, updated_at = $7
		WHERE id = $8`

	ctx, end := database.TraceQuery(ctx, "UpdateAccount", query)
	defer func() { end(err) }()

	a.UpdatedAt = time.Now().UTC()

	ct, err := r.db.Exec(ctx, query,
		a.FullName,
		a.Email,
		a.PasswordHash,
		a.Phone,
		a.ExternalID,
		a.Role,
		a.UpdatedAt,
		a.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("account", "email", a.Email)
		}
		return fmt.Errorf("update account: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// UpdateLastLogin stamps the account's last successful login.
func (r *AccountRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) (err error) {
	query := `UPDATE accounts SET last_login_at = $1, updated_at = $1 WHERE id = $2`

	ctx, end := database.TraceQuery(ctx, "UpdateAccountLastLogin", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Delete removes an account by its id.
func (r *AccountRepository) Delete(ctx context.Context, id int64) (err error) {
	query := `DELETE FROM accounts WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "DeleteAccount", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// scanAccount executes a query expected to return a single account row.
func (r *AccountRepository) scanAccount(ctx context.Context, operation, query string, args ...any) (account *domain.Account, err error) {
	ctx, end := database.TraceQuery(ctx, operation, query)
	defer func() { end(err) }()

	var a domain.Account
	err = r.db.QueryRow(ctx, query, args...).Scan(
		&a.ID,
		&a.FullName,
		&a.Email,
		&a.PasswordHash,
		&a.Phone,
		&a.ExternalID,
		&a.Role,
		&a.LastLoginAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}

	return &a, nil
}
