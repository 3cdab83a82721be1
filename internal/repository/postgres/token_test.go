package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nortover/accountsvc/internal/domain"
	apperrors "github.com/nortover/accountsvc/pkg/errors"
)

func newTokenTestFixture(t *testing.T) (*RefreshTokenRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	repo := NewRefreshTokenRepository(mock)
	return repo, mock
}

func sampleRefreshToken() *domain.RefreshToken {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.RefreshToken{
		ID:        101,
		AccountID: 42,
		TokenHash: "aabbccddeeff00112233445566778899aabbccddeeff00112233445566778899",
		IssuedAt:  now,
		ExpiresAt: now.Add(30 * 24 * time.Hour),
	}
}

// ---------------------------------------------------------------------------
// Insert
// ---------------------------------------------------------------------------

func TestRefreshTokenRepository_Insert(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	tok := sampleRefreshToken()
	tok.ID = 0

	mock.ExpectQuery("INSERT INTO refresh_tokens").
		WithArgs(tok.AccountID, tok.TokenHash, tok.IssuedAt, tok.ExpiresAt).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(101)))

	err := repo.Insert(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, int64(101), tok.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// GetByHash
// ---------------------------------------------------------------------------

func TestRefreshTokenRepository_GetByHash_Success(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	tok := sampleRefreshToken()

	mock.ExpectQuery("SELECT .+ FROM refresh_tokens WHERE token_hash =").
		WithArgs(tok.TokenHash).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "account_id", "token_hash", "issued_at", "expires_at", "revoked_at", "replaced_by",
		}).AddRow(
			tok.ID, tok.AccountID, tok.TokenHash, tok.IssuedAt, tok.ExpiresAt, nil, nil,
		))

	got, err := repo.GetByHash(context.Background(), tok.TokenHash)
	require.NoError(t, err)
	assert.Equal(t, tok.ID, got.ID)
	assert.Equal(t, tok.AccountID, got.AccountID)
	assert.Nil(t, got.RevokedAt)
	assert.Nil(t, got.ReplacedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshTokenRepository_GetByHash_NotFound(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM refresh_tokens WHERE token_hash =").
		WithArgs("unknown-hash").
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.GetByHash(context.Background(), "unknown-hash")
	assert.Nil(t, got)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound), "expected ErrNotFound, got: %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Redeem
// ---------------------------------------------------------------------------

func TestRefreshTokenRepository_Redeem_Success(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	successor := sampleRefreshToken()
	successor.ID = 0
	successor.TokenHash = "ffeeddccbbaa00112233445566778899ffeeddccbbaa00112233445566778899"

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO refresh_tokens").
		WithArgs(successor.AccountID, successor.TokenHash, successor.IssuedAt, successor.ExpiresAt).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(102)))
	mock.ExpectExec("UPDATE refresh_tokens").
		WithArgs(pgxmock.AnyArg(), int64(102), int64(101)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := repo.Redeem(context.Background(), 101, successor)
	require.NoError(t, err)
	assert.Equal(t, int64(102), successor.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshTokenRepository_Redeem_AlreadyRedeemed(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	successor := sampleRefreshToken()
	successor.ID = 0

	// A concurrent redemption revoked token 101 first: the conditional
	// UPDATE matches zero rows and the whole transaction rolls back.
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO refresh_tokens").
		WithArgs(successor.AccountID, successor.TokenHash, successor.IssuedAt, successor.ExpiresAt).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(103)))
	mock.ExpectExec("UPDATE refresh_tokens").
		WithArgs(pgxmock.AnyArg(), int64(103), int64(101)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := repo.Redeem(context.Background(), 101, successor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConflict), "expected ErrConflict, got: %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshTokenRepository_Redeem_InsertFails(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	successor := sampleRefreshToken()
	successor.ID = 0

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO refresh_tokens").
		WithArgs(successor.AccountID, successor.TokenHash, successor.IssuedAt, successor.ExpiresAt).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.Redeem(context.Background(), 101, successor)
	require.Error(t, err)
	assert.False(t, errors.Is(err, apperrors.ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// RevokeAll
// ---------------------------------------------------------------------------

func TestRefreshTokenRepository_RevokeAll(t *testing.T) {
	repo, mock := newTokenTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE refresh_tokens").
		WithArgs(pgxmock.AnyArg(), int64(42)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	err := repo.RevokeAll(context.Background(), 42)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
