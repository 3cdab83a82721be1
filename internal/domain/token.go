package domain

import (
	"time"
)

// RefreshToken represents a stored refresh token for an account session.
// Only the SHA-256 hash of the opaque token is persisted; the raw value
// exists solely in the response that issued it.
type RefreshToken struct {
	ID         int64      `json:"id"`
	AccountID  int64      `json:"account_id"`
	TokenHash  string     `json:"-"`
	IssuedAt   time.Time  `json:"issued_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	ReplacedBy *int64     `json:"replaced_by,omitempty"`
}

// Active reports whether the token is usable at the given instant: not
// revoked and not expired.
func (t *RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// TokenPair holds an access and refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// AuthResult is the outcome of a successful login, external login, or
// session refresh.
type AuthResult struct {
	TokenPair
	ExpiresIn int      `json:"expires_in"`
	Account   *Account `json:"account"`
}
