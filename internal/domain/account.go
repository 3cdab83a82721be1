package domain

import (
	"time"
)

// Account represents a registered account in the system.
type Account struct {
	ID           int64      `json:"id"`
	FullName     string     `json:"full_name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Phone        string     `json:"phone,omitempty"`
	ExternalID   string     `json:"external_id,omitempty"`
	Role         string     `json:"role"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// HasPassword reports whether the account carries a local credential.
// Accounts created through an external identity provider have none until
// the owner sets one.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != ""
}
