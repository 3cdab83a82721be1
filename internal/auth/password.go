package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const defaultBcryptCost = 12

// dummyHash is a valid bcrypt encoding compared against when the account
// does not exist, so missing-account and wrong-password login failures take
// comparable time. Generated from a throwaway input, matches nothing issued.
const dummyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// PasswordHasher hashes and verifies account passwords with bcrypt. The
// encoding bundles algorithm parameters and salt, so a stored hash is
// self-describing and replaced wholesale on password change.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher creates a hasher with the default cost.
func NewPasswordHasher() *PasswordHasher {
	return &PasswordHasher{cost: defaultBcryptCost}
}

// NewPasswordHasherWithCost creates a hasher with an explicit cost. Tests
// use bcrypt.MinCost to keep suites fast.
func NewPasswordHasherWithCost(cost int) *PasswordHasher {
	return &PasswordHasher{cost: cost}
}

// Hash derives a bcrypt hash from the plaintext password.
func (h *PasswordHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether the plaintext password matches the stored encoding.
// Malformed encodings verify false rather than erroring; the comparison
// itself is constant-time.
func (h *PasswordHasher) Verify(password, encoded string) bool {
	if encoded == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password)) == nil
}

// VerifyDummy burns a bcrypt comparison against a fixed hash. Called on the
// missing-account login path to keep its timing aligned with a real
// wrong-password comparison. Always returns false.
func (h *PasswordHasher) VerifyDummy(password string) bool {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
	return false
}
