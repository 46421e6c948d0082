package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/utafrali/auth-service/pkg/errors"
	"github.com/utafrali/auth-service/pkg/validator"
)

// Hasher hashes and compares passwords with bcrypt.
type Hasher struct {
	cost int
}

// NewHasher returns a bcrypt hasher. Out-of-range costs fall back to
// bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns the bcrypt hash of plaintext with a fresh salt. Passwords
// longer than bcrypt's input limit are rejected rather than truncated.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if len(plaintext) > validator.MaxPasswordBytes {
		return "", apperrors.Validation(fmt.Sprintf("password must be at most %d bytes", validator.MaxPasswordBytes))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Compare reports whether plaintext matches hash. A malformed hash never matches.
func (h *Hasher) Compare(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
