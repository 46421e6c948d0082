package repository

import (
	"context"
	"fmt"

	"github.com/utafrali/auth-service/internal/domain"
	apperrors "github.com/utafrali/auth-service/pkg/errors"
)

// UserRepository defines the credential store.
type UserRepository interface {
	// FindByEmail returns the user with the given email. The lookup is
	// case-insensitive; apperrors.ErrNotFound when none.
	FindByEmail(ctx context.Context, email string) (*domain.User, error)

	// FindByID returns the user with the given id; apperrors.ErrNotFound when none.
	FindByID(ctx context.Context, id string) (*domain.User, error)

	// Create normalizes and hashes the input, assigns id and timestamps and
	// inserts the user. A taken email yields apperrors.ErrDuplicateEmail.
	Create(ctx context.Context, name, email, password string) (*domain.User, error)

	// Save persists mutations of an existing user, re-hashing the password
	// only when it was modified. A role outside the enum is rejected.
	Save(ctx context.Context, user *domain.User) error
}

// PasswordHasher hashes plaintext passwords for storage.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
}

// PreparePassword hashes a pending plaintext password on u and clears it.
// It is a no-op when the password was not modified.
func PreparePassword(u *domain.User, hasher PasswordHasher) error {
	if !u.PasswordModified() {
		return nil
	}
	hash, err := hasher.Hash(u.PendingPassword())
	if err != nil {
		return fmt.Errorf("prepare password: %w", err)
	}
	u.ApplyPasswordHash(hash)
	return nil
}

// CheckRole rejects a role outside domain.ValidRoles.
func CheckRole(u *domain.User) error {
	if !domain.IsValidRole(u.Role) {
		return apperrors.Validation(fmt.Sprintf("Invalid role %q", u.Role))
	}
	return nil
}
