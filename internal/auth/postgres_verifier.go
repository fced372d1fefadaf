package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/BradenHooton/loginguard/internal/models"
	pkgauth "github.com/BradenHooton/loginguard/pkg/auth"
)

// UserLookup finds local accounts by email
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// PostgresVerifier checks credentials against bcrypt hashes in the users table
type PostgresVerifier struct {
	users UserLookup
}

// NewPostgresVerifier creates a verifier over a user lookup
func NewPostgresVerifier(users UserLookup) *PostgresVerifier {
	return &PostgresVerifier{users: users}
}

// Verify reports ErrEmailNotConfirmed only after the password matched, so the
// response never distinguishes unknown accounts from wrong passwords.
func (v *PostgresVerifier) Verify(ctx context.Context, email, password string) (*Identity, error) {
	user, err := v.users.GetByEmail(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		pkgauth.CompareDummy(password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerifierUnavailable, err)
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	if !user.EmailConfirmed() {
		return nil, ErrEmailNotConfirmed
	}

	return &Identity{UserID: user.ID, Email: user.Email}, nil
}
