package repository

import (
	"context"

	"account-store/internal/domain"
)

// CredentialHasher turns a plaintext password into a stored verifier.
// Failures are reported as *domain.HashingError.
type CredentialHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
}

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	Init(ctx context.Context) error
	// CreateUser hashes the password with hasher and inserts the user in a
	// single statement. Duplicate usernames or emails fail with an error
	// matching domain.ErrUniqueViolation.
	CreateUser(ctx context.Context, user domain.NewUser, hasher CredentialHasher) (*domain.User, error)
	// FindByUsername matches identifier against both username and email.
	// Returns (nil, nil) when no user is found.
	FindByUsername(ctx context.Context, identifier string) (*domain.User, error)
}
