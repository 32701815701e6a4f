package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"account-store/internal/domain"
	"account-store/internal/repository"
)

var (
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserAlreadyExists is returned when the username or email is taken.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrUserNotFound is returned by Lookup when no user matches.
	ErrUserNotFound = errors.New("user not found")
)

const (
	minPasswordLength = 8
	// bcrypt ignores input past 72 bytes and x/crypto rejects it outright.
	maxPasswordBytes = 72
)

// ValidationError describes rejected registration input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Message }

// PasswordHasher is the full credential capability used by the service.
type PasswordHasher interface {
	repository.CredentialHasher
	Verify(ctx context.Context, encoded, plaintext string) (bool, error)
}

// UserService describes user lifecycle operations.
type UserService interface {
	Register(ctx context.Context, username, email, password string) (*domain.User, error)
	Authenticate(ctx context.Context, identifier, password string) (*domain.User, error)
	Lookup(ctx context.Context, identifier string) (*domain.User, error)
}

type userService struct {
	users  repository.UserRepository
	hasher PasswordHasher
}

func NewUserService(users repository.UserRepository, hasher PasswordHasher) UserService {
	return &userService{
		users:  users,
		hasher: hasher,
	}
}

func (s *userService) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if username == "" {
		return nil, &ValidationError{Field: "username", Message: "is required"}
	}
	// Lookups match usernames and emails in one query, so a username must
	// never be able to equal someone's email.
	if strings.Contains(username, "@") {
		return nil, &ValidationError{Field: "username", Message: "must not contain '@'"}
	}
	if email == "" {
		return nil, &ValidationError{Field: "email", Message: "is required"}
	}
	if !strings.Contains(email, "@") {
		return nil, &ValidationError{Field: "email", Message: "must be an email address"}
	}
	if len(password) < minPasswordLength {
		return nil, &ValidationError{Field: "password", Message: fmt.Sprintf("must be at least %d characters", minPasswordLength)}
	}
	if len(password) > maxPasswordBytes {
		return nil, &ValidationError{Field: "password", Message: fmt.Sprintf("must be at most %d bytes", maxPasswordBytes)}
	}

	user, err := s.users.CreateUser(ctx, domain.NewUser{
		Username: username,
		Email:    email,
		Password: password,
	}, s.hasher)
	if err != nil {
		if errors.Is(err, domain.ErrUniqueViolation) {
			return nil, fmt.Errorf("%w: %v", ErrUserAlreadyExists, err)
		}
		return nil, err
	}

	return sanitizeUser(user), nil
}

func (s *userService) Authenticate(ctx context.Context, identifier, password string) (*domain.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.FindByUsername(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(ctx, user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	return sanitizeUser(user), nil
}

func (s *userService) Lookup(ctx context.Context, identifier string) (*domain.User, error) {
	user, err := s.users.FindByUsername(ctx, strings.TrimSpace(identifier))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return sanitizeUser(user), nil
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}
}
