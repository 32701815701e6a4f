package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type PasswordHasher struct{ mock.Mock }

func (m *PasswordHasher) Hash(ctx context.Context, plaintext string) (string, error) {
	args := m.Called(ctx, plaintext)
	return args.String(0), args.Error(1)
}

func (m *PasswordHasher) Verify(ctx context.Context, encoded, plaintext string) (bool, error) {
	args := m.Called(ctx, encoded, plaintext)
	return args.Bool(0), args.Error(1)
}
