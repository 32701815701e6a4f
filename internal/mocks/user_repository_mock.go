package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"account-store/internal/domain"
	"account-store/internal/repository"
)

type UserRepository struct{ mock.Mock }

func (m *UserRepository) Init(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *UserRepository) CreateUser(ctx context.Context, u domain.NewUser, h repository.CredentialHasher) (*domain.User, error) {
	args := m.Called(ctx, u, h)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *UserRepository) FindByUsername(ctx context.Context, identifier string) (*domain.User, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}
