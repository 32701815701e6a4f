// Package repotest holds the behavioural suite every repository.UserRepository
// implementation must pass.
package repotest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"account-store/internal/domain"
	"account-store/internal/hasher"
	"account-store/internal/repository"
)

// Factory returns an initialized repository backed by an empty users table.
type Factory func(t *testing.T) repository.UserRepository

// FastHasher is argon2id tuned down for tests.
func FastHasher() *hasher.Argon2 {
	return hasher.NewArgon2(hasher.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
}

type failingHasher struct{ err error }

func (h failingHasher) Hash(context.Context, string) (string, error) {
	return "", &domain.HashingError{Err: h.err}
}

// NewUser returns input with a unique username and email.
func NewUser(t *testing.T) domain.NewUser {
	t.Helper()
	id := uuid.NewString()
	return domain.NewUser{
		Username: "user-" + id,
		Email:    id + "@example.com",
		Password: "s3cr3t-" + id[:8],
	}
}

// Run executes the suite. Each sub-test gets a fresh repository from newRepo.
func Run(t *testing.T, newRepo Factory) {
	t.Run("CreateUser", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		input := NewUser(t)

		user, err := repo.CreateUser(ctx, input, FastHasher())
		require.NoError(t, err)
		require.NotNil(t, user)

		assert.NotZero(t, user.ID)
		assert.False(t, user.CreatedAt.IsZero())
		assert.Equal(t, input.Username, user.Username)
		assert.Equal(t, input.Email, user.Email)
		assert.NotEmpty(t, user.PasswordHash)
		assert.NotEqual(t, input.Password, user.PasswordHash)
	})

	t.Run("CreateUserDuplicateUsername", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		first := NewUser(t)

		_, err := repo.CreateUser(ctx, first, FastHasher())
		require.NoError(t, err)

		second := NewUser(t)
		second.Username = first.Username
		_, err = repo.CreateUser(ctx, second, FastHasher())
		require.ErrorIs(t, err, domain.ErrUniqueViolation)

		var constraintErr *domain.ConstraintError
		require.ErrorAs(t, err, &constraintErr)
		assert.Equal(t, domain.UniqueViolationCode, constraintErr.Code)

		missing, err := repo.FindByUsername(ctx, second.Email)
		require.NoError(t, err)
		assert.Nil(t, missing, "rejected insert must not leave a row")
	})

	t.Run("CreateUserDuplicateEmail", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		first := NewUser(t)

		_, err := repo.CreateUser(ctx, first, FastHasher())
		require.NoError(t, err)

		second := NewUser(t)
		second.Email = first.Email
		_, err = repo.CreateUser(ctx, second, FastHasher())
		require.ErrorIs(t, err, domain.ErrUniqueViolation)

		missing, err := repo.FindByUsername(ctx, second.Username)
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("CreateUserHashingError", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		input := NewUser(t)
		cause := errors.New("hasher unavailable")

		user, err := repo.CreateUser(ctx, input, failingHasher{err: cause})
		assert.Nil(t, user)

		var hashErr *domain.HashingError
		require.ErrorAs(t, err, &hashErr)
		assert.ErrorIs(t, err, cause)

		found, err := repo.FindByUsername(ctx, input.Username)
		require.NoError(t, err)
		assert.Nil(t, found, "no row may be written when hashing fails")
	})

	t.Run("FindByUsername", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.CreateUser(ctx, NewUser(t), FastHasher())
		require.NoError(t, err)

		for i := 0; i < 2; i++ {
			found, err := repo.FindByUsername(ctx, created.Username)
			require.NoError(t, err)
			require.NotNil(t, found)
			assertSameUser(t, created, found)
		}
	})

	t.Run("FindByEmail", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.CreateUser(ctx, NewUser(t), FastHasher())
		require.NoError(t, err)

		found, err := repo.FindByUsername(ctx, created.Email)
		require.NoError(t, err)
		require.NotNil(t, found)
		assertSameUser(t, created, found)
	})

	t.Run("FindByUsernameNotFound", func(t *testing.T) {
		repo := newRepo(t)

		found, err := repo.FindByUsername(context.Background(), "nobody-"+uuid.NewString())
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("FindByUsernameIsCaseSensitive", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		input := NewUser(t)
		input.Username = "Mixed-" + uuid.NewString()

		_, err := repo.CreateUser(ctx, input, FastHasher())
		require.NoError(t, err)

		found, err := repo.FindByUsername(ctx, "mixed-"+input.Username[len("Mixed-"):])
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("FindByUsernameAmbiguous", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		// One user's email equals another user's username. Both columns are
		// unique on their own, so the store accepts it.
		first := NewUser(t)
		_, err := repo.CreateUser(ctx, first, FastHasher())
		require.NoError(t, err)

		second := NewUser(t)
		second.Username = first.Email
		_, err = repo.CreateUser(ctx, second, FastHasher())
		require.NoError(t, err)

		found, err := repo.FindByUsername(ctx, first.Email)
		assert.Nil(t, found)
		assert.ErrorIs(t, err, domain.ErrAmbiguousResult)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		repo := newRepo(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := repo.FindByUsername(ctx, "alice")
		require.Error(t, err)
		assert.True(t, domain.IsCanceled(err), "got %v", err)
	})

	t.Run("ConcurrentCreateSameUsername", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		username := "racer-" + uuid.NewString()

		const workers = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
			violated  int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				input := NewUser(t)
				input.Username = username
				_, err := repo.CreateUser(ctx, input, FastHasher())

				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					succeeded++
				case errors.Is(err, domain.ErrUniqueViolation):
					violated++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, succeeded)
		assert.Equal(t, workers-1, violated)
	})

	t.Run("Scenario", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		alice, err := repo.CreateUser(ctx, domain.NewUser{
			Username: "alice",
			Email:    "alice@example.com",
			Password: "s3cr3t",
		}, FastHasher())
		require.NoError(t, err)
		assert.Equal(t, "alice", alice.Username)
		assert.Equal(t, "alice@example.com", alice.Email)
		assert.NotEmpty(t, alice.PasswordHash)
		assert.NotEqual(t, "s3cr3t", alice.PasswordHash)

		byName, err := repo.FindByUsername(ctx, "alice")
		require.NoError(t, err)
		require.NotNil(t, byName)
		assertSameUser(t, alice, byName)

		byEmail, err := repo.FindByUsername(ctx, "alice@example.com")
		require.NoError(t, err)
		require.NotNil(t, byEmail)
		assertSameUser(t, alice, byEmail)

		_, err = repo.CreateUser(ctx, domain.NewUser{
			Username: "alice",
			Email:    "alice2@example.com",
			Password: "other",
		}, FastHasher())
		assert.ErrorIs(t, err, domain.ErrUniqueViolation)
	})
}

func assertSameUser(t *testing.T, want, got *domain.User) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Username, got.Username)
	assert.Equal(t, want.Email, got.Email)
	assert.Equal(t, want.PasswordHash, got.PasswordHash)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "created_at %s != %s", want.CreatedAt, got.CreatedAt)
}
