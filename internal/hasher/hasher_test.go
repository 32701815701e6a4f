package hasher

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"account-store/internal/domain"
)

var fastArgon2 = Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestArgon2HashAndVerify(t *testing.T) {
	ctx := context.Background()
	a := NewArgon2(fastArgon2)

	encoded, err := a.Hash(ctx, "s3cr3t")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=1024,t=1,p=1$"))
	assert.NotContains(t, encoded, "s3cr3t")

	ok, err := a.Verify(ctx, encoded, "s3cr3t")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.Verify(ctx, encoded, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestArgon2SaltsEachHash(t *testing.T) {
	ctx := context.Background()
	a := NewArgon2(fastArgon2)

	first, err := a.Hash(ctx, "same")
	require.NoError(t, err)
	second, err := a.Hash(ctx, "same")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestArgon2RejectsMalformedHash(t *testing.T) {
	a := NewArgon2(fastArgon2)

	for _, encoded := range []string{
		"$argon2id$",
		"$argon2id$v=19$m=1024,t=1,p=1$salt",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$garbage$c2FsdA$a2V5",
		"$argon2id$v=19$m=1024,t=1,p=1$!!$a2V5",
		"$argon2id$v=19$m=1024,t=1,p=0$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=1024,t=0,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=1024,t=100000,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=4294967295,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=1024,t=1,p=300$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5",
	} {
		_, err := a.Verify(context.Background(), encoded, "x")

		var hashErr *domain.HashingError
		assert.ErrorAs(t, err, &hashErr, encoded)
	}
}

func TestHasherVerifyCorruptedParamsDoesNotPanic(t *testing.T) {
	h, err := New(Config{Argon2: fastArgon2})
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		ok, err := h.Verify(context.Background(), "$argon2id$v=19$m=1024,t=1,p=0$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5", "pw")
		assert.False(t, ok)
		assert.ErrorIs(t, err, errMalformedArgon2)
	})
}

func TestNewArgon2FillsDefaults(t *testing.T) {
	a := NewArgon2(Argon2Params{Memory: 2048})

	assert.Equal(t, uint32(2048), a.params.Memory)
	assert.Equal(t, DefaultArgon2Params.Iterations, a.params.Iterations)
	assert.Equal(t, DefaultArgon2Params.KeyLength, a.params.KeyLength)
}

func TestBcryptHashAndVerify(t *testing.T) {
	ctx := context.Background()
	b := NewBcrypt(bcrypt.MinCost)

	encoded, err := b.Hash(ctx, "s3cr3t")
	require.NoError(t, err)
	assert.True(t, b.Owns(encoded))

	ok, err := b.Verify(ctx, encoded, "s3cr3t")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Verify(ctx, encoded, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBcryptTooLongPasswordIsHashingError(t *testing.T) {
	b := NewBcrypt(bcrypt.MinCost)

	_, err := b.Hash(context.Background(), strings.Repeat("x", 100))

	var hashErr *domain.HashingError
	require.ErrorAs(t, err, &hashErr)
	assert.ErrorIs(t, err, bcrypt.ErrPasswordTooLong)
}

func TestHashCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewArgon2(fastArgon2).Hash(ctx, "s3cr3t")

	var hashErr *domain.HashingError
	require.ErrorAs(t, err, &hashErr)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, "canceled", domain.Kind(err))
}

func TestHasherVerifiesAcrossAlgorithms(t *testing.T) {
	ctx := context.Background()

	legacy, err := New(Config{Algorithm: AlgorithmBcrypt, BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)
	oldHash, err := legacy.Hash(ctx, "s3cr3t")
	require.NoError(t, err)

	current, err := New(Config{Algorithm: AlgorithmArgon2id, Argon2: fastArgon2, BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)
	newHash, err := current.Hash(ctx, "s3cr3t")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(newHash, argon2Prefix))

	for _, encoded := range []string{oldHash, newHash} {
		ok, err := current.Verify(ctx, encoded, "s3cr3t")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	_, err = current.Verify(ctx, "plain-text", "s3cr3t")
	var hashErr *domain.HashingError
	assert.ErrorAs(t, err, &hashErr)
}

func TestNewRejectsUnknownAlgorithm(t *testing.T) {
	_, err := New(Config{Algorithm: "md5"})
	assert.Error(t, err)
}

func TestRunCapsWorkInFlight(t *testing.T) {
	slots := semaphore.NewWeighted(1)
	started := make(chan struct{})
	release := make(chan struct{})

	abandoned, cancel := context.WithCancel(context.Background())
	go func() {
		_, _ = run(abandoned, slots, func() (int, error) {
			close(started)
			<-release
			return 0, nil
		})
	}()
	<-started
	cancel()

	ctx, cancelWait := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelWait()

	var ran atomic.Bool
	_, err := run(ctx, slots, func() (int, error) {
		ran.Store(true)
		return 1, nil
	})
	var hashErr *domain.HashingError
	require.ErrorAs(t, err, &hashErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "canceled", domain.Kind(err))
	assert.False(t, ran.Load())

	close(release)
	v, err := run(context.Background(), slots, func() (int, error) { return 2, nil })
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestRunRecoversPanic(t *testing.T) {
	slots := semaphore.NewWeighted(1)

	_, err := run(context.Background(), slots, func() (int, error) {
		panic("boom")
	})
	var hashErr *domain.HashingError
	require.ErrorAs(t, err, &hashErr)
	assert.Contains(t, err.Error(), "boom")

	v, err := run(context.Background(), slots, func() (int, error) { return 3, nil })
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}
