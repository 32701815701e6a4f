package hasher

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sync/semaphore"

	"account-store/internal/domain"
)

const (
	AlgorithmArgon2id = "argon2id"
	AlgorithmBcrypt   = "bcrypt"
)

// Config selects and tunes the password hashing algorithm.
type Config struct {
	Algorithm  string
	Argon2     Argon2Params
	BcryptCost int
	// MaxConcurrent caps hashes in flight, abandoned ones included.
	// Zero means GOMAXPROCS.
	MaxConcurrent int
}

// Algorithm hashes and verifies passwords for a single encoding scheme.
type Algorithm interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, encoded, plaintext string) (bool, error)
	// Owns reports whether encoded was produced by this algorithm.
	Owns(encoded string) bool
}

// Hasher hashes with its primary algorithm and verifies against any
// algorithm it knows, so older hashes keep working after a switch.
type Hasher struct {
	primary Algorithm
	all     []Algorithm
}

func New(cfg Config) (*Hasher, error) {
	slots := newSlots(cfg.MaxConcurrent)
	argon := NewArgon2(cfg.Argon2)
	argon.slots = slots
	bc := NewBcrypt(cfg.BcryptCost)
	bc.slots = slots

	switch strings.ToLower(strings.TrimSpace(cfg.Algorithm)) {
	case "", AlgorithmArgon2id:
		return &Hasher{primary: argon, all: []Algorithm{argon, bc}}, nil
	case AlgorithmBcrypt:
		return &Hasher{primary: bc, all: []Algorithm{bc, argon}}, nil
	default:
		return nil, fmt.Errorf("unknown hasher algorithm %q", cfg.Algorithm)
	}
}

func (h *Hasher) Hash(ctx context.Context, plaintext string) (string, error) {
	return h.primary.Hash(ctx, plaintext)
}

func (h *Hasher) Verify(ctx context.Context, encoded, plaintext string) (bool, error) {
	for _, alg := range h.all {
		if alg.Owns(encoded) {
			return alg.Verify(ctx, encoded, plaintext)
		}
	}
	return false, &domain.HashingError{Err: fmt.Errorf("unrecognized hash format")}
}

func newSlots(n int) *semaphore.Weighted {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	return semaphore.NewWeighted(int64(n))
}

// run executes fn on its own goroutine so a slow hash can be abandoned
// through ctx. The goroutine still runs to completion and keeps its slot
// until then, so abandoned work counts against the limit.
func run[T any](ctx context.Context, slots *semaphore.Weighted, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, &domain.HashingError{Err: err}
	}
	if err := slots.Acquire(ctx, 1); err != nil {
		return zero, &domain.HashingError{Err: err}
	}

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer slots.Release(1)
		defer func() {
			if p := recover(); p != nil {
				done <- result{err: fmt.Errorf("hasher panic: %v", p)}
			}
		}()
		v, err := fn()
		done <- result{v: v, err: err}
	}()

	select {
	case <-ctx.Done():
		return zero, &domain.HashingError{Err: ctx.Err()}
	case r := <-done:
		if r.err != nil {
			return zero, &domain.HashingError{Err: r.err}
		}
		return r.v, nil
	}
}
