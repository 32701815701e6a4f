package hasher

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

type Bcrypt struct {
	cost  int
	slots *semaphore.Weighted
}

// NewBcrypt falls back to bcrypt.DefaultCost when cost is out of range.
func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost, slots: newSlots(0)}
}

func (b *Bcrypt) Owns(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") || strings.HasPrefix(encoded, "$2b$") || strings.HasPrefix(encoded, "$2y$")
}

func (b *Bcrypt) Hash(ctx context.Context, plaintext string) (string, error) {
	return run(ctx, b.slots, func() (string, error) {
		hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), b.cost)
		if err != nil {
			return "", err
		}
		return string(hash), nil
	})
}

func (b *Bcrypt) Verify(ctx context.Context, encoded, plaintext string) (bool, error) {
	return run(ctx, b.slots, func() (bool, error) {
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(plaintext))
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, err
		}
	})
}
