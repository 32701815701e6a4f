package hasher

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/sync/semaphore"
)

const argon2Prefix = "$argon2id$"

var errMalformedArgon2 = errors.New("malformed argon2id hash")

// Upper bounds accepted when decoding a stored hash. Memory is in KiB.
const (
	maxArgon2Memory     = 1024 * 1024
	maxArgon2Iterations = 64
	maxArgon2KeyLength  = 1024
)

// Argon2Params tunes argon2id. Memory is in KiB.
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params follows the RFC 9106 second recommended option.
var DefaultArgon2Params = Argon2Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

type Argon2 struct {
	params Argon2Params
	slots  *semaphore.Weighted
}

// NewArgon2 fills zero fields of p from DefaultArgon2Params.
func NewArgon2(p Argon2Params) *Argon2 {
	if p.Memory == 0 {
		p.Memory = DefaultArgon2Params.Memory
	}
	if p.Iterations == 0 {
		p.Iterations = DefaultArgon2Params.Iterations
	}
	if p.Parallelism == 0 {
		p.Parallelism = DefaultArgon2Params.Parallelism
	}
	if p.SaltLength == 0 {
		p.SaltLength = DefaultArgon2Params.SaltLength
	}
	if p.KeyLength == 0 {
		p.KeyLength = DefaultArgon2Params.KeyLength
	}
	return &Argon2{params: p, slots: newSlots(0)}
}

func (a *Argon2) Owns(encoded string) bool {
	return strings.HasPrefix(encoded, argon2Prefix)
}

// Hash returns a PHC formatted string:
// $argon2id$v=19$m=65536,t=3,p=2$<salt>$<key>
func (a *Argon2) Hash(ctx context.Context, plaintext string) (string, error) {
	return run(ctx, a.slots, func() (string, error) {
		salt := make([]byte, a.params.SaltLength)
		if _, err := rand.Read(salt); err != nil {
			return "", fmt.Errorf("read salt: %w", err)
		}

		key := argon2.IDKey([]byte(plaintext), salt, a.params.Iterations, a.params.Memory, a.params.Parallelism, a.params.KeyLength)

		return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
			argon2Prefix,
			argon2.Version,
			a.params.Memory,
			a.params.Iterations,
			a.params.Parallelism,
			base64.RawStdEncoding.EncodeToString(salt),
			base64.RawStdEncoding.EncodeToString(key),
		), nil
	})
}

func (a *Argon2) Verify(ctx context.Context, encoded, plaintext string) (bool, error) {
	return run(ctx, a.slots, func() (bool, error) {
		p, salt, key, err := decodeArgon2(encoded)
		if err != nil {
			return false, err
		}

		other := argon2.IDKey([]byte(plaintext), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)
		return subtle.ConstantTimeCompare(key, other) == 1, nil
	})
}

func decodeArgon2(encoded string) (Argon2Params, []byte, []byte, error) {
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return Argon2Params{}, nil, nil, errMalformedArgon2
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return Argon2Params{}, nil, nil, errMalformedArgon2
	}
	if version != argon2.Version {
		return Argon2Params{}, nil, nil, fmt.Errorf("unsupported argon2 version %d", version)
	}

	var p Argon2Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Iterations, &p.Parallelism); err != nil {
		return Argon2Params{}, nil, nil, errMalformedArgon2
	}
	if p.Iterations < 1 || p.Iterations > maxArgon2Iterations ||
		p.Parallelism < 1 ||
		p.Memory < 8*uint32(p.Parallelism) || p.Memory > maxArgon2Memory {
		return Argon2Params{}, nil, nil, errMalformedArgon2
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return Argon2Params{}, nil, nil, errMalformedArgon2
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 || len(key) > maxArgon2KeyLength {
		return Argon2Params{}, nil, nil, errMalformedArgon2
	}
	p.SaltLength = uint32(len(salt))
	p.KeyLength = uint32(len(key))

	return p, salt, key, nil
}
