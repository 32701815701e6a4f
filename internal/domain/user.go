package domain

import (
	"fmt"
	"time"
)

// User represents a persisted account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewUser carries the input of a single create call. Password is plaintext
// and must only ever be handed to a credential hasher.
type NewUser struct {
	Username string
	Email    string
	Password string
}

// String keeps the plaintext password out of formatted log output.
func (u NewUser) String() string {
	return fmt.Sprintf("{Username:%s Email:%s Password:[redacted]}", u.Username, u.Email)
}

func (u NewUser) GoString() string {
	return fmt.Sprintf("domain.NewUser{Username:%q, Email:%q, Password:\"[redacted]\"}", u.Username, u.Email)
}
