package domain

import (
	"context"
	"errors"
	"fmt"
)

// UniqueViolationCode is the SQLSTATE reported for unique constraint
// violations. Stores that are not Postgres translate their own signal to it.
const UniqueViolationCode = "23505"

var (
	// ErrUniqueViolation matches any ConstraintError carrying UniqueViolationCode.
	ErrUniqueViolation = errors.New("unique constraint violation")
	// ErrAmbiguousResult is returned when a single-row lookup matched several rows.
	ErrAmbiguousResult = errors.New("ambiguous result: more than one row matched")
)

// ConstraintError reports a write rejected by a database constraint.
type ConstraintError struct {
	Code       string
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("constraint %s violated (code %s): %v", e.Constraint, e.Code, e.Err)
	}
	return fmt.Sprintf("constraint violated (code %s): %v", e.Code, e.Err)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

func (e *ConstraintError) Is(target error) bool {
	return target == ErrUniqueViolation && e.Code == UniqueViolationCode
}

// HashingError wraps a failure of the credential hasher.
type HashingError struct {
	Err error
}

func (e *HashingError) Error() string { return fmt.Sprintf("hash password: %v", e.Err) }

func (e *HashingError) Unwrap() error { return e.Err }

// ConnectionError wraps a pool or transport failure. Op names the statement
// that was being executed.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string { return fmt.Sprintf("%s: connection: %v", e.Op, e.Err) }

func (e *ConnectionError) Unwrap() error { return e.Err }

// IsCanceled reports whether err stems from the caller abandoning the call.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Kind classifies err for logs and metrics labels.
func Kind(err error) string {
	var (
		hashErr *HashingError
		connErr *ConnectionError
	)
	switch {
	case err == nil:
		return "ok"
	case IsCanceled(err):
		return "canceled"
	case errors.As(err, &hashErr):
		return "hashing"
	case errors.Is(err, ErrUniqueViolation):
		return "unique_violation"
	case errors.Is(err, ErrAmbiguousResult):
		return "ambiguous_result"
	case errors.As(err, &connErr):
		return "connection"
	default:
		return "internal"
	}
}
