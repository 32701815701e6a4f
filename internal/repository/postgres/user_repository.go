package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"account-store/internal/domain"
	"account-store/internal/repository"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// UserRepository stores users in Postgres. It holds a shared handle and
// never closes it.
type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, createUsersTable); err != nil {
		return classify("create users table", err)
	}
	return nil
}

func (r *UserRepository) CreateUser(ctx context.Context, newUser domain.NewUser, hasher repository.CredentialHasher) (*domain.User, error) {
	hash, err := hasher.Hash(ctx, newUser.Password)
	if err != nil {
		return nil, err
	}

	const q = `
INSERT INTO users (username, email, password_hash)
VALUES ($1, $2, $3)
RETURNING id, username, email, password_hash, created_at`

	user, err := scanUser(r.db.QueryRow(ctx, q, newUser.Username, newUser.Email, hash))
	if err != nil {
		return nil, classify("insert user", err)
	}
	return user, nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, identifier string) (*domain.User, error) {
	// LIMIT 2 is enough to tell one match from several.
	const q = `
SELECT id, username, email, password_hash, created_at
FROM users
WHERE email = $1 OR username = $1
LIMIT 2`

	rows, err := r.db.Query(ctx, q, identifier)
	if err != nil {
		return nil, classify("find user", err)
	}
	defer rows.Close()

	var found *domain.User
	for rows.Next() {
		if found != nil {
			return nil, fmt.Errorf("find user %q: %w", identifier, domain.ErrAmbiguousResult)
		}
		user, err := scanUser(rows)
		if err != nil {
			return nil, classify("scan user", err)
		}
		found = user
	}
	if err := rows.Err(); err != nil {
		return nil, classify("find user", err)
	}

	return found, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

// classify maps driver errors onto the domain taxonomy. Errors reported by
// the server keep their SQLSTATE; everything else is a connection failure.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == domain.UniqueViolationCode {
			return &domain.ConstraintError{Code: pgErr.Code, Constraint: pgErr.ConstraintName, Err: err}
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return &domain.ConnectionError{Op: op, Err: err}
}
