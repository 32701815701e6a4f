package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"account-store/internal/domain"
	"account-store/internal/repository"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUsersTable); err != nil {
		return classify("create users table", err)
	}
	return nil
}

func (r *UserRepository) CreateUser(ctx context.Context, newUser domain.NewUser, hasher repository.CredentialHasher) (*domain.User, error) {
	hash, err := hasher.Hash(ctx, newUser.Password)
	if err != nil {
		return nil, err
	}

	row := r.db.QueryRowContext(ctx, `
INSERT INTO users (username, email, password_hash)
VALUES (?, ?, ?)
RETURNING id, username, email, password_hash, created_at`,
		newUser.Username,
		newUser.Email,
		hash,
	)

	user, err := scanUser(row)
	if err != nil {
		return nil, classify("insert user", err)
	}
	return user, nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, identifier string) (*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, username, email, password_hash, created_at
FROM users
WHERE email = ?1 OR username = ?1
LIMIT 2`,
		identifier,
	)
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

func scanUser(row interface {
	Scan(dest ...any) error
}) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		timestamp{&user.CreatedAt},
	); err != nil {
		return nil, err
	}
	return &user, nil
}

// timestamp scans DATETIME columns whether the driver hands back a parsed
// time or the raw CURRENT_TIMESTAMP text.
type timestamp struct{ t *time.Time }

var timestampLayouts = []string{
	time.DateTime,
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
}

func (ts timestamp) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*ts.t = v.UTC()
		return nil
	case string:
		return ts.parse(v)
	case []byte:
		return ts.parse(string(v))
	default:
		return fmt.Errorf("scan timestamp: unsupported type %T", src)
	}
}

func (ts timestamp) parse(s string) error {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			*ts.t = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("scan timestamp: unrecognized format %q", s)
}

// classify translates sqlite result codes into the Postgres-style taxonomy
// used across stores.
func classify(op string, err error) error {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return &domain.ConnectionError{Op: op, Err: err}
	}

	code := sqliteErr.Code()
	switch {
	case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE, code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY,
		code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(err.Error(), uniqueFailedPrefix):
		return &domain.ConstraintError{
			Code:       domain.UniqueViolationCode,
			Constraint: constraintName(err.Error()),
			Err:        err,
		}
	case code&0xff == sqlite3.SQLITE_BUSY, code&0xff == sqlite3.SQLITE_LOCKED,
		code&0xff == sqlite3.SQLITE_IOERR, code&0xff == sqlite3.SQLITE_CANTOPEN:
		return &domain.ConnectionError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

const uniqueFailedPrefix = "UNIQUE constraint failed: "

// constraintName extracts "users.email" from
// "... UNIQUE constraint failed: users.email".
func constraintName(msg string) string {
	i := strings.Index(msg, uniqueFailedPrefix)
	if i < 0 {
		return ""
	}
	name := msg[i+len(uniqueFailedPrefix):]
	if j := strings.IndexAny(name, " ,)"); j >= 0 {
		name = name[:j]
	}
	return name
}
