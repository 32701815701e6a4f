package repository

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"account-store/internal/domain"
)

type loggingUserRepository struct {
	next   UserRepository
	logger logrus.FieldLogger
}

// WithLogging decorates next with one structured log entry per call.
// Plaintext passwords and hashes never reach the logger.
func WithLogging(next UserRepository, logger logrus.FieldLogger) UserRepository {
	return &loggingUserRepository{next: next, logger: logger}
}

func (r *loggingUserRepository) Init(ctx context.Context) error {
	start := time.Now()
	err := r.next.Init(ctx)
	r.log("init", start, err, nil)
	return err
}

func (r *loggingUserRepository) CreateUser(ctx context.Context, user domain.NewUser, hasher CredentialHasher) (*domain.User, error) {
	start := time.Now()
	created, err := r.next.CreateUser(ctx, user, hasher)

	fields := logrus.Fields{"username": user.Username}
	if created != nil {
		fields["user_id"] = created.ID
	}
	r.log("create_user", start, err, fields)
	return created, err
}

func (r *loggingUserRepository) FindByUsername(ctx context.Context, identifier string) (*domain.User, error) {
	start := time.Now()
	user, err := r.next.FindByUsername(ctx, identifier)

	fields := logrus.Fields{"identifier": identifier, "found": user != nil}
	if user != nil {
		fields["user_id"] = user.ID
	}
	r.log("find_by_username", start, err, fields)
	return user, err
}

func (r *loggingUserRepository) log(op string, start time.Time, err error, fields logrus.Fields) {
	entry := r.logger.WithFields(fields).WithFields(logrus.Fields{
		"op":       op,
		"duration": time.Since(start),
		"outcome":  domain.Kind(err),
	})
	if err != nil {
		entry.WithError(err).Warn("user repository call failed")
		return
	}
	entry.Debug("user repository call")
}
