package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"account-store/internal/config"
	"account-store/internal/hasher"
	apphttp "account-store/internal/http"
	"account-store/internal/repository"
	"account-store/internal/repository/postgres"
	"account-store/internal/repository/sqlite"
	"account-store/internal/service"
	"account-store/internal/token"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	configureLogger(logger, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users, closeStore, err := openUserRepository(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("open user store: %v", err)
	}

	if err := users.Init(ctx); err != nil {
		logger.Fatalf("init user repository: %v", err)
	}

	passwords, err := hasher.New(hasher.Config{
		Algorithm: cfg.Hasher.Algorithm,
		Argon2: hasher.Argon2Params{
			Memory:      cfg.Hasher.Argon2.Memory,
			Iterations:  cfg.Hasher.Argon2.Iterations,
			Parallelism: cfg.Hasher.Argon2.Parallelism,
			SaltLength:  cfg.Hasher.Argon2.SaltLength,
			KeyLength:   cfg.Hasher.Argon2.KeyLength,
		},
		BcryptCost:    cfg.Hasher.BcryptCost,
		MaxConcurrent: cfg.Hasher.MaxConcurrent,
	})
	if err != nil {
		logger.Fatalf("setup hasher: %v", err)
	}

	tokens, err := token.NewService(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute)
	if err != nil {
		logger.Fatalf("setup tokens: %v", err)
	}

	userService := service.NewUserService(users, passwords)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	apphttp.NewHandler(userService, tokens, logger).RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := multierr.Append(srv.Shutdown(shutdownCtx), closeStore()); err != nil {
		logger.Warnf("shutdown: %v", err)
	}

	logger.Info("bye")
}

func configureLogger(logger *logrus.Logger, cfg config.Config) {
	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}

// openUserRepository returns the configured store wrapped with request
// logging, plus a func releasing the underlying pool.
func openUserRepository(ctx context.Context, cfg config.Config, logger *logrus.Logger) (repository.UserRepository, func() error, error) {
	var (
		repo    repository.UserRepository
		closeFn func() error
	)

	switch cfg.Database.Driver {
	case config.DriverPostgres:
		pool, err := postgres.Open(ctx, postgres.Options{
			URL:             cfg.Database.URL,
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
			ConnectTimeout:  cfg.Database.ConnectTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Infof("using postgres (max %d connections)", pool.Config().MaxConns)
		repo = postgres.NewUserRepository(pool)
		closeFn = func() error {
			pool.Close()
			return nil
		}
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return nil, nil, err
		}
		logger.Infof("using sqlite at %s", cfg.Database.Path)
		repo = sqlite.NewUserRepository(db)
		closeFn = db.Close
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	return repository.WithLogging(repo, logger.WithField("component", "user_repository")), closeFn, nil
}
