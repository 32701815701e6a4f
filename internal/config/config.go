package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Log struct {
		Level  string
		Format string
	}
	Database struct {
		Driver          string
		URL             string
		Path            string
		MaxConns        int32
		MinConns        int32
		MaxConnIdleTime time.Duration
		ConnectTimeout  time.Duration
	}
	Hasher struct {
		Algorithm string
		Argon2    struct {
			Memory      uint32
			Iterations  uint32
			Parallelism uint8
			SaltLength  uint32
			KeyLength   uint32
		}
		BcryptCost    int
		MaxConcurrent int
	}
	Auth struct {
		JWTSecret       string
		TokenTTLMinutes int
	}
}

// Load reads configuration from environment variables and optional config files.
// Variables are prefixed with ACCOUNTS_, e.g. ACCOUNTS_DATABASE_URL.
func Load() (Config, error) {
	// a missing .env is fine; real environment variables win
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ACCOUNTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.url", "")
	v.SetDefault("database.path", "data/accounts.db")
	v.SetDefault("database.maxconns", 20)
	v.SetDefault("database.minconns", 2)
	v.SetDefault("database.maxconnidletime", 30*time.Second)
	v.SetDefault("database.connecttimeout", 5*time.Second)
	v.SetDefault("hasher.algorithm", "argon2id")
	v.SetDefault("hasher.argon2.memory", 64*1024)
	v.SetDefault("hasher.argon2.iterations", 3)
	v.SetDefault("hasher.argon2.parallelism", 2)
	v.SetDefault("hasher.argon2.saltlength", 16)
	v.SetDefault("hasher.argon2.keylength", 32)
	v.SetDefault("hasher.bcryptcost", 12)
	v.SetDefault("hasher.maxconcurrent", 0)
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.tokenttlminutes", 60)
}

// Validate checks the settings the server cannot start without.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres:
		if strings.TrimSpace(c.Database.URL) == "" {
			return fmt.Errorf("database url is required for driver %q", DriverPostgres)
		}
	case DriverSQLite:
		if strings.TrimSpace(c.Database.Path) == "" {
			return fmt.Errorf("database path is required for driver %q", DriverSQLite)
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("auth jwt secret is required")
	}
	if c.Auth.TokenTTLMinutes <= 0 {
		return fmt.Errorf("auth token ttl must be positive")
	}
	return nil
}
