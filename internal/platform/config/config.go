// Package config loads process configuration from the environment. A local
// .env file is honoured when present.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	pstrings "landreg/pkg/platform/strings"
)

const devSigningKey = "dev-secret-key-change-in-production"

// Config is the full process configuration.
type Config struct {
	Server   Server
	Auth     Auth
	Database Database
	Redis    RedisConfig
	Kafka    Kafka
	Security Security
	Registry Registry
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"LANDREG_ADDR" envDefault:":8080"`
	Environment     string        `env:"LANDREG_ENV" envDefault:"development"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

// IsProduction reports whether the process runs in production.
func (s Server) IsProduction() bool {
	return s.Environment == "production"
}

// Auth holds registrar token settings.
type Auth struct {
	JWTSigningKey string `env:"JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	Issuer        string `env:"JWT_ISSUER" envDefault:"landreg"`
	Audience      string `env:"JWT_AUDIENCE" envDefault:"landreg-registrars"`
}

// Database holds Postgres settings. An empty URL selects in-memory stores.
type Database struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	Migrate         bool          `env:"DB_MIGRATE" envDefault:"true"`
}

// RedisConfig holds Redis settings. An empty URL selects in-process locks.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
	LockTTL      time.Duration `env:"REDIS_LOCK_TTL" envDefault:"30s"`
}

// Kafka holds audit pipeline settings. No brokers disables the relay.
type Kafka struct {
	Brokers       []string      `env:"KAFKA_BROKERS" envSeparator:","`
	ClientID      string        `env:"KAFKA_CLIENT_ID" envDefault:"landreg"`
	GroupID       string        `env:"KAFKA_GROUP_ID" envDefault:"landreg-audit"`
	TopicPrefix   string        `env:"KAFKA_TOPIC_PREFIX" envDefault:"landreg.audit"`
	RelayInterval time.Duration `env:"KAFKA_RELAY_INTERVAL" envDefault:"1s"`
}

// Security holds seal and signature settings.
type Security struct {
	ESignEnabled     bool   `env:"ESIGN_ENABLED" envDefault:"false"`
	SystemCredential string `env:"SYSTEM_CREDENTIAL" envDefault:"dev-system-credential"`
	HashSalt         string `env:"SECURITY_HASH_SALT" envDefault:"landreg"`
}

// Registry holds rule settings for recording and fees.
type Registry struct {
	PrelationPolicy string `env:"PRELATION_POLICY" envDefault:"enforce"`
	BaseSalaryValue string `env:"BASE_SALARY_VALUE" envDefault:"108.57"`
	// RolesFile optionally points to a YAML role table for the static
	// authorizer. Empty uses the embedded table.
	RolesFile string `env:"ROLES_FILE"`
}

// Load reads .env (if any) and parses the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv parses the environment without touching .env files.
func FromEnv() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	cfg.Kafka.Brokers = pstrings.DedupeAndTrim(cfg.Kafka.Brokers)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects development secrets in production and unknown policies.
func (c Config) Validate() error {
	switch c.Registry.PrelationPolicy {
	case "enforce", "warn":
	default:
		return fmt.Errorf("invalid PRELATION_POLICY %q", c.Registry.PrelationPolicy)
	}
	if c.Server.IsProduction() {
		if c.Auth.JWTSigningKey == devSigningKey {
			return errors.New("JWT_SIGNING_KEY must be set in production")
		}
		if c.Security.SystemCredential == "dev-system-credential" {
			return errors.New("SYSTEM_CREDENTIAL must be set in production")
		}
	}
	return nil
}
