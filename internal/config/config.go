// Package config handles loading application configuration from environment
// variables. All config is centralized here so no other package reads env
// vars directly. Sensible defaults are provided for development.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Config holds all application configuration. Populated from environment
// variables at startup. Passed to other packages via dependency injection.
type Config struct {
	// Env is the runtime environment: "development" or "production".
	Env string

	// Port is the HTTP listen port (default: 8080).
	Port int

	// BaseURL is the public-facing URL used for CORS origin checks.
	BaseURL string

	// Database holds MySQL connection settings for the identity store.
	Database DatabaseConfig

	// Redis holds connection settings for the counter/lock store.
	Redis RedisConfig

	// JWT holds token signing settings.
	JWT JWTConfig

	// MFA holds one-time-code settings.
	MFA MFAConfig

	// Security holds signal-sink thresholds.
	Security SecurityConfig

	// SMTP holds outbound mail settings for code delivery and alerts.
	SMTP SMTPConfig
}

// DatabaseConfig holds MySQL connection parameters. Individual fields are
// read from separate env vars so container orchestrators can manage each
// independently. If DATABASE_URL is set, it takes precedence.
type DatabaseConfig struct {
	// Host is the MySQL address in host:port format (default: "localhost:3306").
	// If no port is specified, 3306 is appended automatically.
	Host string

	// User is the MySQL username (default: "gatekeeper").
	User string

	// Password is the MySQL password (default: "gatekeeper").
	Password string

	// Name is the database name (default: "gatekeeper").
	Name string

	// dsnOverride is set when DATABASE_URL is provided, bypassing individual fields.
	dsnOverride string

	// MaxOpenConns is the maximum number of open connections in the pool.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections in the pool.
	MaxIdleConns int

	// ConnMaxLifetime is how long a connection can be reused.
	ConnMaxLifetime time.Duration
}

// DSN returns the go-sql-driver/mysql connection string. If DATABASE_URL was
// set, it is returned as-is. Otherwise the DSN is built from the individual
// fields using the driver's Config.FormatDSN() to safely handle special
// characters in passwords.
func (d DatabaseConfig) DSN() string {
	if d.dsnOverride != "" {
		return d.dsnOverride
	}
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = ensurePort(d.Host, "3306")
	cfg.DBName = d.Name
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// ensurePort appends the default port if the host string doesn't include one.
func ensurePort(host, defaultPort string) string {
	_, _, err := net.SplitHostPort(host)
	if err != nil {
		return net.JoinHostPort(host, defaultPort)
	}
	return host
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379").
	URL string
}

// JWTConfig holds bearer-token signing settings. All three token types are
// signed with the same symmetric secret and differ only in lifetime.
type JWTConfig struct {
	// Secret is the HS256 signing key (must be 32+ bytes in production).
	Secret string

	// AccessTTL is the access token lifetime (default: 15m).
	AccessTTL time.Duration

	// RefreshTTL is the refresh token lifetime (default: 168h).
	RefreshTTL time.Duration

	// MFATTL is the ephemeral MFA token lifetime (default: 5m).
	MFATTL time.Duration
}

// MFAConfig holds one-time-code settings.
type MFAConfig struct {
	// CodeTTL is how long an issued code stays valid (default: 5m).
	CodeTTL time.Duration

	// BlockTTL is how long a blocked account stays locked out (default: 30m).
	BlockTTL time.Duration

	// MaxAttempts is the verification count that triggers a block.
	// A count equal to MaxAttempts blocks, so MaxAttempts-1 wrong
	// guesses are tolerated (default: 3).
	MaxAttempts int
}

// SecurityConfig holds signal-sink thresholds.
type SecurityConfig struct {
	// MaxLoginFailures is the login-failure count that blocks the account
	// (default: 5).
	MaxLoginFailures int

	// SuspiciousThreshold is the failure count that emits a suspicious
	// activity event (default: 3).
	SuspiciousThreshold int
}

// SMTPConfig holds outbound mail settings. When Host is empty, mail is
// logged instead of sent so local development works without a mail server.
type SMTPConfig struct {
	// Host is the SMTP server hostname. Empty disables real delivery.
	Host string

	// Port is the SMTP server port (default: 587).
	Port int

	// Username authenticates against the SMTP server. Empty skips AUTH.
	Username string

	// Password authenticates against the SMTP server.
	Password string

	// From is the envelope sender address.
	From string

	// StartTLS upgrades the connection before authenticating (default: true).
	StartTLS bool
}

// Load reads configuration from environment variables with sensible defaults.
// Returns an error if required variables are missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Env:     getEnv("ENV", "development"),
		Port:    getEnvInt("PORT", 8080),
		BaseURL: getEnv("BASE_URL", "http://localhost:8080"),

		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost:3306"),
			User:            getEnv("DB_USER", "gatekeeper"),
			Password:        getEnv("DB_PASSWORD", "gatekeeper"),
			Name:            getEnv("DB_NAME", "gatekeeper"),
			dsnOverride:     getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},

		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},

		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", ""),
			AccessTTL:  getEnvDuration("JWT_ACCESS_TTL", 15*time.Minute),
			RefreshTTL: getEnvDuration("JWT_REFRESH_TTL", 168*time.Hour),
			MFATTL:     getEnvDuration("JWT_MFA_TTL", 5*time.Minute),
		},

		MFA: MFAConfig{
			CodeTTL:     getEnvDuration("MFA_CODE_TTL", 5*time.Minute),
			BlockTTL:    getEnvDuration("MFA_BLOCK_TTL", 30*time.Minute),
			MaxAttempts: getEnvInt("MFA_MAX_ATTEMPTS", 3),
		},

		Security: SecurityConfig{
			MaxLoginFailures:    getEnvInt("SECURITY_MAX_LOGIN_FAILURES", 5),
			SuspiciousThreshold: getEnvInt("SECURITY_SUSPICIOUS_THRESHOLD", 3),
		},

		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "noreply@gatekeeper.local"),
			StartTLS: getEnvBool("SMTP_STARTTLS", true),
		},
	}

	// Validate required fields in production. Case-insensitive check catches
	// common variants like "Production", "prod", etc.
	envLower := strings.ToLower(cfg.Env)
	if envLower == "production" || envLower == "prod" {
		if cfg.JWT.Secret == "" {
			return nil, fmt.Errorf("JWT_SECRET is required in production")
		}
		if len(cfg.JWT.Secret) < 32 {
			return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
		}
	}

	// Provide a dev-only default secret so local dev works without .env.
	if cfg.JWT.Secret == "" {
		cfg.JWT.Secret = "dev-secret-key-do-not-use-in-production!!"
	}

	if cfg.MFA.MaxAttempts < 1 {
		return nil, fmt.Errorf("MFA_MAX_ATTEMPTS must be at least 1")
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev"
}

// --- Helper functions for reading environment variables ---

// getEnv reads a string env var or returns the default.
func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvInt reads an integer env var or returns the default.
func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvBool reads a boolean env var or returns the default.
func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvDuration reads a duration env var (e.g., "30m") or returns the default.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
