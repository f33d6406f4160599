package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds service configuration.
type Config struct {
	DatabaseURL    string
	AdminAddr      string
	AdminTokenHash string
	MigrationsDir  string
	FlushTimeout   time.Duration
	LogLevel       string
}

// Load reads configuration from environment.
func Load() (*Config, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		user := getenv("POSTGRES_USER", "mafia")
		pass := getenv("POSTGRES_PASSWORD", "mafia_pass")
		db := getenv("POSTGRES_DB", "mafia")
		host := getenv("POSTGRES_HOST", "localhost")
		port := getenv("POSTGRES_PORT", "5432")
		sslmode := getenv("DATABASE_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, sslmode)
	}
	addr := getenv("ADMIN_ADDR", "0.0.0.0:8080")
	tokenHash := os.Getenv("ADMIN_TOKEN_HASH")
	migrationsDir := getenv("MIGRATIONS_DIR", "migrations")
	flushTimeout := parseDuration(getenv("FLUSH_TIMEOUT", "10s"), 10*time.Second)
	logLevel := getenv("LOG_LEVEL", "info")

	return &Config{
		DatabaseURL:    dsn,
		AdminAddr:      addr,
		AdminTokenHash: tokenHash,
		MigrationsDir:  migrationsDir,
		FlushTimeout:   flushTimeout,
		LogLevel:       logLevel,
	}, nil
}

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func parseDuration(val string, def time.Duration) time.Duration {
	if val == "" {
		return def
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return def
	}
	return d
}
