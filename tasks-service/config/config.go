// Package config loads the service configuration once at startup. The
// resulting Config is passed explicitly; nothing reads the environment
// after Load returns.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const minSecretLength = 32

const (
	driverPostgres = "postgres"
	driverSQLite   = "sqlite3"
)

type Config struct {
	Env            string
	Port           string
	DBDriver       string
	DSN            string
	JWTSecret      []byte
	JWTLeeway      time.Duration
	AllowedOrigins []string
	RedisURL       string
	WSRateLimit    int
}

// Load reads envFile into the process environment when it exists and
// parses the result.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, _ := strings.Cut(kv, "=")
		env[k] = v
	}
	return Parse(env)
}

// Parse builds a Config from env and reports every missing or invalid
// variable at once.
func Parse(env map[string]string) (*Config, error) {
	var errs []error
	get := func(key, def string) string {
		if v := strings.TrimSpace(env[key]); v != "" {
			return v
		}
		return def
	}
	require := func(key string) string {
		v := get(key, "")
		if v == "" {
			errs = append(errs, fmt.Errorf("environment variable %s must be set", key))
		}
		return v
	}

	cfg := &Config{
		Env:      get("APP_ENV", "development"),
		Port:     get("SERVER_PORT_TASKS", "8080"),
		DBDriver: get("DB_DRIVER", driverPostgres),
		RedisURL: get("REDIS_URL", ""),
	}

	switch cfg.DBDriver {
	case driverPostgres:
		user, password := require("POSTGRES_USER"), require("POSTGRES_PASSWORD")
		dbname, host, port := require("POSTGRES_DB"), require("POSTGRES_HOST"), require("POSTGRES_PORT")
		cfg.DSN = fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
			host, user, password, dbname, port, get("POSTGRES_SSLMODE", "disable"))
	case driverSQLite:
		cfg.DSN = "file:" + get("SQLITE_PATH", "kanban.db") + "?_busy_timeout=5000&_txlock=immediate"
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be %q or %q, got %q", driverPostgres, driverSQLite, cfg.DBDriver))
	}

	secret := require("JWT_SECRET")
	if secret != "" && len(secret) < minSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", minSecretLength))
	}
	cfg.JWTSecret = []byte(secret)

	if raw := get("JWT_LEEWAY", ""); raw != "" {
		leeway, err := time.ParseDuration(raw)
		if err != nil || leeway < 0 {
			errs = append(errs, fmt.Errorf("JWT_LEEWAY: invalid duration %q", raw))
		}
		cfg.JWTLeeway = leeway
	}

	for _, origin := range strings.Split(get("ALLOWED_ORIGINS", ""), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	limit, err := strconv.Atoi(get("WS_RATE_LIMIT", "5"))
	if err != nil || limit <= 0 {
		errs = append(errs, fmt.Errorf("WS_RATE_LIMIT must be a positive integer"))
	}
	cfg.WSRateLimit = limit

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Production reports whether the service runs with production logging.
func (c *Config) Production() bool {
	return c.Env == "production"
}
