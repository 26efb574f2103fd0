package config // package config loads application configuration from environment variables

import (
	"errors"  // errors joins every problem found while loading
	"fmt"     // fmt formats the individual problems
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types

	"github.com/joho/godotenv" // godotenv loads a local .env file into the environment
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations and costs.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing
	LogLevel       string // zap level override (debug, info, warn, error)
	AMQPURL        string // RabbitMQ connection string; empty disables background optimization

	Optimizer OptimizerConfig // search budget and worker settings
}

// IsDev reports whether the application runs in the development environment.
func (c Config) IsDev() bool { return c.Env == "dev" }

// LoadDotEnv loads path (default ".env") into the process environment.
// Variables that are already set win, and a missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads configuration values from environment variables and returns a
// Config.  Every missing or malformed required variable is reported in the
// returned error; the caller decides whether that is fatal.
func Load() (Config, error) {
	r := &reader{}
	cfg := Config{
		Env:            r.must("APP_ENV"),                   // environment (dev/test/prod)
		Port:           r.must("APP_PORT"),                  // port to bind the HTTP server
		DBUser:         r.must("DB_USER"),                   // database user
		DBPass:         os.Getenv("DB_PASS"),                // database password (empty allowed)
		DBHost:         r.must("DB_HOST"),                   // database host
		DBPort:         r.must("DB_PORT"),                   // database port
		DBName:         r.must("DB_NAME"),                   // database name
		JWTSecret:      r.must("JWT_SECRET"),                // secret used for signing JWTs
		AccessTTLMin:   r.mustInt("ACCESS_TOKEN_TTL_MIN"),   // TTL for access tokens in minutes
		RefreshTTLDays: r.mustInt("REFRESH_TOKEN_TTL_DAYS"), // TTL for refresh tokens in days
		BcryptCost:     r.mustInt("BCRYPT_COST"),            // bcrypt cost factor
		LogLevel:       envStr("LOG_LEVEL", ""),             // empty keeps the environment default
		AMQPURL:        amqpURL(),                           // RABBITMQ_URL, then AMQP_URL
		Optimizer:      LoadOptimizerConfig(),               // OPTIMIZER_* variables
	}
	if err := errors.Join(r.errs...); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// reader collects errors for required variables instead of exiting on the
// first one.
type reader struct {
	errs []error
}

// must retrieves the value of a required environment variable.  An unset or
// empty variable is recorded as an error.
func (r *reader) must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		r.errs = append(r.errs, fmt.Errorf("missing required env var: %s", key))
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func (r *reader) mustInt(key string) int {
	s := r.must(key)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid int for %s: %q", key, s))
	}
	return n
}

func amqpURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}
