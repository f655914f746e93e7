// Package config loads and validates application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Store backends accepted in STORE.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// DefaultMaxBodyBytes caps request bodies when MAX_BODY_BYTES is unset.
const DefaultMaxBodyBytes int64 = 1 << 20

// Config holds all configuration values for the API server.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:5173"] (Vite dev server).
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	Store StoreConfig

	// JWTSecret signs and verifies bearer tokens. Required.
	JWTSecret string

	// MaxBodyBytes is the largest accepted request body. Defaults to 1 MiB.
	MaxBodyBytes int64

	S3 S3Config
}

// StoreConfig selects and locates the document store. It is shared by the
// API server and ridectl.
type StoreConfig struct {
	// Backend is "postgres" (default) or "memory".
	Backend string

	// DatabaseURL is the Postgres connection string. Required for postgres.
	DatabaseURL string

	// RedisAddr enables the cross-process change feed. Empty means the
	// in-process feed, which only suits a single API instance.
	RedisAddr string

	// RedisChannel is the pub/sub channel for changes. Defaults to "ride-changes".
	RedisChannel string
}

// S3Config locates the media bucket. Uploads are disabled when Bucket is empty.
// Endpoint, AccessKey and SecretKey are for S3-compatible stores such as MinIO.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// Load reads configuration from environment variables and returns a Config.
// Returns an error listing any required variables that are not set.
func Load() (Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom is Load with a custom variable lookup. Missing keys must map to "".
func LoadFrom(getenv func(string) string) (Config, error) {
	cfg := Config{
		Port:        getOr(getenv, "PORT", "8080"),
		LogLevel:    getOr(getenv, "LOG_LEVEL", "info"),
		CORSOrigins: splitCSV(getOr(getenv, "CORS_ORIGINS", "http://localhost:5173")),
		S3: S3Config{
			Bucket:    getenv("S3_BUCKET"),
			Region:    getOr(getenv, "S3_REGION", "us-east-1"),
			Endpoint:  getenv("S3_ENDPOINT"),
			AccessKey: getenv("S3_ACCESS_KEY"),
			SecretKey: getenv("S3_SECRET_KEY"),
		},
	}

	var missing []string

	st, err := LoadStoreFrom(getenv)
	if me := (*MissingError)(nil); errors.As(err, &me) {
		missing = append(missing, me.Keys...)
	} else if err != nil {
		return Config{}, err
	}
	cfg.Store = st

	cfg.JWTSecret = getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return Config{}, &MissingError{Keys: missing}
	}

	cfg.MaxBodyBytes = DefaultMaxBodyBytes
	if raw := getenv("MAX_BODY_BYTES"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("MAX_BODY_BYTES must be a positive integer, got %q", raw)
		}
		cfg.MaxBodyBytes = n
	}

	return cfg, nil
}

// LoadStoreFrom reads only the store settings.
func LoadStoreFrom(getenv func(string) string) (StoreConfig, error) {
	st := StoreConfig{
		Backend:      strings.ToLower(getOr(getenv, "STORE", StorePostgres)),
		DatabaseURL:  getenv("DATABASE_URL"),
		RedisAddr:    getenv("REDIS_ADDR"),
		RedisChannel: getOr(getenv, "REDIS_CHANNEL", "ride-changes"),
	}
	switch st.Backend {
	case StorePostgres:
		if st.DatabaseURL == "" {
			return st, &MissingError{Keys: []string{"DATABASE_URL"}}
		}
	case StoreMemory:
	default:
		return StoreConfig{}, fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, st.Backend)
	}
	return st, nil
}

// MissingError lists required variables that are not set.
type MissingError struct {
	Keys []string
}

func (e *MissingError) Error() string {
	return "required environment variables not set: " + strings.Join(e.Keys, ", ")
}

// getOr returns the value of the variable named by key, or fallback if the
// variable is not set or is empty.
func getOr(getenv func(string) string, key, fallback string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
