// Package config loads and validates CLI configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds all configuration values for the bookingwatch CLI.
// Values are populated by Load from environment variables.
type Config struct {
	// APIURL is the base URL of the booking backend, including the booking
	// path prefix (e.g. "https://api.neptrip.example/api/v1/booking"). Required.
	APIURL string

	// Token is the bearer credential for the current actor. Required.
	Token string

	// PollInterval is the cadence of latest-booking fetches. Defaults to 5s.
	PollInterval time.Duration

	// HTTPTimeout bounds each backend call. Defaults to 10s.
	HTTPTimeout time.Duration

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string
}

// Load reads configuration from environment variables and returns a Config.
// Returns an error listing any required variables that are not set.
func Load() (Config, error) {
	cfg := Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.PollInterval, err = getDuration("POLL_INTERVAL", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.HTTPTimeout, err = getDuration("HTTP_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}

	var missing []string

	cfg.APIURL = os.Getenv("NEPTRIP_API_URL")
	if cfg.APIURL == "" {
		missing = append(missing, "NEPTRIP_API_URL")
	}
	cfg.Token = os.Getenv("NEPTRIP_TOKEN")
	if cfg.Token == "" {
		missing = append(missing, "NEPTRIP_TOKEN")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	return cfg, nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getDuration parses the environment variable named by key as a Go duration
// string ("5s", "1m30s"), or returns fallback when unset.
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %v", key, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: duration must be positive, got %q", key, v)
	}
	return d, nil
}
