// Package config loads server settings from the environment, with a
// .env file as an optional local override.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Addr is the HTTP listen address.
	Addr string
	// TickInterval is the game clock cadence. Sub-second keeps timeout
	// detection tight; broadcasts are throttled separately.
	TickInterval time.Duration
	// DisconnectGrace is how long a dropped player may reconnect before
	// forfeiting an active game. Zero forfeits immediately.
	DisconnectGrace time.Duration
}

// Load reads the environment. A missing .env file is not an error;
// malformed values are.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:            envOr("ADDR", ":8080"),
		TickInterval:    100 * time.Millisecond,
		DisconnectGrace: 0,
	}

	var err error
	if cfg.TickInterval, err = durationOr("TICK_INTERVAL", cfg.TickInterval); err != nil {
		return Config{}, err
	}
	if cfg.DisconnectGrace, err = durationOr("DISCONNECT_GRACE", cfg.DisconnectGrace); err != nil {
		return Config{}, err
	}
	if cfg.TickInterval <= 0 {
		return Config{}, fmt.Errorf("TICK_INTERVAL must be positive, got %s", cfg.TickInterval)
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
