// Package config loads server settings from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/oblivio-company/famjam/internal/clock"
	"github.com/oblivio-company/famjam/internal/schedule"
	"github.com/oblivio-company/famjam/internal/sweeper"
)

type Config struct {
	Port      string
	DBPath    string
	LogLevel  string
	LogFormat string

	// Timezone is the family-local timezone all due dates and day
	// boundaries are computed in.
	Timezone string

	// PenaltyFactor is the fraction of a missed task's points deducted.
	PenaltyFactor float64
	// AllowNegativeBalance lets penalties push a balance below zero
	// instead of clamping at zero.
	AllowNegativeBalance bool
	// HorizonDays is how far ahead recurring ad-hoc tasks are generated.
	HorizonDays int

	SessionTTL time.Duration
}

// Load reads configuration from FAMJAM_* environment variables. A .env file
// in the working directory is loaded first if present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:          envOr("FAMJAM_PORT", "8080"),
		DBPath:        envOr("FAMJAM_DB_PATH", "famjam.db"),
		LogLevel:      envOr("FAMJAM_LOG_LEVEL", "info"),
		LogFormat:     envOr("FAMJAM_LOG_FORMAT", "text"),
		Timezone:      envOr("FAMJAM_TIMEZONE", clock.DefaultTimezone),
		PenaltyFactor: sweeper.DefaultPenaltyFactor,
		HorizonDays:   schedule.DefaultHorizonDays,
		SessionTTL:    30 * 24 * time.Hour,
	}

	if v := os.Getenv("FAMJAM_PENALTY_FACTOR"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			return Config{}, fmt.Errorf("FAMJAM_PENALTY_FACTOR must be a number in [0, 1], got %q", v)
		}
		cfg.PenaltyFactor = f
	}

	if v := os.Getenv("FAMJAM_ALLOW_NEGATIVE_BALANCE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("FAMJAM_ALLOW_NEGATIVE_BALANCE must be a boolean, got %q", v)
		}
		cfg.AllowNegativeBalance = b
	}

	if v := os.Getenv("FAMJAM_HORIZON_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("FAMJAM_HORIZON_DAYS must be a positive integer, got %q", v)
		}
		cfg.HorizonDays = n
	}

	if v := os.Getenv("FAMJAM_SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("FAMJAM_SESSION_TTL must be a positive duration, got %q", v)
		}
		cfg.SessionTTL = d
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
