// Package config provides configuration management for the ledger server.
// It loads configuration from environment variables and .env files;
// command-line flags in cmd/server override it.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config represents the application configuration.
type Config struct {
	Port       int
	DBPath     string
	SeedOnBoot bool
}

// Load loads configuration from environment variables. It automatically
// loads a .env file from the current directory if available. You can
// optionally specify a custom .env file path.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		// Try to load .env from current directory (ignore error if not found)
		_ = godotenv.Load()
	}

	port, err := parseIntEnv("LEDGER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid LEDGER_PORT: %w", err)
	}

	return &Config{
		Port:       port,
		DBPath:     getEnvOrDefault("LEDGER_DB_PATH", "ledger.db"),
		SeedOnBoot: os.Getenv("LEDGER_SEED_ON_BOOT") == "true",
	}, nil
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseIntEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}
