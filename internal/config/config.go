// Package config reads server settings from the environment, after loading
// an optional .env file.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	defaultPort          = "8080"
	defaultJWTExpiration = 24 * time.Hour
)

type Config struct {
	Port          string
	DatabaseURL   string
	JWTSecret     string
	JWTExpiration time.Duration
	NATSURL       string
	LogLevel      zerolog.Level
	Env           string
}

// Development reports whether logs should be human-readable.
func (c *Config) Development() bool {
	return c.Env == "" || c.Env == "development"
}

// Load reads .env from the working directory when it exists. Variables
// already set in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "failed to read .env")
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables alone.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:          getenv("PORT", defaultPort),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		JWTExpiration: defaultJWTExpiration,
		NATSURL:       os.Getenv("NATS_URL"),
		LogLevel:      zerolog.InfoLevel,
		Env:           os.Getenv("APP_ENV"),
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be set")
	}

	if v := os.Getenv("JWT_EXPIRATION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, errors.Errorf("invalid JWT_EXPIRATION %q", v)
		}
		cfg.JWTExpiration = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := zerolog.ParseLevel(v)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid LOG_LEVEL %q", v)
		}
		cfg.LogLevel = level
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
