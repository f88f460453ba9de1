package config

import (
	"errors"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the process needs at startup. Constructors
// receive their pieces explicitly; nothing reads the environment after Load.
type Config struct {
	DatabaseURL string
	HTTPPort    string
	JWTSecret   string
	SessionTTL  time.Duration
	FrontendURL string
	LogLevel    string
}

func Load() (Config, error) {
	_ = godotenv.Load()
	cfg := Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		HTTPPort:    getenv("HTTP_PORT", "8080"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		SessionTTL:  7 * 24 * time.Hour,
		FrontendURL: getenv("FRONTEND_URL", "http://localhost:5173"),
		LogLevel:    os.Getenv("LOG_LEVEL"),
	}
	if s := os.Getenv("SESSION_TTL"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			cfg.SessionTTL = d
		}
	}
	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is empty")
	}
	if cfg.JWTSecret == "" {
		return cfg, errors.New("JWT_SECRET is empty")
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
