package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL string
	RedisAddr   string // empty = in-memory notification queue
	BotToken    string // empty = notifications logged only
	Location    *time.Location
	HTTPAddr    string
	LogLevel    string
	Env         string // dev|prod
	SentryDSN   string

	JWTIssuer     string
	JWTSigningKey string
	AccessTTL     time.Duration

	RiskRunInterval time.Duration
}

func Load() (*Config, error) {
	tz := getenv("TZ", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("TZ %q: %w", tz, err)
	}

	cfg := &Config{
		DatabaseURL:     mustEnv("DATABASE_URL"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		BotToken:        os.Getenv("BOT_TOKEN"),
		Location:        loc,
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		Env:             getenv("ENV", "dev"),
		SentryDSN:       os.Getenv("SENTRY_DSN"),
		JWTIssuer:       getenv("JWT_ISSUER", "churchcare"),
		JWTSigningKey:   mustEnv("JWT_SIGNING_KEY"),
		AccessTTL:       durationEnv("ACCESS_TTL", 12*time.Hour),
		RiskRunInterval: durationEnv("RISK_RUN_INTERVAL", 24*time.Hour),
	}
	return cfg, nil
}

func mustEnv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic("required env " + k + " is empty")
	}
	return v
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func durationEnv(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	// plain number = hours, keeps ops overrides short
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Hour
	}
	return def
}
