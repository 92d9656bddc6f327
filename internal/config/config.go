package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv         string
	Port           string
	AllowedOrigins string

	DatabaseURL string
	RedisURL    string

	JWTSecret string

	// Cron specs for the periodic engines.
	FreshnessSweepSpec   string
	ImprovementCheckSpec string
	CloseVoteAgingSpec   string
	RateLimitPruneSpec   string
}

func Load() (*Config, error) {
	// Don't fail if .env doesn't exist (might be prod env vars)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		JWTSecret: getEnv("JWT_SECRET", "12345"),

		FreshnessSweepSpec:   getEnv("FRESHNESS_SWEEP_CRON", "0 3 * * *"),
		ImprovementCheckSpec: getEnv("IMPROVEMENT_CHECK_CRON", "30 * * * *"),
		CloseVoteAgingSpec:   getEnv("CLOSE_VOTE_AGING_CRON", "0 4 * * *"),
		RateLimitPruneSpec:   getEnv("RATE_LIMIT_PRUNE_CRON", "0 5 * * *"),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
