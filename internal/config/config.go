package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL        string
	DatabaseReplicaURL string // read-only replica; falls back to DatabaseURL
	RedisURL           string
	BaseURL            string // public prefix of the redirect endpoint
	ListenAddr         string

	CacheDefaultTTL time.Duration // staleness bound for non-expiring links
	SweepInterval   time.Duration

	RateLimitRPS           float64 // general API endpoints
	RateLimitBurst         int
	RateLimitShortenRPS    float64 // stricter for creation
	RateLimitShortenBurst  int
	RateLimitRedirectRPS   float64 // lenient for redirects
	RateLimitRedirectBurst int
}

func Load() *Config {
	// Try to load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or defaults")
	}

	cfg := &Config{
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		DatabaseReplicaURL:     getEnv("DATABASE_REPLICA_URL", ""),
		RedisURL:               getEnv("REDIS_URL", "localhost:6379"),
		BaseURL:                getEnv("BASE_URL", "http://localhost:8080"),
		ListenAddr:             getEnv("LISTEN_ADDR", ":8080"),
		CacheDefaultTTL:        time.Duration(getEnvInt("CACHE_DEFAULT_TTL_HOURS", 24)) * time.Hour,
		SweepInterval:          time.Duration(getEnvInt("SWEEP_INTERVAL_HOURS", 24)) * time.Hour,
		RateLimitRPS:           getEnvFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:         getEnvInt("RATE_LIMIT_BURST", 20),
		RateLimitShortenRPS:    getEnvFloat("RATE_LIMIT_SHORTEN_RPS", 2),
		RateLimitShortenBurst:  getEnvInt("RATE_LIMIT_SHORTEN_BURST", 5),
		RateLimitRedirectRPS:   getEnvFloat("RATE_LIMIT_REDIRECT_RPS", 30),
		RateLimitRedirectBurst: getEnvInt("RATE_LIMIT_REDIRECT_BURST", 60),
	}

	if cfg.DatabaseReplicaURL == "" {
		cfg.DatabaseReplicaURL = cfg.DatabaseURL
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
