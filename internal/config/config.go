package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env  string
	Port string

	RedisURL  string
	RedisPass string
	RedisDB   int

	JWTSecret     string
	JWTExpiration time.Duration

	// Client side
	APIBaseURL   string
	WSURL        string
	AuthToken    string
	Profile      string
	SyncInterval time.Duration
	HTTPTimeout  time.Duration

	PayoutRatio   float64
	StartingCoins int64

	SoundEnabled   bool
	HapticsEnabled bool

	LogLevel slog.Level
}

// Load reads .env (if any) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "8080"),

		RedisURL:  getEnv("REDIS_URL", "localhost:6379"),
		RedisPass: getEnv("REDIS_PASSWORD", ""),
		RedisDB:   getEnvAsInt("REDIS_DB", 0),

		JWTSecret:     getEnv("JWT_SECRET", ""),
		JWTExpiration: getEnvAsDuration("JWT_EXPIRATION", 24*time.Hour),

		APIBaseURL:   strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8080/api"), "/"),
		WSURL:        getEnv("WS_URL", "ws://localhost:8080/api/ws"),
		AuthToken:    getEnv("AUTH_TOKEN", ""),
		Profile:      getEnv("LEDGER_PROFILE", "default"),
		SyncInterval: getEnvAsDuration("SYNC_INTERVAL", 30*time.Second),
		HTTPTimeout:  getEnvAsDuration("HTTP_TIMEOUT", 10*time.Second),

		PayoutRatio:   getEnvAsFloat("PAYOUT_RATIO", 0.9),
		StartingCoins: int64(getEnvAsInt("STARTING_COINS", 1000)),

		SoundEnabled:   getEnvAsBool("SOUND_ENABLED", true),
		HapticsEnabled: getEnvAsBool("HAPTICS_ENABLED", true),

		LogLevel: getEnvAsLevel("LOG_LEVEL", slog.LevelInfo),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if !(c.PayoutRatio >= 0 && c.PayoutRatio <= 1) {
		return fmt.Errorf("PAYOUT_RATIO must be between 0 and 1, got %v", c.PayoutRatio)
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("SYNC_INTERVAL must be positive")
	}
	if c.StartingCoins < 0 {
		return fmt.Errorf("STARTING_COINS must not be negative")
	}
	if c.Env == "production" && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsLevel(key string, defaultValue slog.Level) slog.Level {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return defaultValue
	}
	return level
}
