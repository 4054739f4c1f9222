package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers
const (
	DriverPocketBase = "pocketbase"
	DriverRedis      = "redis"
	DriverPostgres   = "postgres"
	DriverMemory     = "memory"
)

type Config struct {
	HTTPAddr string

	// Document store
	StoreDriver string

	// PocketBase External Server
	PocketBaseURL            string // PocketBase server URL (e.g., http://127.0.0.1:8090)
	PocketBaseToken          string // Auth token for API access
	PocketBaseAuthCollection string

	RedisAddr     string
	RedisPassword string
	DatabaseURL   string

	// Session tokens
	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration

	// Telegram Bot
	TelegramBotToken string
	AuthorizedChatID string

	// Seeded administrator, optional
	AdminEmail    string
	AdminPassword string
	AdminName     string

	// Check-in
	RepairSchedule    string
	CooldownSeconds   int
	PresenceScanLimit int
	ActiveWindow      time.Duration
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("godotenv.Load() error: %v", err)
	}

	cfg := &Config{
		HTTPAddr:                 getEnv("HTTP_ADDR", ":8080"),
		StoreDriver:              getEnv("STORE_DRIVER", DriverPocketBase),
		PocketBaseURL:            getEnv("POCKETBASE_URL", "http://127.0.0.1:8090"),
		PocketBaseToken:          os.Getenv("POCKETBASE_TOKEN"),
		PocketBaseAuthCollection: getEnv("POCKETBASE_AUTH_COLLECTION", "users"),
		RedisAddr:                getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:            os.Getenv("REDIS_PASSWORD"),
		DatabaseURL:              os.Getenv("DATABASE_URL"),
		JWTSecret:                os.Getenv("JWT_SECRET"),
		JWTIssuer:                getEnv("JWT_ISSUER", "campus-locator"),
		TokenTTL:                 getEnvDuration("TOKEN_TTL", 24*time.Hour),
		TelegramBotToken:         os.Getenv("TELEGRAM_BOT_TOKEN"),
		AuthorizedChatID:         os.Getenv("AUTHORIZED_CHAT_ID"),
		AdminEmail:               os.Getenv("ADMIN_EMAIL"),
		AdminPassword:            os.Getenv("ADMIN_PASSWORD"),
		AdminName:                getEnv("ADMIN_NAME", "Administrator"),
		RepairSchedule:           getEnv("REPAIR_SCHEDULE", "@every 1m"),
		CooldownSeconds:          getEnvInt("COOLDOWN_SECONDS", 60),
		PresenceScanLimit:        getEnvInt("PRESENCE_SCAN_LIMIT", 5),
		ActiveWindow:             getEnvDuration("ACTIVE_WINDOW", 7*24*time.Hour),
	}

	switch cfg.StoreDriver {
	case DriverPocketBase, DriverRedis, DriverPostgres, DriverMemory:
	default:
		return nil, &InvalidError{Key: "STORE_DRIVER", Value: cfg.StoreDriver}
	}
	if cfg.StoreDriver == DriverPostgres && cfg.DatabaseURL == "" {
		return nil, &InvalidError{Key: "DATABASE_URL", Value: ""}
	}
	if cfg.JWTSecret == "" {
		return nil, &InvalidError{Key: "JWT_SECRET", Value: ""}
	}
	return cfg, nil
}

// InvalidError reports a missing or unusable setting
type InvalidError struct {
	Key   string
	Value string
}

func (e *InvalidError) Error() string {
	if e.Value == "" {
		return e.Key + " is required"
	}
	return "invalid " + e.Key + ": " + e.Value
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("Warning: invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("Warning: invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
