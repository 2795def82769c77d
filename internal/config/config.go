package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const PROD_STRING = "prod"

// Config holds all application configuration loaded from environment.
type Config struct {
	IsProduction bool
	ProdOrigins  string
	HTTPAddr     string
	DBDSN        string
	// DBMaxConns caps the pgx pool size; zero keeps the pgx default.
	DBMaxConns int

	LogLevel  string
	LogFormat string

	// PaymentTTL is how long a started payment stays payable before it
	// is treated as expired.
	PaymentTTL time.Duration
	// PaymentSweepCron controls the periodic job that marks overdue
	// pending payments as expired.
	PaymentSweepCron string
	// WebhookSecret signs/verifies sandbox payment-provider webhooks.
	WebhookSecret string
	// PublicBaseURL is the externally reachable URL of this service,
	// used when composing checkout links.
	PublicBaseURL string
}

// Load loads configuration from .env (optional) and environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		log.Printf("failed to load .env file: %v", err)
	}

	cfg := &Config{}

	// Production origin (default: empty)
	cfg.ProdOrigins = getEnv("PROD_ORIGINS", "")

	// Application environment (default: dev)
	appEnvStr := getEnv("APP_ENV", "dev")
	cfg.IsProduction = appEnvStr == PROD_STRING

	// HTTP listen address (default: :8080)
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")

	// Database DSN is required
	cfg.DBDSN = os.Getenv("DB_DSN")
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required")
	}

	cfg.DBMaxConns, err = getEnvAsInt("DB_MAX_CONNS", 0)
	if err != nil {
		return nil, err
	}

	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("LOG_FORMAT", "json")

	ttl, err := getEnvAsDuration("PAYMENT_TTL", 30*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.PaymentTTL = ttl

	cfg.PaymentSweepCron = getEnv("PAYMENT_SWEEP_CRON", "*/5 * * * *")

	cfg.WebhookSecret = os.Getenv("WEBHOOK_SECRET")
	if cfg.WebhookSecret == "" {
		if cfg.IsProduction {
			return nil, fmt.Errorf("WEBHOOK_SECRET is required in production")
		}
		cfg.WebhookSecret = "sandbox-secret"
	}

	cfg.PublicBaseURL = getEnv("PUBLIC_BASE_URL", "http://localhost:8080")

	return cfg, nil
}

// getEnv returns the value of the environment variable if set,
// otherwise returns the provided default value.
func getEnv(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer.
// It returns the default value if the variable is not set.
// It returns an error if the variable is set but is not a valid integer.
func getEnvAsInt(key string, defaultValue int) (int, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(valStr)
	if err != nil {
		// Return 0 and a wrapped error to provide context
		return 0, fmt.Errorf("env %s value %q is not a valid integer: %w", key, valStr, err)
	}

	return val, nil
}

// getEnvAsDuration retrieves an environment variable as a time.Duration
// (e.g. "15m", "1h"). It returns the default value if not set.
func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(valStr)
	if err != nil {
		return 0, fmt.Errorf("env %s value %q is not a valid duration: %w", key, valStr, err)
	}

	return val, nil
}
