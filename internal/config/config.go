package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration
type Config struct {
	// Server configuration
	Port            string
	Env             string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Auth configuration
	JWTSecret string
	JWTTTL    time.Duration

	// HTTP protection
	RateLimitRPS       float64
	RateLimitBurst     int
	CORSAllowedOrigins []string

	// Redis fan-out between instances
	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Pub/Sub event stream
	PubSubEnabled   bool
	PubSubProjectID string
	PubSubTopic     string
	PubSubPubID     string

	// Webhooks
	WebhookTestTimeout     time.Duration
	WebhookDispatchEnabled bool

	// Metrics
	MetricsNamespace string
}

// LoadConfig loads configuration from environment variables.
// The .env file is loaded in main.go for local development using godotenv.Load().
func LoadConfig() *Config {
	return &Config{
		Port:            getEnvOrDefault("PORT", "8080"),
		Env:             getEnvOrDefault("LOG_ENV", "development"),
		ReadTimeout:     getEnvAsDurationOrDefault("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvAsDurationOrDefault("HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvAsDurationOrDefault("HTTP_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvAsDurationOrDefault("HTTP_SHUTDOWN_TIMEOUT", 30*time.Second),

		JWTSecret: getEnvOrDefault("JWT_SECRET", ""),
		// 0 issues tokens without expiry
		JWTTTL: time.Duration(getEnvAsIntOrDefault("JWT_TTL_HOURS", 0)) * time.Hour,

		RateLimitRPS:       getEnvAsFloatOrDefault("RATE_LIMIT_RPS", 20),
		RateLimitBurst:     getEnvAsIntOrDefault("RATE_LIMIT_BURST", 40),
		CORSAllowedOrigins: splitAndTrimStrings(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*"), ","),

		RedisEnabled:  getEnvAsBoolOrDefault("REDIS_ENABLED", false),
		RedisHost:     getEnvOrDefault("REDIS_HOST", "localhost"),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsIntOrDefault("REDIS_DB", 0),

		PubSubEnabled:   getEnvAsBoolOrDefault("PUBSUB_ENABLED", false),
		PubSubProjectID: getEnvOrDefault("PUBSUB_PROJECT_ID", ""),
		PubSubTopic:     getEnvOrDefault("PUBSUB_TOPIC", "crm-events"),
		PubSubPubID:     getEnvOrDefault("PUBSUB_PUB_ID", ""),

		WebhookTestTimeout:     time.Duration(getEnvAsIntOrDefault("WEBHOOK_TEST_TIMEOUT_SECONDS", 30)) * time.Second,
		WebhookDispatchEnabled: getEnvAsBoolOrDefault("WEBHOOK_DISPATCH_ENABLED", false),

		MetricsNamespace: getEnvOrDefault("METRICS_NAMESPACE", "crm"),
	}
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.JWTTTL < 0 {
		return errors.New("JWT_TTL_HOURS cannot be negative")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.PubSubEnabled && c.PubSubProjectID == "" {
		return errors.New("PUBSUB_PROJECT_ID is required when PUBSUB_ENABLED is set")
	}
	return nil
}

// getEnvOrDefault gets environment variable or returns default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default value
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsFloatOrDefault gets environment variable as float64 or returns default value
func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvAsBoolOrDefault gets environment variable as bool or returns default value
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDurationOrDefault parses values like "15s" or "2m"
func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitAndTrimStrings(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
