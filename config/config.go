package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the assessor service
type Config struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Server configuration
	Port string

	// LLM configuration
	LLMProvider string // "gemini", "openai" or "stub"
	LLMTimeout  time.Duration

	GeminiAPIKey string
	GeminiModel  string

	OpenAIAPIKey string
	OpenAIModel  string

	// Session store
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration

	// Re-entrant submit guard expiry
	SubmitGuardTTL time.Duration

	// Payment configuration
	StripeSecretKey string
	CheckoutURL     string // hosted payment-link fallback when no API key is set
	PremiumPrice    string // decimal GBP, e.g. "24.99"
	SuccessURL      string
	CancelURL       string
	DemoMode        bool

	// SendGrid configuration
	SendGridAPIKey    string
	SendGridFromName  string
	SendGridFromEmail string

	// Event publishing
	AMQPURL            string
	AMQPExchange       string
	AssessedRoutingKey string

	// Persistence queue
	QueueSize       int
	QueueWorkers    int
	QueueMaxRetries int

	// Admin API
	AdminToken string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		// Database defaults
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "server"),
		DBPassword: getEnv("DB_PASSWORD", "secret_app"),
		DBName:     getEnv("DB_NAME", "assessor"),

		// Server defaults
		Port: getEnv("PORT", "8080"),

		// LLM defaults
		LLMProvider: getEnv("LLM_PROVIDER", "gemini"),
		LLMTimeout:  getDurationEnv("LLM_TIMEOUT", 60*time.Second),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o"),

		// Session store defaults
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		SessionTTL:    getDurationEnv("SESSION_TTL", 24*time.Hour),

		SubmitGuardTTL: getDurationEnv("SUBMIT_GUARD_TTL", 5*time.Second),

		// Payment defaults
		StripeSecretKey: getEnv("STRIPE_SECRET_KEY", ""),
		CheckoutURL:     getEnv("CHECKOUT_URL", "https://buy.stripe.com/visa-premium-report"),
		PremiumPrice:    getEnv("PREMIUM_PRICE", "24.99"),
		SuccessURL:      getEnv("CHECKOUT_SUCCESS_URL", "https://assessor.example.com/payment/success"),
		CancelURL:       getEnv("CHECKOUT_CANCEL_URL", "https://assessor.example.com/payment/cancel"),
		DemoMode:        getBoolEnv("DEMO_MODE", false),

		// SendGrid defaults
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Visa Assessor"),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", "hello@assessor.example.com"),

		// Event publishing defaults
		AMQPURL:            getEnv("AMQP_URL", ""),
		AMQPExchange:       getEnv("AMQP_EXCHANGE", "assessor"),
		AssessedRoutingKey: getEnv("AMQP_ASSESSED_ROUTING_KEY", "assessment.completed"),

		// Persistence queue defaults
		QueueSize:       getIntEnv("QUEUE_SIZE", 256),
		QueueWorkers:    getIntEnv("QUEUE_WORKERS", 4),
		QueueMaxRetries: getIntEnv("QUEUE_MAX_RETRIES", 3),

		// Admin API
		AdminToken: getEnv("ADMIN_TOKEN", ""),

		// Logging defaults
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getBoolEnv gets a boolean environment variable or returns a default value
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
