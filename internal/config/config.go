package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port               int
	LogLevel           string
	CORSAllowedOrigins []string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Supabase
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string
	SupabaseJWTSecret  string

	// Direct Postgres (optional; enables transactional address/order writes)
	DatabaseURL string

	// Flutterwave
	FlutterwaveBaseURL     string
	FlutterwaveSecretKey   string
	FlutterwaveSecretHash  string
	FlutterwaveRedirectURL string
	StoreName              string
	StoreLogoURL           string

	// Pricing
	Currency              string
	ShippingFee           float64
	FreeShippingThreshold float64
	LowStockThreshold     int

	// Kafka (optional; order events)
	KafkaBrokers    []string
	KafkaOrderTopic string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:               getEnvInt("PORT", 8080),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		CacheTTL: getEnvDuration("CACHE_TTL", 5*time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		SupabaseURL:        strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		SupabaseJWTSecret:  getEnv("SUPABASE_JWT_SECRET", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		FlutterwaveBaseURL:     strings.TrimRight(getEnv("FLUTTERWAVE_BASE_URL", "https://api.flutterwave.com"), "/"),
		FlutterwaveSecretKey:   getEnv("FLUTTERWAVE_SECRET_KEY", ""),
		FlutterwaveSecretHash:  getEnv("FLUTTERWAVE_SECRET_HASH", ""),
		FlutterwaveRedirectURL: getEnv("FLUTTERWAVE_REDIRECT_URL", "http://localhost:3000/checkout/verify"),
		StoreName:              getEnv("STORE_NAME", "NaijaStore"),
		StoreLogoURL:           getEnv("STORE_LOGO_URL", ""),

		Currency:              getEnv("STORE_CURRENCY", "NGN"),
		ShippingFee:           getEnvFloat("SHIPPING_FEE", 2500),
		FreeShippingThreshold: getEnvFloat("FREE_SHIPPING_THRESHOLD", 50000),
		LowStockThreshold:     getEnvInt("LOW_STOCK_THRESHOLD", 5),

		KafkaBrokers:    getEnvList("KAFKA_BROKERS", nil),
		KafkaOrderTopic: getEnv("KAFKA_ORDER_TOPIC", "naijastore.orders"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma-separated variable, dropping blanks.
func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
