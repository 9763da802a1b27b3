package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string

	DatabaseURL  string
	LocalDBPath  string
	ObjectStore  string
	LocalDataDir string
	AWSRegion    string
	S3Bucket     string
	S3Prefix     string

	VisionAPIKey  string
	VisionBaseURL string
	VisionModel   string

	FreeAnalysisLimit int
	HistoryLimit      int

	RateLimitWindow time.Duration
	RateLimitMax    int

	StripeSecretKey     string
	StripeWebhookSecret string
	CheckoutSuccessURL  string
	CheckoutCancelURL   string

	AdminKey string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	UIRedirectURL      string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		Env:             env,
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000")),

		DatabaseURL:  dbURL,
		LocalDBPath:  getEnv("LOCAL_DB_PATH", "./data/chartlens.db"),
		ObjectStore:  normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalDataDir: getEnv("LOCAL_STORE_DIR", "./data/objects"),
		AWSRegion:    getEnv("AWS_REGION", ""),
		S3Bucket:     getEnv("S3_BUCKET", ""),
		S3Prefix:     getEnv("S3_PREFIX", ""),

		VisionAPIKey:  os.Getenv("GROQ_API_KEY"),
		VisionBaseURL: getEnv("VISION_BASE_URL", "https://api.groq.com/openai/v1"),
		VisionModel:   getEnv("VISION_MODEL", "meta-llama/llama-4-scout-17b-16e-instruct"),

		FreeAnalysisLimit: getEnvInt("FREE_ANALYSIS_LIMIT", 999),
		HistoryLimit:      getEnvInt("HISTORY_LIMIT", 20),

		RateLimitWindow: getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		RateLimitMax:    getEnvInt("RATE_LIMIT_MAX", 10),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		CheckoutSuccessURL:  getEnv("CHECKOUT_SUCCESS_URL", "http://localhost:3000/success"),
		CheckoutCancelURL:   getEnv("CHECKOUT_CANCEL_URL", "http://localhost:3000/analyze"),

		AdminKey: os.Getenv("ADMIN_SECRET_KEY"),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
		UIRedirectURL:      getEnv("UI_REDIRECT_URL", ""),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config %s invalid int: %v", key, err)
		return def
	}
	return val
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("config %s invalid duration: %v", key, err)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}
