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
	Port     int
	LogLevel string

	// Storage
	DBPath string

	// External services
	FeedAPIURL   string
	FeedAPIToken string
	DocParseURL  string
	UseStubFeed  bool
	MockDocParse bool

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

	// Detection overrides. Empty slices mean "use built-in defaults".
	DetectionWindowDays int
	NoiseTerms          []string
	ExcludedCategories  []string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DBPath: getEnv("DB_PATH", "subtrack.db"),

		FeedAPIURL:   getEnv("FEED_API_URL", "http://localhost:8091"),
		FeedAPIToken: getEnv("FEED_API_TOKEN", ""),
		DocParseURL:  getEnv("DOCPARSE_API_URL", "http://localhost:8092"),
		UseStubFeed:  getEnv("USE_STUB_FEED", "true") == "true",
		MockDocParse: getEnv("MOCK_DOCPARSE", "true") == "true",

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		CacheTTL: getEnvDuration("CACHE_TTL", 5*time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		DetectionWindowDays: getEnvInt("DETECTION_WINDOW_DAYS", 0),
		NoiseTerms:          getEnvList("NOISE_TERMS"),
		ExcludedCategories:  getEnvList("EXCLUDED_CATEGORIES"),
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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList parses a comma-separated env var. Nil when unset.
func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var items []string
	for _, part := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
