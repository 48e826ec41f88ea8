package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spendlens/spendlens-go/internal/domain"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Detection
	HomeCity        string
	DupWindow       time.Duration
	SpikeMultiplier float64
	PlanCatalogFile string

	// Live feed
	FeedDBPath       string
	FeedPollInterval time.Duration

	// OpenRouter
	OpenRouterAPIKey string
	OpenRouterURL    string
	OpenRouterModel  string

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
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		HomeCity:        getEnv("HOME_CITY", "Pune"),
		DupWindow:       getEnvDuration("DUP_WINDOW", 3*time.Minute),
		SpikeMultiplier: getEnvFloat("SPIKE_MULTIPLIER", 10.0),
		PlanCatalogFile: getEnv("PLAN_CATALOG_FILE", ""),

		FeedDBPath:       getEnv("FEED_DB_PATH", "data/feed.db"),
		FeedPollInterval: getEnvDuration("FEED_POLL_INTERVAL", 30*time.Second),

		OpenRouterAPIKey: getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterURL:    getEnv("OPENROUTER_URL", "https://openrouter.ai/api/v1"),
		OpenRouterModel:  getEnv("OPENROUTER_MODEL", "deepseek/deepseek-r1:free"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		CacheTTL: getEnvDuration("CACHE_TTL", 5*time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
}

// LoadPlanCatalog returns the prepaid plan catalog. With no file
// configured the built-in catalog is used. The file maps plan price to
// validity days, e.g. {"349": 28}.
func (c *Config) LoadPlanCatalog() (domain.PlanCatalog, error) {
	if c.PlanCatalogFile == "" {
		return domain.DefaultPlanCatalog(), nil
	}

	data, err := os.ReadFile(c.PlanCatalogFile)
	if err != nil {
		return nil, fmt.Errorf("read plan catalog %s: %w", c.PlanCatalogFile, err)
	}

	var raw map[string]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse plan catalog %s: %w", c.PlanCatalogFile, err)
	}

	catalog := make(domain.PlanCatalog, len(raw))
	for priceStr, days := range raw {
		price, err := strconv.ParseFloat(priceStr, 64)
		if err != nil {
			return nil, fmt.Errorf("plan catalog %s: bad price %q: %w", c.PlanCatalogFile, priceStr, err)
		}
		if days <= 0 {
			return nil, fmt.Errorf("plan catalog %s: price %q has non-positive validity %d", c.PlanCatalogFile, priceStr, days)
		}
		catalog[price] = days
	}
	return catalog, nil
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
