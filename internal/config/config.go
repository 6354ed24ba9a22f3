// Package config provides configuration loading and validation for the server.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration for the advisor backend.
// It is constructed once at process start and passed into constructors;
// nothing below this package reads the environment directly.
type Config struct {
	Port        int
	Environment string // "development" or "production"

	// Provider
	GeminiAPIKey  string
	TextTimeout   time.Duration // single-stage text calls
	VisionTimeout time.Duration // image-bearing calls
	ModelLite     string        // empty keeps the built-in default
	ModelStandard string
	ModelAdvanced string

	// Storage
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Identity (optional): HS256 secret for bearer tokens carrying the
	// caller id in the "sub" claim. Empty disables token parsing.
	JWTSecret string

	// Payments (optional): Stripe webhook signing secret. Empty disables
	// the webhook endpoint.
	StripeWebhookSecret string
	// Maps a Stripe price lookup key to a subscription tier.
	StripePriceTiers map[string]string

	// Daily request limits per subscription tier.
	TierLimits map[string]int
}

// Load builds a Config from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		Environment: getEnvString("ENVIRONMENT", "development"),

		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		TextTimeout:   getEnvDuration("LLM_TEXT_TIMEOUT", 25*time.Second),
		VisionTimeout: getEnvDuration("LLM_VISION_TIMEOUT", 40*time.Second),
		ModelLite:     os.Getenv("GEMINI_MODEL_LITE"),
		ModelStandard: os.Getenv("GEMINI_MODEL_STANDARD"),
		ModelAdvanced: os.Getenv("GEMINI_MODEL_ADVANCED"),

		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisAddr:     getEnvString("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		JWTSecret:           os.Getenv("JWT_SECRET"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripePriceTiers: map[string]string{
			getEnvString("STRIPE_PRICE_PRO", "advisor_pro"):       "pro",
			getEnvString("STRIPE_PRICE_MASTER", "advisor_master"): "master",
		},

		TierLimits: map[string]int{
			"free":   getEnvInt("TIER_LIMIT_FREE", 5),
			"pro":    getEnvInt("TIER_LIMIT_PRO", 20),
			"master": getEnvInt("TIER_LIMIT_MASTER", 50),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present and sane.
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required but not set")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required but not set")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	for tier, limit := range c.TierLimits {
		if limit < 0 {
			return fmt.Errorf("tier %q has negative daily limit %d", tier, limit)
		}
	}
	return nil
}

func getEnvString(key, fallback string) string {
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
	if err != nil {
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
	if err != nil {
		return fallback
	}
	return d
}
