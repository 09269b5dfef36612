// Package config provides configuration management for the tzresolve service.
// It handles loading and validation of environment variables and configuration settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Default configuration values
const (
	DefaultPort                 = "8080"
	DefaultLogLevel             = "info"
	DefaultEnvironment          = "development"
	DefaultAliasesCheckInterval = 30
	DefaultLocationCacheSize    = 512
	DefaultLocationCacheTTLSec  = 3600
	DefaultGuardBandHours       = 24
	DefaultRateLimit            = 20
	DefaultRateBurst            = 40
	DefaultTraceSampleRate      = 1.0

	// maxGuardBandHours keeps the guard band below the shortest plausible
	// distance between two transitions.
	maxGuardBandHours = 72
)

// Config holds all configuration for the application
type Config struct {
	Port        string
	LogLevel    string
	Environment string

	// Time zone data
	ZoneinfoDir          string
	ZoneAliases          map[string]string
	ZoneAliasesFile      string
	AliasesCheckInterval int // seconds
	LocationCacheSize    int
	LocationCacheTTLSec  int
	GuardBandHours       int

	// HTTP rate limiting, requests per second and burst per client
	RateLimit int
	RateBurst int

	// Tracing
	TracingEnabled  bool
	OTLPEndpoint    string
	TracingConsole  bool
	TraceSampleRate float64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// It's okay if .env file doesn't exist - we'll use environment variables
		_ = err
	}

	cfg := NewConfigFromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// NewConfigFromEnv reads the configuration from the environment without
// validating it
func NewConfigFromEnv() *Config {
	return &Config{
		Port:                 getEnv("PORT", DefaultPort),
		LogLevel:             getEnv("LOG_LEVEL", DefaultLogLevel),
		Environment:          getEnv("ENVIRONMENT", DefaultEnvironment),
		ZoneinfoDir:          getEnv("ZONEINFO_DIR", ""),
		ZoneAliases:          parseAliasesEnv("ZONE_ALIASES"),
		ZoneAliasesFile:      getEnv("ZONE_ALIASES_FILE", ""),
		AliasesCheckInterval: parseIntEnv("ALIASES_CHECK_INTERVAL_SEC", DefaultAliasesCheckInterval),
		LocationCacheSize:    parseIntEnv("LOCATION_CACHE_SIZE", DefaultLocationCacheSize),
		LocationCacheTTLSec:  parseIntEnv("LOCATION_CACHE_TTL_SEC", DefaultLocationCacheTTLSec),
		GuardBandHours:       parseIntEnv("GUARD_BAND_HOURS", DefaultGuardBandHours),
		RateLimit:            parseIntEnv("RATE_LIMIT", DefaultRateLimit),
		RateBurst:            parseIntEnv("RATE_BURST", DefaultRateBurst),
		TracingEnabled:       parseBoolEnv("TRACING_ENABLED", false),
		OTLPEndpoint:         getEnv("OTLP_ENDPOINT", ""),
		TracingConsole:       parseBoolEnv("TRACING_CONSOLE", false),
		TraceSampleRate:      parseFloatEnv("TRACE_SAMPLE_RATE", DefaultTraceSampleRate),
	}
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid number: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", port)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", c.LogLevel)
	}

	if c.LocationCacheSize < 1 {
		return fmt.Errorf("LOCATION_CACHE_SIZE must be positive, got %d", c.LocationCacheSize)
	}
	if c.LocationCacheTTLSec < 1 {
		return fmt.Errorf("LOCATION_CACHE_TTL_SEC must be positive, got %d", c.LocationCacheTTLSec)
	}
	if c.GuardBandHours < 1 || c.GuardBandHours > maxGuardBandHours {
		return fmt.Errorf("GUARD_BAND_HOURS must be between 1 and %d, got %d", maxGuardBandHours, c.GuardBandHours)
	}
	if c.RateLimit < 1 || c.RateBurst < 1 {
		return fmt.Errorf("RATE_LIMIT and RATE_BURST must be positive")
	}
	if c.ZoneAliasesFile != "" && c.AliasesCheckInterval < 1 {
		return fmt.Errorf("ALIASES_CHECK_INTERVAL_SEC must be positive, got %d", c.AliasesCheckInterval)
	}
	if c.TraceSampleRate < 0 || c.TraceSampleRate > 1 {
		return fmt.Errorf("TRACE_SAMPLE_RATE must be between 0 and 1, got %g", c.TraceSampleRate)
	}
	for alias, target := range c.ZoneAliases {
		if alias == "" || target == "" {
			return fmt.Errorf("ZONE_ALIASES contains an empty name")
		}
	}
	return nil
}

// LocationCacheTTL returns the location cache TTL as a duration
func (c *Config) LocationCacheTTL() time.Duration {
	return time.Duration(c.LocationCacheTTLSec) * time.Second
}

// GuardBand returns the resolver guard band as a duration
func (c *Config) GuardBand() time.Duration {
	return time.Duration(c.GuardBandHours) * time.Hour
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// parseIntEnv parses an integer environment variable with a fallback value
func parseIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// parseBoolEnv parses a boolean environment variable with a fallback value
func parseBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// parseFloatEnv parses a float environment variable with a fallback value
func parseFloatEnv(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

// parseCSVEnv parses a comma-separated environment variable into a string slice
func parseCSVEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// parseAliasesEnv parses comma-separated alias=target pairs. Malformed
// pairs are skipped.
func parseAliasesEnv(key string) map[string]string {
	aliases := make(map[string]string)
	for _, pair := range parseCSVEnv(key) {
		if alias, target, ok := parseAlias(pair); ok {
			aliases[alias] = target
		}
	}
	return aliases
}

func parseAlias(s string) (alias, target string, ok bool) {
	alias, target, ok = strings.Cut(s, "=")
	alias, target = strings.TrimSpace(alias), strings.TrimSpace(target)
	if !ok || alias == "" || target == "" {
		return "", "", false
	}
	return alias, target, true
}
