// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database
	DatabaseURL string `koanf:"database_url"`

	// Redis (rate limiting); optional, in-memory store used when unset
	RedisURL string `koanf:"redis_url"`

	// JWT Authentication
	JWTSecret         string `koanf:"jwt_secret"`
	JWTPreviousSecret string `koanf:"jwt_previous_secret"`

	// Music provider OAuth
	ProviderClientID     string `koanf:"provider_client_id"`
	ProviderClientSecret string `koanf:"provider_client_secret"`
	ProviderRedirectURI  string `koanf:"provider_redirect_uri"`
	ProviderTokenURL     string `koanf:"provider_token_url"`
	ProviderAPIBaseURL   string `koanf:"provider_api_base_url"`

	// CORS; comma-separated list of allowed origins, empty disables CORS
	CORSAllowedOrigins string `koanf:"cors_allowed_origins"`

	// Discovery feed tuning
	FeedPoolMultiplier  int    `koanf:"feed_pool_multiplier"`
	FeedMaxLimit        int    `koanf:"feed_max_limit"`
	FeedCalibrationPath string `koanf:"feed_calibration_path"`

	// Tracing
	TracingEnabled      bool    `koanf:"tracing_enabled"`
	TracingExporterType string  `koanf:"tracing_exporter_type"`
	TracingOTLPEndpoint string  `koanf:"tracing_otlp_endpoint"`
	TracingSamplingRate float64 `koanf:"tracing_sampling_rate"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL          = errors.New("DATABASE_URL is required")
	ErrMissingJWTSecret            = errors.New("JWT_SECRET is required")
	ErrMissingProviderClientID     = errors.New("PROVIDER_CLIENT_ID is required")
	ErrMissingProviderClientSecret = errors.New("PROVIDER_CLIENT_SECRET is required")
	ErrMissingProviderRedirectURI  = errors.New("PROVIDER_REDIRECT_URI is required")
	ErrInvalidPort                 = errors.New("PORT must be a valid integer")
	ErrInvalidPoolMultiplier       = errors.New("FEED_POOL_MULTIPLIER must be >= 1")
)

// Default values for non-secret configuration.
const (
	DefaultPort                = 8080
	DefaultEnv                 = "development"
	DefaultFeedPoolMultiplier  = 3
	DefaultFeedMaxLimit        = 50
	DefaultTracingSamplingRate = 0.1
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	port, portErr := getEnvIntOrDefault("PORT", k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	poolMultiplier, poolErr := getEnvIntOrDefault("FEED_POOL_MULTIPLIER", k.Int("feed_pool_multiplier"), DefaultFeedPoolMultiplier)
	if poolErr != nil {
		loadErrs = append(loadErrs, poolErr)
	}

	maxLimit, maxLimitErr := getEnvIntOrDefault("FEED_MAX_LIMIT", k.Int("feed_max_limit"), DefaultFeedMaxLimit)
	if maxLimitErr != nil {
		loadErrs = append(loadErrs, maxLimitErr)
	}

	samplingRate, samplingErr := getEnvFloatOrDefault("TRACING_SAMPLING_RATE", k.Float64("tracing_sampling_rate"), DefaultTracingSamplingRate)
	if samplingErr != nil {
		loadErrs = append(loadErrs, samplingErr)
	}

	tracingEnabled := k.Bool("tracing_enabled")
	if val := os.Getenv("TRACING_ENABLED"); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			tracingEnabled = true
		case "false", "0", "no", "off":
			tracingEnabled = false
		}
	}

	cfg := &Config{
		Port:                 port,
		Env:                  getEnvOrDefaultMulti([]string{"RESONATE_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:          getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisURL:             getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		JWTSecret:            getEnvOrKoanf("JWT_SECRET", k, "jwt_secret"),
		JWTPreviousSecret:    getEnvOrKoanf("JWT_PREVIOUS_SECRET", k, "jwt_previous_secret"),
		ProviderClientID:     getEnvOrKoanf("PROVIDER_CLIENT_ID", k, "provider_client_id"),
		ProviderClientSecret: getEnvOrKoanf("PROVIDER_CLIENT_SECRET", k, "provider_client_secret"),
		ProviderRedirectURI:  getEnvOrKoanf("PROVIDER_REDIRECT_URI", k, "provider_redirect_uri"),
		ProviderTokenURL:     getEnvOrKoanf("PROVIDER_TOKEN_URL", k, "provider_token_url"),
		ProviderAPIBaseURL:   getEnvOrKoanf("PROVIDER_API_BASE_URL", k, "provider_api_base_url"),
		CORSAllowedOrigins:   getEnvOrKoanf("CORS_ALLOWED_ORIGINS", k, "cors_allowed_origins"),
		FeedPoolMultiplier:   poolMultiplier,
		FeedMaxLimit:         maxLimit,
		FeedCalibrationPath:  getEnvOrKoanf("FEED_CALIBRATION_PATH", k, "feed_calibration_path"),
		TracingEnabled:       tracingEnabled,
		TracingExporterType:  getEnvOrKoanf("TRACING_EXPORTER_TYPE", k, "tracing_exporter_type"),
		TracingOTLPEndpoint:  getEnvOrKoanf("TRACING_OTLP_ENDPOINT", k, "tracing_otlp_endpoint"),
		TracingSamplingRate:  samplingRate,
	}

	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, ErrInvalidPort)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as a float.
func getEnvFloatOrDefault(envKey string, koanfVal float64, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid float: %w", envKey, err)
		}
		return f, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// Validate checks that all required configuration values are present.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if c.ProviderClientID == "" {
		errs = append(errs, ErrMissingProviderClientID)
	}
	if c.ProviderClientSecret == "" {
		errs = append(errs, ErrMissingProviderClientSecret)
	}
	if c.ProviderRedirectURI == "" {
		errs = append(errs, ErrMissingProviderRedirectURI)
	}
	if c.FeedPoolMultiplier < 1 {
		errs = append(errs, ErrInvalidPoolMultiplier)
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                   fmt.Sprintf("%d", c.Port),
		"env":                    c.Env,
		"database_url":           maskDatabaseURL(c.DatabaseURL),
		"redis_url":              maskDatabaseURL(c.RedisURL),
		"jwt_secret":             maskSecret(c.JWTSecret),
		"jwt_previous_secret":    maskSecret(c.JWTPreviousSecret),
		"provider_client_id":     maskSecret(c.ProviderClientID),
		"provider_client_secret": maskSecret(c.ProviderClientSecret),
		"provider_redirect_uri":  c.ProviderRedirectURI,
		"provider_token_url":     c.ProviderTokenURL,
		"provider_api_base_url":  c.ProviderAPIBaseURL,
		"cors_allowed_origins":   c.CORSAllowedOrigins,
		"feed_pool_multiplier":   fmt.Sprintf("%d", c.FeedPoolMultiplier),
		"feed_max_limit":         fmt.Sprintf("%d", c.FeedMaxLimit),
		"feed_calibration_path":  c.FeedCalibrationPath,
		"tracing_enabled":        fmt.Sprintf("%t", c.TracingEnabled),
		"tracing_exporter_type":  c.TracingExporterType,
		"tracing_otlp_endpoint":  c.TracingOTLPEndpoint,
		"tracing_sampling_rate":  fmt.Sprintf("%.2f", c.TracingSamplingRate),
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a connection URL.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	scheme := s[:schemeEnd+3]
	return scheme + rest[:colonIndex] + ":****" + rest[atIndex:]
}
