package config

import (
	"errors"
	"fmt"
	"log/slog"
	"omega/internal/models"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultEnvFile is read from the working directory when OMEGA_ENV_FILE is unset
const DefaultEnvFile = ".env"

// Load loads configuration from a .env file, a YAML file and environment variables
func Load(configPath string) (*models.Config, error) {
	// Populate the process environment first so overrides below see it
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	// Start with default configuration
	config := models.NewDefaultConfig()

	// Load from file if provided and exists
	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Override with environment variables
	loadFromEnvironment(config)

	// Validate the final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if config.Generator.APIKey == "" {
		slog.Warn("GEMINI_API_KEY is not set; chat will answer without the model")
	}
	if config.Webhook.Secret == "" {
		slog.Warn("GUMROAD_SECRET is not set; every webhook will be rejected")
	}
	if config.Security.OwnerToken == "" {
		slog.Warn("OWNER_TOKEN is not set; admin endpoints are disabled")
	}

	return config, nil
}

// loadEnvFile loads OMEGA_ENV_FILE, or .env when unset. Variables already in
// the environment win. A missing default file is not an error.
func loadEnvFile() error {
	path := os.Getenv("OMEGA_ENV_FILE")
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}

	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	slog.Debug("Loaded environment file", "path", path)
	return nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(config *models.Config, filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", filePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

// loadFromEnvironment loads configuration from environment variables
func loadFromEnvironment(config *models.Config) {
	// Credentials use the names the deployment platform already exposes
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		config.Generator.APIKey = key
	}

	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		config.Generator.Model = model
	}

	if token := os.Getenv("OWNER_TOKEN"); token != "" {
		config.Security.OwnerToken = token
	}

	if secret := os.Getenv("GUMROAD_SECRET"); secret != "" {
		config.Webhook.Secret = secret
	}

	// PORT is set by most container platforms; OMEGA_PORT takes precedence
	setInt(&config.Server.Port, "PORT")
	setInt(&config.Server.Port, "OMEGA_PORT")

	// Server configuration
	if host := os.Getenv("OMEGA_HOST"); host != "" {
		config.Server.Host = host
	}
	setDuration(&config.Server.ReadTimeout, "OMEGA_READ_TIMEOUT")
	setDuration(&config.Server.WriteTimeout, "OMEGA_WRITE_TIMEOUT")
	setDuration(&config.Server.IdleTimeout, "OMEGA_IDLE_TIMEOUT")
	setBool(&config.Server.CORS.Enabled, "OMEGA_CORS_ENABLED")
	if origins := os.Getenv("OMEGA_CORS_ALLOWED_ORIGINS"); origins != "" {
		config.Server.CORS.AllowedOrigins = splitAndTrim(origins)
	}

	// Storage configuration
	if storageType := os.Getenv("OMEGA_STORAGE_TYPE"); storageType != "" {
		config.Storage.Type = storageType
	}
	if dsn := os.Getenv("OMEGA_DATABASE_DSN"); dsn != "" {
		config.Storage.Database.DSN = dsn
	}
	setInt(&config.Storage.Database.MaxOpenConns, "OMEGA_DATABASE_MAX_OPEN_CONNS")
	setInt(&config.Storage.Database.MaxIdleConns, "OMEGA_DATABASE_MAX_IDLE_CONNS")

	// Rate gate
	setBool(&config.Security.RateLimit.Enabled, "OMEGA_RATE_LIMIT_ENABLED")
	setInt(&config.Security.RateLimit.Requests, "OMEGA_RATE_LIMIT_REQUESTS")
	setDuration(&config.Security.RateLimit.Window, "OMEGA_RATE_LIMIT_WINDOW")
	setBool(&config.Security.RateLimit.TrustProxyHeaders, "OMEGA_RATE_LIMIT_TRUST_PROXY")
	if proxies := os.Getenv("OMEGA_RATE_LIMIT_TRUSTED_PROXIES"); proxies != "" {
		config.Security.RateLimit.TrustedProxies = splitAndTrim(proxies)
	}

	// Generator
	setDuration(&config.Generator.Timeout, "OMEGA_GENERATOR_TIMEOUT")
	if rps := os.Getenv("OMEGA_GENERATOR_REQUESTS_PER_SECOND"); rps != "" {
		if v, err := strconv.ParseFloat(rps, 64); err == nil {
			config.Generator.RequestsPerSecond = v
		}
	}

	// Bookkeeping
	setInt(&config.Memory.Limit, "OMEGA_MEMORY_LIMIT")
	setDuration(&config.Memory.Decay, "OMEGA_MEMORY_DECAY")
	setInt(&config.Audit.Capacity, "OMEGA_AUDIT_CAPACITY")
	setBool(&config.Plans.RequirePlan, "OMEGA_REQUIRE_PLAN")

	// Logging configuration
	if level := os.Getenv("OMEGA_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("OMEGA_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("OMEGA_LOG_OUTPUT"); output != "" {
		config.Logging.Output = output
	}
	if filePath := os.Getenv("OMEGA_LOG_FILE_PATH"); filePath != "" {
		config.Logging.FilePath = filePath
	}

	// Metrics configuration
	setBool(&config.Metrics.Enabled, "OMEGA_METRICS_ENABLED")
	if path := os.Getenv("OMEGA_METRICS_PATH"); path != "" {
		config.Metrics.Path = path
	}
	setInt(&config.Metrics.Port, "OMEGA_METRICS_PORT")

	// Tracing configuration
	setBool(&config.Observability.Tracing.Enabled, "OMEGA_TRACING_ENABLED")
	if exporter := os.Getenv("OMEGA_TRACING_EXPORTER"); exporter != "" {
		config.Observability.Tracing.Exporter = exporter
	}
	if endpoint := os.Getenv("OMEGA_TRACING_OTLP_ENDPOINT"); endpoint != "" {
		config.Observability.Tracing.OTLPEndpoint = endpoint
	}
	if rate := os.Getenv("OMEGA_TRACING_SAMPLE_RATE"); rate != "" {
		if v, err := strconv.ParseFloat(rate, 64); err == nil {
			config.Observability.Tracing.SampleRate = v
		}
	}
}

func setInt(dst *int, key string) {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			*dst = v
		} else {
			slog.Warn("Ignoring invalid integer environment variable", "key", key, "value", raw)
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if raw := os.Getenv(key); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			*dst = d
		} else {
			slog.Warn("Ignoring invalid duration environment variable", "key", key, "value", raw)
		}
	}
}

func setBool(dst *bool, key string) {
	if raw := os.Getenv(key); raw != "" {
		*dst = strings.ToLower(raw) == "true"
	}
}

func splitAndTrim(s string) []string {
	parts := make([]string, 0)
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// SaveExample saves an example configuration file
func SaveExample(filePath string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	config := models.NewDefaultConfig()
	config.Storage.Type = models.StorageTypeSQLite
	config.Storage.Database.DSN = "./data/omega.db"

	// Marshal to YAML
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// Write to file
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
