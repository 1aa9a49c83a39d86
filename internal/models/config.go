// Package models - Service configuration and operational settings.
// This file defines the configuration structures for every gateway component.
//
// Configuration Philosophy:
// - Hierarchical configuration with logical grouping (server, storage, generator, etc.)
// - Defaults that run the gateway out of the box with in-memory plans
// - Validation that catches misconfigurations before the listener opens
// - A missing model API key is a degraded mode, not a startup failure
package models

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypePostgres = "postgres"
	StorageTypeSQLite   = "sqlite"
)

// Config is the root configuration structure containing all service settings.
//
// Configuration Structure:
// - Server: HTTP server and network settings
// - Storage: Plan persistence backend
// - Security: Owner token and rate limiting
// - Webhook: Payment provider secret and plan tiers
// - Generator: External model access
// - Memory, Audit, Plans: In-process bookkeeping limits
// - Logging, Metrics, Observability: Operational output
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	Storage       StorageConfig       `yaml:"storage" json:"storage"`
	Security      SecurityConfig      `yaml:"security" json:"security"`
	Webhook       WebhookConfig       `yaml:"webhook" json:"webhook"`
	Generator     GeneratorConfig     `yaml:"generator" json:"generator"`
	Memory        MemoryConfig        `yaml:"memory" json:"memory"`
	Audit         AuditConfig         `yaml:"audit" json:"audit"`
	Plans         PlansConfig         `yaml:"plans" json:"plans"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

type ServerConfig struct {
	Port         int           `yaml:"port" json:"port"`
	Host         string        `yaml:"host" json:"host"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	CORS         CORSConfig    `yaml:"cors" json:"cors"`
}

type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" json:"allowed_headers"`
	MaxAge         int      `yaml:"max_age" json:"max_age"`
}

type StorageConfig struct {
	Type     string         `yaml:"type" json:"type"`
	Database DatabaseConfig `yaml:"database" json:"database"`
}

type DatabaseConfig struct {
	DSN             string        `yaml:"dsn" json:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
}

// SecurityConfig holds the owner token guarding /admin and the rate gate.
// An empty OwnerToken disables the admin surface entirely.
type SecurityConfig struct {
	OwnerToken string          `yaml:"owner_token" json:"-"`
	RateLimit  RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig configures the sliding window applied to chat requests.
// Clients are keyed by the connection address unless TrustProxyHeaders is
// set. TrustedProxies then limits which peers may name the client through
// X-Forwarded-For or X-Real-IP; an empty list trusts every peer.
type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled" json:"enabled"`
	Requests          int           `yaml:"requests" json:"requests"`
	Window            time.Duration `yaml:"window" json:"window"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
	TrustProxyHeaders bool          `yaml:"trust_proxy_headers" json:"trust_proxy_headers"`
	TrustedProxies    []string      `yaml:"trusted_proxies" json:"trusted_proxies"`
}

// ProxyPrefixes parses TrustedProxies. Bare addresses are treated as
// single-host prefixes.
func (rl RateLimitConfig) ProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(rl.TrustedProxies))
	for _, raw := range rl.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if prefix, err := netip.ParsePrefix(raw); err == nil {
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q", raw)
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// WebhookConfig configures verification and tier mapping for payment
// notifications. Tiers are matched in order; the first whose Match
// substring occurs in the product name wins, otherwise Default applies.
type WebhookConfig struct {
	Secret  string       `yaml:"secret" json:"-"`
	Tiers   []TierConfig `yaml:"tiers" json:"tiers"`
	Default TierConfig   `yaml:"default" json:"default"`
}

type TierConfig struct {
	Match    string        `yaml:"match" json:"match"`
	Label    string        `yaml:"label" json:"label"`
	Quota    int           `yaml:"quota" json:"quota"`
	Duration time.Duration `yaml:"duration" json:"duration"`
}

type GeneratorConfig struct {
	APIKey            string        `yaml:"api_key" json:"-"`
	Model             string        `yaml:"model" json:"model"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int           `yaml:"burst" json:"burst"`
	SystemInstruction string        `yaml:"system_instruction" json:"system_instruction"`
}

type MemoryConfig struct {
	Limit int           `yaml:"limit" json:"limit"`
	Decay time.Duration `yaml:"decay" json:"decay"`
}

type AuditConfig struct {
	Capacity    int `yaml:"capacity" json:"capacity"`
	DefaultTail int `yaml:"default_tail" json:"default_tail"`
}

// PlansConfig decides how chat treats users without a plan. When
// RequirePlan is false such users are served without quota accounting.
type PlansConfig struct {
	RequirePlan bool `yaml:"require_plan" json:"require_plan"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
}

// NewDefaultConfig creates a configuration with single-process defaults:
// 10 chat requests per minute per client,
// ten remembered prompts per user for a day, a 1000 entry audit ring and
// in-memory plan storage.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"*"},
				MaxAge:         86400,
			},
		},
		Storage: StorageConfig{
			Type: StorageTypeMemory,
			Database: DatabaseConfig{
				MaxOpenConns:    10,
				MaxIdleConns:    2,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				Enabled:         true,
				Requests:        10,
				Window:          time.Minute,
				CleanupInterval: 5 * time.Minute,
			},
		},
		Webhook: WebhookConfig{
			Tiers: []TierConfig{
				{Match: "VIP", Label: "VIP", Quota: 1000, Duration: 30 * 24 * time.Hour},
				{Match: "PRO", Label: "PRO", Quota: 300, Duration: 30 * 24 * time.Hour},
			},
			Default: TierConfig{Label: "BASIC", Quota: 50, Duration: 30 * 24 * time.Hour},
		},
		Generator: GeneratorConfig{
			Model:             "gemini-1.5-flash",
			Timeout:           30 * time.Second,
			RequestsPerSecond: 5,
			Burst:             10,
			SystemInstruction: "You are OMEGA, a concise and helpful assistant. Use the recent conversation for context.",
		},
		Memory: MemoryConfig{
			Limit: 10,
			Decay: 24 * time.Hour,
		},
		Audit: AuditConfig{
			Capacity:    1000,
			DefaultTail: 100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "omega",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "stdout",
				SampleRate: 1.0,
			},
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("invalid storage config: %w", err)
	}

	if err := c.Security.Validate(); err != nil {
		return fmt.Errorf("invalid security config: %w", err)
	}

	if err := c.Webhook.Validate(); err != nil {
		return fmt.Errorf("invalid webhook config: %w", err)
	}

	if err := c.Generator.Validate(); err != nil {
		return fmt.Errorf("invalid generator config: %w", err)
	}

	if c.Memory.Limit <= 0 {
		return errors.New("invalid memory config: limit must be positive")
	}
	if c.Memory.Decay <= 0 {
		return errors.New("invalid memory config: decay must be positive")
	}

	if c.Audit.Capacity <= 0 {
		return errors.New("invalid audit config: capacity must be positive")
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}

	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("invalid observability config: %w", err)
	}

	return nil
}

func (sc *ServerConfig) Validate() error {
	if sc.Port <= 0 || sc.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}

	if sc.Host == "" {
		return errors.New("host cannot be empty")
	}

	if sc.ReadTimeout < 0 || sc.WriteTimeout < 0 || sc.IdleTimeout < 0 {
		return errors.New("timeouts cannot be negative")
	}

	return nil
}

func (stc *StorageConfig) Validate() error {
	switch stc.Type {
	case StorageTypeMemory:
		return nil
	case StorageTypePostgres, StorageTypeSQLite:
		if stc.Database.DSN == "" {
			return errors.New("database DSN is required for database storage")
		}
		return nil
	default:
		return fmt.Errorf("invalid storage type: %s", stc.Type)
	}
}

func (sec *SecurityConfig) Validate() error {
	if !sec.RateLimit.Enabled {
		return nil
	}
	if sec.RateLimit.Requests <= 0 {
		return errors.New("rate limit requests must be positive")
	}
	if sec.RateLimit.Window <= 0 {
		return errors.New("rate limit window must be positive")
	}
	if sec.RateLimit.CleanupInterval <= 0 {
		return errors.New("rate limit cleanup interval must be positive")
	}
	if _, err := sec.RateLimit.ProxyPrefixes(); err != nil {
		return err
	}
	return nil
}

func (wc *WebhookConfig) Validate() error {
	for _, tier := range wc.Tiers {
		if strings.TrimSpace(tier.Match) == "" {
			return fmt.Errorf("tier %q has an empty match", tier.Label)
		}
		if err := tier.Validate(); err != nil {
			return err
		}
	}
	return wc.Default.Validate()
}

func (tc *TierConfig) Validate() error {
	if tc.Label == "" {
		return errors.New("tier label cannot be empty")
	}
	if tc.Quota <= 0 {
		return fmt.Errorf("tier %s: quota must be positive", tc.Label)
	}
	if tc.Duration <= 0 {
		return fmt.Errorf("tier %s: duration must be positive", tc.Label)
	}
	return nil
}

func (gc *GeneratorConfig) Validate() error {
	if gc.Model == "" {
		return errors.New("model cannot be empty")
	}
	if gc.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if gc.RequestsPerSecond < 0 {
		return errors.New("requests per second cannot be negative")
	}
	if gc.RequestsPerSecond > 0 && gc.Burst <= 0 {
		return errors.New("burst must be positive when throttling is enabled")
	}
	return nil
}

func (lc *LoggingConfig) Validate() error {
	switch lc.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}

	switch lc.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", lc.Format)
	}

	switch lc.Output {
	case "stdout", "stderr":
	case "file":
		if lc.FilePath == "" {
			return errors.New("file path is required when output is file")
		}
	default:
		return fmt.Errorf("invalid log output: %s", lc.Output)
	}

	return nil
}

func (mc *MetricsConfig) Validate() error {
	if !mc.Enabled {
		return nil
	}

	if mc.Path == "" {
		return errors.New("metrics path cannot be empty")
	}

	if mc.Port <= 0 || mc.Port > 65535 {
		return errors.New("metrics port must be between 1 and 65535")
	}

	return nil
}

func (oc *ObservabilityConfig) Validate() error {
	if oc.ServiceName == "" {
		return errors.New("service name cannot be empty")
	}
	if !oc.Tracing.Enabled {
		return nil
	}
	switch oc.Tracing.Exporter {
	case "stdout":
	case "otlp":
		if oc.Tracing.OTLPEndpoint == "" {
			return errors.New("OTLP endpoint is required for the otlp exporter")
		}
	default:
		return fmt.Errorf("invalid trace exporter: %s", oc.Tracing.Exporter)
	}
	if oc.Tracing.SampleRate < 0 || oc.Tracing.SampleRate > 1 {
		return errors.New("sample rate must be between 0 and 1")
	}
	return nil
}
