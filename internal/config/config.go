// Package config handles loading and validation of service configuration.
// Supports both development (env vars) and production (Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"

	"checkout-relay/internal/store"
	"checkout-relay/internal/transport"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendPebble = "pebble"
	BackendRedis  = "redis"
)

// Defaults applied when a setting is absent.
const (
	DefaultPort          = "8080"
	DefaultSuccessPath   = "/checkout/success"
	DefaultCancelPath    = "/checkout/cancel"
	DefaultPriority      = 2
	DefaultRatePerMinute = 100
	DefaultPendingTTL    = 24 * time.Hour

	// DefaultPublicBaseURL is the redirect host used when requests carry no
	// usable Origin and PUBLIC_BASE_URL is unset.
	DefaultPublicBaseURL = "http://localhost:8080"

	// DefaultTag is the task tag applied when CLICKUP_TAGS is unset.
	DefaultTag = "site"
)

// Config holds all service configuration.
// Environment determines whether provider secrets load from env vars (development) or Secret Manager (production).
type Config struct {
	// Server settings
	Port        string
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"

	// GCP settings (required in production)
	GCPProject string
	SecretID   string

	// PublicBaseURL is the storefront origin used for redirect URLs when a
	// request carries no Origin header.
	PublicBaseURL   string
	SuccessPath     string
	CancelPath      string
	CORSAllowOrigin string

	Store StoreConfig

	// Provider credentials (loaded from secrets). Missing values are not load
	// errors: the affected endpoints answer CONFIG_ERROR per request.
	Providers ProviderConfig
}

// StoreConfig selects the state backend.
type StoreConfig struct {
	Backend       string        `json:"backend"`
	PebbleDir     string        `json:"pebble_dir,omitempty"`
	RedisAddr     string        `json:"redis_addr,omitempty"`
	RedisPassword string        `json:"redis_password,omitempty"`
	RedisDB       int           `json:"redis_db,omitempty"`
	PendingTTL    time.Duration `json:"-"`
}

// ProviderConfig contains the payment and task provider settings.
// In production, this is loaded from Secret Manager as JSON.
// In development, loaded from individual env vars or CONFIG_FILE.
type ProviderConfig struct {
	InfinitePayHandle string `json:"infinitepay_handle"`
	InfinitePayAPIURL string `json:"infinitepay_api_url,omitempty"`
	// ChromeFingerprint routes outbound calls through the uTLS transport.
	ChromeFingerprint bool `json:"outbound_tls_fingerprint,omitempty"`

	ClickUpToken         string   `json:"clickup_api_token"`
	ClickUpListID        string   `json:"clickup_list_id"`
	ClickUpWorkspaceID   string   `json:"clickup_workspace_id,omitempty"`
	ClickUpAPIURL        string   `json:"clickup_api_url,omitempty"`
	ClickUpTargetStatus  string   `json:"clickup_target_status,omitempty"`
	ClickUpPriority      int      `json:"clickup_priority,omitempty"`
	ClickUpTags          []string `json:"clickup_tags,omitempty"`
	ClickUpRatePerMinute int      `json:"clickup_rate_per_minute,omitempty"`
}

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) → ENV vars / Secret Manager.
// Validates all settings and returns an error if any are malformed.
func Load(ctx context.Context) (*Config, error) {
	// If CONFIG_FILE is set, load everything from the JSON file
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	cfg := &Config{
		Port:            envOrDefault("PORT", DefaultPort),
		Environment:     envOrDefault("ENVIRONMENT", "development"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		GCPProject:      os.Getenv("GCP_PROJECT"),
		SecretID:        os.Getenv("RELAY_SECRET_ID"),
		PublicBaseURL:   os.Getenv("PUBLIC_BASE_URL"),
		SuccessPath:     envOrDefault("CHECKOUT_SUCCESS_PATH", DefaultSuccessPath),
		CancelPath:      envOrDefault("CHECKOUT_CANCEL_PATH", DefaultCancelPath),
		CORSAllowOrigin: envOrDefault("CORS_ALLOW_ORIGIN", "*"),
		Store: StoreConfig{
			Backend:       envOrDefault("STORE_BACKEND", BackendMemory),
			PebbleDir:     os.Getenv("PEBBLE_DIR"),
			RedisAddr:     os.Getenv("REDIS_ADDR"),
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
		},
	}

	var err error
	if cfg.Store.RedisDB, err = envInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.Store.PendingTTL, err = envDuration("PENDING_TTL", DefaultPendingTTL); err != nil {
		return nil, err
	}

	// Load provider config based on environment
	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		if cfg.SecretID == "" {
			return nil, fmt.Errorf("RELAY_SECRET_ID required in production environment")
		}
		err = cfg.loadFromSecretManager(ctx)
	} else {
		err = cfg.loadFromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("loading provider config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile reads all configuration from a JSON file.
// Used for local development to avoid multiple ENV vars.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Use a struct that matches the JSON structure
	var fileConfig struct {
		Port            string         `json:"port"`
		Environment     string         `json:"environment"`
		LogLevel        string         `json:"log_level"`
		PublicBaseURL   string         `json:"public_base_url"`
		SuccessPath     string         `json:"success_path"`
		CancelPath      string         `json:"cancel_path"`
		CORSAllowOrigin string         `json:"cors_allow_origin"`
		Store           StoreConfig    `json:"store"`
		PendingTTL      string         `json:"pending_ttl"`
		Providers       ProviderConfig `json:"providers"`
	}

	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		Port:            withDefault(fileConfig.Port, DefaultPort),
		Environment:     withDefault(fileConfig.Environment, "development"),
		LogLevel:        withDefault(fileConfig.LogLevel, "info"),
		PublicBaseURL:   fileConfig.PublicBaseURL,
		SuccessPath:     withDefault(fileConfig.SuccessPath, DefaultSuccessPath),
		CancelPath:      withDefault(fileConfig.CancelPath, DefaultCancelPath),
		CORSAllowOrigin: withDefault(fileConfig.CORSAllowOrigin, "*"),
		Store:           fileConfig.Store,
		Providers:       fileConfig.Providers,
	}

	cfg.Store.PendingTTL = DefaultPendingTTL
	if fileConfig.PendingTTL != "" {
		ttl, err := time.ParseDuration(fileConfig.PendingTTL)
		if err != nil {
			return nil, fmt.Errorf("invalid pending_ttl: %w", err)
		}
		cfg.Store.PendingTTL = ttl
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// loadFromSecretManager fetches provider config from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{secret_id}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, c.SecretID)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	if err := json.Unmarshal(result.Payload.Data, &c.Providers); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}

	return nil
}

// loadFromEnv reads provider config from individual environment variables.
// Used in development mode for local testing.
func (c *Config) loadFromEnv() error {
	c.Providers = ProviderConfig{
		InfinitePayHandle:   os.Getenv("INFINITEPAY_HANDLE"),
		InfinitePayAPIURL:   os.Getenv("INFINITEPAY_API_URL"),
		ClickUpToken:        os.Getenv("CLICKUP_API_TOKEN"),
		ClickUpListID:       os.Getenv("CLICKUP_LIST_ID"),
		ClickUpWorkspaceID:  os.Getenv("CLICKUP_WORKSPACE_ID"),
		ClickUpAPIURL:       os.Getenv("CLICKUP_API_URL"),
		ClickUpTargetStatus: os.Getenv("CLICKUP_TARGET_STATUS"),
		ClickUpTags:         splitList(os.Getenv("CLICKUP_TAGS")),
	}

	var err error
	if c.Providers.ChromeFingerprint, err = envBool("OUTBOUND_TLS_FINGERPRINT"); err != nil {
		return err
	}
	if c.Providers.ClickUpPriority, err = envInt("CLICKUP_PRIORITY", 0); err != nil {
		return err
	}
	if c.Providers.ClickUpRatePerMinute, err = envInt("CLICKUP_RATE_PER_MINUTE", 0); err != nil {
		return err
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Providers.ClickUpPriority == 0 {
		c.Providers.ClickUpPriority = DefaultPriority
	}
	if c.Providers.ClickUpRatePerMinute == 0 {
		c.Providers.ClickUpRatePerMinute = DefaultRatePerMinute
	}
	if len(c.Providers.ClickUpTags) == 0 {
		c.Providers.ClickUpTags = []string{DefaultTag}
	}
	if c.Store.Backend == "" {
		c.Store.Backend = BackendMemory
	}
	c.PublicBaseURL = strings.TrimSuffix(c.PublicBaseURL, "/")
	if c.PublicBaseURL == "" {
		c.PublicBaseURL = DefaultPublicBaseURL
	}
}

// validate checks that every present setting is well-formed.
func (c *Config) validate() error {
	u, err := url.Parse(c.PublicBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid public_base_url: must be an absolute http(s) URL")
	}
	if !strings.HasPrefix(c.SuccessPath, "/") {
		return fmt.Errorf("success_path must start with /")
	}
	if !strings.HasPrefix(c.CancelPath, "/") {
		return fmt.Errorf("cancel_path must start with /")
	}
	if c.SuccessPath == c.CancelPath {
		return fmt.Errorf("success_path and cancel_path must differ")
	}

	if p := c.Providers.ClickUpPriority; p < 1 || p > 4 {
		return fmt.Errorf("clickup_priority must be between 1 and 4, got %d", p)
	}
	if c.Providers.ClickUpRatePerMinute < 0 {
		return fmt.Errorf("clickup_rate_per_minute must not be negative")
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendPebble:
		if c.Store.PebbleDir == "" {
			return fmt.Errorf("pebble_dir is required for the pebble store")
		}
	case BackendRedis:
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("redis_addr is required for the redis store")
		}
	default:
		return fmt.Errorf("unsupported store backend: %s", c.Store.Backend)
	}
	if c.Store.PendingTTL <= 0 {
		return fmt.Errorf("pending_ttl must be positive")
	}

	return nil
}

// OpenStore opens the configured state backend.
func (c *Config) OpenStore(ctx context.Context) (store.Store, error) {
	switch c.Store.Backend {
	case BackendPebble:
		return store.NewPebble(c.Store.PebbleDir)
	case BackendRedis:
		r := store.NewRedis(c.Store.RedisAddr, c.Store.RedisPassword, c.Store.RedisDB)
		if err := r.Ping(ctx); err != nil {
			r.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		return r, nil
	default:
		return store.NewMemory(), nil
	}
}

// PaymentTransport returns the outbound options for the payment provider.
func (c *Config) PaymentTransport() transport.Options {
	return transport.Options{ChromeFingerprint: c.Providers.ChromeFingerprint}
}

// TaskTransport returns the outbound options for the task provider.
func (c *Config) TaskTransport() transport.Options {
	return transport.Options{
		ChromeFingerprint: c.Providers.ChromeFingerprint,
		RequestsPerMinute: c.Providers.ClickUpRatePerMinute,
	}
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return n, nil
}

func envBool(key string) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("parsing %s: %w", key, err)
	}
	return b, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return d, nil
}

// splitList parses a comma-separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
