// Package config provides configuration loading with Azure Key Vault integration.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the service configuration.
type Config struct {
	// Service identification
	ServiceName string
	Environment string
	Version     string

	// HTTP server
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// CORS and rate limiting
	CORSAllowedOrigins []string
	RateLimitEnabled   bool
	RateLimitRPS       float64
	RateLimitBurst     int

	// Logging
	LogLevel string

	// Observability
	OTLPEndpoint    string
	OTLPInsecure    bool
	TraceSampleRate float64

	// Azure
	KeyVaultName         string
	BlobConnectionString string
	BlobContainerURL     string
	BlobContainerName    string

	// Datasets. DatasetDir is used when no blob location is configured.
	DatasetDir   string
	NCFile       string
	CCFile       string
	RequestsFile string
	NCCountsFile string
	CCCountsFile string

	// Count cache. An empty RedisHost keeps the cache in process.
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int
	RedisTLS      bool
	CacheTTL      time.Duration

	// Engine
	H3Resolution         int
	DefaultRadiusMiles   float64
	SessionIdleTimeout   time.Duration
	SessionSweepInterval time.Duration
}

// Load loads configuration from environment variables.
// Outside development, secrets are loaded from Azure Key Vault.
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		ServiceName:     serviceName,
		Environment:     getEnv("ENVIRONMENT", "development"),
		Version:         getEnv("VERSION", "0.0.1"),
		Port:            getEnvInt("PORT", 8080),
		ReadTimeout:     getEnvDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:    getEnvDuration("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:     getEnvDuration("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		KeyVaultName:    getEnv("KEY_VAULT_NAME", ""),

		RateLimitEnabled: getEnvBool("RATE_LIMIT_ENABLED", true),
		RateLimitRPS:     getEnvFloat("RATE_LIMIT_RPS", 100),
		RateLimitBurst:   getEnvInt("RATE_LIMIT_BURST", 200),

		OTLPEndpoint:    getEnvWithFallback("OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure:    getEnvBool("OTLP_INSECURE", false),
		TraceSampleRate: getEnvFloat("TRACE_SAMPLE_RATE", 1.0),

		BlobContainerURL:  getEnv("BLOB_CONTAINER_URL", ""),
		BlobContainerName: getEnv("BLOB_CONTAINER_NAME", "datasets"),

		DatasetDir:   getEnv("DATASET_DIR", "./data"),
		NCFile:       getEnv("DATASET_NC_FILE", "nc-boundaries.json"),
		CCFile:       getEnv("DATASET_CC_FILE", "cc-boundaries.json"),
		RequestsFile: getEnv("DATASET_REQUESTS_FILE", "requests.json"),
		NCCountsFile: getEnv("DATASET_NC_COUNTS_FILE", "nc-counts.json"),
		CCCountsFile: getEnv("DATASET_CC_COUNTS_FILE", "cc-counts.json"),

		RedisPort: getEnvInt("REDIS_PORT", 6380),
		RedisDB:   getEnvInt("REDIS_DB", 0),
		RedisTLS:  getEnvBool("REDIS_TLS", true),
		CacheTTL:  getEnvDuration("CACHE_TTL", 10*time.Minute),

		H3Resolution:         getEnvInt("H3_RESOLUTION", 9),
		DefaultRadiusMiles:   getEnvFloat("DEFAULT_RADIUS_MILES", 1),
		SessionIdleTimeout:   getEnvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		SessionSweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", time.Minute),
	}

	if cfg.IsDevelopment() {
		cfg.CORSAllowedOrigins = getEnvSlice("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080")
	} else {
		cfg.CORSAllowedOrigins = getEnvSlice("CORS_ORIGINS", "")
	}

	// Load secrets from Key Vault outside development
	if cfg.KeyVaultName != "" && !cfg.IsDevelopment() {
		if err := cfg.loadFromKeyVault(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to load secrets from Key Vault: %w", err)
		}
	} else {
		cfg.loadFromEnv()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad loads configuration and panics on error.
func MustLoad(serviceName string) *Config {
	cfg, err := Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

func (c *Config) loadFromEnv() {
	c.RedisHost = getEnv("REDIS_HOST", "")
	c.RedisPassword = getEnv("REDIS_PASSWORD", "")
	c.BlobConnectionString = getEnvWithFallback("BLOB_CONNECTION_STRING", "AZURE_STORAGE_CONNECTION_STRING", "")
}

// secretClient is the subset of KeyVaultClient used for loading.
type secretClient interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

func (c *Config) loadFromKeyVault(ctx context.Context) error {
	kv, err := NewKeyVaultClient(c.KeyVaultName)
	if err != nil {
		return err
	}
	c.loadSecrets(ctx, kv)
	return nil
}

func (c *Config) loadSecrets(ctx context.Context, kv secretClient) {
	// Environment values are the fallback for secrets the vault lacks.
	c.loadFromEnv()

	secrets := map[string]*string{
		"redis-host":             &c.RedisHost,
		"redis-password":         &c.RedisPassword,
		"blob-connection-string": &c.BlobConnectionString,
	}
	for name, ptr := range secrets {
		value, err := kv.GetSecret(ctx, name)
		if err != nil {
			// Secrets are optional; the in-process cache and dataset dir
			// are used when they are absent.
			continue
		}
		*ptr = value
	}
}

// Validate checks ranges that would otherwise fail later and obscurely.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.H3Resolution < 0 || c.H3Resolution > 15 {
		return fmt.Errorf("invalid H3_RESOLUTION %d: must be 0-15", c.H3Resolution)
	}
	if !(c.DefaultRadiusMiles > 0) {
		return fmt.Errorf("invalid DEFAULT_RADIUS_MILES %v: must be positive", c.DefaultRadiusMiles)
	}
	if c.TraceSampleRate < 0 || c.TraceSampleRate > 1 {
		return fmt.Errorf("invalid TRACE_SAMPLE_RATE %v: must be 0-1", c.TraceSampleRate)
	}
	return nil
}

// UseBlobDatasets reports whether datasets come from Azure Blob Storage.
func (c *Config) UseBlobDatasets() bool {
	return c.BlobConnectionString != "" || c.BlobContainerURL != ""
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvWithFallback gets an environment variable with fallback to another key.
func getEnvWithFallback(primary, fallback, defaultValue string) string {
	if value := os.Getenv(primary); value != "" {
		return value
	}
	if value := os.Getenv(fallback); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvSlice(key, defaultValue string) []string {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// GetEnv gets an environment variable with a default value.
func GetEnv(key, defaultValue string) string {
	return getEnv(key, defaultValue)
}

// GetEnvInt gets an environment variable as an integer with a default value.
func GetEnvInt(key string, defaultValue int) int {
	return getEnvInt(key, defaultValue)
}

// GetEnvBool gets an environment variable as a boolean with a default value.
func GetEnvBool(key string, defaultValue bool) bool {
	return getEnvBool(key, defaultValue)
}

// GetEnvDuration gets an environment variable as a duration with a default value.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	return getEnvDuration(key, defaultValue)
}

// GetEnvFloat gets an environment variable as a float with a default value.
func GetEnvFloat(key string, defaultValue float64) float64 {
	return getEnvFloat(key, defaultValue)
}

// GetEnvSlice gets a comma-separated environment variable as a slice.
func GetEnvSlice(key, defaultValue string) []string {
	return getEnvSlice(key, defaultValue)
}
