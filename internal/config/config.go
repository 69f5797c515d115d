package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageBigQuery = "bigquery"
)

// Blob backends.
const (
	BlobGCS    = "gcs"
	BlobS3     = "s3"
	BlobMemory = "memory"
)

// LLM providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config is read from the environment.
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	ServerPort  uint   `envconfig:"SERVER_PORT" default:"8080"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console"`

	StorageBackend  string `envconfig:"STORAGE_BACKEND" default:"postgres"`
	DatabaseURL     string `envconfig:"DATABASE_URL"`
	BigQueryProject string `envconfig:"BIGQUERY_PROJECT"`
	BigQueryDataset string `envconfig:"BIGQUERY_DATASET" default:"triad3"`

	BlobBackend string `envconfig:"BLOB_BACKEND" default:"gcs"`
	BlobBucket  string `envconfig:"BLOB_BUCKET"`

	LLMProvider string        `envconfig:"LLM_PROVIDER" default:"gemini"`
	LLMModel    string        `envconfig:"LLM_MODEL"`
	LLMAPIKey   string        `envconfig:"LLM_API_KEY"`
	LLMBaseURL  string        `envconfig:"LLM_BASE_URL" default:"https://api.openai.com/v1"`
	LLMTimeout  time.Duration `envconfig:"LLM_TIMEOUT" default:"120s"`

	QueueWorkers  int           `envconfig:"QUEUE_WORKERS" default:"5"`
	QueueBuffer   int           `envconfig:"QUEUE_BUFFER" default:"100"`
	JobMaxRetries int           `envconfig:"JOB_MAX_RETRIES" default:"0"`
	StaleAfter    time.Duration `envconfig:"STALE_AFTER" default:"30m"`

	MaxUploadBytes int64 `envconfig:"MAX_UPLOAD_BYTES" default:"20971520"`

	AuthJWKSURL  string `envconfig:"AUTH_JWKS_URL"`
	AuthDisabled bool   `envconfig:"AUTH_DISABLED" default:"false"`

	MetricsEnabled bool `envconfig:"METRICS_ENABLED" default:"true"`
}

// Load processes the environment and validates backend requirements.
func Load() (*Config, error) {
	c := new(Config)
	if err := envconfig.Process("", c); err != nil {
		return nil, fmt.Errorf("process environment config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// Validate checks that the selected backends have what they need.
func (c *Config) Validate() error {
	c.StorageBackend = strings.ToLower(strings.TrimSpace(c.StorageBackend))
	c.BlobBackend = strings.ToLower(strings.TrimSpace(c.BlobBackend))
	c.LLMProvider = strings.ToLower(strings.TrimSpace(c.LLMProvider))

	switch c.StorageBackend {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("set DATABASE_URL")
		}
	case StorageBigQuery:
		if c.BigQueryProject == "" {
			return fmt.Errorf("set BIGQUERY_PROJECT")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	switch c.BlobBackend {
	case BlobGCS, BlobS3:
		if c.BlobBucket == "" {
			return fmt.Errorf("set BLOB_BUCKET for the %s blob backend", c.BlobBackend)
		}
	case BlobMemory:
	default:
		return fmt.Errorf("unknown BLOB_BACKEND %q", c.BlobBackend)
	}

	switch c.LLMProvider {
	case ProviderGemini:
	case ProviderOpenAI:
		if c.LLMAPIKey == "" {
			return fmt.Errorf("set LLM_API_KEY for the openai provider")
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}

	if c.QueueWorkers <= 0 {
		c.QueueWorkers = 5
	}
	if c.QueueBuffer <= 0 {
		c.QueueBuffer = 100
	}
	if c.LLMTimeout <= 0 {
		c.LLMTimeout = 120 * time.Second
	}

	return nil
}

// ValidateServer checks what only the HTTP server needs.
func (c *Config) ValidateServer() error {
	if !c.AuthDisabled && c.AuthJWKSURL == "" {
		return fmt.Errorf("set AUTH_JWKS_URL or AUTH_DISABLED=true")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
