package internal

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/corvid/pixmill/internal/domain"
)

type Config struct {
	Env      string
	LogLevel string

	// Output directory for exported artifacts and the batch archive
	OutputDir string

	// Storage Configuration
	StorageProvider string // "local" or "r2"

	// Local Storage (development and CLI runs)
	LocalStoragePath string // Base directory for local artifact storage
	LocalStorageURL  string // Base URL for accessing local artifacts

	// R2 Storage (hosted deployments)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string // Optional custom domain URL

	// Conversion defaults, overridable per run via flags
	OutputFormat  string
	Quality       float64
	ResizeRatio   float64
	ColorCount    int
	Vector        bool
	UseAIAnalysis bool

	// AI Provider Configuration
	AIProvider       string // "anthropic" or "mock"
	AnthropicAPIKey  string
	AnthropicModel   string
	AIMaxRetries     int
	AIRetryBaseDelay time.Duration
	AIRequestTimeout time.Duration

	// Metrics endpoint address; empty disables the listener
	MetricsAddr string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	defaults := domain.DefaultSettings()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		OutputDir: getEnv("OUTPUT_DIR", "./output"),

		// Storage defaults to local filesystem
		StorageProvider:  getEnv("STORAGE_PROVIDER", "local"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./artifacts"),
		LocalStorageURL:  getEnv("LOCAL_STORAGE_URL", "http://localhost:8080/artifacts"),

		// R2 configuration (hosted deployments only)
		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),
		R2PublicURL:       getEnv("R2_PUBLIC_URL", ""),

		// Conversion defaults
		OutputFormat:  getEnv("OUTPUT_FORMAT", string(defaults.OutputFormat)),
		Quality:       getEnvFloat("QUALITY", defaults.Quality),
		ResizeRatio:   getEnvFloat("RESIZE_RATIO", defaults.ResizeRatio),
		ColorCount:    getEnvInt("COLOR_COUNT", 16),
		Vector:        getEnvBool("VECTOR", false),
		UseAIAnalysis: getEnvBool("USE_AI_ANALYSIS", false),

		// AI provider defaults
		AIProvider:       getEnv("AI_PROVIDER", "mock"),
		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:   getEnv("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),
		AIMaxRetries:     getEnvInt("AI_MAX_RETRIES", 3),
		AIRetryBaseDelay: getEnvDuration("AI_RETRY_BASE_DELAY", 1*time.Second),
		AIRequestTimeout: getEnvDuration("AI_REQUEST_TIMEOUT", 60*time.Second),

		MetricsAddr: getEnv("METRICS_ADDR", ""),
	}

	// Validate storage configuration
	if cfg.StorageProvider == "r2" {
		if cfg.R2AccountID == "" {
			return nil, fmt.Errorf("R2_ACCOUNT_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2AccessKeyID == "" {
			return nil, fmt.Errorf("R2_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2SecretAccessKey == "" {
			return nil, fmt.Errorf("R2_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2BucketName == "" {
			return nil, fmt.Errorf("R2_BUCKET_NAME is required when STORAGE_PROVIDER is 'r2'")
		}
	} else if cfg.StorageProvider != "local" {
		return nil, fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 'r2', got: %s", cfg.StorageProvider)
	}

	// Validate AI provider configuration
	if cfg.AIProvider == "anthropic" {
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required when AI_PROVIDER is 'anthropic'")
		}
	} else if cfg.AIProvider != "mock" {
		return nil, fmt.Errorf("AI_PROVIDER must be either 'anthropic' or 'mock', got: %s", cfg.AIProvider)
	}

	return cfg, nil
}

// ConversionSettings assembles the configured conversion defaults.
func (c *Config) ConversionSettings() domain.ConversionSettings {
	return domain.ConversionSettings{
		OutputFormat:  domain.Format(c.OutputFormat),
		Quality:       c.Quality,
		ResizeRatio:   c.ResizeRatio,
		Vector:        c.Vector,
		ColorCount:    c.ColorCount,
		UseAIAnalysis: c.UseAIAnalysis,
	}.Normalized()
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
