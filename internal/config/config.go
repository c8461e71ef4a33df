// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for the history database
	LogLevel string
	Port     int
	DevMode  bool

	// APIToken protects the trigger and export endpoints.
	APIToken string

	// NAVBaseURL overrides the cash register file service endpoint.
	// Empty means production.
	NAVBaseURL string
	// InvoiceBaseURL overrides the Online Invoice service endpoint.
	InvoiceBaseURL string

	// Record store (merchants and revenue rows).
	RecordStoreURL string
	RecordStoreKey string

	// S3-compatible archive bucket. Optional; empty bucket disables
	// archiving.
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string

	// Sync behavior.
	SyncDaysThreshold int    // merchants synced less recently than this are due
	SyncSchedule      string // cron expression for the nightly batch
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("OPGSYNC_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("PORT", 8001),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		APIToken: getEnv("API_TOKEN", ""),

		NAVBaseURL:     getEnv("NAV_BASE_URL", ""),
		InvoiceBaseURL: getEnv("INVOICE_BASE_URL", ""),

		RecordStoreURL: getEnv("RECORD_STORE_URL", ""),
		RecordStoreKey: getEnv("RECORD_STORE_KEY", ""),

		S3Endpoint:  getEnv("S3_ENDPOINT", ""),
		S3Region:    getEnv("S3_REGION", ""),
		S3Bucket:    getEnv("S3_BUCKET", ""),
		S3AccessKey: getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretKey: getEnv("S3_SECRET_ACCESS_KEY", ""),

		SyncDaysThreshold: getEnvAsInt("SYNC_DAYS_THRESHOLD", 3),
		SyncSchedule:      getEnv("SYNC_SCHEDULE", "0 2 * * *"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.RecordStoreURL == "" {
		return fmt.Errorf("RECORD_STORE_URL is required")
	}
	if c.RecordStoreKey == "" {
		return fmt.Errorf("RECORD_STORE_KEY is required")
	}
	if c.APIToken == "" && !c.DevMode {
		return fmt.Errorf("API_TOKEN is required outside dev mode")
	}
	return nil
}

// ArchiveEnabled reports whether an archive bucket is configured.
func (c *Config) ArchiveEnabled() bool {
	return c.S3Bucket != ""
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
