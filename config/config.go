package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tioga/tax-ledger/tax"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Billing  BillingConfig
	CORS     CORSConfig
}

// ServerConfig holds HTTP server configuration for the read-only API.
type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

// DatabaseConfig holds the SQLite file location and backup settings.
type DatabaseConfig struct {
	Path      string
	BackupDir string
}

// BillingConfig holds cycle-wide billing parameters.
type BillingConfig struct {
	// DefaultIssueDate anchors period calculation for parcels whose
	// roll record carries no bill issue date.
	DefaultIssueDate string
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// Load reads configuration from environment variables.
// It uses viper to read values and provides sensible defaults for development.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_PATH", "./data/taxledger.db")
	v.SetDefault("BACKUP_DIR", "./data/backups")
	v.SetDefault("DEFAULT_ISSUE_DATE", "2025-03-01")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port:     v.GetString("PORT"),
			Env:      v.GetString("ENV"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		Database: DatabaseConfig{
			Path:      v.GetString("DB_PATH"),
			BackupDir: v.GetString("BACKUP_DIR"),
		},
		Billing: BillingConfig{
			DefaultIssueDate: v.GetString("DEFAULT_ISSUE_DATE"),
		},
		CORS: CORSConfig{
			Origins: parseOrigins(v.GetString("CORS_ORIGINS")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	if c.Database.BackupDir == "" {
		return fmt.Errorf("BACKUP_DIR is required")
	}
	if _, err := tax.ParseDate(c.Billing.DefaultIssueDate); err != nil {
		return fmt.Errorf("DEFAULT_ISSUE_DATE: %w", err)
	}
	return nil
}

// IssueDate returns the configured default bill issue date.
// Validate guarantees the value parses.
func (c *Config) IssueDate() time.Time {
	d, _ := tax.ParseDate(c.Billing.DefaultIssueDate)
	return d
}

// parseOrigins splits a comma-separated string of origins into a slice.
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
